// Package quotawatch embeds the quota monitor in a Go program.
//
// The monitor finds the local language server, polls its user status and
// publishes grouped quota snapshots. Settings live in memory, in a YAML file
// or under a Redis key.
//
//	mon, _ := quotawatch.New(ctx,
//	    quotawatch.WithSettingsFile("/home/me/.config/quotawatch/settings.yaml"),
//	    quotawatch.WithHotReload(),
//	)
//	defer mon.Close()
//
//	mon.OnSnapshot(func(s quotawatch.Snapshot) {
//	    for _, m := range s.Models {
//	        fmt.Println(m.Label, m.Status)
//	    }
//	})
//	_ = mon.Start(ctx)
package quotawatch
