// Package grouping clusters models that draw from one quota pool.
package grouping

import (
	"math"
	"strconv"
	"time"

	"github.com/kailas-cloud/quotawatch/internal/domain/quota"
)

// Recompute assigns every model with quota to the group of models sharing its
// fingerprint: remaining fraction bucketed by tolerance plus exact reset time.
// Models without quota are left out and stay singletons. The result depends
// only on the model set, not its order.
func Recompute(models []quota.Model, tolerance float64) quota.Membership {
	buckets := make(map[string][]string)
	for _, m := range models {
		if !m.HasQuota {
			continue
		}
		k := fingerprint(m, tolerance)
		buckets[k] = append(buckets[k], m.ID)
	}

	out := make(quota.Membership, len(models))
	for _, ids := range buckets {
		gid := quota.GroupID(ids)
		for _, id := range ids {
			out[id] = gid
		}
	}
	return out
}

func fingerprint(m quota.Model, tolerance float64) string {
	var frac string
	if tolerance > 0 {
		frac = strconv.FormatFloat(math.Round(m.RemainingFraction/tolerance), 'f', 0, 64)
	} else {
		frac = strconv.FormatFloat(m.RemainingFraction, 'g', -1, 64)
	}
	return frac + "|" + m.ResetAt.UTC().Format(time.RFC3339Nano)
}

// Group buckets models by s.Membership; unassigned models form singletons keyed
// by their own id. Groups appear in the order of their first member.
func Group(models []quota.Model, s quota.Settings) []quota.Group {
	var order []string
	members := make(map[string][]quota.Model)
	for _, m := range models {
		gid := s.Membership[m.ID]
		if gid == "" {
			gid = m.ID
		}
		if _, ok := members[gid]; !ok {
			order = append(order, gid)
		}
		members[gid] = append(members[gid], m)
	}

	thresholds := s.Thresholds()
	groups := make([]quota.Group, 0, len(order))
	ordinal := 0
	for _, gid := range order {
		g := build(gid, members[gid], thresholds)
		g.Pinned = s.IsPinnedGroup(gid)

		if name, ok := majorityName(g.Models, s.GroupNames); ok {
			g.Name = name
		} else if len(g.Models) == 1 {
			g.Name = g.Models[0].Label
		} else {
			ordinal++
			g.Name = "Group " + strconv.Itoa(ordinal)
		}
		groups = append(groups, g)
	}
	return groups
}

func build(gid string, ms []quota.Model, t quota.Thresholds) quota.Group {
	g := quota.Group{ID: gid, Models: ms}

	var reset *quota.Model
	for i := range ms {
		m := &ms[i]
		if !m.HasQuota {
			continue
		}
		if !g.HasQuota || m.Percentage() < g.RemainingPercentage {
			g.RemainingPercentage = m.Percentage()
		}
		g.HasQuota = true
		if m.Exhausted() {
			g.Exhausted = true
		}
		if reset == nil {
			reset = m
		}
	}
	if reset == nil {
		reset = &ms[0]
	}
	g.ResetAt = reset.ResetAt
	g.ResetText = reset.ResetText
	g.Status = t.Classify(g.RemainingPercentage, g.Exhausted, g.HasQuota)
	return g
}

// majorityName picks the most frequent custom name among members. Ties go to
// the name seen first in member order.
func majorityName(ms []quota.Model, names map[string]string) (string, bool) {
	counts := make(map[string]int)
	var seen []string
	for _, m := range ms {
		n := names[m.ID]
		if n == "" {
			continue
		}
		if counts[n] == 0 {
			seen = append(seen, n)
		}
		counts[n]++
	}

	best, bestCount := "", 0
	for _, n := range seen {
		if counts[n] > bestCount {
			best, bestCount = n, counts[n]
		}
	}
	return best, bestCount > 0
}
