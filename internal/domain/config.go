package domain

// Profile describes how the language server shows up in process metadata.
type Profile struct {
	ProcessNames  map[string]string // GOOS/GOARCH or GOOS -> executable name
	TokenFlag     string
	PortFlag      string
	DataDirFlag   string
	DataDirValue  string
	PathMarker    string
	KeywordMarker string
}

// DefaultProfile returns the profile of the Antigravity language server.
func DefaultProfile() Profile {
	return Profile{
		ProcessNames: map[string]string{
			"windows":      "language_server_windows_x64.exe",
			"darwin/arm64": "language_server_macos_arm",
			"darwin":       "language_server_macos",
			"linux/arm64":  "language_server_linux_arm",
			"linux":        "language_server_linux_x64",
		},
		TokenFlag:     "--csrf_token",
		PortFlag:      "--extension_server_port",
		DataDirFlag:   "--app_data_dir",
		DataDirValue:  "antigravity",
		PathMarker:    "antigravity",
		KeywordMarker: "csrf_token",
	}
}

// ProcessName resolves the executable name for an OS/arch pair.
func (p Profile) ProcessName(goos, goarch string) string {
	if n, ok := p.ProcessNames[goos+"/"+goarch]; ok {
		return n
	}
	return p.ProcessNames[goos]
}

// WithProcessName returns a copy of p resolving to name on every platform.
func (p Profile) WithProcessName(name string) Profile {
	if name == "" {
		return p
	}
	p.ProcessNames = map[string]string{
		"windows": name,
		"darwin":  name,
		"linux":   name,
	}
	return p
}
