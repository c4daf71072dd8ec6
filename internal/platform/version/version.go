package version

import (
	"fmt"
	"runtime"
)

const service = "missioncontrol"

// Build information, injected via ldflags at build time
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

type Info struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

func Get() Info {
	return Info{
		Service:   service,
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

// String renders the build as "missioncontrol dev (unknown)".
func (i Info) String() string {
	return fmt.Sprintf("%s %s (%s)", i.Service, i.Version, i.Commit)
}
