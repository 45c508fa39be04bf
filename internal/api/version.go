package api

import "fmt"

// Set with -ldflags "-X github.com/MJE43/lightgrid/internal/api.EngineVersion=..."
var (
	EngineVersion = "dev"
	GitCommit     = "unknown"
	BuildTime     = "unknown"
)

// VersionInfo contains build information
type VersionInfo struct {
	EngineVersion string `json:"engine_version"`
	GitCommit     string `json:"git_commit,omitempty"`
	BuildTime     string `json:"build_time,omitempty"`
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("lightgrid %s (commit %s, built %s)", v.EngineVersion, v.GitCommit, v.BuildTime)
}

// GetVersionInfo returns the current version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		EngineVersion: EngineVersion,
		GitCommit:     GitCommit,
		BuildTime:     BuildTime,
	}
}
