package contracts

import (
	"fmt"
	"runtime"
)

const (
	// Version of the processor.
	Version = "0.3.0"

	// JobFormatVersion identifies the job file layout the processor reads.
	JobFormatVersion = "v1"
)

// Set at build time with -ldflags "-X oceancli/pkg/contracts.GitCommit=...".
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// VersionInfo describes the running binary.
type VersionInfo struct {
	Version      string `json:"version"`
	JobFormat    string `json:"job_format"`
	BuildTime    string `json:"build_time"`
	GitCommit    string `json:"git_commit"`
	GoVersion    string `json:"go_version"`
	OS           string `json:"os"`
	Architecture string `json:"architecture"`
}

// GetVersionInfo returns the version of the running binary.
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:      Version,
		JobFormat:    JobFormatVersion,
		BuildTime:    BuildTime,
		GitCommit:    GitCommit,
		GoVersion:    runtime.Version(),
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
	}
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("%s (job format %s, commit %s, built %s, %s %s/%s)",
		v.Version, v.JobFormat, v.GitCommit, v.BuildTime, v.GoVersion, v.OS, v.Architecture)
}
