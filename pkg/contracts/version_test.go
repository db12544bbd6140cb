package contracts

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersionInfo(t *testing.T) {
	info := GetVersionInfo()
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, JobFormatVersion, info.JobFormat)
	assert.Equal(t, runtime.Version(), info.GoVersion)

	s := info.String()
	assert.True(t, strings.HasPrefix(s, Version+" (job format v1"))
	assert.Contains(t, s, runtime.GOOS+"/"+runtime.GOARCH)
}
