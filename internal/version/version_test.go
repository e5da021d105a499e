package version

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func withBuild(t *testing.T, v, c, d string) {
	t.Helper()
	ov, oc, od := Version, Commit, Date
	Version, Commit, Date = v, c, d
	t.Cleanup(func() { Version, Commit, Date = ov, oc, od })
}

func TestGetInfo(t *testing.T) {
	withBuild(t, "1.2.3", "abcdef1234567890", "2026-10-01")

	info := GetInfo()
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "abcdef1234567890", info.Commit)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestInfoString(t *testing.T) {
	tests := []struct {
		name   string
		commit string
		want   string
	}{
		{"long commit is shortened", "abcdef1234567890", "(abcdef12)"},
		{"short commit kept", "abc", "(abc)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withBuild(t, "0.4.0", tt.commit, "today")
			s := GetInfo().String()
			assert.True(t, strings.HasPrefix(s, "sessionbridge 0.4.0"))
			assert.Contains(t, s, tt.want)
		})
	}
}

func TestUserAgent(t *testing.T) {
	withBuild(t, "0.4.0", "x", "y")
	ua := GetInfo().UserAgent()
	assert.True(t, strings.HasPrefix(ua, SDKName+"/0.4.0 ("))
}
