package version_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/LetzteFee/1brc/pkg/version"
)

func TestGet_FillsEveryField(t *testing.T) {
	t.Parallel()

	info := version.Get()

	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.Commit)
	assert.NotEmpty(t, info.Date)
	assert.True(t, strings.HasPrefix(info.GoVersion, "go") || info.GoVersion == "unknown")
}

func TestInfo_String(t *testing.T) {
	t.Parallel()

	info := version.Info{Version: "v1.0.0", Commit: "abc123", Date: "2026-01-01", GoVersion: "go1.24.5"}

	assert.Equal(t, "brc v1.0.0 (commit: abc123, built: 2026-01-01, go1.24.5)", info.String())
}
