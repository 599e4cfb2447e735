package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreshCommandStructure(t *testing.T) {
	assert.Equal(t, "fresh", freshCmd.Use)
	assert.NotEmpty(t, freshCmd.Short)
	assert.NotEmpty(t, freshCmd.Long)
	assert.NotNil(t, freshCmd.RunE)
}

func TestFreshFlags(t *testing.T) {
	flags := []string{
		"force", "backup", "backup-path", "compress", "encrypt",
		"seed", "dry-run", "migrate-cmd", "seed-cmd",
	}
	for _, name := range flags {
		assert.NotNil(t, freshCmd.Flags().Lookup(name), "missing flag %s", name)
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"exact yes", "yes\n", true},
		{"yes with whitespace", "  yes  \n", true},
		{"no", "no\n", false},
		{"empty line", "\n", false},
		{"uppercase is rejected", "YES\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			freshCmd.SetOut(&out)
			freshCmd.SetIn(strings.NewReader(tt.input))

			ok, err := confirm(freshCmd, "appdb")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
			assert.Contains(t, out.String(), "appdb")
		})
	}
}

func TestConfirm_EOF(t *testing.T) {
	freshCmd.SetOut(&bytes.Buffer{})
	freshCmd.SetIn(strings.NewReader("")) // stdin closed before any answer

	_, err := confirm(freshCmd, "appdb")
	assert.Error(t, err)
}
