package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeychilson/cisurl/client"
	urlutil "github.com/joeychilson/cisurl/url"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestFixCommand(t *testing.T) {
	out, err := execute(t, "fix", "http://courses.illinois.edu/cisapi/schedule/2012/spring")
	require.NoError(t, err)
	assert.Equal(t, "https://courses.illinois.edu/cisapp/explorer/schedule/2012/spring.xml\n", out)

	out, err = execute(t, "fix", "--cascade", "https://courses.illinois.edu/cisapi/schedule/2012/spring")
	require.NoError(t, err)
	assert.Equal(t, "https://courses.illinois.edu/cisapp/explorer/schedule/2012/spring.xml?mode=cascade\n", out)
}

func TestFixCommandError(t *testing.T) {
	_, err := execute(t, "fix", "https://example.com/cisapi/schedule")
	require.Error(t, err)
	assert.ErrorIs(t, err, urlutil.ErrNotAPIURL)

	_, err = execute(t, "fix")
	assert.Error(t, err)
}

func TestConvertCommand(t *testing.T) {
	out, err := execute(t, "convert", "https://courses.illinois.edu/cisapp/explorer/schedule/2012/spring/aas/120.xml")
	require.NoError(t, err)
	assert.Equal(t, "https://courses.illinois.edu/search/schedule/2012/spring/AAS/120\n", out)

	out, err = execute(t, "convert", "--json", "https://courses.illinois.edu/cisapp/explorer/schedule/2012/spring/AAS/120.xml")
	require.NoError(t, err)

	var result client.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, client.ModeStrict, result.Mode)
	require.NotNil(t, result.Course)
	assert.Equal(t, "120", result.Course.Number)
}

func TestConvertCommandError(t *testing.T) {
	_, err := execute(t, "convert", "https://courses.illinois.edu/cisapp/explorer/schedule/2012/spring/AAS/12.xml")
	assert.ErrorIs(t, err, urlutil.ErrInvalidCourseURLShape)
}

func TestConfigFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, os.WriteFile(path, []byte("fetch:\n  timeout: 5s\n"), 0o644))
	_, err := execute(t, "--config", path, "fix", "https://courses.illinois.edu/cisapi/schedule")
	assert.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("unknown_section: true\n"), 0o644))
	_, err = execute(t, "--config", path, "fix", "https://courses.illinois.edu/cisapi/schedule")
	assert.Error(t, err)
}
