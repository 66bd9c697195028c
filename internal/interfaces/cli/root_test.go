package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molcore/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molcore/internal/testutil"
)

// execute runs the root command with captured streams. Color is always
// disabled so assertions see plain text.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--no-color"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestNewRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()
	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"canon", "match", "fp", "similarity", "serve", "version"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
	for _, flag := range []string{"config", "log-level", "output", "verbose", "no-color"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "missing flag %q", flag)
	}
}

func TestRoot_InstallsDefaultLogger(t *testing.T) {
	prev := logging.Default()
	defer logging.SetDefault(prev)
	stale := testutil.NewMockLogger()
	logging.SetDefault(stale)

	cmd := NewRootCommand()
	var got logging.Logger
	cmd.AddCommand(&cobra.Command{
		Use: "noop",
		RunE: func(c *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(c)
			if err != nil {
				return err
			}
			got = cliCtx.Logger
			return nil
		},
	})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"noop"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	require.NotNil(t, got)
	assert.Equal(t, got, logging.Default())
	_, stillStale := logging.Default().(*testutil.MockLogger)
	assert.False(t, stillStale)
}

func TestRoot_InvalidOutputFormat(t *testing.T) {
	_, _, err := execute(t, "", "--output", "yaml", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestRoot_MissingConfigFile(t *testing.T) {
	_, _, err := execute(t, "", "--config", filepath.Join(t.TempDir(), "absent.yaml"), "version")
	assert.Error(t, err)
}

func TestRoot_ConfigFileApplies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "molcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chem:\n  morgan_bits: 128\n"), 0o600))

	out, _, err := execute(t, "", "--config", path, "fp", "CCO")
	require.NoError(t, err)
	assert.Len(t, strings.TrimSpace(out), 128)
}

func TestGetCLIContext_Missing(t *testing.T) {
	cmd := &cobra.Command{}
	_, err := GetCLIContext(cmd)
	assert.Error(t, err)

	cmd.SetContext(context.Background())
	_, err = GetCLIContext(cmd)
	assert.Error(t, err)
}

func TestVersionCmd(t *testing.T) {
	out, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "molcore "+Version))

	out, _, err = execute(t, "", "-o", "json", "version")
	require.NoError(t, err)
	var info BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestPrintError(t *testing.T) {
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetErr(&buf)

	PrintError(cmd, nil)
	assert.Empty(t, buf.String())

	PrintError(cmd, assert.AnError)
	assert.Contains(t, buf.String(), assert.AnError.Error())
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"Query atom", "Target atom"}, [][]string{{"0", "6"}, {"1", "5"}})
	for _, want := range []string{"0", "6", "5"} {
		assert.Contains(t, out, want)
	}
	assert.Contains(t, strings.ToUpper(out), "QUERY ATOM")
}
