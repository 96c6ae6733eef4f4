package cli

import (
	"bytes"
	"io"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/defgeneric/internal/ir"
)

func findCommand(t *testing.T, name string) *cobra.Command {
	t.Helper()
	sub, _, err := NewRootCommand().Find([]string{name})
	require.NoError(t, err, "command %s", name)
	require.Equal(t, name, sub.Name())
	return sub
}

func TestRootCommand(t *testing.T) {
	root := NewRootCommand()
	assert.Equal(t, "defgeneric", root.Use)
	assert.Contains(t, root.Long, "most specific")

	verbose := root.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)

	format := root.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
}

// Each command's flags and their defaults. An empty default means the
// flag is unset unless given.
func TestCommandFlags(t *testing.T) {
	tests := []struct {
		command string
		flags   map[string]string
	}{
		{"compile", map[string]string{"output": ""}},
		{"validate", map[string]string{}},
		{"methods", map[string]string{"preview": ""}},
		{"eval", map[string]string{"db": "", "max-depth": "0"}},
		{"run", map[string]string{"db": "", "max-depth": "0"}},
		{"test", map[string]string{"update": "false", "filter": ""}},
		{"trace", map[string]string{"db": "", "call": "", "generic": "", "kind": ""}},
		{"replay", map[string]string{"db": "", "call": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			cmd := findCommand(t, tt.command)
			for name, def := range tt.flags {
				f := cmd.Flags().Lookup(name)
				if assert.NotNil(t, f, "--%s", name) {
					assert.Equal(t, def, f.DefValue, "--%s default", name)
				}
			}
		})
	}
}

func TestCompileOutputShorthand(t *testing.T) {
	assert.Equal(t, "o", findCommand(t, "compile").Flags().Lookup("output").Shorthand)
}

func TestCommandGroups(t *testing.T) {
	groups := map[string][]string{
		groupDefinitions: {"compile", "validate", "methods"},
		groupCalls:       {"eval", "run", "test"},
		groupJournal:     {"trace", "replay"},
	}
	for group, names := range groups {
		for _, name := range names {
			assert.Equal(t, group, findCommand(t, name).GroupID, name)
		}
	}
}

func TestIsValidFormat(t *testing.T) {
	for format, want := range map[string]bool{
		"text": true,
		"json": true,
		"xml":  false,
		"":     false,
		"TEXT": false,
	} {
		assert.Equal(t, want, isValidFormat(format), "%q", format)
	}
}

func TestInvalidFormatIsCommandError(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--format", "yaml", "validate", "."})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), ir.EngineVersion)
	assert.Contains(t, out.String(), "ir "+ir.IRVersion)
}
