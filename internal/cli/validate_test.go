package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const undeclaredAgentCatalog = `groups:
  - name: ab
    agents: [alice, bob]
    config:
      carol:
        use_gossip: "false"
    scenarios: [breach]
`

func writeCatalog(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execValidate(t *testing.T, opts *RootOptions, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewValidateCommand(opts)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestValidateCommand_Valid(t *testing.T) {
	for _, path := range []string{"../catalog/testdata/regtest.yaml", "../catalog/testdata/regtest.cue"} {
		t.Run(filepath.Ext(path), func(t *testing.T) {
			out, _, err := execValidate(t, &RootOptions{Format: "text"}, path)
			require.NoError(t, err)
			assert.Contains(t, out, "✓ Catalog valid: 7 group(s), 18 case(s)")
		})
	}
}

func TestValidateCommand_VerboseListsGroups(t *testing.T) {
	_, errOut, err := execValidate(t, &RootOptions{Format: "text", Verbose: true}, "../catalog/testdata/regtest.yaml")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Validated group: abc (3 agents, 1 scenarios)")
}

func TestValidateCommand_JSON(t *testing.T) {
	out, _, err := execValidate(t, &RootOptions{Format: "json"}, "../catalog/testdata/regtest.yaml")
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 18, resp.Data.Cases)
	assert.Equal(t, "jit_trampoline", resp.Data.Groups[len(resp.Data.Groups)-1])
}

func TestValidateCommand_InvalidGroup(t *testing.T) {
	path := writeCatalog(t, "bad.yaml", undeclaredAgentCatalog)

	out, _, err := execValidate(t, &RootOptions{Format: "text"}, path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "Error [E101]")
	assert.Contains(t, out, `agent "carol"`)
}

func TestValidateCommand_InvalidGroupJSON(t *testing.T) {
	path := writeCatalog(t, "bad.yaml", undeclaredAgentCatalog)

	out, _, err := execValidate(t, &RootOptions{Format: "json"}, path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string `json:"status"`
		Error  struct {
			Code    string            `json:"code"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeInvalidGroup, resp.Error.Code)
	assert.Equal(t, map[string]string{"group": "ab", "agent": "carol"}, resp.Error.Details)
}

func TestValidateCommand_CommandErrors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		wantCode string
	}{
		{"missing file", "/nonexistent/regtest.yaml", ErrCodeNotFound},
		{"malformed yaml", writeCatalog(t, "broken.yaml", "groups: [\n"), ErrCodeLoadFailed},
		{"unsupported extension", writeCatalog(t, "regtest.toml", "x = 1\n"), ErrCodeLoadFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execValidate(t, &RootOptions{Format: "text"}, tt.path)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.wantCode+"]")
		})
	}
}

func TestValidateCommand_MissingArg(t *testing.T) {
	_, _, err := execValidate(t, &RootOptions{Format: "text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}
