package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/formbot/pkg/domain"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// isolate points the configuration at a throwaway file store with no LLM.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, k := range []string{"DISCORD_TOKEN", "MISTRAL_API_KEY", "GEMINI_API_KEY", "FORMBOT_FORMS",
		"FORMBOT_DEFAULT_FORM", "FORMBOT_ENCRYPTION_KEY", "FORMBOT_ENCRYPTION_FALLBACK_KEYS", "FORMBOT_REDIS_LOCK"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	t.Setenv("FORMBOT_LLM_PROVIDER", "none")
	t.Setenv("FORMBOT_STORE", "file")
	t.Setenv("FORMBOT_DATA_DIR", dir)
	t.Setenv("FORMBOT_LOG_LEVEL", "error")
	return dir
}

func writeForms(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "forms.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const surveyYAML = `forms:
  - id: survey
    name: Quick Survey
    fields:
      - name: happy
        type: yesno
        prompt: Are you happy?
      - name: why
        type: text
        prompt: Why?
`

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "formbot version "))
}

func TestFormsValidate(t *testing.T) {
	out, err := execute(t, "forms", "validate", writeForms(t, surveyYAML))
	require.NoError(t, err)
	assert.Contains(t, out, "survey: 2 fields")
	assert.Contains(t, out, "1 forms are valid")

	dup := surveyYAML + strings.Replace(strings.TrimPrefix(surveyYAML, "forms:\n"), "Quick Survey", "Again", 1)
	_, err = execute(t, "forms", "validate", writeForms(t, dup))
	assert.ErrorContains(t, err, "validation failed")

	_, err = execute(t, "forms", "validate", writeForms(t, "forms:\n  - id: bad\n    name: Bad\n    fields: []\n"))
	assert.Error(t, err)
}

func TestFormsLs(t *testing.T) {
	isolate(t)
	t.Setenv("FORMBOT_FORMS", writeForms(t, surveyYAML))

	out, err := execute(t, "forms", "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "* onboarding\tCustomer Onboarding (4 questions)")
	assert.Contains(t, out, "  survey\tQuick Survey (2 questions)")
}

func TestUserAndSessionCommands(t *testing.T) {
	isolate(t)

	out, err := execute(t, "session", "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "No records found.")

	out, err = execute(t, "user", "register", "alice", "--name", "Alice", "--secret", "s3cret")
	require.NoError(t, err)
	assert.Contains(t, out, "Registered 'alice'")

	_, err = execute(t, "user", "register", "alice", "--secret", "s3cret")
	assert.Error(t, err)

	out, err = execute(t, "user", "auth", "alice", "--secret", "s3cret")
	require.NoError(t, err)
	assert.Contains(t, out, "Authenticated")

	_, err = execute(t, "user", "auth", "alice", "--secret", "wrong")
	assert.ErrorContains(t, err, "authentication failed")

	out, err = execute(t, "session", "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "- alice: 0 sessions, idle")

	out, err = execute(t, "session", "inspect", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, `"credential_hash": "<set>"`)
	assert.Contains(t, out, `"name": "Alice"`)

	out, err = execute(t, "session", "rm", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed record 'alice'")

	out, err = execute(t, "session", "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "No records found.")
}

func TestBot_RequiresToken(t *testing.T) {
	isolate(t)
	_, err := execute(t, "bot")
	assert.ErrorContains(t, err, "DISCORD_TOKEN is required")
}

func TestInvalidConfiguration(t *testing.T) {
	isolate(t)
	t.Setenv("FORMBOT_STORE", "postgres")
	_, err := execute(t, "forms", "ls")
	assert.ErrorContains(t, err, "FORMBOT_STORE")
}

func TestReadSecret(t *testing.T) {
	newCmd := func(in string) *cobra.Command {
		c := &cobra.Command{}
		c.Flags().String("secret", "", "")
		c.SetIn(strings.NewReader(in))
		return c
	}

	got, err := readSecret(newCmd("hunter2\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)

	_, err = readSecret(newCmd(""))
	assert.Error(t, err)

	c := newCmd("ignored\n")
	require.NoError(t, c.Flags().Set("secret", "flag"))
	got, err = readSecret(c)
	require.NoError(t, err)
	assert.Equal(t, "flag", got)
}

func TestFormsGraph(t *testing.T) {
	isolate(t)

	out, err := execute(t, "forms", "graph", "onboarding")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "graph TD\n"))
	assert.Contains(t, out, `start(("Customer Onboarding"))`)
	assert.NotContains(t, out, "classDef")

	_, err = execute(t, "forms", "graph", "missing")
	assert.Error(t, err)
}

func TestFormsGenerate(t *testing.T) {
	isolate(t)
	t.Cleanup(func() {
		f := rootCmd.PersistentFlags().Lookup("forms")
		_ = f.Value.Set("")
		f.Changed = false
	})

	out, err := execute(t, "forms", "generate", "--id", "intake", "--name", "Intake", "Customer", "intake", "with", "phone")
	require.NoError(t, err)
	assert.Contains(t, out, "id: intake")
	assert.Contains(t, out, "name: Intake")
	assert.Contains(t, out, "name: phone")

	_, err = execute(t, "forms", "generate", "--id", "onboarding", "--name", "", "anything")
	assert.ErrorIs(t, err, domain.ErrFormExists)

	_, err = execute(t, "forms", "generate", "--id", "x", "--add", "anything")
	assert.ErrorContains(t, err, "--add needs a forms file")

	path := writeForms(t, surveyYAML)
	_, err = execute(t, "forms", "generate", "--forms", path, "--id", "contact", "--add", "contact", "address")
	require.NoError(t, err)

	out, err = execute(t, "forms", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "contact: 4 fields")
	assert.Contains(t, out, "2 forms are valid")
}
