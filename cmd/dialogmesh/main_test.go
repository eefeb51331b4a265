package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, input string, args ...string) string {
	t.Helper()
	t.Setenv("DIALOG_PROVIDER", "")
	t.Setenv("DIALOG_LOG_LEVEL", "error")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(input))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--env-file", t.TempDir()+"/none.env"))

	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestChat_OfflineConfirmAndExecute(t *testing.T) {
	out := run(t, "Erstelle einen Rapport für Max morgen 09:00\nJa\n/quit\n", "chat", "--provider", "echo")

	assert.Contains(t, out, "Ich erstelle den Rapport für Max")
	assert.Contains(t, out, "[Ja | Nein | Abbrechen]")
	assert.Contains(t, out, "Erledigt. Rapport #1 für Max angelegt.")
}

func TestChat_ResetAndCancel(t *testing.T) {
	out := run(t, "Material Schrauben 200 für Max\nAbbrechen\n/reset\n", "chat", "--provider", "echo", "--session", "t1")

	assert.Contains(t, out, "Okay, abgebrochen.")
	assert.Contains(t, out, "Neues Gespräch.")
	assert.NotContains(t, out, "Erledigt.")
}

func TestFlow_StartsCustomerFlow(t *testing.T) {
	out := run(t, "Kundendossier anlegen\nMax\n", "flow", "--events")

	assert.Contains(t, out, "Wie lautet der Vorname?")
	assert.Contains(t, out, "Wie lautet der Nachname?")
	assert.Contains(t, out, `"kind":"FLOW_STARTED"`)
}

func TestChat_UnknownProvider(t *testing.T) {
	t.Setenv("DIALOG_LOG_LEVEL", "error")

	cmd := newRootCmd()
	cmd.SetIn(strings.NewReader(""))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"chat", "--provider", "gemini", "--env-file", t.TempDir() + "/none.env"})

	assert.Error(t, cmd.Execute())
}
