package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	domaindeploy "github.com/velonis/blueprint/internal/domain/deploy"
)

const validTemplate = `{
  "meta": {"slug": "kickoff", "name": "Kickoff"},
  "phases": [
    {"key": "p1", "name": "Phase one", "actions": []}
  ]
}`

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	RootCmd.SetOut(buf)
	RootCmd.SetErr(buf)
	RootCmd.SetArgs(args)
	err := RootCmd.Execute()
	return buf.String(), err
}

func TestValidateCmdAcceptsGoodTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kickoff.json")
	if err := os.WriteFile(path, []byte(validTemplate), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCommand(t, "validate", path)
	if err != nil {
		t.Fatalf("validate failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "kickoff: ok") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestValidateCmdRejectsDuplicatePhases(t *testing.T) {
	body := `{
  "meta": {"slug": "dup"},
  "phases": [
    {"key": "p1", "name": "One", "actions": []},
    {"key": "p1", "name": "Two", "actions": []}
  ]
}`
	path := filepath.Join(t.TempDir(), "dup.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCommand(t, "validate", path)
	if err == nil {
		t.Fatalf("expected an error, got output: %s", out)
	}
	if !strings.Contains(out, "duplicate") {
		t.Errorf("expected a duplicate key error, got: %s", out)
	}
}

func TestTemplatesCmdListsLibrary(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "kickoff.json"), []byte(validTemplate), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BLUEPRINT_TEMPLATES_DIR", dir)

	out, err := runCommand(t, "templates")
	if err != nil {
		t.Fatalf("templates failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "kickoff") {
		t.Errorf("expected kickoff in listing, got: %s", out)
	}
}

func TestPrintResultReportsRollback(t *testing.T) {
	result := domaindeploy.NewResult("r1")
	result.Message = "deployment failed"
	result.RolledBack = 2

	buf := new(bytes.Buffer)
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	printResult(cmd, result)

	if !strings.Contains(buf.String(), "rolled back 2 created tasks") {
		t.Errorf("missing rollback line in output: %s", buf.String())
	}
}

func TestDeployCmdRequiresToken(t *testing.T) {
	t.Setenv("BLUEPRINT_TOKEN", "")
	t.Setenv("BLUEPRINT_TEAM_ID", "")
	path := filepath.Join(t.TempDir(), "kickoff.json")
	if err := os.WriteFile(path, []byte(validTemplate), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := runCommand(t, "deploy", path)
	if err == nil || !strings.Contains(err.Error(), "token") {
		t.Fatalf("expected a missing-token error, got %v", err)
	}
}
