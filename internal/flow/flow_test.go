package flow

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/velonis/blueprint/internal/clickup"
	domaindeploy "github.com/velonis/blueprint/internal/domain/deploy"
	"github.com/velonis/blueprint/internal/domain/template"
	"github.com/velonis/blueprint/internal/library"
	"github.com/velonis/blueprint/internal/nlu"
)

type fakeDirectory struct {
	spaces     []clickup.Space
	folders    map[string][]clickup.Folder
	lists      map[string][]clickup.List
	folderless map[string][]clickup.List
}

func (d *fakeDirectory) Spaces(_ context.Context, _ string) ([]clickup.Space, error) {
	return d.spaces, nil
}

func (d *fakeDirectory) Folders(_ context.Context, spaceID string) ([]clickup.Folder, error) {
	return d.folders[spaceID], nil
}

func (d *fakeDirectory) Lists(_ context.Context, folderID string) ([]clickup.List, error) {
	return d.lists[folderID], nil
}

func (d *fakeDirectory) FolderlessLists(_ context.Context, spaceID string) ([]clickup.List, error) {
	return d.folderless[spaceID], nil
}

type fakeDeployer struct {
	tpl  *template.Template
	opts domaindeploy.Options
}

func (d *fakeDeployer) Deploy(_ context.Context, tpl *template.Template, opts domaindeploy.Options) *domaindeploy.Result {
	d.tpl = tpl
	d.opts = opts
	r := domaindeploy.NewResult("new_list")
	r.Success = true
	r.Message = "deployed"
	return r
}

const flowTemplate = `{
  "meta": {"slug": "onboarding", "name": "Onboarding"},
  "phases": [
    {"key": "p1", "name": "Kickoff", "actions": []}
  ]
}`

func newTestFlow(t *testing.T, dir DirectoryAPI, deployer Deployer) *Flow {
	t.Helper()
	tmp := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmp, "onboarding.json"), []byte(flowTemplate), 0o644); err != nil {
		t.Fatal(err)
	}
	lib, err := library.Open(tmp, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	return New(lib, dir, deployer, nlu.RuleInterpreter{}, "team1", domaindeploy.Options{})
}

func TestFlowFullDialogue(t *testing.T) {
	dir := &fakeDirectory{
		spaces: []clickup.Space{{ID: "s1", Name: "Clients"}},
		folders: map[string][]clickup.Folder{
			"s1": {{ID: "f1", Name: "Active"}},
		},
		lists: map[string][]clickup.List{
			"f1": {{ID: "l1", Name: "Alpha"}},
		},
	}
	dep := &fakeDeployer{}
	f := newTestFlow(t, dir, dep)
	ctx := context.Background()

	p, err := f.Handle(ctx, "", Action{Type: "input_text", Text: "deploy onboarding"})
	if err != nil {
		t.Fatal(err)
	}
	if p.SessionID == "" {
		t.Fatal("expected a session id")
	}
	if p.State != StateChoosingSpace {
		t.Fatalf("state = %s, want %s", p.State, StateChoosingSpace)
	}
	if len(p.Options) != 1 || p.Options[0].Label != "Clients" {
		t.Fatalf("unexpected space options: %+v", p.Options)
	}
	sid := p.SessionID

	p, err = f.Handle(ctx, sid, Action{Type: "select_option", Choice: "1"})
	if err != nil {
		t.Fatal(err)
	}
	if p.State != StateChoosingFolder {
		t.Fatalf("state = %s, want %s", p.State, StateChoosingFolder)
	}
	// One folder plus the no-folder escape hatch.
	if len(p.Options) != 2 {
		t.Fatalf("folder options = %d, want 2", len(p.Options))
	}

	p, err = f.Handle(ctx, sid, Action{Type: "select_option", Choice: "1"})
	if err != nil {
		t.Fatal(err)
	}
	if p.State != StateChoosingList {
		t.Fatalf("state = %s, want %s", p.State, StateChoosingList)
	}
	if len(p.Options) != 2 || p.Options[1].Label != optionCreateNewList {
		t.Fatalf("unexpected list options: %+v", p.Options)
	}

	p, err = f.Handle(ctx, sid, Action{Type: "select_option", Choice: "1"})
	if err != nil {
		t.Fatal(err)
	}
	if p.State != StateConfirming {
		t.Fatalf("state = %s, want %s", p.State, StateConfirming)
	}

	p, err = f.Handle(ctx, sid, Action{Type: "select_option", Choice: "1"})
	if err != nil {
		t.Fatal(err)
	}
	if p.State != StateDone {
		t.Fatalf("state = %s, want %s", p.State, StateDone)
	}
	if p.Result == nil || !p.Result.Success {
		t.Fatal("expected a successful result on the final prompt")
	}
	if dep.tpl == nil || dep.tpl.Destination.ListID != "l1" {
		t.Fatalf("deployer got destination %+v, want list l1", dep.tpl.Destination)
	}
}

func TestFlowListTemplatesAndPickBySlug(t *testing.T) {
	dep := &fakeDeployer{}
	f := newTestFlow(t, &fakeDirectory{spaces: []clickup.Space{{ID: "s1", Name: "Ops"}}}, dep)
	ctx := context.Background()

	p, err := f.Handle(ctx, "", Action{Type: "input_text", Text: "list templates"})
	if err != nil {
		t.Fatal(err)
	}
	if p.State != StateChoosingTemplate {
		t.Fatalf("state = %s, want %s", p.State, StateChoosingTemplate)
	}
	if len(p.Options) != 1 || p.Options[0].Label != "onboarding" {
		t.Fatalf("unexpected template options: %+v", p.Options)
	}

	p, err = f.Handle(ctx, p.SessionID, Action{Type: "select_option", Choice: "1"})
	if err != nil {
		t.Fatal(err)
	}
	if p.State != StateChoosingSpace {
		t.Fatalf("state = %s, want %s", p.State, StateChoosingSpace)
	}
}

func TestFlowCreateNewList(t *testing.T) {
	dir := &fakeDirectory{
		spaces:     []clickup.Space{{ID: "s1", Name: "Clients"}},
		folderless: map[string][]clickup.List{"s1": {}},
	}
	dep := &fakeDeployer{}
	f := newTestFlow(t, dir, dep)
	ctx := context.Background()

	p, err := f.Handle(ctx, "", Action{Type: "input_text", Text: "deploy onboarding"})
	if err != nil {
		t.Fatal(err)
	}
	sid := p.SessionID

	// Space with no folders goes straight to list selection.
	p, err = f.Handle(ctx, sid, Action{Type: "select_option", Choice: "1"})
	if err != nil {
		t.Fatal(err)
	}
	if p.State != StateChoosingList {
		t.Fatalf("state = %s, want %s", p.State, StateChoosingList)
	}
	if len(p.Options) != 1 || p.Options[0].Label != optionCreateNewList {
		t.Fatalf("unexpected options: %+v", p.Options)
	}

	p, err = f.Handle(ctx, sid, Action{Type: "select_option", Choice: "1"})
	if err != nil {
		t.Fatal(err)
	}
	if p.State != StateConfirming {
		t.Fatalf("state = %s, want %s", p.State, StateConfirming)
	}

	if _, err = f.Handle(ctx, sid, Action{Type: "select_option", Choice: "1"}); err != nil {
		t.Fatal(err)
	}
	if !dep.opts.CreateNewListIfNeeded {
		t.Fatal("expected CreateNewListIfNeeded for a new-list deployment")
	}
	if dep.tpl.Destination.SpaceID != "s1" {
		t.Fatalf("destination space = %q, want s1", dep.tpl.Destination.SpaceID)
	}
}

func TestFlowCancelResets(t *testing.T) {
	dep := &fakeDeployer{}
	f := newTestFlow(t, &fakeDirectory{spaces: []clickup.Space{{ID: "s1", Name: "Ops"}}}, dep)
	ctx := context.Background()

	p, err := f.Handle(ctx, "", Action{Type: "input_text", Text: "deploy onboarding"})
	if err != nil {
		t.Fatal(err)
	}
	sid := p.SessionID

	p, err = f.Handle(ctx, sid, Action{Type: "input_text", Text: "cancel"})
	if err != nil {
		t.Fatal(err)
	}
	if p.State != StateIdle {
		t.Fatalf("state = %s, want %s", p.State, StateIdle)
	}
	if len(p.Options) != 0 {
		t.Fatalf("expected options cleared, got %+v", p.Options)
	}
}

func TestFlowRejectsOutOfRangeChoice(t *testing.T) {
	dep := &fakeDeployer{}
	f := newTestFlow(t, &fakeDirectory{spaces: []clickup.Space{{ID: "s1", Name: "Ops"}}}, dep)
	ctx := context.Background()

	p, err := f.Handle(ctx, "", Action{Type: "input_text", Text: "deploy onboarding"})
	if err != nil {
		t.Fatal(err)
	}

	p2, err := f.Handle(ctx, p.SessionID, Action{Type: "select_option", Choice: "9"})
	if err != nil {
		t.Fatal(err)
	}
	if p2.State != StateChoosingSpace {
		t.Fatalf("state = %s, want to stay in %s", p2.State, StateChoosingSpace)
	}
}
