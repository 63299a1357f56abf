// Package flow drives the conversational deployment dialogue: numbered
// option lists over the workspace directory, a small fixed action
// vocabulary, and a session state machine from first instruction to a
// finished deployment. Free text is delegated to the NLU interpreter; this
// package never parses natural language itself.
package flow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/felixgeelhaar/statekit"
	"github.com/google/uuid"

	"github.com/velonis/blueprint/internal/clickup"
	domaindeploy "github.com/velonis/blueprint/internal/domain/deploy"
	"github.com/velonis/blueprint/internal/domain/template"
	"github.com/velonis/blueprint/internal/library"
	"github.com/velonis/blueprint/internal/nlu"
)

// Session states.
const (
	StateIdle             = "idle"
	StateChoosingTemplate = "choosing_template"
	StateChoosingSpace    = "choosing_space"
	StateChoosingFolder   = "choosing_folder"
	StateChoosingList     = "choosing_list"
	StateConfirming       = "confirming"
	StateDone             = "done"
)

// DirectoryAPI is the read-only workspace surface the flow browses.
type DirectoryAPI interface {
	Spaces(ctx context.Context, teamID string) ([]clickup.Space, error)
	Folders(ctx context.Context, spaceID string) ([]clickup.Folder, error)
	Lists(ctx context.Context, folderID string) ([]clickup.List, error)
	FolderlessLists(ctx context.Context, spaceID string) ([]clickup.List, error)
}

// Deployer runs a deployment once the dialogue has gathered everything.
type Deployer interface {
	Deploy(ctx context.Context, tpl *template.Template, opts domaindeploy.Options) *domaindeploy.Result
}

// Action is one inbound step of the dialogue, produced by the UI or the
// external NLU layer.
type Action struct {
	Type   string `json:"type"` // "select_option" or "input_text"
	Choice string `json:"choice,omitempty"`
	Text   string `json:"text,omitempty"`
}

// Option is one numbered choice shown to the user.
type Option struct {
	Number int    `json:"number"`
	Label  string `json:"label"`
	ID     string `json:"id,omitempty"`
}

// Prompt is the flow's reply after each action.
type Prompt struct {
	SessionID string               `json:"session_id"`
	State     string               `json:"state"`
	Message   string               `json:"message"`
	Options   []Option             `json:"options,omitempty"`
	Result    *domaindeploy.Result `json:"result,omitempty"`
}

const optionCreateNewList = "Create a new list"
const optionNoFolder = "No folder (lists directly in the space)"

// Flow owns the active sessions.
type Flow struct {
	lib      *library.Library
	dir      DirectoryAPI
	deployer Deployer
	interp   nlu.Interpreter
	teamID   string
	opts     domaindeploy.Options

	mu       sync.Mutex
	sessions map[string]*session
}

// New wires a flow engine.
func New(lib *library.Library, dir DirectoryAPI, deployer Deployer, interp nlu.Interpreter, teamID string, opts domaindeploy.Options) *Flow {
	return &Flow{
		lib:      lib,
		dir:      dir,
		deployer: deployer,
		interp:   interp,
		teamID:   teamID,
		opts:     opts,
		sessions: make(map[string]*session),
	}
}

type session struct {
	id      string
	machine *statekit.Interpreter[sessionContext]
	options []Option

	tpl      *template.Template
	spaceID  string
	folderID string
	listID   string
	newList  bool
}

type sessionContext struct {
	SessionID string
}

func newSessionMachine(id string) (*statekit.Interpreter[sessionContext], error) {
	builder := statekit.NewMachine[sessionContext]("deploy-flow").
		WithInitial(statekit.StateID(StateIdle)).
		WithContext(sessionContext{SessionID: id})

	builder.State(StateIdle).
		On("browse_templates").Target(StateChoosingTemplate).
		On("template_ready").Target(StateConfirming).
		On("template_needs_destination").Target(StateChoosingSpace).
		Done()
	builder.State(StateChoosingTemplate).
		On("template_ready").Target(StateConfirming).
		On("template_needs_destination").Target(StateChoosingSpace).
		On("cancel").Target(StateIdle).
		Done()
	builder.State(StateChoosingSpace).
		On("space_picked").Target(StateChoosingFolder).
		On("space_picked_no_folders").Target(StateChoosingList).
		On("cancel").Target(StateIdle).
		Done()
	builder.State(StateChoosingFolder).
		On("folder_picked").Target(StateChoosingList).
		On("cancel").Target(StateIdle).
		Done()
	builder.State(StateChoosingList).
		On("list_picked").Target(StateConfirming).
		On("cancel").Target(StateIdle).
		Done()
	builder.State(StateConfirming).
		On("confirmed").Target(StateDone).
		On("cancel").Target(StateIdle).
		Done()
	builder.State(StateDone).
		On("cancel").Target(StateIdle).
		Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build flow machine: %w", err)
	}
	interp := statekit.NewInterpreter(machine)
	interp.Start()
	return interp, nil
}

func (s *session) state() string {
	return string(s.machine.State().Value)
}

func (s *session) send(event string) {
	s.machine.Send(statekit.Event{Type: statekit.EventType(event)})
}

// Handle applies one action to a session, creating the session first when
// sessionID is empty.
func (f *Flow) Handle(ctx context.Context, sessionID string, action Action) (*Prompt, error) {
	s, err := f.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	switch action.Type {
	case "select_option":
		n, err := strconv.Atoi(strings.TrimSpace(action.Choice))
		if err != nil || n < 1 || n > len(s.options) {
			return f.prompt(s, fmt.Sprintf("Choice %q is not one of the %d options.", action.Choice, len(s.options))), nil
		}
		return f.applyPick(ctx, s, n)
	case "input_text":
		labels := make([]string, len(s.options))
		for i, o := range s.options {
			labels[i] = o.Label
		}
		cmd, err := f.interp.Interpret(ctx, action.Text, labels)
		if err != nil {
			return nil, fmt.Errorf("interpret instruction: %w", err)
		}
		return f.applyCommand(ctx, s, cmd)
	default:
		return nil, fmt.Errorf("unknown flow action type %q", action.Type)
	}
}

func (f *Flow) getSession(id string) (*session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id != "" {
		if s, ok := f.sessions[id]; ok {
			return s, nil
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	machine, err := newSessionMachine(id)
	if err != nil {
		return nil, err
	}
	s := &session{id: id, machine: machine}
	f.sessions[id] = s
	return s, nil
}

func (f *Flow) applyCommand(ctx context.Context, s *session, cmd nlu.Command) (*Prompt, error) {
	switch cmd.Kind {
	case nlu.CommandCancel:
		return f.reset(s, "Cancelled."), nil
	case nlu.CommandHelp:
		return f.prompt(s, "Say \"deploy <template>\" to start, pick a numbered option, or say \"cancel\"."), nil
	case nlu.CommandListTemplates:
		f.restart(s)
		return f.presentTemplates(s), nil
	case nlu.CommandDeploy:
		f.restart(s)
		return f.startDeploy(ctx, s, cmd.Slug)
	case nlu.CommandPickOption:
		return f.applyPick(ctx, s, cmd.Choice)
	default:
		return f.prompt(s, "I did not catch that. Say \"help\" for what I understand."), nil
	}
}

func (f *Flow) startDeploy(ctx context.Context, s *session, slug string) (*Prompt, error) {
	if slug == "" {
		return f.presentTemplates(s), nil
	}
	tpl, ok := f.lib.Get(slug)
	if !ok {
		return f.presentTemplates(s), nil
	}
	s.tpl = tpl
	return f.routeAfterTemplate(ctx, s)
}

// routeAfterTemplate decides whether the template already pins a
// destination or the dialogue must gather one.
func (f *Flow) routeAfterTemplate(ctx context.Context, s *session) (*Prompt, error) {
	d := s.tpl.Destination
	if d.ListID != "" || d.ListName != "" {
		s.send("template_ready")
		return f.presentConfirmation(s), nil
	}
	s.send("template_needs_destination")
	return f.presentSpaces(ctx, s)
}

func (f *Flow) presentTemplates(s *session) *Prompt {
	slugs := f.lib.Slugs()
	if len(slugs) == 0 {
		return f.prompt(s, "No templates are loaded.")
	}
	s.send("browse_templates")
	s.options = make([]Option, len(slugs))
	for i, slug := range slugs {
		s.options[i] = Option{Number: i + 1, Label: slug, ID: slug}
	}
	return f.prompt(s, "Which template should I deploy?")
}

func (f *Flow) presentSpaces(ctx context.Context, s *session) (*Prompt, error) {
	spaces, err := f.dir.Spaces(ctx, f.teamID)
	if err != nil {
		return nil, fmt.Errorf("list spaces: %w", err)
	}
	if len(spaces) == 0 {
		return f.reset(s, "The workspace has no spaces to deploy into."), nil
	}
	s.options = make([]Option, len(spaces))
	for i, sp := range spaces {
		s.options[i] = Option{Number: i + 1, Label: sp.Name, ID: sp.ID}
	}
	return f.prompt(s, "Which space?"), nil
}

func (f *Flow) applyPick(ctx context.Context, s *session, n int) (*Prompt, error) {
	if n < 1 || n > len(s.options) {
		return f.prompt(s, fmt.Sprintf("Pick a number between 1 and %d.", len(s.options))), nil
	}
	picked := s.options[n-1]

	switch s.state() {
	case StateChoosingTemplate:
		tpl, ok := f.lib.Get(picked.ID)
		if !ok {
			return f.reset(s, fmt.Sprintf("Template %q disappeared from the library.", picked.ID)), nil
		}
		s.tpl = tpl
		return f.routeAfterTemplate(ctx, s)

	case StateChoosingSpace:
		s.spaceID = picked.ID
		folders, err := f.dir.Folders(ctx, s.spaceID)
		if err != nil {
			return nil, fmt.Errorf("list folders: %w", err)
		}
		if len(folders) == 0 {
			s.send("space_picked_no_folders")
			return f.presentLists(ctx, s)
		}
		s.send("space_picked")
		s.options = make([]Option, 0, len(folders)+1)
		for i, fo := range folders {
			s.options = append(s.options, Option{Number: i + 1, Label: fo.Name, ID: fo.ID})
		}
		s.options = append(s.options, Option{Number: len(folders) + 1, Label: optionNoFolder})
		return f.prompt(s, "Which folder?"), nil

	case StateChoosingFolder:
		if picked.ID != "" {
			s.folderID = picked.ID
		}
		s.send("folder_picked")
		return f.presentLists(ctx, s)

	case StateChoosingList:
		if picked.Label == optionCreateNewList {
			s.newList = true
		} else {
			s.listID = picked.ID
		}
		s.send("list_picked")
		return f.presentConfirmation(s), nil

	case StateConfirming:
		if picked.Label == "Yes, deploy" {
			return f.runDeployment(ctx, s)
		}
		return f.reset(s, "Okay, nothing was deployed."), nil

	default:
		return f.prompt(s, "There is nothing to pick right now. Say \"help\"."), nil
	}
}

func (f *Flow) presentLists(ctx context.Context, s *session) (*Prompt, error) {
	var (
		lists []clickup.List
		err   error
	)
	if s.folderID != "" {
		lists, err = f.dir.Lists(ctx, s.folderID)
	} else {
		lists, err = f.dir.FolderlessLists(ctx, s.spaceID)
	}
	if err != nil {
		return nil, fmt.Errorf("list lists: %w", err)
	}
	s.options = make([]Option, 0, len(lists)+1)
	for i, l := range lists {
		s.options = append(s.options, Option{Number: i + 1, Label: l.Name, ID: l.ID})
	}
	s.options = append(s.options, Option{Number: len(lists) + 1, Label: optionCreateNewList})
	return f.prompt(s, "Which list?"), nil
}

func (f *Flow) presentConfirmation(s *session) *Prompt {
	target := "the template's own destination"
	if s.listID != "" {
		target = "list " + s.listID
	} else if s.newList {
		target = "a new list"
	}
	s.options = []Option{
		{Number: 1, Label: "Yes, deploy"},
		{Number: 2, Label: "No, cancel"},
	}
	msg := fmt.Sprintf("Deploy %q (%d phases) into %s?", s.tpl.Meta.Slug, len(s.tpl.Phases), target)
	return f.prompt(s, msg)
}

func (f *Flow) runDeployment(ctx context.Context, s *session) (*Prompt, error) {
	tpl := *s.tpl
	if s.listID != "" {
		tpl.Destination = template.Destination{ListID: s.listID}
	} else if s.spaceID != "" || s.folderID != "" {
		tpl.Destination = template.Destination{SpaceID: s.spaceID, FolderID: s.folderID}
	}

	opts := f.opts
	if s.newList {
		opts.CreateNewListIfNeeded = true
	}
	result := f.deployer.Deploy(ctx, &tpl, opts)

	s.send("confirmed")
	s.options = nil
	return &Prompt{
		SessionID: s.id,
		State:     s.state(),
		Message:   result.Message,
		Result:    result,
	}, nil
}

// restart brings a session back to idle so a fresh instruction can take
// over mid-dialogue.
func (f *Flow) restart(s *session) {
	s.send("cancel")
	s.options = nil
	s.tpl = nil
	s.spaceID, s.folderID, s.listID = "", "", ""
	s.newList = false
}

func (f *Flow) reset(s *session, msg string) *Prompt {
	f.restart(s)
	return f.prompt(s, msg)
}

func (f *Flow) prompt(s *session, msg string) *Prompt {
	return &Prompt{SessionID: s.id, State: s.state(), Message: msg, Options: s.options}
}
