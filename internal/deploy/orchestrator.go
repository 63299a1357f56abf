package deploy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/statekit"
	"github.com/google/uuid"

	"github.com/velonis/blueprint/internal/clickup"
	"github.com/velonis/blueprint/internal/domain/deploy"
	"github.com/velonis/blueprint/internal/domain/template"
)

// Run states, in execution order. failed is terminal and reachable from
// any step.
const (
	StateValidatingConnection = "validating_connection"
	StateResolvingDestination = "resolving_destination"
	StateValidatingFields     = "validating_fields"
	StateEnsuringAccess       = "ensuring_access"
	StateMappingRoles         = "mapping_roles"
	StateDeployingPhases      = "deploying_phases"
	StateSummarizing          = "summarizing"
	StateFailed               = "failed"
)

var runStates = []string{
	StateValidatingConnection,
	StateResolvingDestination,
	StateValidatingFields,
	StateEnsuringAccess,
	StateMappingRoles,
	StateDeployingPhases,
	StateSummarizing,
}

// errAborted signals that a rollback-enabled run hit an item failure and
// must stop immediately.
var errAborted = errors.New("run aborted")

type runContext struct {
	RunID string
}

// newRunMachine builds the linear run state machine. The machine is the
// single source of truth for where a run is; steps advance it and any step
// can fail it.
func newRunMachine(runID string) (*statekit.Interpreter[runContext], error) {
	builder := statekit.NewMachine[runContext]("deployment-run").
		WithInitial(statekit.StateID(StateValidatingConnection)).
		WithContext(runContext{RunID: runID})

	for i, state := range runStates {
		if i+1 < len(runStates) {
			builder.State(statekit.StateID(state)).
				On("advance").Target(statekit.StateID(runStates[i+1])).
				On("fail").Target(StateFailed).
				Done()
			continue
		}
		builder.State(statekit.StateID(state)).
			On("fail").Target(StateFailed).
			Done()
	}
	builder.State(StateFailed).Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build run machine: %w", err)
	}
	interp := statekit.NewInterpreter(machine)
	interp.Start()
	return interp, nil
}

// Orchestrator sequences a deployment run end to end. One orchestrator is
// safe for sequential reuse; each Deploy call is fully independent.
type Orchestrator struct {
	api    WorkspaceAPI
	teamID string
	pacer  PacingPolicy
}

// OrchestratorOption customizes an orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithPacingPolicy swaps the default fixed-delay policy.
func WithPacingPolicy(p PacingPolicy) OrchestratorOption {
	return func(o *Orchestrator) { o.pacer = p }
}

// NewOrchestrator returns an orchestrator bound to a workspace team.
func NewOrchestrator(api WorkspaceAPI, teamID string, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{api: api, teamID: teamID}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// run carries the per-invocation collaborators and accumulating result.
type run struct {
	api      WorkspaceAPI
	teamID   string
	tpl      *template.Template
	opts     deploy.Options
	machine  *statekit.Interpreter[runContext]
	log      *deploy.RunLog
	result   *deploy.Result
	pacer    PacingPolicy
	rollback *RollbackManager
	fields   *FieldValidation
	roles    *RoleDirectory
	mat      *Materializer
	attach   *Attacher
	listID   string
	aborted  bool
}

// Deploy walks the template against the remote workspace and returns the
// structured result. Deploy itself never returns an error: every failure
// mode lands in the result's errors, warnings and log.
func (o *Orchestrator) Deploy(ctx context.Context, tpl *template.Template, opts deploy.Options) *deploy.Result {
	return o.DeployWithLog(ctx, tpl, opts, deploy.NewRunLog())
}

// DeployWithLog is Deploy with a caller-supplied run log, so callers that
// stream the log (SSE) can subscribe before the run starts.
func (o *Orchestrator) DeployWithLog(ctx context.Context, tpl *template.Template, opts deploy.Options, log *deploy.RunLog) *deploy.Result {
	runID := uuid.NewString()
	started := time.Now()
	result := deploy.NewResult(runID)
	result.Log = nil

	machine, err := newRunMachine(runID)
	if err != nil {
		result.AddError("internal: %v", err)
		result.Summarize(started)
		result.Log = log.Entries()
		return result
	}

	pacer := o.pacer
	if pacer == nil {
		pacer = NewFixedDelayPolicy(opts.Delay())
	}
	r := &run{
		api:      o.api,
		teamID:   o.teamID,
		tpl:      tpl,
		opts:     opts,
		machine:  machine,
		log:      log,
		result:   result,
		pacer:    pacer,
		rollback: NewRollbackManager(o.api, log),
	}

	log.Infof("deployment run %s started (template %s v%s, %d phases)",
		runID, tpl.Meta.Slug, tpl.Meta.Version, len(tpl.Phases))

	r.execute(ctx)

	if r.aborted {
		result.Success = false
	} else {
		result.Summarize(started)
	}
	log.Infof("deployment run %s finished: %s", runID, result.Message)
	result.Log = log.Entries()
	return result
}

// advance moves the machine to the next step and logs the transition.
func (r *run) advance() {
	r.machine.Send(statekit.Event{Type: "advance"})
	r.log.Infof("entering %s", r.state())
}

// fail moves the machine to failed and records the fatal reason.
func (r *run) fail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.machine.Send(statekit.Event{Type: "fail"})
	r.result.AddError("%s", msg)
	r.result.Message = msg
	r.log.Errorf("run failed in %s: %s", r.state(), msg)
}

func (r *run) state() string {
	return string(r.machine.State().Value)
}

func (r *run) execute(ctx context.Context) {
	r.log.Infof("entering %s", r.state())

	// validating_connection: a bad token is fatal with nothing created.
	user, err := r.api.AuthorizedUser(ctx)
	if err != nil {
		r.fail("connection failure: %v", err)
		return
	}
	r.log.Infof("authorized as %s (%s)", user.Username, user.Email)
	r.advance()

	if !r.resolveDestination(ctx) {
		return
	}
	r.advance()

	if !r.validateFields(ctx) {
		return
	}
	r.advance()

	members := r.ensureAccess(ctx)
	r.advance()

	r.roles = BuildRoleDirectory(members)
	r.log.Infof("mapped %d workspace members", r.roles.Size())
	r.mat = NewMaterializer(r.api, r.log, r.tpl, r.fields, r.roles)
	r.attach = NewAttacher(r.api, r.log, r.roles)
	r.advance()

	if err := r.deployPhases(ctx); err != nil {
		if errors.Is(err, errAborted) {
			deleted := r.rollback.Rollback(ctx)
			r.result.RolledBack = deleted
			r.aborted = true
			r.fail("run aborted after item failure; rolled back %d of %d created tasks",
				deleted, r.rollback.Count())
			return
		}
		r.aborted = true
		r.fail("deployment stopped: %v", err)
		return
	}
	r.advance()
}

// resolveDestination applies name resolution and, when allowed, creates a
// fresh destination list. No task mutation happens before this step
// completes.
func (r *run) resolveDestination(ctx context.Context) bool {
	resolver := NewResolver(r.api)
	dest, err := resolver.Resolve(ctx, r.teamID, r.tpl.Destination)
	if err != nil {
		r.fail("destination not found: %v", err)
		return false
	}

	if dest.ListID != "" {
		r.listID = dest.ListID
		r.result.ListID = dest.ListID
		r.result.Mode = deploy.ModeExistingList
		r.log.Infof("destination list resolved: %s", dest.ListID)
		return true
	}

	if !r.opts.CreateNewListIfNeeded {
		r.fail("no destination list: template names none and create_new_list_if_needed is off")
		return false
	}
	if dest.FolderID == "" && dest.SpaceID == "" {
		r.fail("no destination: template names no space, folder or list to create into")
		return false
	}

	list, err := r.createDestinationList(ctx, dest)
	if err != nil {
		r.fail("create destination list: %v", err)
		return false
	}
	r.listID = list.ID
	r.result.ListID = list.ID
	r.result.Mode = deploy.ModeNewList
	r.log.Infof("created destination list %s (%s)", list.ID, list.Name)
	return true
}

// createDestinationList tries the three-status template first; on schema
// rejection it creates the list bare and adds the statuses one at a time,
// tolerating individual failures.
func (r *run) createDestinationList(ctx context.Context, dest Destination) (*clickup.List, error) {
	name := r.tpl.Meta.Slug
	if name == "" {
		name = "deployed-template"
	}
	statuses := []clickup.Status{
		{Status: "to do", Type: "open", OrderIndex: 0},
		{Status: "in progress", Type: "custom", OrderIndex: 1},
		{Status: "complete", Type: "closed", OrderIndex: 2},
	}

	create := func(req clickup.CreateListRequest) (*clickup.List, error) {
		if dest.FolderID != "" {
			return r.api.CreateList(ctx, dest.FolderID, req)
		}
		return r.api.CreateFolderlessList(ctx, dest.SpaceID, req)
	}

	list, err := create(clickup.CreateListRequest{Name: name, Statuses: statuses})
	if err == nil {
		return list, nil
	}
	if !clickup.IsSchemaRejection(err) {
		return nil, err
	}

	r.log.Warnf("status template rejected, creating bare list: %v", err)
	list, err = create(clickup.CreateListRequest{Name: name})
	if err != nil {
		return nil, err
	}
	for _, st := range statuses {
		if err := r.api.AddListStatus(ctx, list.ID, st); err != nil {
			r.result.AddWarning("could not add status %q to new list: %v", st.Status, err)
			r.log.Warnf("could not add status %q to list %s: %v", st.Status, list.ID, err)
		}
	}
	return list, nil
}

func (r *run) validateFields(ctx context.Context) bool {
	mapper := NewFieldMapper(r.api)
	fields, err := mapper.ValidateFields(ctx, r.listID, r.tpl)
	if err != nil {
		r.fail("field validation: %v", err)
		return false
	}
	r.fields = fields
	r.result.FieldMapping = fields.FieldMap
	r.result.MissingFields = fields.Missing

	if len(fields.Missing) > 0 {
		r.log.Warnf("missing custom fields on destination: %s", strings.Join(fields.Missing, ", "))
		if r.opts.StopOnMissingFields {
			// Fail fast: nothing has been created yet.
			r.fail("missing required custom fields: %s", strings.Join(fields.Missing, ", "))
			return false
		}
		for _, name := range fields.Missing {
			r.result.AddWarning("custom field %q does not exist on the destination list", name)
		}
	}
	r.log.Infof("mapped %d custom fields (%d missing)", len(fields.FieldMap), len(fields.Missing))
	return true
}

// ensureAccess reports template-referenced emails absent from the
// workspace. The API cannot grant list access, so this logs only and never
// blocks the run. The fetched members are reused for role mapping.
func (r *run) ensureAccess(ctx context.Context) []clickup.Member {
	teams, err := r.api.Teams(ctx)
	if err != nil {
		r.result.AddWarning("unable to verify workspace membership: %v", err)
		r.log.Warnf("unable to verify workspace membership: %v", err)
		return nil
	}
	var members []clickup.Member
	for _, t := range teams {
		if t.ID == r.teamID {
			members = t.Members
			break
		}
	}
	known := make(map[string]struct{}, len(members))
	for _, m := range members {
		known[strings.ToLower(m.User.Email)] = struct{}{}
	}
	for _, email := range r.tpl.Emails() {
		if _, ok := known[strings.ToLower(email)]; !ok {
			r.result.AddWarning("%s is not a member of the workspace; access cannot be granted via the API", email)
			r.log.Warnf("%s is not a workspace member", email)
		}
	}
	return members
}

// deployPhases walks the template tree in declared order. Item failures are
// recoverable unless rollback is enabled, in which case the first failure
// aborts the entire run.
func (r *run) deployPhases(ctx context.Context) error {
	for i := range r.tpl.Phases {
		phase := &r.tpl.Phases[i]
		if err := r.pacer.Before(ctx, LevelPhase); err != nil {
			return err
		}

		task, err := r.mat.CreatePhaseTask(ctx, r.listID, phase)
		if err != nil {
			if abortErr := r.recordItemFailure(ctx, err, "phase", phase.Name); abortErr != nil {
				return abortErr
			}
			continue
		}
		r.rollback.Record(task.ID)
		r.result.Phases = append(r.result.Phases, deploy.TaskRef{ID: task.ID, Name: task.Name, Phase: phase.Key})

		if err := r.deployActions(ctx, phase.Key, phase.Actions, task.ID, 1); err != nil {
			return err
		}
	}
	return nil
}

// deployActions creates the tasks for one action list under parentID and
// recurses into sub-actions. depth 1 is a direct action, deeper levels are
// sub-actions with progressively tighter pacing.
func (r *run) deployActions(ctx context.Context, phaseKey string, actions []template.Action, parentID string, depth int) error {
	level := LevelAction
	if depth > 1 {
		level = LevelSubAction
	}
	for i := range actions {
		action := &actions[i]
		if err := r.pacer.Before(ctx, level); err != nil {
			return err
		}

		task, err := r.mat.CreateActionTask(ctx, r.listID, action, parentID)
		if err != nil {
			if abortErr := r.recordItemFailure(ctx, err, "action", action.Name); abortErr != nil {
				return abortErr
			}
			continue
		}
		r.rollback.Record(task.ID)
		r.result.Actions = append(r.result.Actions, deploy.TaskRef{
			ID: task.ID, Name: task.Name, Parent: parentID, Phase: phaseKey,
		})

		if action.Checklist != nil {
			cl, err := r.attach.AttachChecklist(ctx, task.ID, action.Checklist)
			if err != nil {
				if abortErr := r.recordItemFailure(ctx, err, "checklist", action.Checklist.Title); abortErr != nil {
					return abortErr
				}
			} else {
				r.result.Checklists = append(r.result.Checklists, deploy.ChecklistRef{
					ID: cl.ID, TaskID: task.ID, Title: action.Checklist.Title, Items: len(action.Checklist.Items),
				})
			}
		}
		if len(action.Watchers) > 0 {
			r.attach.AttachWatchers(ctx, task.ID, action.Watchers)
		}

		if err := r.deployActions(ctx, phaseKey, action.Actions, task.ID, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// recordItemFailure classifies one creation failure. Rate limits get the
// policy cooldown before the run moves on. With rollback enabled any item
// failure aborts the run.
func (r *run) recordItemFailure(ctx context.Context, err error, kind, name string) error {
	if clickup.IsRateLimited(err) {
		r.result.AddError("rate limited creating %s %q", kind, name)
		r.log.Warnf("rate limited creating %s %q, cooling down", kind, name)
		if cerr := r.pacer.Cooldown(ctx); cerr != nil {
			return cerr
		}
	} else {
		r.result.AddError("failed to create %s %q: %v", kind, name, err)
		r.log.Errorf("failed to create %s %q: %v", kind, name, err)
	}
	if r.opts.EnableRollback {
		return errAborted
	}
	return nil
}
