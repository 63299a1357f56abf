// Package server exposes the deployment engine over HTTP: template listing
// and validation, deployment runs with a streamed log, and the
// conversational flow endpoint.
package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	domaindeploy "github.com/velonis/blueprint/internal/domain/deploy"
	"github.com/velonis/blueprint/internal/domain/template"
	"github.com/velonis/blueprint/internal/flow"
	"github.com/velonis/blueprint/internal/library"
)

// Deployer runs one deployment with a caller-supplied log.
type Deployer interface {
	DeployWithLog(ctx context.Context, tpl *template.Template, opts domaindeploy.Options, log *domaindeploy.RunLog) *domaindeploy.Result
}

// Server holds the HTTP surface.
type Server struct {
	lib      *library.Library
	deployer Deployer
	flow     *flow.Flow
	apiKey   string
	domains  []string
	opts     domaindeploy.Options
	version  string

	mu   sync.Mutex
	runs map[string]*runState
}

type runState struct {
	log    *domaindeploy.RunLog
	done   chan struct{}
	result *domaindeploy.Result // set before done closes
}

// New assembles a server. flowEngine may be nil when the conversational
// endpoint is not configured.
func New(lib *library.Library, deployer Deployer, flowEngine *flow.Flow, apiKey string, domains []string, opts domaindeploy.Options, version string) *Server {
	return &Server{
		lib:      lib,
		deployer: deployer,
		flow:     flowEngine,
		apiKey:   apiKey,
		domains:  domains,
		opts:     opts,
		version:  version,
		runs:     make(map[string]*runState),
	}
}

// Router builds the chi router with all routes configured.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(s.apiKey))
			r.Use(emailDomainMiddleware(s.domains))
			r.Get("/templates", s.handleListTemplates)
			r.Post("/templates/validate", s.handleValidateTemplate)
			r.Post("/deployments", s.handleCreateDeployment)
			r.Get("/deployments/{id}", s.handleGetDeployment)
			r.Get("/deployments/{id}/events", s.handleDeploymentEvents)
			r.Post("/flow", s.handleFlow)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"version":   s.version,
		"templates": len(s.lib.Slugs()),
	})
}

type templateSummary struct {
	Slug   string `json:"slug"`
	Name   string `json:"name"`
	Phases int    `json:"phases"`
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	slugs := s.lib.Slugs()
	out := make([]templateSummary, 0, len(slugs))
	for _, slug := range slugs {
		tpl, ok := s.lib.Get(slug)
		if !ok {
			continue
		}
		out = append(out, templateSummary{
			Slug:   tpl.Meta.Slug,
			Name:   tpl.Meta.Name,
			Phases: len(tpl.Phases),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleValidateTemplate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, "Could not read request body")
		return
	}
	tpl, err := template.Parse(body)
	if err != nil {
		writeProblem(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tpl.Validate())
}

type deploymentRequest struct {
	Slug     string             `json:"slug,omitempty"`
	Template *template.Template `json:"template,omitempty"`
	Options  *optionsPatch      `json:"options,omitempty"`
}

type optionsPatch struct {
	StopOnMissingFields *bool `json:"stop_on_missing_fields,omitempty"`
	CreateNewList       *bool `json:"create_new_list,omitempty"`
	EnableRollback      *bool `json:"enable_rollback,omitempty"`
	DelayMs             *int  `json:"delay_ms,omitempty"`
}

func (p *optionsPatch) apply(opts domaindeploy.Options) domaindeploy.Options {
	if p == nil {
		return opts
	}
	if p.StopOnMissingFields != nil {
		opts.StopOnMissingFields = *p.StopOnMissingFields
	}
	if p.CreateNewList != nil {
		opts.CreateNewListIfNeeded = *p.CreateNewList
	}
	if p.EnableRollback != nil {
		opts.EnableRollback = *p.EnableRollback
	}
	if p.DelayMs != nil {
		opts.DelayBetweenCalls = time.Duration(*p.DelayMs) * time.Millisecond
	}
	return opts
}

func (s *Server) handleCreateDeployment(w http.ResponseWriter, r *http.Request) {
	var req deploymentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	tpl := req.Template
	if tpl == nil {
		if req.Slug == "" {
			writeProblem(w, r, http.StatusBadRequest, "Provide a template slug or an inline template")
			return
		}
		loaded, ok := s.lib.Get(req.Slug)
		if !ok {
			writeProblem(w, r, http.StatusNotFound, "Unknown template "+req.Slug)
			return
		}
		tpl = loaded
	}

	id := uuid.NewString()
	st := &runState{log: domaindeploy.NewRunLog(), done: make(chan struct{})}
	s.mu.Lock()
	s.runs[id] = st
	s.mu.Unlock()

	opts := req.Options.apply(s.opts)
	go func() {
		defer close(st.done)
		defer st.log.Close()
		result := s.deployer.DeployWithLog(context.Background(), tpl, opts, st.log)
		s.mu.Lock()
		st.result = result
		s.mu.Unlock()
		slog.Info("deployment finished", "run", id, "success", result.Success)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": id})
}

func (s *Server) handleGetDeployment(w http.ResponseWriter, r *http.Request) {
	st, ok := s.run(chi.URLParam(r, "id"))
	if !ok {
		writeProblem(w, r, http.StatusNotFound, "Unknown deployment run")
		return
	}
	s.mu.Lock()
	result := st.result
	s.mu.Unlock()
	if result == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "running"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type flowRequest struct {
	SessionID string      `json:"session_id,omitempty"`
	Action    flow.Action `json:"action"`
}

func (s *Server) handleFlow(w http.ResponseWriter, r *http.Request) {
	if s.flow == nil {
		writeProblem(w, r, http.StatusNotFound, "The conversational flow is not configured")
		return
	}
	var req flowRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	prompt, err := s.flow.Handle(r.Context(), req.SessionID, req.Action)
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, prompt)
}

func (s *Server) run(id string) (*runState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.runs[id]
	return st, ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
