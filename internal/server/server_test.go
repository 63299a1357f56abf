package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	domaindeploy "github.com/velonis/blueprint/internal/domain/deploy"
	"github.com/velonis/blueprint/internal/domain/template"
	"github.com/velonis/blueprint/internal/library"
)

const serverTemplate = `{
  "meta": {"slug": "onboarding", "name": "Onboarding"},
  "phases": [
    {"key": "p1", "name": "Kickoff", "actions": []}
  ]
}`

type fakeServerDeployer struct {
	block chan struct{} // when set, Deploy waits for it
	tpl   *template.Template
}

func (d *fakeServerDeployer) DeployWithLog(_ context.Context, tpl *template.Template, _ domaindeploy.Options, log *domaindeploy.RunLog) *domaindeploy.Result {
	d.tpl = tpl
	log.Infof("starting %s", tpl.Meta.Slug)
	if d.block != nil {
		<-d.block
	}
	log.Infof("finished %s", tpl.Meta.Slug)
	r := domaindeploy.NewResult("r1")
	r.Success = true
	r.Message = "deployed 1 phase"
	return r
}

func newTestServer(t *testing.T, dep Deployer, domains []string) *Server {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "onboarding.json"), []byte(serverTemplate), 0o644); err != nil {
		t.Fatal(err)
	}
	lib, err := library.Open(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	return New(lib, dep, nil, "secret", domains, domaindeploy.Options{}, "test")
}

func authedRequest(method, url string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	req.Header.Set("Authorization", "Bearer secret")
	return req
}

func TestHealthNeedsNoAuth(t *testing.T) {
	s := newTestServer(t, &fakeServerDeployer{}, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestAuthRejectsBadToken(t *testing.T) {
	s := newTestServer(t, &fakeServerDeployer{}, nil)
	req := httptest.NewRequest("GET", "/api/v1/templates", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("content type = %q", ct)
	}
}

func TestEmailDomainGate(t *testing.T) {
	s := newTestServer(t, &fakeServerDeployer{}, []string{"acme.com"})
	router := s.Router()

	req := authedRequest("GET", "/api/v1/templates", nil)
	req.Header.Set("X-User-Email", "eve@elsewhere.net")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}

	req = authedRequest("GET", "/api/v1/templates", nil)
	req.Header.Set("X-User-Email", "pat@acme.com")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestListTemplates(t *testing.T) {
	s := newTestServer(t, &fakeServerDeployer{}, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, authedRequest("GET", "/api/v1/templates", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var out []templateSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Slug != "onboarding" || out[0].Phases != 1 {
		t.Fatalf("unexpected listing: %+v", out)
	}
	if out[0].Name != "Onboarding" {
		t.Errorf("name = %q, want Onboarding", out[0].Name)
	}
}

func TestValidateTemplateRejectsBadPayload(t *testing.T) {
	s := newTestServer(t, &fakeServerDeployer{}, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, authedRequest("POST", "/api/v1/templates/validate", strings.NewReader("{not json")))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestDeploymentLifecycle(t *testing.T) {
	dep := &fakeServerDeployer{}
	s := newTestServer(t, dep, nil)
	router := s.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("POST", "/api/v1/deployments", strings.NewReader(`{"slug":"onboarding"}`)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body)
	}
	var accepted map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &accepted); err != nil {
		t.Fatal(err)
	}
	id := accepted["run_id"]
	if id == "" {
		t.Fatal("missing run_id")
	}

	st, ok := s.run(id)
	if !ok {
		t.Fatal("run not tracked")
	}
	select {
	case <-st.done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish")
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("GET", "/api/v1/deployments/"+id, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var result domaindeploy.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if dep.tpl == nil || dep.tpl.Meta.Slug != "onboarding" {
		t.Fatal("deployer did not receive the template")
	}
}

func TestDeploymentUnknownSlug(t *testing.T) {
	s := newTestServer(t, &fakeServerDeployer{}, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, authedRequest("POST", "/api/v1/deployments", strings.NewReader(`{"slug":"nope"}`)))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestDeploymentEventsStream(t *testing.T) {
	dep := &fakeServerDeployer{}
	s := newTestServer(t, dep, nil)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp, err := authedDo(srv.URL+"/api/v1/deployments", `{"slug":"onboarding"}`)
	if err != nil {
		t.Fatal(err)
	}
	var accepted map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	req, _ := http.NewRequest("GET", srv.URL+"/api/v1/deployments/"+accepted["run_id"]+"/events", nil)
	req.Header.Set("Authorization", "Bearer secret")
	stream, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Body.Close()
	if ct := stream.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	var sawLog, sawResult bool
	scanner := bufio.NewScanner(stream.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "event: log" {
			sawLog = true
		}
		if line == "event: result" {
			sawResult = true
		}
	}
	if !sawLog {
		t.Error("expected at least one log event")
	}
	if !sawResult {
		t.Error("expected a final result event")
	}
}

func authedDo(url, body string) (*http.Response, error) {
	req, err := http.NewRequest("POST", url, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer secret")
	return http.DefaultClient.Do(req)
}
