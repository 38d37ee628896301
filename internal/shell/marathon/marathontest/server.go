// Package marathontest provides an in-memory Marathon scheduler for tests.
package marathontest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/artpar/convoy/internal/core/marathon"
)

// Request is a recorded call to the fake scheduler.
type Request struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

type rollout struct {
	deployment marathon.Deployment
	remaining  int
}

// Server is a fake Marathon. Every start or update creates a rollout that
// stays listed by GET /v2/deployments for a configurable number of calls.
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	inFlightTicks int
	startStatus   int
	updateStatus  int
	failListings  int
	apps     map[string]map[string]any // app path -> app object
	tasks    map[string][]marathon.Task
	rollouts []*rollout
	requests []Request
	versions int
}

// NewServer starts a fake scheduler. Close it when done.
func NewServer() *Server {
	s := &Server{
		apps:  make(map[string]map[string]any),
		tasks: make(map[string][]marathon.Task),
	}

	r := chi.NewRouter()
	r.Use(s.record)
	r.Get("/v2/apps", s.listApps)
	r.Post("/v2/apps/", s.startApp)
	r.Get("/v2/apps/*", s.getApp)
	r.Put("/v2/apps/*", s.updateApp)
	r.Delete("/v2/apps/*", s.deleteApp)
	r.Get("/v2/tasks", s.listAllTasks)
	r.Get("/v2/deployments", s.listDeployments)

	s.Server = httptest.NewServer(r)
	return s
}

// =============================================================================
// Fixtures
// =============================================================================

// SetInFlightTicks sets how many deployment listings report each new rollout.
func (s *Server) SetInFlightTicks(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlightTicks = n
}

// RefuseStarts makes POST /v2/apps/ answer with status. Zero restores
// normal behaviour.
func (s *Server) RefuseStarts(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startStatus = status
}

// RefuseUpdates makes PUT /v2/apps/{id} answer with status.
func (s *Server) RefuseUpdates(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateStatus = status
}

// FailDeploymentListings makes the next n GET /v2/deployments return 500.
func (s *Server) FailDeploymentListings(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failListings = n
}

// AddApp registers a running app.
func (s *Server) AddApp(app marathon.App) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, _ := json.Marshal(app)
	var obj map[string]any
	_ = json.Unmarshal(data, &obj)
	obj["id"] = marathon.AppPath(app.ID)
	s.apps[marathon.AppPath(app.ID)] = obj
}

// AddTask registers a task of an app.
func (s *Server) AddTask(task marathon.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := marathon.AppPath(task.AppID)
	task.AppID = id
	s.tasks[id] = append(s.tasks[id], task)
}

// SetTaskFailure records a task failure for the app at version.
func (s *Server) SetTaskFailure(appID, version, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if app, ok := s.apps[marathon.AppPath(appID)]; ok {
		app["lastTaskFailure"] = marathon.TaskFailure{
			AppID:   marathon.AppPath(appID),
			Version: version,
			Message: message,
			State:   "TASK_FAILED",
		}
	}
}

// App returns the stored app object.
func (s *Server) App(appID string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[marathon.AppPath(appID)]
	return app, ok
}

// LastVersion returns the version assigned to the latest start or update.
func (s *Server) LastVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return versionString(s.versions)
}

// NextVersion returns the version the next start or update will be assigned.
func (s *Server) NextVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return versionString(s.versions + 1)
}

// Requests returns every call received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns the number of calls with method whose path starts with prefix.
func (s *Server) Count(method, prefix string) int {
	n := 0
	for _, req := range s.Requests() {
		if req.Method == method && strings.HasPrefix(req.Path, prefix) {
			n++
		}
	}
	return n
}

// LastBody returns the body of the latest call with method and path prefix.
func (s *Server) LastBody(method, prefix string) []byte {
	reqs := s.Requests()
	for i := len(reqs) - 1; i >= 0; i-- {
		if reqs[i].Method == method && strings.HasPrefix(reqs[i].Path, prefix) {
			return reqs[i].Body
		}
	}
	return nil
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Body:   body,
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) listApps(w http.ResponseWriter, r *http.Request) {
	idFilter := r.URL.Query().Get("id")
	cmdFilter := r.URL.Query().Get("cmd")

	s.mu.Lock()
	defer s.mu.Unlock()

	apps := make([]map[string]any, 0, len(s.apps))
	for _, id := range s.sortedAppIDs() {
		app := s.apps[id]
		if idFilter != "" && !strings.Contains(id, idFilter) {
			continue
		}
		if cmd, _ := app["cmd"].(string); cmdFilter != "" && !strings.Contains(cmd, cmdFilter) {
			continue
		}
		apps = append(apps, app)
	}
	writeJSON(w, http.StatusOK, map[string]any{"apps": apps})
}

func (s *Server) getApp(w http.ResponseWriter, r *http.Request) {
	id, tasks, _ := splitAppPath(chi.URLParam(r, "*"))

	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.apps[id]
	if !ok {
		writeMessage(w, http.StatusNotFound, fmt.Sprintf("App '%s' does not exist", id))
		return
	}
	if tasks {
		writeJSON(w, http.StatusOK, marathon.TasksResponse{Tasks: s.tasks[id]})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"app": app})
}

func (s *Server) startApp(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.startStatus != 0 {
		writeMessage(w, s.startStatus, "start refused")
		return
	}

	var obj map[string]any
	if err := json.NewDecoder(r.Body).Decode(&obj); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	rawID, _ := obj["id"].(string)
	id := marathon.AppPath(rawID)

	if _, exists := s.apps[id]; exists {
		writeMessage(w, http.StatusConflict, fmt.Sprintf("An app with id [%s] already exists.", id))
		return
	}

	version, deploymentID := s.beginRollout(id)
	obj["id"] = id
	obj["version"] = version
	s.apps[id] = obj

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":          id,
		"version":     version,
		"deployments": []map[string]string{{"id": deploymentID}},
	})
}

func (s *Server) updateApp(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.updateStatus != 0 {
		writeMessage(w, s.updateStatus, "update refused")
		return
	}

	id, _, _ := splitAppPath(chi.URLParam(r, "*"))

	var changes map[string]any
	if err := json.NewDecoder(r.Body).Decode(&changes); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	app, ok := s.apps[id]
	if !ok {
		app = map[string]any{}
		s.apps[id] = app
	}
	for k, v := range changes {
		app[k] = v
	}
	app["id"] = id

	version, deploymentID := s.beginRollout(id)
	app["version"] = version

	writeJSON(w, http.StatusOK, marathon.DeploymentResult{DeploymentID: deploymentID, Version: version})
}

func (s *Server) deleteApp(w http.ResponseWriter, r *http.Request) {
	id, tasks, taskID := splitAppPath(chi.URLParam(r, "*"))

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.apps[id]; !ok {
		writeMessage(w, http.StatusNotFound, fmt.Sprintf("App '%s' does not exist", id))
		return
	}

	if tasks {
		var killed, kept []marathon.Task
		host := r.URL.Query().Get("host")
		for _, t := range s.tasks[id] {
			if (taskID == "" || t.ID == taskID) && (host == "" || t.Host == host) {
				killed = append(killed, t)
			} else {
				kept = append(kept, t)
			}
		}
		s.tasks[id] = kept
		writeJSON(w, http.StatusOK, marathon.TasksResponse{Tasks: killed})
		return
	}

	delete(s.apps, id)
	delete(s.tasks, id)
	version, deploymentID := s.beginRollout(id)
	writeJSON(w, http.StatusOK, marathon.DeploymentResult{DeploymentID: deploymentID, Version: version})
}

func (s *Server) listAllTasks(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []marathon.Task
	for _, id := range s.sortedAppIDs() {
		all = append(all, s.tasks[id]...)
	}
	writeJSON(w, http.StatusOK, marathon.TasksResponse{Tasks: all})
}

func (s *Server) listDeployments(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failListings > 0 {
		s.failListings--
		writeMessage(w, http.StatusInternalServerError, "deployments unavailable")
		return
	}

	listed := make([]marathon.Deployment, 0, len(s.rollouts))
	pending := s.rollouts[:0]
	for _, ro := range s.rollouts {
		if ro.remaining <= 0 {
			continue
		}
		listed = append(listed, ro.deployment)
		ro.remaining--
		pending = append(pending, ro)
	}
	s.rollouts = pending

	writeJSON(w, http.StatusOK, listed)
}

// =============================================================================
// Helpers
// =============================================================================

// beginRollout must be called with s.mu held.
func (s *Server) beginRollout(appID string) (version, deploymentID string) {
	s.versions++
	version = versionString(s.versions)
	deploymentID = fmt.Sprintf("deployment-%d", s.versions)
	if s.inFlightTicks > 0 {
		s.rollouts = append(s.rollouts, &rollout{
			deployment: marathon.Deployment{
				ID:           deploymentID,
				Version:      version,
				AffectedApps: []string{appID},
				TotalSteps:   1,
			},
			remaining: s.inFlightTicks,
		})
	}
	return version, deploymentID
}

func (s *Server) sortedAppIDs() []string {
	ids := make([]string, 0, len(s.apps))
	for id := range s.apps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// splitAppPath turns "group/web/tasks/t1" into ("/group/web", true, "t1").
func splitAppPath(rest string) (id string, tasks bool, taskID string) {
	rest = strings.Trim(rest, "/")
	if i := strings.Index(rest, "/tasks"); i >= 0 && (i+len("/tasks") == len(rest) || rest[i+len("/tasks")] == '/') {
		taskID = strings.TrimPrefix(rest[i+len("/tasks"):], "/")
		return marathon.AppPath(rest[:i]), true, taskID
	}
	return marathon.AppPath(rest), false, ""
}

func versionString(n int) string {
	if n == 0 {
		return ""
	}
	return fmt.Sprintf("2024-01-01T00:00:%02d.000Z", n%60)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
