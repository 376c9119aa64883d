package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"projectflow/internal/handler"
	"projectflow/internal/model"
	"projectflow/internal/notify"
	"projectflow/internal/repository"
	"projectflow/internal/workflow"
	"projectflow/pkg/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

type memGuard struct{ seen map[string]bool }

func (g *memGuard) AcquireOnce(ctx context.Context, scope, id string) bool {
	if g.seen[scope+"|"+id] {
		return false
	}
	g.seen[scope+"|"+id] = true
	return true
}

func (g *memGuard) Release(ctx context.Context, scope, id string) {
	delete(g.seen, scope+"|"+id)
}

type server struct {
	engine        *gin.Engine
	sessions      *workflow.Sessions
	store         *repository.Memory
	notifications *handler.NotificationHandler
	ready         map[string]Check
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := repository.NewMemory()
	sessions := workflow.NewSessions(func(owner string) *workflow.Controller {
		q := notify.NewQueue(notify.WithScheduler(notify.NewManualScheduler()))
		return workflow.New(store, q, owner)
	})
	s := &server{
		sessions:      sessions,
		store:         store,
		notifications: handler.NewNotificationHandler(sessions, zap.NewNop()),
		ready:         map[string]Check{},
	}
	s.engine = NewRouter(Deps{
		Workflow:      handler.NewWorkflowHandler(sessions, store, zap.NewNop()),
		Notifications: s.notifications,
		JWTSecret:     testSecret,
		Idempotency:   &memGuard{seen: map[string]bool{}},
		Ready:         s.ready,
		Logger:        zap.NewNop(),
	})
	return s
}

func token(t *testing.T, user string) string {
	t.Helper()
	tok, err := util.GenerateJWT(user, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return tok
}

type call struct {
	method, path string
	body         any
	user         string
	headers      map[string]string
}

func (s *server) do(t *testing.T, c call) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if c.body != nil {
		if err := json.NewEncoder(&buf).Encode(c.body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(c.method, c.path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, c.user))
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func (s *server) messages(user string) []string {
	var out []string
	for _, n := range s.sessions.Queue(user).Active() {
		out = append(out, string(n.Severity)+": "+n.Message)
	}
	return out
}

func (s *server) createProject(t *testing.T, user, name string) string {
	t.Helper()
	w, body := s.do(t, call{method: "POST", path: "/projects", user: user, body: map[string]any{"name": name}})
	if w.Code != http.StatusCreated {
		t.Fatalf("create project: %d %s", w.Code, w.Body.String())
	}
	return body["project"].(map[string]any)["id"].(string)
}

func (s *server) createTask(t *testing.T, user, projectID string, body map[string]any) string {
	t.Helper()
	w, out := s.do(t, call{method: "POST", path: "/projects/" + projectID + "/tasks", user: user, body: body})
	if w.Code != http.StatusCreated {
		t.Fatalf("create task: %d %s", w.Code, w.Body.String())
	}
	return out["task"].(map[string]any)["id"].(string)
}

func TestHealthAndAuth(t *testing.T) {
	s := newServer(t)

	if w, _ := s.do(t, call{method: "GET", path: "/healthz"}); w.Code != http.StatusOK {
		t.Fatalf("healthz: %d", w.Code)
	}
	w, _ := s.do(t, call{method: "GET", path: "/projects"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	req := httptest.NewRequest("GET", "/projects", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rec.Code)
	}
	if rec.Header().Get("X-Trace-ID") == "" {
		t.Fatalf("every response carries a trace id")
	}
}

func TestReadyz(t *testing.T) {
	s := newServer(t)
	if w, _ := s.do(t, call{method: "GET", path: "/readyz"}); w.Code != http.StatusOK {
		t.Fatalf("readyz: %d", w.Code)
	}
	s.ready["db"] = func(ctx context.Context) error { return errors.New("down") }
	w, body := s.do(t, call{method: "GET", path: "/readyz"})
	if w.Code != http.StatusServiceUnavailable || body["status"] != "db_not_ready" {
		t.Fatalf("expected db_not_ready, got %d %v", w.Code, body)
	}
}

func TestProjectLifecycle(t *testing.T) {
	s := newServer(t)
	id := s.createProject(t, "alice", "Apollo")
	s.createProject(t, "bob", "Hermes")

	w, body := s.do(t, call{method: "GET", path: "/projects", user: "alice"})
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d", w.Code)
	}
	projects := body["projects"].([]any)
	if len(projects) != 1 || projects[0].(map[string]any)["name"] != "Apollo" {
		t.Fatalf("expected only alice's project, got %v", projects)
	}

	w, body = s.do(t, call{method: "POST", path: "/projects/" + id + "/status", user: "alice", body: map[string]any{"status": "on-hold"}})
	if w.Code != http.StatusOK || body["project"].(map[string]any)["status"] != "on-hold" {
		t.Fatalf("status change: %d %v", w.Code, body)
	}

	want := []string{"success: Project created successfully", "success: Project marked as on hold"}
	if got := s.messages("alice"); len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("unexpected notifications: %v", got)
	}
	if got := s.messages("bob"); len(got) != 1 {
		t.Fatalf("sessions must not share queues: %v", got)
	}

	if w, _ := s.do(t, call{method: "DELETE", path: "/projects/" + id, user: "alice"}); w.Code != http.StatusOK {
		t.Fatalf("delete: %d", w.Code)
	}
	if w, _ := s.do(t, call{method: "GET", path: "/projects/" + id, user: "alice"}); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
}

func TestValidationIs400WithoutNotification(t *testing.T) {
	s := newServer(t)
	id := s.createProject(t, "alice", "Apollo")
	s.sessions.Queue("alice").ClearAll()

	cases := []call{
		{method: "POST", path: "/projects/" + id + "/tasks", body: map[string]any{"title": "  "}},
		{method: "POST", path: "/projects/" + id + "/tasks", body: map[string]any{"title": "x", "deadline": "next week"}},
		{method: "POST", path: "/projects/" + id + "/tasks", body: map[string]any{"title": "x", "priority": "critical"}},
		{method: "POST", path: "/projects", body: "not an object"},
	}
	for _, c := range cases {
		c.user = "alice"
		w, body := s.do(t, c)
		if w.Code != http.StatusBadRequest || body["code"] != "validation_failed" {
			t.Fatalf("%s %s %v: expected 400, got %d %v", c.method, c.path, c.body, w.Code, body)
		}
	}
	if got := s.messages("alice"); len(got) != 0 {
		t.Fatalf("validation must not notify: %v", got)
	}
}

func TestTaskStatusAndNotFound(t *testing.T) {
	s := newServer(t)
	pid := s.createProject(t, "alice", "Apollo")
	tid := s.createTask(t, "alice", pid, map[string]any{"title": "Ship", "deadline": "2030-01-15"})

	w, body := s.do(t, call{method: "POST", path: "/tasks/" + tid + "/status", user: "alice", body: map[string]any{"status": "completed"}})
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d %s", w.Code, w.Body.String())
	}
	task := body["task"].(map[string]any)
	if task["status"] != "completed" || task["completed_at"] == nil {
		t.Fatalf("expected completed task with completed_at, got %v", task)
	}
	if task["deadline"] != "2030-01-15T00:00:00Z" {
		t.Fatalf("deadline must be stored as a date, got %v", task["deadline"])
	}

	s.sessions.Queue("alice").ClearAll()
	w, _ = s.do(t, call{method: "PUT", path: "/tasks/does-not-exist", user: "alice", body: map[string]any{"title": "x"}})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if got := s.messages("alice"); len(got) != 1 || got[0] != "error: task does-not-exist not found" {
		t.Fatalf("expected one error notification, got %v", got)
	}
}

func TestVersionConflictIs409(t *testing.T) {
	s := newServer(t)
	pid := s.createProject(t, "alice", "Apollo")

	body := map[string]any{"name": "Renamed", "version": 1}
	if w, _ := s.do(t, call{method: "PUT", path: "/projects/" + pid, user: "alice", body: body}); w.Code != http.StatusOK {
		t.Fatalf("first update: %d", w.Code)
	}
	w, out := s.do(t, call{method: "PUT", path: "/projects/" + pid, user: "alice", body: body})
	if w.Code != http.StatusConflict || out["code"] != "concurrent_modification" {
		t.Fatalf("expected 409, got %d %v", w.Code, out)
	}
}

func TestDeleteMilestoneKeepsTasks(t *testing.T) {
	s := newServer(t)
	pid := s.createProject(t, "alice", "Apollo")
	w, out := s.do(t, call{method: "POST", path: "/projects/" + pid + "/milestones", user: "alice", body: map[string]any{"name": "Beta"}})
	if w.Code != http.StatusCreated {
		t.Fatalf("create milestone: %d %s", w.Code, w.Body.String())
	}
	mid := out["milestone"].(map[string]any)["id"].(string)
	s.createTask(t, "alice", pid, map[string]any{"title": "a", "milestone_id": mid})
	s.createTask(t, "alice", pid, map[string]any{"title": "b", "milestone_id": mid})

	_, out = s.do(t, call{method: "GET", path: "/projects/" + pid + "/milestones", user: "alice"})
	ms := out["milestones"].([]any)
	if len(ms) != 1 || ms[0].(map[string]any)["task_count"] != float64(2) {
		t.Fatalf("expected task_count 2, got %v", ms)
	}

	if w, _ := s.do(t, call{method: "DELETE", path: "/milestones/" + mid, user: "alice"}); w.Code != http.StatusOK {
		t.Fatalf("delete milestone: %d", w.Code)
	}
	_, out = s.do(t, call{method: "GET", path: "/projects/" + pid + "/tasks", user: "alice"})
	tasks := out["tasks"].([]any)
	if len(tasks) != 2 {
		t.Fatalf("tasks must survive, got %d", len(tasks))
	}
	for _, raw := range tasks {
		if _, ok := raw.(map[string]any)["milestone_id"]; ok {
			t.Fatalf("task still assigned: %v", raw)
		}
	}
}

func TestBoardAndView(t *testing.T) {
	s := newServer(t)
	pid := s.createProject(t, "alice", "Apollo")
	s.createTask(t, "alice", pid, map[string]any{"title": "alpha", "priority": "high"})
	s.createTask(t, "alice", pid, map[string]any{"title": "beta", "status": "review"})

	w, out := s.do(t, call{method: "GET", path: "/projects/" + pid + "/board?priority=high", user: "alice"})
	if w.Code != http.StatusOK || out["total"] != float64(1) {
		t.Fatalf("board: %d %v", w.Code, out)
	}
	w, out = s.do(t, call{method: "GET", path: "/projects/" + pid + "/view?sort=name", user: "alice"})
	if w.Code != http.StatusOK {
		t.Fatalf("view: %d", w.Code)
	}
	tasks := out["tasks"].([]any)
	if len(tasks) != 2 || tasks[0].(map[string]any)["title"] != "alpha" {
		t.Fatalf("expected name order, got %v", tasks)
	}
}

func TestIdempotencyKey(t *testing.T) {
	s := newServer(t)
	headers := map[string]string{IdempotencyHeader: "abc"}

	w, _ := s.do(t, call{method: "POST", path: "/projects", user: "alice", headers: headers, body: map[string]any{"name": ""}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	// A failed request releases the key.
	w, _ = s.do(t, call{method: "POST", path: "/projects", user: "alice", headers: headers, body: map[string]any{"name": "Apollo"}})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	w, out := s.do(t, call{method: "POST", path: "/projects", user: "alice", headers: headers, body: map[string]any{"name": "Apollo"}})
	if w.Code != http.StatusConflict || out["code"] != "duplicate_request" {
		t.Fatalf("expected 409 duplicate, got %d %v", w.Code, out)
	}
	// Keys are scoped per user.
	if w, _ := s.do(t, call{method: "POST", path: "/projects", user: "bob", headers: headers, body: map[string]any{"name": "Apollo"}}); w.Code != http.StatusCreated {
		t.Fatalf("expected 201 for another user, got %d", w.Code)
	}
}

func TestIdempotencyKeyScopedToPath(t *testing.T) {
	s := newServer(t)
	apollo := s.createProject(t, "alice", "Apollo")
	zeus := s.createProject(t, "alice", "Zeus")
	headers := map[string]string{IdempotencyHeader: "same-key"}

	for _, pid := range []string{apollo, zeus} {
		w, _ := s.do(t, call{method: "POST", path: "/projects/" + pid + "/tasks", user: "alice", headers: headers, body: map[string]any{"title": "Kickoff"}})
		if w.Code != http.StatusCreated {
			t.Fatalf("create task in %s: expected 201, got %d %s", pid, w.Code, w.Body.String())
		}
	}
	w, _ := s.do(t, call{method: "POST", path: "/projects/" + zeus + "/tasks", user: "alice", headers: headers, body: map[string]any{"title": "Kickoff"}})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a repeat on the same project, got %d", w.Code)
	}
}

func TestNotificationEndpoints(t *testing.T) {
	s := newServer(t)
	s.createProject(t, "alice", "Apollo")
	s.createProject(t, "alice", "Zeus")

	w, out := s.do(t, call{method: "GET", path: "/notifications", user: "alice"})
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d", w.Code)
	}
	items := out["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("expected 2 notifications, got %v", items)
	}
	first := items[0].(map[string]any)
	if first["duration"] != float64(5000) || first["position"] != "top-right" {
		t.Fatalf("unexpected notification %v", first)
	}

	id := first["id"].(string)
	if _, out := s.do(t, call{method: "DELETE", path: "/notifications/" + id, user: "alice"}); out["dismissed"] != true {
		t.Fatalf("expected dismissed, got %v", out)
	}
	if _, out := s.do(t, call{method: "DELETE", path: "/notifications/" + id, user: "alice"}); out["dismissed"] != false {
		t.Fatalf("second dismiss must be a no-op, got %v", out)
	}
	if w, _ := s.do(t, call{method: "DELETE", path: "/notifications", user: "alice"}); w.Code != http.StatusOK {
		t.Fatalf("clear: %d", w.Code)
	}
	if n := s.sessions.Queue("alice").Len(); n != 0 {
		t.Fatalf("expected empty queue, got %d", n)
	}
}

// streamRecorder adds the CloseNotifier gin's Stream expects.
type streamRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *streamRecorder) CloseNotify() <-chan bool { return r.closed }

func TestNotificationStreamSendsSnapshot(t *testing.T) {
	s := newServer(t)
	s.createProject(t, "alice", "Apollo")

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/notifications/stream", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+token(t, "alice"))
	w := &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool)}

	done := make(chan struct{})
	go func() {
		s.engine.ServeHTTP(w, req)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if !bytes.Contains(w.Body.Bytes(), []byte("event:notifications")) ||
		!bytes.Contains(w.Body.Bytes(), []byte("Project created successfully")) {
		t.Fatalf("expected initial snapshot event, got %q", w.Body.String())
	}
}

func TestNotificationStreamEndsOnClose(t *testing.T) {
	s := newServer(t)

	req := httptest.NewRequest("GET", "/notifications/stream", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, "alice"))
	w := &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool)}

	done := make(chan struct{})
	go func() {
		s.engine.ServeHTTP(w, req)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	s.notifications.Close()
	s.notifications.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("stream still open after Close")
	}
}

func TestActivityEndpoint(t *testing.T) {
	s := newServer(t)
	pid := s.createProject(t, "alice", "Apollo")
	_, _ = s.store.RecordActivity(context.Background(), model.Activity{
		EventID: "e1", Kind: model.KindProject, Action: "created", EntityID: pid, ProjectID: pid,
		Message: `Project "Apollo" created`, OccurredAt: time.Now(),
	})

	w, out := s.do(t, call{method: "GET", path: "/projects/" + pid + "/activity", user: "alice"})
	if w.Code != http.StatusOK || len(out["activity"].([]any)) != 1 {
		t.Fatalf("activity: %d %v", w.Code, out)
	}
	if w, _ := s.do(t, call{method: "GET", path: "/projects/unknown/activity", user: "alice"}); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown project, got %d", w.Code)
	}
}
