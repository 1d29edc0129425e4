package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/taskmaster/taskboard/internal/infrastructure/config"
	"github.com/taskmaster/taskboard/internal/infrastructure/logger"
	"github.com/taskmaster/taskboard/internal/infrastructure/storage"
)

const testPassword = "Str0ng!pass"

func testConfig() *config.Config {
	return &config.Config{
		App:     config.AppConfig{Name: "taskboard", Version: "test", Environment: "test"},
		Storage: config.StorageConfig{Driver: config.StorageMemory},
		Cache:   config.CacheConfig{Driver: config.CacheMemory},
		JWT: config.JWTConfig{
			Secret:    "test-secret-that-is-long-enough-for-hs256",
			ExpiresIn: time.Hour,
			Issuer:    "taskboard",
			Audience:  "taskboard-users",
		},
		Security: config.SecurityConfig{
			RateLimitRequests:     1000,
			RateLimitWindow:       15 * time.Minute,
			AuthRateLimitRequests: 1000,
			AuthRateLimitWindow:   15 * time.Minute,
			FailedLoginThreshold:  5,
			FailedLoginWindow:     15 * time.Minute,
			BcryptCost:            bcrypt.MinCost,
		},
	}
}

type client struct {
	t       *testing.T
	handler http.Handler
}

func newClient(t *testing.T, cfg *config.Config) *client {
	t.Helper()
	store := storage.NewInMemory()
	t.Cleanup(func() { _ = store.Close() })

	srv, err := New(cfg, store, logger.NewNop())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return &client{t: t, handler: srv.Handler()}
}

// do sends body (a raw string or a value to marshal) and decodes the reply
// into a generic map.
func (c *client) do(method, path, token string, body interface{}) (int, map[string]interface{}) {
	c.t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			c.t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			c.t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code, out
}

func (c *client) expect(want int, method, path, token string, body interface{}) map[string]interface{} {
	c.t.Helper()
	code, out := c.do(method, path, token, body)
	if code != want {
		c.t.Fatalf("%s %s: got status %d (%v), want %d", method, path, code, out, want)
	}
	return out
}

func (c *client) register(name, email string) string {
	c.t.Helper()
	out := c.expect(http.StatusCreated, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": name, "email": email, "password": testPassword,
	})
	token, _ := out["token"].(string)
	if token == "" {
		c.t.Fatalf("register %s: no token in %v", email, out)
	}
	return token
}

func (c *client) createProject(token, name string) string {
	c.t.Helper()
	out := c.expect(http.StatusCreated, http.MethodPost, "/api/projects", token, map[string]string{"name": name})
	return out["id"].(string)
}

func (c *client) createTask(token string, fields map[string]interface{}) string {
	c.t.Helper()
	out := c.expect(http.StatusCreated, http.MethodPost, "/api/tasks", token, fields)
	return out["id"].(string)
}

func message(out map[string]interface{}) string {
	m, _ := out["message"].(string)
	return m
}

func TestHealth(t *testing.T) {
	c := newClient(t, testConfig())

	out := c.expect(http.StatusOK, http.MethodGet, "/health", "", nil)
	if out["status"] != "OK" {
		t.Errorf("status: got %v, want OK", out["status"])
	}
	if _, err := time.Parse(time.RFC3339, fmt.Sprint(out["timestamp"])); err != nil {
		t.Errorf("timestamp: %v", err)
	}

	c.expect(http.StatusOK, http.MethodGet, "/ready", "", nil)
	detailed := c.expect(http.StatusOK, http.MethodGet, "/health/detailed", "", nil)
	if detailed["status"] != "ok" {
		t.Errorf("detailed status: got %v, want ok", detailed["status"])
	}
}

func TestRegisterLoginProjectTaskFlow(t *testing.T) {
	c := newClient(t, testConfig())

	c.register("Alice Doe", "alice@example.com")
	login := c.expect(http.StatusOK, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": testPassword,
	})
	token := login["token"].(string)

	me := c.expect(http.StatusOK, http.MethodGet, "/api/auth/me", token, nil)
	if me["email"] != "alice@example.com" {
		t.Errorf("me email: got %v", me["email"])
	}
	if _, ok := me["password"]; ok {
		t.Error("profile exposes the password")
	}

	projectID := c.createProject(token, "Website")
	task := c.expect(http.StatusCreated, http.MethodPost, "/api/tasks", token, map[string]interface{}{
		"projectId": projectID,
		"title":     "Draft copy",
	})
	if task["status"] != "todo" || task["priority"] != "medium" {
		t.Errorf("defaults: got status %v priority %v, want todo medium", task["status"], task["priority"])
	}
	taskID := task["id"].(string)

	c.expect(http.StatusOK, http.MethodPut, "/api/tasks/"+taskID+"/status", token, map[string]string{"status": "done"})

	projects := c.expect(http.StatusOK, http.MethodGet, "/api/projects/"+projectID, token, nil)
	counts := projects["taskCounts"].(map[string]interface{})
	if counts["done"] != float64(1) || counts["todo"] != float64(0) {
		t.Errorf("task counts: got %v, want done=1 todo=0", counts)
	}

	stats := c.expect(http.StatusOK, http.MethodGet, "/api/projects/"+projectID+"/statistics", token, nil)
	if stats["total"] != float64(1) || stats["completed"] != float64(1) {
		t.Errorf("statistics: got %v", stats)
	}
}

func TestSubtaskFlow(t *testing.T) {
	c := newClient(t, testConfig())
	token := c.register("Alice Doe", "alice@example.com")
	projectID := c.createProject(token, "Website")
	taskID := c.createTask(token, map[string]interface{}{"projectId": projectID, "title": "Launch"})

	sub := c.expect(http.StatusCreated, http.MethodPost, "/api/tasks/"+taskID+"/subtasks", token, map[string]string{"title": "Buy domain"})
	subID := sub["id"].(string)
	c.expect(http.StatusCreated, http.MethodPost, "/api/tasks/"+taskID+"/subtasks", token, map[string]string{"title": "Set DNS"})

	c.expect(http.StatusOK, http.MethodPut, "/api/tasks/"+taskID+"/subtasks/"+subID, token, map[string]bool{"completed": true})

	got := c.expect(http.StatusOK, http.MethodGet, "/api/tasks/"+taskID, token, nil)
	if got["completionPercentage"] != float64(50) {
		t.Errorf("completion: got %v, want 50", got["completionPercentage"])
	}

	c.expect(http.StatusOK, http.MethodDelete, "/api/tasks/"+taskID+"/subtasks/"+subID, token, nil)
	out := c.expect(http.StatusNotFound, http.MethodPut, "/api/tasks/"+taskID+"/subtasks/"+subID, token, map[string]bool{"completed": false})
	if message(out) != "Subtask not found" {
		t.Errorf("message: got %q", message(out))
	}
}

func TestCrossTenantAccessIsNotFound(t *testing.T) {
	c := newClient(t, testConfig())
	alice := c.register("Alice Doe", "alice@example.com")
	bob := c.register("Bob Roe", "bob@example.com")

	projectID := c.createProject(alice, "Private")
	taskID := c.createTask(alice, map[string]interface{}{"projectId": projectID, "title": "Secret"})

	tests := []struct {
		method string
		path   string
		body   interface{}
	}{
		{http.MethodGet, "/api/projects/" + projectID, nil},
		{http.MethodPut, "/api/projects/" + projectID, map[string]string{"name": "Stolen"}},
		{http.MethodDelete, "/api/projects/" + projectID, nil},
		{http.MethodGet, "/api/projects/" + projectID + "/tasks", nil},
		{http.MethodGet, "/api/projects/" + projectID + "/statistics", nil},
		{http.MethodGet, "/api/tasks/projects/" + projectID + "/tasks", nil},
		{http.MethodGet, "/api/tasks/" + taskID, nil},
		{http.MethodPut, "/api/tasks/" + taskID, map[string]string{"title": "Mine"}},
		{http.MethodPut, "/api/tasks/" + taskID + "/status", map[string]string{"status": "done"}},
		{http.MethodDelete, "/api/tasks/" + taskID, nil},
		{http.MethodPost, "/api/tasks/" + taskID + "/subtasks", map[string]string{"title": "Sneak"}},
		{http.MethodPost, "/api/tasks", map[string]interface{}{"projectId": projectID, "title": "Plant"}},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			code, out := c.do(tt.method, tt.path, bob, tt.body)
			if code != http.StatusNotFound {
				t.Errorf("got status %d (%v), want 404", code, out)
			}
		})
	}

	list := c.expect(http.StatusOK, http.MethodGet, "/api/tasks", bob, nil)
	if tasks := list["tasks"].([]interface{}); len(tasks) != 0 {
		t.Errorf("bob sees %d tasks, want 0", len(tasks))
	}

	// Alice still has everything.
	c.expect(http.StatusOK, http.MethodGet, "/api/tasks/"+taskID, alice, nil)
}

func TestValidationErrors(t *testing.T) {
	c := newClient(t, testConfig())
	token := c.register("Alice Doe", "alice@example.com")
	projectID := c.createProject(token, "Website")
	taskID := c.createTask(token, map[string]interface{}{"projectId": projectID, "title": "Draft"})

	tests := []struct {
		name    string
		method  string
		path    string
		token   string
		body    interface{}
		want    int
		message string
	}{
		{
			name: "duplicate email", method: http.MethodPost, path: "/api/auth/register",
			body: map[string]string{"name": "Alice Again", "email": "ALICE@example.com", "password": testPassword},
			want: http.StatusBadRequest, message: "User already exists",
		},
		{
			name: "projectId on update", method: http.MethodPut, path: "/api/tasks/" + taskID, token: token,
			body: map[string]string{"projectId": projectID},
			want: http.StatusBadRequest, message: `"projectId" is not allowed`,
		},
		{
			name: "unknown status", method: http.MethodPut, path: "/api/tasks/" + taskID + "/status", token: token,
			body: map[string]string{"status": "blocked"},
			want: http.StatusBadRequest, message: "Status must be one of: todo, in-progress, done",
		},
		{
			name: "malformed json", method: http.MethodPost, path: "/api/projects", token: token,
			body: `{"name":`,
			want: http.StatusBadRequest, message: "Invalid request format",
		},
		{
			name: "malformed project id", method: http.MethodGet, path: "/api/projects/not-an-id", token: token,
			want: http.StatusBadRequest, message: "Invalid project ID",
		},
		{
			name: "empty update", method: http.MethodPut, path: "/api/projects/" + projectID, token: token,
			body: map[string]string{},
			want: http.StatusBadRequest, message: "Provide at least one field to update",
		},
		{
			name: "bad due date", method: http.MethodPost, path: "/api/tasks", token: token,
			body: map[string]interface{}{"projectId": projectID, "title": "Dated", "dueDate": "someday"},
			want: http.StatusBadRequest, message: "Invalid due date",
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/api/auth/login",
			body: map[string]string{"email": "alice@example.com", "password": "Wr0ng!pass"},
			want: http.StatusUnauthorized, message: "Invalid credentials",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out := c.do(tt.method, tt.path, tt.token, tt.body)
			if code != tt.want {
				t.Fatalf("got status %d (%v), want %d", code, out, tt.want)
			}
			if message(out) != tt.message {
				t.Errorf("message: got %q, want %q", message(out), tt.message)
			}
		})
	}
}

func TestListTasksQuery(t *testing.T) {
	c := newClient(t, testConfig())
	token := c.register("Alice Doe", "alice@example.com")
	projectID := c.createProject(token, "Website")

	for i := 0; i < 3; i++ {
		c.createTask(token, map[string]interface{}{"projectId": projectID, "title": fmt.Sprintf("Plain %d", i)})
	}
	c.createTask(token, map[string]interface{}{"projectId": projectID, "title": "Fix a+++ parser", "priority": "high"})

	tests := []struct {
		name      string
		query     string
		wantTasks int
		wantLimit float64
		wantTotal float64
	}{
		{"default page", "", 4, 50, 4},
		{"limit clamped", "?limit=1000", 4, 100, 4},
		{"limit floor", "?limit=0", 1, 1, 4},
		{"non numeric", "?page=abc&limit=xyz", 4, 50, 4},
		{"regex characters are literal", "?search=" + strings.ReplaceAll("a+++", "+", "%2B"), 1, 50, 1},
		{"priority", "?priority=high", 1, 50, 1},
		{"all", "?status=all&priority=all", 4, 50, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := c.expect(http.StatusOK, http.MethodGet, "/api/tasks"+tt.query, token, nil)
			tasks := out["tasks"].([]interface{})
			p := out["pagination"].(map[string]interface{})
			if len(tasks) != tt.wantTasks {
				t.Errorf("tasks: got %d, want %d", len(tasks), tt.wantTasks)
			}
			if p["limit"] != tt.wantLimit {
				t.Errorf("limit: got %v, want %v", p["limit"], tt.wantLimit)
			}
			if p["total"] != tt.wantTotal {
				t.Errorf("total: got %v, want %v", p["total"], tt.wantTotal)
			}
		})
	}

	out := c.expect(http.StatusOK, http.MethodGet, "/api/projects/"+projectID+"/tasks", token, nil)
	if p := out["pagination"].(map[string]interface{}); p["limit"] != float64(20) {
		t.Errorf("project tasks default limit: got %v, want 20", p["limit"])
	}

	c.expect(http.StatusBadRequest, http.MethodGet, "/api/tasks?status=blocked", token, nil)
}

func TestListTasksHugePage(t *testing.T) {
	c := newClient(t, testConfig())
	token := c.register("Alice Doe", "alice@example.com")
	projectID := c.createProject(token, "Website")
	c.createTask(token, map[string]interface{}{"projectId": projectID, "title": "Only"})

	for _, path := range []string{
		"/api/tasks?page=100000000000000000&limit=100",
		"/api/tasks?page=200000000000000000",
		"/api/tasks?page=9223372036854775807&limit=1",
		"/api/projects/" + projectID + "/tasks?page=100000000000000000&limit=100",
	} {
		t.Run(path, func(t *testing.T) {
			out := c.expect(http.StatusOK, http.MethodGet, path, token, nil)
			if tasks := out["tasks"].([]interface{}); len(tasks) != 0 {
				t.Errorf("tasks: got %d, want 0", len(tasks))
			}
			if p := out["pagination"].(map[string]interface{}); p["total"] != float64(1) {
				t.Errorf("total: got %v, want 1", p["total"])
			}
		})
	}
}

func TestDeleteProjectCascades(t *testing.T) {
	c := newClient(t, testConfig())
	token := c.register("Alice Doe", "alice@example.com")
	projectID := c.createProject(token, "Website")
	taskID := c.createTask(token, map[string]interface{}{"projectId": projectID, "title": "Draft"})

	out := c.expect(http.StatusOK, http.MethodDelete, "/api/projects/"+projectID, token, nil)
	if message(out) != "Project deleted successfully" {
		t.Errorf("message: got %q", message(out))
	}

	c.expect(http.StatusNotFound, http.MethodGet, "/api/projects/"+projectID, token, nil)
	c.expect(http.StatusNotFound, http.MethodGet, "/api/tasks/"+taskID, token, nil)
	list := c.expect(http.StatusOK, http.MethodGet, "/api/tasks", token, nil)
	if tasks := list["tasks"].([]interface{}); len(tasks) != 0 {
		t.Errorf("tasks after cascade: got %d, want 0", len(tasks))
	}
}

func TestAuthentication(t *testing.T) {
	c := newClient(t, testConfig())
	token := c.register("Alice Doe", "alice@example.com")

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not bearer", "Basic abc"},
		{"garbage", "Bearer not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			c.handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("got status %d, want 401", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), "Not authorized to access this route") {
				t.Errorf("body: got %s", rec.Body.String())
			}
		})
	}

	c.expect(http.StatusOK, http.MethodGet, "/api/projects", token, nil)
	out := c.expect(http.StatusOK, http.MethodPost, "/api/auth/logout", token, nil)
	if message(out) != "Logged out successfully" {
		t.Errorf("logout message: got %q", message(out))
	}
	c.expect(http.StatusUnauthorized, http.MethodGet, "/api/projects", token, nil)
}

func TestAuthRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Security.AuthRateLimitRequests = 2
	c := newClient(t, cfg)

	login := map[string]string{"email": "nobody@example.com", "password": testPassword}
	c.expect(http.StatusUnauthorized, http.MethodPost, "/api/auth/login", "", login)
	c.expect(http.StatusUnauthorized, http.MethodPost, "/api/auth/login", "", login)

	out := c.expect(http.StatusTooManyRequests, http.MethodPost, "/api/auth/login", "", login)
	if message(out) != "Too many authentication attempts, please try again later" {
		t.Errorf("message: got %q", message(out))
	}

	// Other API routes have their own budget.
	c.expect(http.StatusUnauthorized, http.MethodGet, "/api/projects", "", nil)
}

func TestProductionRedactsServerErrors(t *testing.T) {
	tests := []struct {
		env       string
		wantError bool
	}{
		{"development", true},
		{"production", false},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := testConfig()
			cfg.App.Environment = tt.env
			c := newClient(t, cfg)

			// A rejected token carries its verification error as detail.
			code, out := c.do(http.MethodGet, "/api/projects", "bad.token.value", nil)
			if code != http.StatusUnauthorized {
				t.Fatalf("got status %d, want 401", code)
			}
			_, hasError := out["error"]
			if hasError != tt.wantError {
				t.Errorf("error detail present: got %v, want %v (%v)", hasError, tt.wantError, out)
			}
		})
	}
}

func TestAllowedOrigins(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"https://a.example, https://b.example", []string{"https://a.example", "https://b.example"}},
		{" , ", []string{"http://localhost:5173", "http://localhost:3000"}},
	}
	for _, tt := range tests {
		got := allowedOrigins(tt.raw)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("allowedOrigins(%q): got %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Bearer ", "", false},
		{"Token abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := bearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("bearerToken(%q): got (%q, %v), want (%q, %v)", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}
