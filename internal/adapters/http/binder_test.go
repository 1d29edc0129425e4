package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/taskboard/internal/ports"
)

func bind(t *testing.T, method, target, body string, dst interface{}) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	return NewBinder().Bind(dst, c)
}

func TestBinderRejectsUnknownFields(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantMsg  string
	}{
		{"unknown field", `{"title":"x","projectId":"abc"}`, http.StatusBadRequest, `"projectId" is not allowed`},
		{"wrong type", `{"title":42}`, http.StatusBadRequest, `"title" must be a string`},
		{"array body", `[1,2]`, http.StatusBadRequest, "Request body must be an object"},
		{"truncated", `{"title":`, http.StatusBadRequest, "Invalid request format"},
		{"syntax", `{title}`, http.StatusBadRequest, "Invalid request format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req ports.UpdateTaskRequest
			err := bind(t, http.MethodPut, "/", tt.body, &req)

			var he *echo.HTTPError
			if !errors.As(err, &he) {
				t.Fatalf("got %v, want *echo.HTTPError", err)
			}
			if he.Code != tt.wantCode {
				t.Errorf("code: got %d, want %d", he.Code, tt.wantCode)
			}
			if he.Message != tt.wantMsg {
				t.Errorf("message: got %q, want %q", he.Message, tt.wantMsg)
			}
		})
	}
}

func TestBinderDecodesBody(t *testing.T) {
	var req ports.UpdateTaskRequest
	body := `{"title":"New","assigneeId":null,"dueDate":"2024-03-01T10:00:00Z","labels":["a"]}`
	if err := bind(t, http.MethodPut, "/", body, &req); err != nil {
		t.Fatalf("bind: %v", err)
	}

	if req.Title == nil || *req.Title != "New" {
		t.Errorf("title: got %v, want New", req.Title)
	}
	if !req.AssigneeID.IsSet() || req.AssigneeID.Ptr() != nil {
		t.Errorf("assigneeId: got %+v, want explicit null", req.AssigneeID)
	}
	want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	if d := req.DueDate.Ptr(); d == nil || !d.Equal(want) {
		t.Errorf("dueDate: got %v, want %v", d, want)
	}
	if req.EstimatedHours.IsSet() {
		t.Error("estimatedHours: set although absent")
	}
	if req.Labels == nil || len(*req.Labels) != 1 {
		t.Errorf("labels: got %v, want [a]", req.Labels)
	}
}

func TestBinderEmptyBody(t *testing.T) {
	var req ports.UpdateTaskRequest
	if err := bind(t, http.MethodPut, "/", "", &req); err != nil {
		t.Fatalf("empty body: got %v, want nil", err)
	}
}

func TestBinderInvalidDate(t *testing.T) {
	var req ports.CreateTaskRequest
	err := bind(t, http.MethodPost, "/", `{"title":"x","dueDate":"tomorrow"}`, &req)
	if !errors.Is(err, ports.ErrInvalidDate) {
		t.Fatalf("got %v, want ErrInvalidDate", err)
	}
	if he := Error(err); he.Code != http.StatusBadRequest || he.Message != "Invalid due date" {
		t.Errorf("mapped: got %d %v", he.Code, he.Message)
	}
}

func TestBinderQueryParams(t *testing.T) {
	var q ports.ListTasksQuery
	if err := bind(t, http.MethodGet, "/?status=done&search=a%2B%2B&page=2&limit=abc", "", &q); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if q.Status != "done" || q.Search != "a++" || q.Page != "2" || q.Limit != "abc" {
		t.Errorf("query: got %+v", q)
	}
}
