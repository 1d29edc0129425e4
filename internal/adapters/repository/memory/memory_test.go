package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/taskmaster/taskboard/internal/domain/entities"
	"github.com/taskmaster/taskboard/internal/ports"
)

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func seedTask(t *testing.T, repos *ports.Repositories, projectID, title string, status entities.TaskStatus, age int) *entities.Task {
	t.Helper()
	task := &entities.Task{
		ID:        entities.NewID(),
		Title:     title,
		Status:    status,
		Priority:  entities.PriorityMedium,
		ProjectID: projectID,
		CreatedBy: "owner",
		CreatedAt: base.Add(-time.Duration(age) * time.Minute),
	}
	if err := repos.Tasks.Create(context.Background(), task); err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func TestUserEmailUnique(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories()

	u := &entities.User{ID: entities.NewID(), Name: "Alice", Email: "alice@example.com"}
	if err := repos.Users.Create(ctx, u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	dup := &entities.User{ID: entities.NewID(), Name: "Other", Email: "alice@example.com"}
	if err := repos.Users.Create(ctx, dup); !errors.Is(err, entities.ErrEmailTaken) {
		t.Errorf("duplicate Create: got %v, want %v", err, entities.ErrEmailTaken)
	}
	if _, err := repos.Users.GetByID(ctx, dup.ID); !errors.Is(err, entities.ErrUserNotFound) {
		t.Errorf("duplicate was stored: got %v", err)
	}
}

func TestProjectDeleteCascades(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories()

	keep := &entities.Project{ID: entities.NewID(), Name: "Keep", OwnerID: "owner"}
	drop := &entities.Project{ID: entities.NewID(), Name: "Drop", OwnerID: "owner"}
	repos.Projects.Create(ctx, keep)
	repos.Projects.Create(ctx, drop)

	kept := seedTask(t, repos, keep.ID, "stays", entities.TaskStatusTodo, 1)
	gone := seedTask(t, repos, drop.ID, "goes", entities.TaskStatusTodo, 2)

	if err := repos.Projects.Delete(ctx, drop.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repos.Tasks.GetByID(ctx, gone.ID); !errors.Is(err, entities.ErrTaskNotFound) {
		t.Errorf("child task: got %v, want %v", err, entities.ErrTaskNotFound)
	}
	if _, err := repos.Tasks.GetByID(ctx, kept.ID); err != nil {
		t.Errorf("unrelated task: %v", err)
	}
	// Repeating the delete is harmless.
	if err := repos.Projects.Delete(ctx, drop.ID); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestGetOwned(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories()

	p := &entities.Project{ID: entities.NewID(), Name: "Mine", OwnerID: "alice"}
	repos.Projects.Create(ctx, p)

	if _, err := repos.Projects.GetOwned(ctx, p.ID, "alice"); err != nil {
		t.Errorf("owner lookup: %v", err)
	}
	if _, err := repos.Projects.GetOwned(ctx, p.ID, "bob"); !errors.Is(err, entities.ErrProjectNotFound) {
		t.Errorf("foreign lookup: got %v, want %v", err, entities.ErrProjectNotFound)
	}
}

func TestTaskList(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories()
	projectID := entities.NewID()
	other := entities.NewID()

	for i := 0; i < 25; i++ {
		status := entities.TaskStatusTodo
		if i%5 == 0 {
			status = entities.TaskStatusDone
		}
		seedTask(t, repos, projectID, fmt.Sprintf("task %02d", i), status, i)
	}
	seedTask(t, repos, projectID, "Fix a+++ parser", entities.TaskStatusInProgress, 30)
	seedTask(t, repos, other, "task in other project", entities.TaskStatusTodo, -1)

	done := entities.TaskStatusDone
	tests := []struct {
		name      string
		filter    ports.TaskFilter
		wantLen   int
		wantTotal int64
		wantFirst string
	}{
		{"first page newest first", ports.TaskFilter{ProjectIDs: []string{projectID}, Limit: 10}, 10, 26, "task 00"},
		{"last page", ports.TaskFilter{ProjectIDs: []string{projectID}, Limit: 10, Offset: 20}, 6, 26, "task 20"},
		{"offset past end", ports.TaskFilter{ProjectIDs: []string{projectID}, Limit: 10, Offset: 100}, 0, 26, ""},
		{"huge offset", ports.TaskFilter{ProjectIDs: []string{projectID}, Limit: 100, Offset: math.MaxInt - 100}, 0, 26, ""},
		{"negative offset", ports.TaskFilter{ProjectIDs: []string{projectID}, Limit: 10, Offset: -5}, 10, 26, "task 00"},
		{"status filter", ports.TaskFilter{ProjectIDs: []string{projectID}, Status: &done, Limit: 50}, 5, 5, "task 00"},
		{"literal metacharacters", ports.TaskFilter{ProjectIDs: []string{projectID}, Search: "a+++", Limit: 50}, 1, 1, "Fix a+++ parser"},
		{"case insensitive", ports.TaskFilter{ProjectIDs: []string{projectID}, Search: "FIX A", Limit: 50}, 1, 1, "Fix a+++ parser"},
		{"no projects", ports.TaskFilter{Limit: 50}, 0, 0, ""},
		{"several projects", ports.TaskFilter{ProjectIDs: []string{projectID, other}, Limit: 1}, 1, 27, "task in other project"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, total, err := repos.Tasks.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(tasks) != tt.wantLen {
				t.Errorf("len: got %d, want %d", len(tasks), tt.wantLen)
			}
			if total != tt.wantTotal {
				t.Errorf("total: got %d, want %d", total, tt.wantTotal)
			}
			if tt.wantFirst != "" && len(tasks) > 0 && tasks[0].Title != tt.wantFirst {
				t.Errorf("first: got %q, want %q", tasks[0].Title, tt.wantFirst)
			}
		})
	}
}

func TestCountsAndStatistics(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories()
	a, b, empty := entities.NewID(), entities.NewID(), entities.NewID()

	seedTask(t, repos, a, "1", entities.TaskStatusTodo, 1)
	seedTask(t, repos, a, "2", entities.TaskStatusTodo, 2)
	seedTask(t, repos, a, "3", entities.TaskStatusDone, 3)
	assigned := seedTask(t, repos, b, "4", entities.TaskStatusInProgress, 4)
	assignee := "user-1"
	assigned.AssigneeID = &assignee
	repos.Tasks.Update(ctx, assigned)

	counts, err := repos.Tasks.CountByStatus(ctx, []string{a, b, empty})
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if got, want := counts[a], (entities.TaskCounts{Todo: 2, Done: 1}); got != want {
		t.Errorf("counts[a]: got %+v, want %+v", got, want)
	}
	if got, want := counts[b], (entities.TaskCounts{InProgress: 1}); got != want {
		t.Errorf("counts[b]: got %+v, want %+v", got, want)
	}
	if _, ok := counts[empty]; ok {
		t.Error("project without tasks should be absent")
	}

	stats, err := repos.Tasks.Statistics(ctx, a)
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if stats.Total != 3 || stats.Completed != 1 {
		t.Errorf("totals: got %d/%d, want 3/1", stats.Total, stats.Completed)
	}
	if len(stats.ByStatus) != 2 || stats.ByStatus[0] != (entities.GroupCount{Key: "todo", Count: 2}) {
		t.Errorf("byStatus: got %+v", stats.ByStatus)
	}
	if len(stats.ByAssignee) != 0 {
		t.Errorf("byAssignee: got %+v, want empty", stats.ByAssignee)
	}

	stats, _ = repos.Tasks.Statistics(ctx, b)
	if len(stats.ByAssignee) != 1 || stats.ByAssignee[0].Key != assignee {
		t.Errorf("byAssignee: got %+v", stats.ByAssignee)
	}
}

func TestUpdateKeepsProject(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories()
	projectID := entities.NewID()
	task := seedTask(t, repos, projectID, "t", entities.TaskStatusTodo, 0)

	task.ProjectID = entities.NewID()
	task.Title = "renamed"
	if err := repos.Tasks.Update(ctx, task); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := repos.Tasks.GetByID(ctx, task.ID)
	if got.ProjectID != projectID {
		t.Errorf("projectId: got %q, want %q", got.ProjectID, projectID)
	}
	if got.Title != "renamed" {
		t.Errorf("title: got %q", got.Title)
	}
}
