package mongodb

import (
	"regexp"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/taskmaster/taskboard/internal/domain/entities"
	"github.com/taskmaster/taskboard/internal/ports"
)

func TestTaskQuerySearchIsLiteral(t *testing.T) {
	q := taskQuery(ports.TaskFilter{ProjectIDs: []string{entities.NewID()}, Search: "a+++("})

	or, ok := q["$or"].(bson.A)
	if !ok || len(or) != 2 {
		t.Fatalf("$or: got %#v", q["$or"])
	}
	re := or[0].(bson.M)["title"].(primitive.Regex)
	if re.Options != "i" {
		t.Errorf("options: got %q, want i", re.Options)
	}

	compiled, err := regexp.Compile(re.Pattern)
	if err != nil {
		t.Fatalf("pattern %q does not compile: %v", re.Pattern, err)
	}
	if !compiled.MatchString("fix a+++( now") || compiled.MatchString("aaa") {
		t.Errorf("pattern %q is not a literal match", re.Pattern)
	}
}

func TestTaskQueryFilters(t *testing.T) {
	status := entities.TaskStatusTodo
	priority := entities.PriorityHigh
	assignee := entities.NewID()

	q := taskQuery(ports.TaskFilter{
		ProjectIDs: []string{entities.NewID(), entities.NewID()},
		Status:     &status,
		Priority:   &priority,
		AssigneeID: &assignee,
	})

	if got := q["status"]; got != "todo" {
		t.Errorf("status: got %v", got)
	}
	if got := q["priority"]; got != "high" {
		t.Errorf("priority: got %v", got)
	}
	if got := q["assignee"].(primitive.ObjectID).Hex(); got != assignee {
		t.Errorf("assignee: got %s, want %s", got, assignee)
	}
	if in := q["project"].(bson.M)["$in"].([]primitive.ObjectID); len(in) != 2 {
		t.Errorf("projects: got %d, want 2", len(in))
	}
	if _, ok := q["$or"]; ok {
		t.Error("empty search must not add $or")
	}
}

func TestTaskDocConversion(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	assignee := entities.NewID()
	hours := 3.5

	task := &entities.Task{
		ID:             entities.NewID(),
		Title:          "write docs",
		Status:         entities.TaskStatusInProgress,
		Priority:       entities.PriorityLow,
		ProjectID:      entities.NewID(),
		AssigneeID:     &assignee,
		CreatedBy:      entities.NewID(),
		EstimatedHours: &hours,
		Subtasks: []entities.Subtask{
			{ID: entities.NewID(), Title: "outline", Completed: true, CreatedAt: now, CreatedBy: assignee},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	got := newTaskDoc(task).toEntity()

	if got.ID != task.ID || got.ProjectID != task.ProjectID || got.CreatedBy != task.CreatedBy {
		t.Errorf("ids changed: got %+v", got)
	}
	if got.AssigneeID == nil || *got.AssigneeID != assignee {
		t.Errorf("assignee: got %v", got.AssigneeID)
	}
	if got.Labels == nil || len(got.Labels) != 0 {
		t.Errorf("labels: got %v, want empty", got.Labels)
	}
	if len(got.Subtasks) != 1 || got.Subtasks[0].Title != "outline" || got.Subtasks[0].AssigneeID != nil {
		t.Errorf("subtasks: got %+v", got.Subtasks)
	}
	if *got.EstimatedHours != hours {
		t.Errorf("estimatedHours: got %v", *got.EstimatedHours)
	}
}

func TestGroupCountsKeys(t *testing.T) {
	id := primitive.NewObjectID()
	got := groupCounts([]bucket{
		{Key: "todo", Count: 1},
		{Key: id, Count: 3},
		{Key: nil, Count: 9},
	})

	want := []entities.GroupCount{{Key: id.Hex(), Count: 3}, {Key: "todo", Count: 1}}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d]: got %v, want %v", i, got[i], want[i])
		}
	}
}
