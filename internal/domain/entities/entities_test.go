package entities

import "testing"

func TestCompletionPercentage(t *testing.T) {
	tests := []struct {
		name     string
		status   TaskStatus
		subtasks []Subtask
		want     int
	}{
		{"no subtasks todo", TaskStatusTodo, nil, 0},
		{"no subtasks in progress", TaskStatusInProgress, nil, 0},
		{"no subtasks done", TaskStatusDone, nil, 100},
		{"one of three", TaskStatusTodo, []Subtask{{Completed: true}, {}, {}}, 33},
		{"two of three", TaskStatusTodo, []Subtask{{Completed: true}, {Completed: true}, {}}, 67},
		{"all complete", TaskStatusInProgress, []Subtask{{Completed: true}, {Completed: true}}, 100},
		{"subtasks override done", TaskStatusDone, []Subtask{{}, {}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &Task{Status: tt.status, Subtasks: tt.subtasks}
			if got := task.CompletionPercentage(); got != tt.want {
				t.Errorf("CompletionPercentage: got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTaskCountsAdd(t *testing.T) {
	var c TaskCounts
	c.Add(TaskStatusTodo, 2)
	c.Add(TaskStatusInProgress, 1)
	c.Add(TaskStatusDone, 4)
	c.Add(TaskStatus("archived"), 9)

	want := TaskCounts{Todo: 2, InProgress: 1, Done: 4}
	if c != want {
		t.Errorf("counts: got %+v, want %+v", c, want)
	}
	if c.Total() != 7 {
		t.Errorf("Total: got %d, want 7", c.Total())
	}
}

func TestRemoveSubtask(t *testing.T) {
	task := &Task{Subtasks: []Subtask{{ID: "a"}, {ID: "b"}, {ID: "c"}}}

	if err := task.RemoveSubtask("b"); err != nil {
		t.Fatalf("RemoveSubtask: %v", err)
	}
	if len(task.Subtasks) != 2 || task.Subtasks[0].ID != "a" || task.Subtasks[1].ID != "c" {
		t.Errorf("subtasks after remove: got %+v", task.Subtasks)
	}
	if err := task.RemoveSubtask("b"); err != ErrSubtaskNotFound {
		t.Errorf("second remove: got %v, want %v", err, ErrSubtaskNotFound)
	}
}

func TestIDs(t *testing.T) {
	id := NewID()
	if len(id) != 24 {
		t.Errorf("NewID length: got %d, want 24", len(id))
	}
	if !IsValidID(id) {
		t.Errorf("IsValidID(%q): got false, want true", id)
	}

	for _, bad := range []string{"", "123", "zzzzzzzzzzzzzzzzzzzzzzzz", id + "0"} {
		if IsValidID(bad) {
			t.Errorf("IsValidID(%q): got true, want false", bad)
		}
	}
}

func TestEnumValidity(t *testing.T) {
	for _, s := range TaskStatuses {
		if !s.IsValid() {
			t.Errorf("status %q should be valid", s)
		}
	}
	if TaskStatus("in_progress").IsValid() {
		t.Error("in_progress should not be valid")
	}
	for _, p := range Priorities {
		if !p.IsValid() {
			t.Errorf("priority %q should be valid", p)
		}
	}
	if Priority("critical").IsValid() {
		t.Error("critical should not be valid")
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Alice@Example.COM "); got != "alice@example.com" {
		t.Errorf("NormalizeEmail: got %q", got)
	}
}
