package mongodb

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/taskmaster/taskboard/internal/domain/entities"
)

type userDoc struct {
	ID           primitive.ObjectID `bson:"_id"`
	Name         string             `bson:"name"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password"`
	CreatedAt    time.Time          `bson:"createdAt"`
}

type projectDoc struct {
	ID          primitive.ObjectID `bson:"_id"`
	Name        string             `bson:"name"`
	Description string             `bson:"description"`
	Owner       primitive.ObjectID `bson:"owner"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

type subtaskDoc struct {
	ID          primitive.ObjectID  `bson:"_id"`
	Title       string              `bson:"title"`
	Description string              `bson:"description"`
	Assignee    *primitive.ObjectID `bson:"assignee"`
	DueDate     *time.Time          `bson:"dueDate"`
	Completed   bool                `bson:"completed"`
	CreatedAt   time.Time           `bson:"createdAt"`
	UpdatedAt   *time.Time          `bson:"updatedAt,omitempty"`
	CreatedBy   primitive.ObjectID  `bson:"createdBy"`
}

type taskDoc struct {
	ID             primitive.ObjectID  `bson:"_id"`
	Title          string              `bson:"title"`
	Description    string              `bson:"description"`
	Status         string              `bson:"status"`
	Priority       string              `bson:"priority"`
	Project        primitive.ObjectID  `bson:"project"`
	Assignee       *primitive.ObjectID `bson:"assignee"`
	DueDate        *time.Time          `bson:"dueDate"`
	CreatedBy      primitive.ObjectID  `bson:"createdBy"`
	Subtasks       []subtaskDoc        `bson:"subtasks"`
	Labels         []string            `bson:"labels"`
	EstimatedHours *float64            `bson:"estimatedHours"`
	ActualHours    *float64            `bson:"actualHours"`
	CreatedAt      time.Time           `bson:"createdAt"`
	UpdatedAt      time.Time           `bson:"updatedAt"`
}

// oid parses a hex id. Ids are validated before they reach a repository,
// so a malformed one simply matches nothing.
func oid(s string) primitive.ObjectID {
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return primitive.NilObjectID
	}
	return id
}

func oidPtr(s *string) *primitive.ObjectID {
	if s == nil {
		return nil
	}
	id := oid(*s)
	return &id
}

func hexPtr(id *primitive.ObjectID) *string {
	if id == nil {
		return nil
	}
	s := id.Hex()
	return &s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func newUserDoc(u *entities.User) userDoc {
	return userDoc{ID: oid(u.ID), Name: u.Name, Email: u.Email, PasswordHash: u.PasswordHash, CreatedAt: u.CreatedAt}
}

func (d userDoc) toEntity() *entities.User {
	return &entities.User{ID: d.ID.Hex(), Name: d.Name, Email: d.Email, PasswordHash: d.PasswordHash, CreatedAt: d.CreatedAt.UTC()}
}

func newProjectDoc(p *entities.Project) projectDoc {
	return projectDoc{
		ID:          oid(p.ID),
		Name:        p.Name,
		Description: p.Description,
		Owner:       oid(p.OwnerID),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (d projectDoc) toEntity() *entities.Project {
	return &entities.Project{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Description: d.Description,
		OwnerID:     d.Owner.Hex(),
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

func newSubtaskDocs(sts []entities.Subtask) []subtaskDoc {
	docs := make([]subtaskDoc, len(sts))
	for i, st := range sts {
		docs[i] = subtaskDoc{
			ID:          oid(st.ID),
			Title:       st.Title,
			Description: st.Description,
			Assignee:    oidPtr(st.AssigneeID),
			DueDate:     st.DueDate,
			Completed:   st.Completed,
			CreatedAt:   st.CreatedAt,
			UpdatedAt:   st.UpdatedAt,
			CreatedBy:   oid(st.CreatedBy),
		}
	}
	return docs
}

func newTaskDoc(t *entities.Task) taskDoc {
	labels := t.Labels
	if labels == nil {
		labels = []string{}
	}
	return taskDoc{
		ID:             oid(t.ID),
		Title:          t.Title,
		Description:    t.Description,
		Status:         string(t.Status),
		Priority:       string(t.Priority),
		Project:        oid(t.ProjectID),
		Assignee:       oidPtr(t.AssigneeID),
		DueDate:        t.DueDate,
		CreatedBy:      oid(t.CreatedBy),
		Subtasks:       newSubtaskDocs(t.Subtasks),
		Labels:         labels,
		EstimatedHours: t.EstimatedHours,
		ActualHours:    t.ActualHours,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func (d taskDoc) toEntity() *entities.Task {
	subtasks := make([]entities.Subtask, len(d.Subtasks))
	for i, st := range d.Subtasks {
		subtasks[i] = entities.Subtask{
			ID:          st.ID.Hex(),
			Title:       st.Title,
			Description: st.Description,
			AssigneeID:  hexPtr(st.Assignee),
			DueDate:     utcPtr(st.DueDate),
			Completed:   st.Completed,
			CreatedAt:   st.CreatedAt.UTC(),
			UpdatedAt:   utcPtr(st.UpdatedAt),
			CreatedBy:   st.CreatedBy.Hex(),
		}
	}
	labels := d.Labels
	if labels == nil {
		labels = []string{}
	}
	return &entities.Task{
		ID:             d.ID.Hex(),
		Title:          d.Title,
		Description:    d.Description,
		Status:         entities.TaskStatus(d.Status),
		Priority:       entities.Priority(d.Priority),
		ProjectID:      d.Project.Hex(),
		AssigneeID:     hexPtr(d.Assignee),
		DueDate:        utcPtr(d.DueDate),
		CreatedBy:      d.CreatedBy.Hex(),
		Subtasks:       subtasks,
		Labels:         labels,
		EstimatedHours: d.EstimatedHours,
		ActualHours:    d.ActualHours,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
}
