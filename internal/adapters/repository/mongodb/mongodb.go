// Package mongodb stores users, projects and tasks as MongoDB documents.
// Subtasks are embedded in their task document.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/taskmaster/taskboard/internal/domain/entities"
	"github.com/taskmaster/taskboard/internal/infrastructure/database"
	"github.com/taskmaster/taskboard/internal/ports"
)

// Collection names
const (
	UsersCollection    = "users"
	ProjectsCollection = "projects"
	TasksCollection    = "tasks"
)

// NewRepositories creates the repositories over m. With transactions the
// project cascade runs in a session transaction, which needs a replica set.
func NewRepositories(m *database.Mongo, transactions bool) *ports.Repositories {
	tasks := m.Database.Collection(TasksCollection)
	return &ports.Repositories{
		Users: &UserRepository{users: m.Database.Collection(UsersCollection)},
		Projects: &ProjectRepository{
			mongo:        m,
			projects:     m.Database.Collection(ProjectsCollection),
			tasks:        tasks,
			transactions: transactions,
		},
		Tasks: &TaskRepository{tasks: tasks},
	}
}

// EnsureIndexes creates the indexes the queries rely on. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		UsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		ProjectsCollection: {
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		TasksCollection: {
			{Keys: bson.D{{Key: "project", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "project", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "assignee", Value: 1}}},
		},
	}

	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", name, err)
		}
	}
	return nil
}

// UserRepository implements ports.UserRepository
type UserRepository struct {
	users *mongo.Collection
}

func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	if _, err := r.users.InsertOne(ctx, newUserDoc(user)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return entities.ErrEmailTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	return r.findOne(ctx, bson.M{"_id": oid(id)})
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) GetByIDs(ctx context.Context, ids []string) ([]*entities.User, error) {
	if len(ids) == 0 {
		return []*entities.User{}, nil
	}

	oids := make([]primitive.ObjectID, len(ids))
	for i, id := range ids {
		oids[i] = oid(id)
	}

	cursor, err := r.users.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, fmt.Errorf("get users by ids: %w", err)
	}
	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}

	users := make([]*entities.User, len(docs))
	for i, d := range docs {
		users[i] = d.toEntity()
	}
	return users, nil
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*entities.User, error) {
	var doc userDoc
	if err := r.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entities.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return doc.toEntity(), nil
}

// ProjectRepository implements ports.ProjectRepository
type ProjectRepository struct {
	mongo        *database.Mongo
	projects     *mongo.Collection
	tasks        *mongo.Collection
	transactions bool
}

func (r *ProjectRepository) Create(ctx context.Context, project *entities.Project) error {
	if _, err := r.projects.InsertOne(ctx, newProjectDoc(project)); err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*entities.Project, error) {
	return r.findOne(ctx, bson.M{"_id": oid(id)})
}

func (r *ProjectRepository) GetOwned(ctx context.Context, id, ownerID string) (*entities.Project, error) {
	return r.findOne(ctx, bson.M{"_id": oid(id), "owner": oid(ownerID)})
}

func (r *ProjectRepository) Update(ctx context.Context, project *entities.Project) error {
	update := bson.M{"$set": bson.M{
		"name":        project.Name,
		"description": project.Description,
		"updatedAt":   project.UpdatedAt,
	}}

	result, err := r.projects.UpdateOne(ctx, bson.M{"_id": oid(project.ID)}, update)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if result.MatchedCount == 0 {
		return entities.ErrProjectNotFound
	}
	return nil
}

// Delete removes the tasks first and the project last, so a retry after a
// partial failure still finds the project and finishes the job.
func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	if r.transactions {
		return r.mongo.WithTransaction(ctx, func(sc mongo.SessionContext) error {
			return r.cascade(sc, id)
		})
	}
	return r.cascade(ctx, id)
}

func (r *ProjectRepository) cascade(ctx context.Context, id string) error {
	pid := oid(id)
	if _, err := r.tasks.DeleteMany(ctx, bson.M{"project": pid}); err != nil {
		return fmt.Errorf("delete project tasks: %w", err)
	}

	result, err := r.projects.DeleteOne(ctx, bson.M{"_id": pid})
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if result.DeletedCount == 0 {
		return entities.ErrProjectNotFound
	}
	return nil
}

func (r *ProjectRepository) ListByOwner(ctx context.Context, ownerID string) ([]*entities.Project, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.projects.Find(ctx, bson.M{"owner": oid(ownerID)}, opts)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	var docs []projectDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode projects: %w", err)
	}

	projects := make([]*entities.Project, len(docs))
	for i, d := range docs {
		projects[i] = d.toEntity()
	}
	return projects, nil
}

func (r *ProjectRepository) findOne(ctx context.Context, filter bson.M) (*entities.Project, error) {
	var doc projectDoc
	if err := r.projects.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entities.ErrProjectNotFound
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return doc.toEntity(), nil
}

// TaskRepository implements ports.TaskRepository
type TaskRepository struct {
	tasks *mongo.Collection
}

func (r *TaskRepository) Create(ctx context.Context, task *entities.Task) error {
	if _, err := r.tasks.InsertOne(ctx, newTaskDoc(task)); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id string) (*entities.Task, error) {
	var doc taskDoc
	if err := r.tasks.FindOne(ctx, bson.M{"_id": oid(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entities.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return doc.toEntity(), nil
}

func (r *TaskRepository) Update(ctx context.Context, task *entities.Task) error {
	doc := newTaskDoc(task)
	update := bson.M{"$set": bson.M{
		"title":          doc.Title,
		"description":    doc.Description,
		"status":         doc.Status,
		"priority":       doc.Priority,
		"assignee":       doc.Assignee,
		"dueDate":        doc.DueDate,
		"subtasks":       doc.Subtasks,
		"labels":         doc.Labels,
		"estimatedHours": doc.EstimatedHours,
		"actualHours":    doc.ActualHours,
		"updatedAt":      doc.UpdatedAt,
	}}
	return r.update(ctx, task.ID, update)
}

func (r *TaskRepository) UpdateStatus(ctx context.Context, id string, status entities.TaskStatus, updatedAt time.Time) error {
	return r.update(ctx, id, bson.M{"$set": bson.M{"status": string(status), "updatedAt": updatedAt}})
}

func (r *TaskRepository) update(ctx context.Context, id string, update bson.M) error {
	result, err := r.tasks.UpdateOne(ctx, bson.M{"_id": oid(id)}, update)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if result.MatchedCount == 0 {
		return entities.ErrTaskNotFound
	}
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	result, err := r.tasks.DeleteOne(ctx, bson.M{"_id": oid(id)})
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if result.DeletedCount == 0 {
		return entities.ErrTaskNotFound
	}
	return nil
}

// taskQuery translates a filter into a query document. The search term is
// quoted, so it always matches literally.
func taskQuery(filter ports.TaskFilter) bson.M {
	projects := make([]primitive.ObjectID, len(filter.ProjectIDs))
	for i, id := range filter.ProjectIDs {
		projects[i] = oid(id)
	}

	q := bson.M{"project": bson.M{"$in": projects}}
	if filter.Status != nil {
		q["status"] = string(*filter.Status)
	}
	if filter.Priority != nil {
		q["priority"] = string(*filter.Priority)
	}
	if filter.AssigneeID != nil {
		q["assignee"] = oid(*filter.AssigneeID)
	}
	if filter.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		q["$or"] = bson.A{
			bson.M{"title": pattern},
			bson.M{"description": pattern},
		}
	}
	return q
}

func (r *TaskRepository) List(ctx context.Context, filter ports.TaskFilter) ([]*entities.Task, int64, error) {
	if len(filter.ProjectIDs) == 0 {
		return []*entities.Task{}, 0, nil
	}

	q := taskQuery(filter)
	total, err := r.tasks.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(filter.Offset))
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := r.tasks.Find(ctx, q, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	var docs []taskDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode tasks: %w", err)
	}

	tasks := make([]*entities.Task, len(docs))
	for i, d := range docs {
		tasks[i] = d.toEntity()
	}
	return tasks, total, nil
}

func (r *TaskRepository) CountByStatus(ctx context.Context, projectIDs []string) (map[string]entities.TaskCounts, error) {
	counts := make(map[string]entities.TaskCounts)
	if len(projectIDs) == 0 {
		return counts, nil
	}

	oids := make([]primitive.ObjectID, len(projectIDs))
	for i, id := range projectIDs {
		oids[i] = oid(id)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"project": bson.M{"$in": oids}}}},
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"project": "$project", "status": "$status"},
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := r.tasks.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("count tasks by status: %w", err)
	}
	var rows []struct {
		ID struct {
			Project primitive.ObjectID `bson:"project"`
			Status  string             `bson:"status"`
		} `bson:"_id"`
		Count int64 `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode task counts: %w", err)
	}

	for _, row := range rows {
		key := row.ID.Project.Hex()
		c := counts[key]
		c.Add(entities.TaskStatus(row.ID.Status), row.Count)
		counts[key] = c
	}
	return counts, nil
}

type bucket struct {
	Key   interface{} `bson:"_id"`
	Count int64       `bson:"count"`
}

// Statistics computes every breakdown in one $facet stage
func (r *TaskRepository) Statistics(ctx context.Context, projectID string) (*entities.TaskStatistics, error) {
	groupBy := func(field string) bson.A {
		return bson.A{bson.M{"$group": bson.M{"_id": "$" + field, "count": bson.M{"$sum": 1}}}}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"project": oid(projectID)}}},
		{{Key: "$facet", Value: bson.M{
			"total":      bson.A{bson.M{"$count": "count"}},
			"byStatus":   groupBy("status"),
			"byPriority": groupBy("priority"),
			"byAssignee": append(bson.A{bson.M{"$match": bson.M{"assignee": bson.M{"$ne": nil}}}}, groupBy("assignee")...),
		}}},
	}

	cursor, err := r.tasks.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("task statistics: %w", err)
	}
	var facets []struct {
		Total      []bucket `bson:"total"`
		ByStatus   []bucket `bson:"byStatus"`
		ByPriority []bucket `bson:"byPriority"`
		ByAssignee []bucket `bson:"byAssignee"`
	}
	if err := cursor.All(ctx, &facets); err != nil {
		return nil, fmt.Errorf("decode task statistics: %w", err)
	}

	stats := &entities.TaskStatistics{
		ByStatus:   []entities.GroupCount{},
		ByPriority: []entities.GroupCount{},
		ByAssignee: []entities.GroupCount{},
	}
	if len(facets) == 0 {
		return stats, nil
	}

	f := facets[0]
	if len(f.Total) > 0 {
		stats.Total = f.Total[0].Count
	}
	stats.ByStatus = groupCounts(f.ByStatus)
	stats.ByPriority = groupCounts(f.ByPriority)
	stats.ByAssignee = groupCounts(f.ByAssignee)
	for _, g := range stats.ByStatus {
		if entities.TaskStatus(g.Key) == entities.TaskStatusDone {
			stats.Completed = g.Count
		}
	}
	return stats, nil
}

func groupCounts(buckets []bucket) []entities.GroupCount {
	out := make([]entities.GroupCount, 0, len(buckets))
	for _, b := range buckets {
		var key string
		switch k := b.Key.(type) {
		case string:
			key = k
		case primitive.ObjectID:
			key = k.Hex()
		default:
			continue
		}
		out = append(out, entities.GroupCount{Key: key, Count: b.Count})
	}
	entities.SortGroupCounts(out)
	return out
}
