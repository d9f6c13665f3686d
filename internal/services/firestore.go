package services

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/ytakahashi/taskboard/internal/models"
)

const tasksCollection = "tasks"

// FirestoreService stores tasks as documents keyed by task id.
type FirestoreService struct {
	client *firestore.Client
}

func NewFirestoreService(ctx context.Context, projectID string) (*FirestoreService, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return &FirestoreService{
		client: client,
	}, nil
}

func (fs *FirestoreService) Close() error {
	return fs.client.Close()
}

func (fs *FirestoreService) query(where Where) firestore.Query {
	q := fs.client.Collection(tasksCollection).Query
	if where.ID != "" {
		q = q.Where("id", "==", where.ID)
	}
	if where.UserID != "" {
		q = q.Where("userId", "==", where.UserID)
	}
	if where.Status != nil {
		q = q.Where("status", "==", string(*where.Status))
	}
	if where.Important != nil {
		q = q.Where("important", "==", *where.Important)
	}
	return q
}

func (fs *FirestoreService) FindMany(ctx context.Context, where Where, orderBy OrderBy) ([]models.Task, error) {
	q := fs.query(where)
	if orderBy.Field != "" {
		dir := firestore.Asc
		if orderBy.Desc {
			dir = firestore.Desc
		}
		q = q.OrderBy(orderBy.Field, dir)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	tasks := []models.Task{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate tasks: %w", err)
		}

		var task models.Task
		if err := doc.DataTo(&task); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task: %w", err)
		}

		tasks = append(tasks, task)
	}

	return tasks, nil
}

func (fs *FirestoreService) Create(ctx context.Context, task models.Task) error {
	_, err := fs.client.Collection(tasksCollection).Doc(task.ID).Create(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

func (fs *FirestoreService) UpdateMany(ctx context.Context, where Where, fields map[string]any) (int, error) {
	updates := make([]firestore.Update, 0, len(fields))
	for path, value := range fields {
		if s, ok := value.(models.Status); ok {
			value = string(s)
		}
		updates = append(updates, firestore.Update{Path: path, Value: value})
	}

	iter := fs.query(where).Documents(ctx)
	defer iter.Stop()

	var matched int
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return matched, fmt.Errorf("failed to iterate tasks for update: %w", err)
		}

		matched++
		if len(updates) == 0 {
			continue
		}
		if _, err := doc.Ref.Update(ctx, updates); err != nil {
			return matched, fmt.Errorf("failed to update task: %w", err)
		}
	}

	return matched, nil
}

func (fs *FirestoreService) DeleteMany(ctx context.Context, where Where) (int, error) {
	iter := fs.query(where).Documents(ctx)
	defer iter.Stop()

	var deletedCount int
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return deletedCount, fmt.Errorf("failed to iterate tasks for deletion: %w", err)
		}

		if _, err := doc.Ref.Delete(ctx); err != nil {
			return deletedCount, fmt.Errorf("failed to delete task: %w", err)
		}
		deletedCount++
	}

	return deletedCount, nil
}
