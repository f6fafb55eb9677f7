package tasks

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Tasks interface {
	repository.Repository[*Task]

	Create(ctx context.Context, record *Task, criteria ...repository.InsertCriteria) (*Task, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Task, criteria ...repository.InsertCriteria) (*Task, error)

	FindByID(ctx context.Context, id uuid.UUID) (*Task, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Task, error)
	UpdateFields(ctx context.Context, id uuid.UUID, update TaskUpdate) (*Task, error)
	Remove(ctx context.Context, id uuid.UUID) error
}

type tasksRepo struct {
	repository.Repository[*Task]
	db *bun.DB
}

var (
	_ Tasks                        = (*tasksRepo)(nil)
	_ repository.Repository[*Task] = (*tasksRepo)(nil)
)

func NewTasksRepository(db *bun.DB) Tasks {
	repo := repository.NewRepository[*Task](db, repository.ModelHandlers[*Task]{
		NewRecord: func() *Task { return &Task{} },
		GetID: func(t *Task) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *Task, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
	})

	return &tasksRepo{
		Repository: repo,
		db:         db,
	}
}

func (a *tasksRepo) Create(ctx context.Context, record *Task, criteria ...repository.InsertCriteria) (*Task, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *tasksRepo) CreateTx(ctx context.Context, tx bun.IDB, record *Task, criteria ...repository.InsertCriteria) (*Task, error) {
	if record != nil && record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *tasksRepo) FindByID(ctx context.Context, id uuid.UUID) (*Task, error) {
	record := &Task{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"id": id.String(),
				})
		}
		return nil, err
	}
	return record, nil
}

func (a *tasksRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Task, error) {
	records := []*Task{}
	err := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", ownerID.String()).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (a *tasksRepo) UpdateFields(ctx context.Context, id uuid.UUID, update TaskUpdate) (*Task, error) {
	if update.Title == nil {
		return a.FindByID(ctx, id)
	}

	res, err := a.db.NewUpdate().
		Model((*Task)(nil)).
		Where("?TableAlias.id = ?", id.String()).
		Set("title = ?", *update.Title).
		Set("updated_at = ?", time.Now()).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return a.FindByID(ctx, id)
}

func (a *tasksRepo) Remove(ctx context.Context, id uuid.UUID) error {
	res, err := a.db.NewDelete().
		Model((*Task)(nil)).
		Where("?TableAlias.id = ?", id.String()).
		Exec(ctx)
	if err != nil {
		return err
	}

	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}
