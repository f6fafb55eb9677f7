package tasks

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SetUserResetTokenSQL stamps a fresh reset token on a user. A later
// call overwrites any token still pending, so the newest link wins.
var SetUserResetTokenSQL = `UPDATE "users" AS "usr"
SET
	"reset_token" = ?,
	"reset_token_expires_at" = ?
WHERE
	"usr"."id" = ?
RETURNING *;`

// ResetUserPasswordSQL replaces the password hash and clears the reset
// fields in one statement.
// NOTE: Updating using the ORM fails due to a bug, it wont reset
// reset_token, reset_token_expires_at fields.
var ResetUserPasswordSQL = `UPDATE "users" AS "usr"
SET
	"password_hash" = ?,
	"reset_token" = NULL,
	"reset_token_expires_at" = NULL
WHERE
	"usr"."id" = ?
RETURNING *;`

type Users interface {
	repository.Repository[*User]

	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	GetByEmailWithPassword(ctx context.Context, email string) (*User, error)
	GetByEmailWithPasswordTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByIDWithPassword(ctx context.Context, id uuid.UUID) (*User, error)
	GetByIDWithPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)
	GetByResetToken(ctx context.Context, token string, now time.Time) (*User, error)
	GetByResetTokenTx(ctx context.Context, tx bun.IDB, token string, now time.Time) (*User, error)

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error)

	SetResetToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) (*User, error)
	SetResetTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string, expiresAt time.Time) (*User, error)
	ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error

	ListAll(ctx context.Context) ([]*User, error)
	UpdateFields(ctx context.Context, id uuid.UUID, update UserUpdate) (*User, error)
	UpdateFieldsTx(ctx context.Context, tx bun.IDB, id uuid.UUID, update UserUpdate) (*User, error)
	Remove(ctx context.Context, id uuid.UUID) error
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	return a.CreateTx(ctx, tx, user)
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	return a.selectOne(ctx, tx, false, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.email = ?", normalizeEmail(email))
	}, map[string]any{"email": email})
}

func (a *users) GetByEmailWithPassword(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailWithPasswordTx(ctx, a.db, email)
}

func (a *users) GetByEmailWithPasswordTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	return a.selectOne(ctx, tx, true, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.email = ?", normalizeEmail(email))
	}, map[string]any{"email": email})
}

// FindByID resolves a user by primary key with the password hash
// excluded. Flows that verify or replace credentials use the
// WithPassword variants instead.
func (a *users) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.getByIDTx(ctx, a.db, id)
}

func (a *users) GetByIDWithPassword(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.GetByIDWithPasswordTx(ctx, a.db, id)
}

func (a *users) GetByIDWithPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	return a.selectOne(ctx, tx, true, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.id = ?", id.String())
	}, map[string]any{"id": id.String()})
}

func (a *users) GetByResetToken(ctx context.Context, token string, now time.Time) (*User, error) {
	return a.GetByResetTokenTx(ctx, a.db, token, now)
}

// GetByResetTokenTx matches a user holding the token whose window is
// still open. A token past its expiry is indistinguishable from a token
// that never existed.
func (a *users) GetByResetTokenTx(ctx context.Context, tx bun.IDB, token string, now time.Time) (*User, error) {
	return a.selectOne(ctx, tx, true, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Where("?TableAlias.reset_token = ?", token).
			Where("?TableAlias.reset_token_expires_at > ?", now)
	}, map[string]any{"reset_token": token})
}

func (a *users) SetResetToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) (*User, error) {
	return a.SetResetTokenTx(ctx, a.db, id, token, expiresAt)
}

func (a *users) SetResetTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string, expiresAt time.Time) (*User, error) {
	res, err := a.Repository.RawTx(ctx, tx, SetUserResetTokenSQL, token, expiresAt, id.String())
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return res[0], nil
}

func (a *users) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.ResetPasswordTx(ctx, a.db, id, passwordHash)
}

func (a *users) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := a.Repository.RawTx(ctx, tx, ResetUserPasswordSQL, passwordHash, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

// ListAll returns every user ordered by creation, password hash
// excluded.
func (a *users) ListAll(ctx context.Context) ([]*User, error) {
	records := []*User{}
	err := a.db.NewSelect().
		Model(&records).
		ExcludeColumn("password_hash").
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (a *users) UpdateFields(ctx context.Context, id uuid.UUID, update UserUpdate) (*User, error) {
	return a.UpdateFieldsTx(ctx, a.db, id, update)
}

// UpdateFieldsTx persists only the fields the update names. Password is
// expected to arrive already hashed.
func (a *users) UpdateFieldsTx(ctx context.Context, tx bun.IDB, id uuid.UUID, update UserUpdate) (*User, error) {
	if update.IsZero() {
		return a.getByIDTx(ctx, tx, id)
	}

	q := tx.NewUpdate().
		Model((*User)(nil)).
		Where("?TableAlias.id = ?", id.String()).
		Set("updated_at = ?", time.Now())

	if update.Email != nil {
		q.Set("email = ?", normalizeEmail(*update.Email))
	}
	if update.IsActive != nil {
		q.Set("is_active = ?", *update.IsActive)
	}
	if update.Role != nil {
		q.Set("user_role = ?", *update.Role)
	}
	if update.Password != nil {
		q.Set("password_hash = ?", *update.Password)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return nil, err
	}

	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return a.getByIDTx(ctx, tx, id)
}

func (a *users) getByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	return a.selectOne(ctx, tx, false, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.id = ?", id.String())
	}, map[string]any{"id": id.String()})
}

func (a *users) Remove(ctx context.Context, id uuid.UUID) error {
	res, err := a.db.NewDelete().
		Model((*User)(nil)).
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

func (a *users) selectOne(ctx context.Context, tx bun.IDB, withPassword bool, where func(*bun.SelectQuery) *bun.SelectQuery, meta map[string]any) (*User, error) {
	record := &User{}
	q := tx.NewSelect().Model(record)

	if !withPassword {
		q.ExcludeColumn("password_hash")
	}

	err := where(q).Limit(1).Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().WithMetadata(meta)
		}
		return nil, err
	}

	return record, nil
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	record.Email = normalizeEmail(record.Email)

	if record.Role == "" {
		record.Role = RoleUser
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
