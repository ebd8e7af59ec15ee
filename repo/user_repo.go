package repo

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"

	"github.com/Skryldev/postboard/db"
	"github.com/Skryldev/postboard/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// UserRepository interface
// ─────────────────────────────────────────────────────────────────────────────

// UserRepository defines the contract for user persistence operations.
type UserRepository interface {
	Insert(ctx context.Context, params models.CreateUserParams) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Count(ctx context.Context) (int64, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// userRepo — concrete implementation
// ─────────────────────────────────────────────────────────────────────────────

type userRepo struct {
	q db.Querier
}

// NewUserRepo returns a UserRepository backed by q.
// q can be a *db.DB or *db.Tx — both satisfy db.Querier.
func NewUserRepo(q db.Querier) UserRepository {
	return &userRepo{q: q}
}

var userColumns = []string{"id", "name", "email", "created_at"}

// Insert creates a new user and returns the persisted record including the
// generated id. A taken email surfaces as db.ErrDuplicateKey.
func (r *userRepo) Insert(ctx context.Context, params models.CreateUserParams) (*models.User, error) {
	now := time.Now().UTC().Truncate(time.Second)
	ins := db.Builder(r.q).
		Insert("users").
		Columns("name", "email", "created_at").
		Values(params.Name, params.Email, now)

	id, err := insertID(ctx, r.q, ins)
	if err != nil {
		return nil, fmt.Errorf("repo/user: insert: %w", err)
	}
	return &models.User{ID: id, Name: params.Name, Email: params.Email, CreatedAt: now}, nil
}

// GetByID returns a single user by primary key.
// Returns db.ErrNotFound when no record matches.
func (r *userRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query, args, err := db.Builder(r.q).
		Select(userColumns...).
		From("users").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("repo/user: build select: %w", err)
	}
	return scanUser(r.q.QueryRow(ctx, query, args...))
}

// List returns every user, most recently created first.
func (r *userRepo) List(ctx context.Context) ([]models.User, error) {
	query, args, err := db.Builder(r.q).
		Select(userColumns...).
		From("users").
		OrderBy("id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("repo/user: build list: %w", err)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repo/user: list: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	if err := sqlscan.ScanAll(&users, rows); err != nil {
		return nil, fmt.Errorf("repo/user: scan: %w", err)
	}
	return users, nil
}

// Count returns the total number of users.
func (r *userRepo) Count(ctx context.Context) (int64, error) {
	query, args, err := db.Builder(r.q).Select("COUNT(*)").From("users").ToSql()
	if err != nil {
		return 0, fmt.Errorf("repo/user: build count: %w", err)
	}
	var n int64
	if err := r.q.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("repo/user: count: %w", err)
	}
	return n, nil
}

// scanUser scans a single user row in userColumns order.
func scanUser(row *db.Row) (*models.User, error) {
	u := &models.User{}
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
		return nil, fmt.Errorf("repo/user: %w", err)
	}
	return u, nil
}

var _ UserRepository = (*userRepo)(nil)
