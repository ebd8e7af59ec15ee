package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/Skryldev/postboard/db"
	"github.com/Skryldev/postboard/models"
)

// ErrUserNotFound is returned by Store.CreatePost when the referenced owner
// does not exist.
var ErrUserNotFound = errors.New("repo: user not found")

// Store bundles the repositories over one pool and runs multi-statement
// units of work inside a transaction.
type Store struct {
	db    *db.DB
	Users UserRepository
	Posts PostRepository
}

// NewStore returns a Store whose repositories share d.
func NewStore(d *db.DB) *Store {
	return &Store{
		db:    d,
		Users: NewUserRepo(d),
		Posts: NewPostRepo(d),
	}
}

// CreatePost checks that the owner exists and inserts the post in one
// transaction. A foreign key violation on insert is reported the same way
// as a failed check, so a missing owner is always ErrUserNotFound.
func (s *Store) CreatePost(ctx context.Context, params models.CreatePostParams) (*models.Post, error) {
	var post *models.Post
	err := s.db.ExecTx(ctx, func(tx *db.Tx) error {
		if _, err := NewUserRepo(tx).GetByID(ctx, params.UserID); err != nil {
			return err
		}
		p, err := NewPostRepo(tx).Insert(ctx, params)
		if err != nil {
			return err
		}
		post = p
		return nil
	})
	switch {
	case err == nil:
		return post, nil
	case db.IsNotFound(err), db.IsForeignKeyViolation(err):
		return nil, fmt.Errorf("%w: id %d", ErrUserNotFound, params.UserID)
	default:
		return nil, err
	}
}

// insertID runs ins and returns the generated primary key, using
// RETURNING on dialects that support it and LastInsertId elsewhere.
func insertID(ctx context.Context, q db.Querier, ins sq.InsertBuilder) (int64, error) {
	if q.Driver().InsertReturning() {
		query, args, err := ins.Suffix("RETURNING id").ToSql()
		if err != nil {
			return 0, fmt.Errorf("build insert: %w", err)
		}
		var id int64
		if err := q.QueryRow(ctx, query, args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	query, args, err := ins.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}
	res, err := q.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// NullString converts *string to sql.NullString for optional columns.
func NullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
