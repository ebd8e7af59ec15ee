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

// PostRepository defines the contract for post persistence operations.
type PostRepository interface {
	Insert(ctx context.Context, params models.CreatePostParams) (*models.Post, error)
	// ListWithAuthors returns posts joined with their owner, newest first.
	// A nil userID lists every post; otherwise only that user's posts.
	ListWithAuthors(ctx context.Context, userID *int64) ([]models.PostWithAuthor, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Post, error)
}

type postRepo struct {
	q db.Querier
}

// NewPostRepo returns a PostRepository backed by q.
func NewPostRepo(q db.Querier) PostRepository {
	return &postRepo{q: q}
}

// Insert stores a post. It does not check that the owner exists; a missing
// owner surfaces as db.ErrForeignKeyViolation where the schema enforces it.
// Use Store.CreatePost for the checked variant.
func (r *postRepo) Insert(ctx context.Context, params models.CreatePostParams) (*models.Post, error) {
	now := time.Now().UTC().Truncate(time.Second)
	ins := db.Builder(r.q).
		Insert("posts").
		Columns("user_id", "title", "body", "created_at").
		Values(params.UserID, params.Title, NullString(params.Body), now)

	id, err := insertID(ctx, r.q, ins)
	if err != nil {
		return nil, fmt.Errorf("repo/post: insert: %w", err)
	}
	return &models.Post{
		ID:        id,
		UserID:    params.UserID,
		Title:     params.Title,
		Body:      params.Body,
		CreatedAt: now,
	}, nil
}

func (r *postRepo) ListWithAuthors(ctx context.Context, userID *int64) ([]models.PostWithAuthor, error) {
	sel := db.Builder(r.q).
		Select(
			"p.id AS id",
			"p.title AS title",
			"p.body AS body",
			"p.created_at AS created_at",
			"u.id AS user_id",
			"u.name AS name",
			"u.email AS email",
		).
		From("posts p").
		Join("users u ON u.id = p.user_id").
		OrderBy("p.id DESC")
	if userID != nil {
		sel = sel.Where(sq.Eq{"p.user_id": *userID})
	}

	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("repo/post: build list: %w", err)
	}
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repo/post: list: %w", err)
	}
	defer rows.Close()

	posts := make([]models.PostWithAuthor, 0)
	if err := sqlscan.ScanAll(&posts, rows); err != nil {
		return nil, fmt.Errorf("repo/post: scan: %w", err)
	}
	return posts, nil
}

func (r *postRepo) ListByUser(ctx context.Context, userID int64) ([]models.Post, error) {
	query, args, err := db.Builder(r.q).
		Select("id", "user_id", "title", "body", "created_at").
		From("posts").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("repo/post: build list by user: %w", err)
	}
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repo/post: list by user: %w", err)
	}
	defer rows.Close()

	posts := make([]models.Post, 0)
	if err := sqlscan.ScanAll(&posts, rows); err != nil {
		return nil, fmt.Errorf("repo/post: scan: %w", err)
	}
	return posts, nil
}

var _ PostRepository = (*postRepo)(nil)
