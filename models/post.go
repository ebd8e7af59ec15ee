package models

import "time"

// Post represents a row in the "posts" table. Body is nil for posts
// created without one.
type Post struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Title     string    `db:"title" json:"title"`
	Body      *string   `db:"body" json:"body"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PostWithAuthor is a post joined with its owner, the owner's columns
// flattened next to the post's.
type PostWithAuthor struct {
	ID        int64     `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Body      *string   `db:"body" json:"body"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
}

// CreatePostParams holds the fields required to create a new post.
type CreatePostParams struct {
	UserID int64
	Title  string
	Body   *string
}
