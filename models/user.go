package models

import "time"

// User represents a row in the "users" table.
// Fields map 1-to-1 with columns; posts are never loaded implicitly.
type User struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CreateUserParams holds the fields required to create a new user.
// Keeping input types separate from the domain model prevents accidental
// mass-assignment and makes API contracts explicit.
type CreateUserParams struct {
	Name  string
	Email string
}
