package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Skryldev/postboard/db"
	"github.com/Skryldev/postboard/models"
)

const (
	msgUserFieldsRequired = "name and email are required"
	msgEmailTaken         = "Email already exists"
	msgListUsersFailed    = "Failed to list users"
	msgCreateUserFailed   = "Failed to create user"
	msgUserNotFound       = "User not found"
	msgUserPostsFailed    = "Failed to fetch user posts"
)

type createUserRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required"`
}

type createUserResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// userPost is a post listed under its owner, so the owner is not repeated.
type userPost struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Body      *string   `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type userPostsResponse struct {
	User  *models.User `json:"user"`
	Posts []userPost   `json:"posts"`
}

func (s *Server) listUsers(c *gin.Context) {
	users, err := s.store.Users.List(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, msgListUsersFailed, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (s *Server) createUser(c *gin.Context) {
	var req createUserRequest
	if !bindJSON(c, &req, msgUserFieldsRequired) {
		return
	}

	u, err := s.store.Users.Insert(c.Request.Context(), models.CreateUserParams{
		Name:  req.Name,
		Email: req.Email,
	})
	switch {
	case db.IsDuplicateKey(err):
		fail(c, http.StatusConflict, msgEmailTaken, err)
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, msgCreateUserFailed, err)
		return
	}
	c.JSON(http.StatusCreated, createUserResponse{ID: u.ID, Name: u.Name, Email: u.Email})
}

// userPosts answers GET /users/:id/posts. An id that is not an integer
// cannot match any user and is reported as not found.
func (s *Server) userPosts(c *gin.Context) {
	ctx := c.Request.Context()
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": msgUserNotFound})
		return
	}

	u, err := s.store.Users.GetByID(ctx, id)
	switch {
	case db.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": msgUserNotFound})
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, msgUserPostsFailed, err)
		return
	}

	posts, err := s.store.Posts.ListByUser(ctx, id)
	if err != nil {
		fail(c, http.StatusInternalServerError, msgUserPostsFailed, err)
		return
	}

	out := userPostsResponse{User: u, Posts: make([]userPost, 0, len(posts))}
	for _, p := range posts {
		out.Posts = append(out.Posts, userPost{
			ID:        p.ID,
			Title:     p.Title,
			Body:      p.Body,
			CreatedAt: p.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, out)
}
