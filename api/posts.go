package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Skryldev/postboard/models"
	"github.com/Skryldev/postboard/repo"
)

const (
	msgPostFieldsRequired = "user_id and title are required"
	msgListPostsFailed    = "Failed to list posts"
	msgCreatePostFailed   = "Failed to create post"
)

type createPostRequest struct {
	UserID int64   `json:"user_id" binding:"required"`
	Title  string  `json:"title" binding:"required"`
	Body   *string `json:"body"`
}

type createPostResponse struct {
	ID     int64   `json:"id"`
	UserID int64   `json:"user_id"`
	Title  string  `json:"title"`
	Body   *string `json:"body"`
}

// listPosts answers GET /posts[?user_id=]. The filter is not checked for
// existence; a user_id that is unknown or not an integer matches nothing.
func (s *Server) listPosts(c *gin.Context) {
	var filter *int64
	if raw := c.Query("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusOK, []models.PostWithAuthor{})
			return
		}
		filter = &id
	}

	posts, err := s.store.Posts.ListWithAuthors(c.Request.Context(), filter)
	if err != nil {
		fail(c, http.StatusInternalServerError, msgListPostsFailed, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (s *Server) createPost(c *gin.Context) {
	var req createPostRequest
	if !bindJSON(c, &req, msgPostFieldsRequired) {
		return
	}
	if req.Body != nil && *req.Body == "" {
		req.Body = nil
	}

	p, err := s.store.CreatePost(c.Request.Context(), models.CreatePostParams{
		UserID: req.UserID,
		Title:  req.Title,
		Body:   req.Body,
	})
	switch {
	case errors.Is(err, repo.ErrUserNotFound):
		fail(c, http.StatusNotFound, msgUserNotFound, err)
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, msgCreatePostFailed, err)
		return
	}
	c.JSON(http.StatusCreated, createPostResponse{
		ID:     p.ID,
		UserID: p.UserID,
		Title:  p.Title,
		Body:   p.Body,
	})
}
