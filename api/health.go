package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// health never touches the database.
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
