package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ajharbinger/rei-deal-drop/internal/auth"
	"github.com/ajharbinger/rei-deal-drop/internal/errors"
)

// respondError writes an AppError-derived status and message
func respondError(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)
	if status >= 500 {
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": errors.PublicMessage(err)})
}

// currentUser returns the authenticated user's ID or writes a 401
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	id, ok := auth.UserID(c)
	if !ok {
		respondError(c, errors.Unauthorized("user not authenticated", nil))
		return uuid.Nil, false
	}
	return id, true
}

// pathID parses the :id route parameter or writes a 400
func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, errors.InvalidInput("invalid deal id", err))
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.InvalidInput("invalid "+key, err).WithDetails(raw)
	}
	return v, nil
}

func now() time.Time {
	return time.Now()
}
