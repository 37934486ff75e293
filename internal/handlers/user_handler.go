package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "dayledger/internal/errors"
	"dayledger/internal/ledger"
)

// UserHandler exposes registration. Login and token issuance belong to
// the auth collaborator in front of this service.
type UserHandler struct {
	users *ledger.Users
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users *ledger.Users) *UserHandler {
	return &UserHandler{users: users}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

// Register creates a new user.
func (h *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInvalidInput, err))
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}
