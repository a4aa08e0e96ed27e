package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"conference/internal/auth"
	"conference/internal/subject"
)

// SubjectAccounts lets registered subjects log in with their registration email.
func SubjectAccounts(subjects subject.Repository) auth.AccountFinder {
	return func(ctx context.Context, email string) (*auth.Account, error) {
		s, err := subjects.FindByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, subject.ErrNotFound) {
				return nil, auth.ErrAccountNotFound
			}
			return nil, err
		}
		return &auth.Account{
			ID:           s.ID,
			Email:        s.Email,
			PasswordHash: s.PasswordHash,
			Role:         auth.RoleSubject,
			FullName:     s.Name.Full(),
			CreatedAt:    s.CreatedAt,
		}, nil
	}
}

func (a *api) subjectLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	acc, pair, err := a.auth.LoginSubject(c.Request.Context(), req.Email, req.Password, c.ClientIP())
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			errorJSON(c, http.StatusUnauthorized, "invalid email or password")
			return
		}
		a.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": acc, "tokens": pair})
}

// ownID returns the subject id of the calling subject token.
func ownID(c *gin.Context) (uuid.UUID, bool) {
	claims, _ := auth.ClaimsFrom(c)
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		errorJSON(c, http.StatusUnauthorized, "invalid token")
		return uuid.Nil, false
	}
	return id, true
}

func (a *api) me(c *gin.Context) {
	id, ok := ownID(c)
	if !ok {
		return
	}
	s, err := a.subjects.Load(c.Request.Context(), id)
	if err != nil {
		a.subjectError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subject": s})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=NewPassword"`
}

func (a *api) changePassword(c *gin.Context) {
	id, ok := ownID(c)
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if len(req.NewPassword) < auth.MinPasswordLength {
		errorJSON(c, http.StatusBadRequest, fmt.Sprintf("new_password must be at least %d characters", auth.MinPasswordLength))
		return
	}
	ctx := c.Request.Context()

	unlock := a.locks.Lock(id.String())
	defer unlock()
	s, err := a.subjects.Load(ctx, id)
	if err != nil {
		a.subjectError(c, err)
		return
	}
	if !auth.CheckPassword(s.PasswordHash, req.CurrentPassword) {
		errorJSON(c, http.StatusUnauthorized, "current password is incorrect")
		return
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		a.internalError(c, err)
		return
	}
	s.PasswordHash = hash
	s.UpdatedAt = a.clock.Now().UTC()
	if err := a.subjects.Save(ctx, s); err != nil {
		a.subjectError(c, err)
		return
	}
	a.log.Info("subject changed password", "id", id)
	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}
