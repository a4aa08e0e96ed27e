package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"conference/internal/auth"
)

type createVolunteerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name" binding:"max=200"`
	Contact  string `json:"contact" binding:"max=30"`
}

type updateVolunteerRequest struct {
	Email    *string `json:"email" binding:"omitempty,email"`
	Password *string `json:"password"`
	FullName *string `json:"full_name" binding:"omitempty,max=200"`
	Contact  *string `json:"contact" binding:"omitempty,max=30"`
}

func (r updateVolunteerRequest) empty() bool {
	return r.Email == nil && r.Password == nil && r.FullName == nil && r.Contact == nil
}

// accountError maps auth errors for the volunteer routes.
func (a *api) accountError(c *gin.Context, err error) {
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		errorJSON(c, http.StatusBadRequest, strings.TrimPrefix(verr.Error(), "auth: "))
	case errors.Is(err, auth.ErrDuplicateAccount):
		errorJSON(c, http.StatusBadRequest, "an account already exists with this email address")
	case errors.Is(err, auth.ErrAccountNotFound):
		errorJSON(c, http.StatusNotFound, "volunteer not found")
	default:
		a.internalError(c, err)
	}
}

func volunteerID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "id must be a uuid")
		return uuid.Nil, false
	}
	return id, true
}

func (a *api) listVolunteers(c *gin.Context) {
	vols, err := a.auth.ListAccounts(c.Request.Context(), auth.RoleVolunteer)
	if err != nil {
		a.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"volunteers": vols})
}

func (a *api) createVolunteer(c *gin.Context) {
	var req createVolunteerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	acc, err := a.auth.CreateAccountWithProfile(c.Request.Context(), req.Email, req.Password, auth.RoleVolunteer,
		auth.Profile{FullName: req.FullName, Contact: req.Contact})
	if err != nil {
		a.accountError(c, err)
		return
	}
	a.log.Info("volunteer created", "id", acc.ID, "email", acc.Email)
	c.JSON(http.StatusCreated, gin.H{"volunteer": acc})
}

func (a *api) updateVolunteer(c *gin.Context) {
	id, ok := volunteerID(c)
	if !ok {
		return
	}
	var req updateVolunteerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if req.empty() {
		errorJSON(c, http.StatusBadRequest, "no fields to update")
		return
	}
	acc, err := a.auth.UpdateAccount(c.Request.Context(), id, auth.RoleVolunteer, auth.AccountUpdate{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Contact:  req.Contact,
	})
	if err != nil {
		a.accountError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"volunteer": acc})
}

func (a *api) deleteVolunteer(c *gin.Context) {
	id, ok := volunteerID(c)
	if !ok {
		return
	}
	if err := a.auth.DeleteAccount(c.Request.Context(), id, auth.RoleVolunteer); err != nil {
		a.accountError(c, err)
		return
	}
	a.log.Info("volunteer deleted", "id", id)
	c.Status(http.StatusNoContent)
}
