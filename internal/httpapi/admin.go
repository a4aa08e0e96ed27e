package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"conference/internal/auth"
	"conference/internal/livestream"
	"conference/internal/outcome"
	"conference/internal/subject"
	"conference/internal/verification"
)

const (
	defaultChatLimit = 50
	maxChatLimit     = 500
)

type verifyRequest struct {
	Outcome string `json:"outcome"`
	Remarks string `json:"remarks" binding:"max=1000"`
}

func (a *api) verify(c *gin.Context) {
	id, ok := subjectID(c)
	if !ok {
		return
	}
	var req verifyRequest
	// An empty body means accept.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}
	if req.Outcome == "" {
		req.Outcome = string(subject.StatusAccepted)
	}
	claims, _ := auth.ClaimsFrom(c)

	res, err := a.verifier.Verify(c.Request.Context(), verification.Request{
		SubjectID:  id,
		Outcome:    subject.Status(req.Outcome),
		AdminEmail: claims.Email,
		Remarks:    req.Remarks,
	})
	if err != nil {
		a.internalError(c, err)
		return
	}
	if res.Outcome != outcome.Ok {
		c.AbortWithStatusJSON(outcomeStatus(res.Outcome), gin.H{"error": res.Reason, "status": res.Status})
		return
	}
	a.log.Info("subject verified", "id", id, "status", res.Status, "by", claims.Email)
	c.JSON(http.StatusOK, res)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (a *api) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	acc, pair, err := a.auth.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP())
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

func (a *api) refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	pair, err := a.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			errorJSON(c, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		a.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": pair})
}

func (a *api) publishStream(c *gin.Context) {
	var req struct {
		URL string `json:"url" binding:"required,youtube"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	st, err := a.streams.Publish(c.Request.Context(), req.URL)
	if err != nil {
		if errors.Is(err, livestream.ErrInvalidURL) {
			errorJSON(c, http.StatusBadRequest, "url must be a YouTube link")
			return
		}
		a.internalError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"livestream": st})
}

func (a *api) currentStream(c *gin.Context) {
	st, err := a.streams.Current(c.Request.Context())
	if err != nil {
		if errors.Is(err, livestream.ErrNotFound) {
			errorJSON(c, http.StatusNotFound, "no live stream published")
			return
		}
		a.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"livestream": st})
}

func (a *api) chatHistory(c *gin.Context) {
	limit := defaultChatLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			errorJSON(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxChatLimit)
	}
	msgs, err := a.chat.Recent(c.Request.Context(), limit)
	if err != nil {
		a.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}
