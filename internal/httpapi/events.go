package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"conference/internal/outcome"
	"conference/internal/recorder"
	"conference/internal/subject"
)

type recordRequest struct {
	SubjectID string `json:"subject_id" binding:"required,uuid"`
	MealType  string `json:"meal_type"`
}

// record marks today's attendance, meal or excursion for a subject.
func (a *api) record(kind subject.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req recordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
		res, err := a.recorder.Record(c.Request.Context(), recorder.Request{
			SubjectID: uuid.MustParse(req.SubjectID),
			Kind:      kind,
			SubType:   req.MealType,
		})
		if err != nil {
			a.internalError(c, err)
			return
		}
		if res.Outcome != outcome.Ok {
			outcomeError(c, res.Outcome, res.Reason)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": res.Outcome, "entry": res.Entry, "log": res.Log})
	}
}

type overrideRequest struct {
	Status *bool  `json:"status" binding:"required"`
	Day    string `json:"day" binding:"omitempty,datetime=2006-01-02"`
}

// override rewrites the status of an already recorded entry.
func (a *api) override(kind subject.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := subjectID(c)
		if !ok {
			return
		}
		var req overrideRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
		res, err := a.recorder.UpdateStatus(c.Request.Context(), recorder.UpdateRequest{
			SubjectID: id,
			Kind:      kind,
			Match:     recorder.Matcher{SubType: c.Param("mealType"), Day: req.Day},
			Status:    *req.Status,
		})
		if err != nil {
			a.internalError(c, err)
			return
		}
		if res.Outcome != outcome.Ok {
			outcomeError(c, res.Outcome, res.Reason)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// outcomeError answers a non-Ok outcome. AlreadyRecorded is not a failure and keeps
// status 200.
func outcomeError(c *gin.Context, o outcome.Outcome, reason string) {
	if o == outcome.AlreadyRecorded {
		c.JSON(http.StatusOK, gin.H{"status": o, "message": reason})
		return
	}
	errorJSON(c, outcomeStatus(o), reason)
}
