package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"conference/internal/subject"
)

type checkInRequest struct {
	Participant bool `json:"participant"`
	Accompany   bool `json:"accompany"`
}

func (a *api) checkIn(c *gin.Context) {
	id, ok := subjectID(c)
	if !ok {
		return
	}
	var req checkInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if !req.Participant && !req.Accompany {
		errorJSON(c, http.StatusBadRequest, "participant or accompany must be true")
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
	now := a.clock.Now().UTC()
	skipped := s.MarkArrival(req.Participant, req.Accompany, now)
	s.UpdatedAt = now
	if err := a.subjects.Save(ctx, s); err != nil {
		a.subjectError(c, err)
		return
	}
	if skipped {
		a.log.Info("accompany check-in skipped, no accompanying person", "id", id)
	}
	c.JSON(http.StatusOK, gin.H{"check_in": s.CheckIn, "accompany_skipped": skipped})
}

type arrivalRow struct {
	ID                    uuid.UUID       `json:"id"`
	UniqueNumber          int64           `json:"unique_number"`
	Name                  string          `json:"name"`
	Email                 string          `json:"email"`
	Institution           string          `json:"institution,omitempty"`
	HasAccompanyingPerson bool            `json:"has_accompanying_person"`
	CheckIn               subject.CheckIn `json:"check_in"`
}

func (a *api) checkInList(c *gin.Context) {
	subjects, ok := a.listAll(c)
	if !ok {
		return
	}
	rows := make([]arrivalRow, 0, len(subjects))
	for _, s := range subjects {
		rows = append(rows, arrivalRow{
			ID:                    s.ID,
			UniqueNumber:          s.UniqueNumber,
			Name:                  s.Name.Full(),
			Email:                 s.Email,
			Institution:           s.Institution,
			HasAccompanyingPerson: s.HasAccompanyingPerson,
			CheckIn:               s.CheckIn,
		})
	}
	c.JSON(http.StatusOK, gin.H{"subjects": rows})
}

type activityRow struct {
	ID                uuid.UUID       `json:"id"`
	UniqueNumber      int64           `json:"unique_number"`
	Name              string          `json:"name"`
	Email             string          `json:"email"`
	Meals             []subject.Entry `json:"meals"`
	Excursions        []subject.Entry `json:"excursions"`
	ExcursionAttended bool            `json:"excursion_attended"`
}

func (a *api) mealsAndExcursions(c *gin.Context) {
	subjects, ok := a.listAll(c)
	if !ok {
		return
	}
	rows := make([]activityRow, 0, len(subjects))
	for _, s := range subjects {
		rows = append(rows, activityRow{
			ID:                s.ID,
			UniqueNumber:      s.UniqueNumber,
			Name:              s.Name.Full(),
			Email:             s.Email,
			Meals:             nonNil(s.Meals),
			Excursions:        nonNil(s.Excursions),
			ExcursionAttended: s.ExcursionAttended,
		})
	}
	c.JSON(http.StatusOK, gin.H{"subjects": rows})
}

func nonNil(log []subject.Entry) []subject.Entry {
	if log == nil {
		return []subject.Entry{}
	}
	return log
}
