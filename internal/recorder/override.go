package recorder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"conference/internal/outcome"
	"conference/internal/subject"
)

// Matcher selects the entry an override targets. An empty Day selects the most
// recent entry. SubType is required for meals.
type Matcher struct {
	SubType string
	Day     string
}

// UpdateRequest overwrites the status of a recorded action.
type UpdateRequest struct {
	SubjectID uuid.UUID
	Kind      subject.Kind
	Match     Matcher
	Status    bool
}

// UpdateResult is the outcome of UpdateStatus. Entry is nil for excursions, which
// carry a single aggregate flag instead.
type UpdateResult struct {
	Outcome           outcome.Outcome `json:"outcome"`
	Reason            string          `json:"reason,omitempty"`
	Entry             *subject.Entry  `json:"entry,omitempty"`
	ExcursionAttended bool            `json:"excursion_attended"`
}

// UpdateStatus is the admin override path. It skips the once-per-day guard and only
// rewrites an existing status.
func (r *Recorder) UpdateStatus(ctx context.Context, req UpdateRequest) (UpdateResult, error) {
	kind, subType, rr, ok := normalize(req.SubjectID, req.Kind, req.Match.SubType)
	if !ok {
		return UpdateResult{Outcome: rr.Outcome, Reason: rr.Reason}, nil
	}
	day := strings.TrimSpace(req.Match.Day)
	if day != "" {
		if _, err := time.Parse(time.DateOnly, day); err != nil {
			return UpdateResult{Outcome: outcome.InvalidInput, Reason: fmt.Sprintf("day %q is not YYYY-MM-DD", day)}, nil
		}
	}

	unlock := r.locks.Lock(req.SubjectID.String())
	defer unlock()

	s, err := r.store.Load(ctx, req.SubjectID)
	if err != nil {
		if errors.Is(err, subject.ErrNotFound) {
			return UpdateResult{Outcome: outcome.NotFound, Reason: "subject not found"}, nil
		}
		return UpdateResult{}, err
	}

	var res UpdateResult
	if kind == subject.KindExcursion {
		s.ExcursionAttended = req.Status
		res.ExcursionAttended = req.Status
	} else {
		idx := s.Latest(kind, subType)
		if day != "" {
			idx = s.Find(kind, subType, day)
		}
		if idx < 0 {
			label := string(kind)
			if subType != "" {
				label = subType
			}
			return UpdateResult{Outcome: outcome.NotFound, Reason: fmt.Sprintf("%s not found for subject %s", label, s.ID)}, nil
		}
		log := s.Log(kind)
		log[idx].Status = req.Status
		e := log[idx]
		res.Entry = &e
		res.ExcursionAttended = s.ExcursionAttended
	}
	s.UpdatedAt = r.clock.Now().UTC()

	if err := r.store.Save(ctx, s); err != nil {
		if errors.Is(err, subject.ErrNotFound) {
			return UpdateResult{Outcome: outcome.NotFound, Reason: "subject not found"}, nil
		}
		return UpdateResult{}, err
	}
	res.Outcome = outcome.Ok
	return res, nil
}
