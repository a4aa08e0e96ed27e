// Package recorder records dated subject actions at most once per calendar day and
// applies admin status overrides to recorded entries.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"conference/internal/clock"
	"conference/internal/keylock"
	"conference/internal/metrics"
	"conference/internal/outcome"
	"conference/internal/subject"
)

// Store is the persistence the recorder needs.
type Store interface {
	Load(ctx context.Context, id uuid.UUID) (*subject.Subject, error)
	Save(ctx context.Context, s *subject.Subject) error
}

// Recorder coordinates per-day recording for subjects.
type Recorder struct {
	store   Store
	clock   clock.Clock
	loc     *time.Location
	locks   keylock.Locker
	metrics *metrics.Metrics
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock sets the time source used when a request carries no timestamp.
func WithClock(c clock.Clock) Option { return func(r *Recorder) { r.clock = c } }

// WithLocation sets the zone days are normalized in.
func WithLocation(loc *time.Location) Option { return func(r *Recorder) { r.loc = loc } }

// WithLocker replaces the per-subject lock.
func WithLocker(l keylock.Locker) Option { return func(r *Recorder) { r.locks = l } }

// WithMetrics enables counters.
func WithMetrics(m *metrics.Metrics) Option { return func(r *Recorder) { r.metrics = m } }

// New creates a recorder over store. Defaults: system clock, UTC, in-process key lock.
func New(store Store, opts ...Option) *Recorder {
	r := &Recorder{store: store, clock: clock.Real{}, loc: time.UTC, locks: keylock.New()}
	for _, opt := range opts {
		opt(r)
	}
	if r.loc == nil {
		r.loc = time.UTC
	}
	return r
}

// Request asks to record one action.
type Request struct {
	SubjectID  uuid.UUID
	Kind       subject.Kind
	SubType    string
	OccurredAt time.Time
}

// RecordResult is the outcome of Record. Entry and Log are set only on Ok.
type RecordResult struct {
	Outcome outcome.Outcome `json:"outcome"`
	Reason  string          `json:"reason,omitempty"`
	Entry   subject.Entry   `json:"entry"`
	Log     []subject.Entry `json:"log,omitempty"`
}

// Record appends the action unless one of the same kind (and sub type, for meals) is
// already logged for the normalized day. The returned error is non-nil only for
// persistence failures.
func (r *Recorder) Record(ctx context.Context, req Request) (res RecordResult, err error) {
	defer func() {
		if err == nil {
			r.metrics.EventRecorded(kindLabel(req.Kind), res.Outcome.String())
		}
	}()

	kind, subType, res, ok := normalize(req.SubjectID, req.Kind, req.SubType)
	if !ok {
		return res, nil
	}
	req.Kind, req.SubType = kind, subType

	at := req.OccurredAt
	if at.IsZero() {
		at = r.clock.Now()
	}
	day := clock.Day(at, r.loc)

	unlock := r.locks.Lock(req.SubjectID.String())
	defer unlock()

	s, err := r.store.Load(ctx, req.SubjectID)
	if err != nil {
		if errors.Is(err, subject.ErrNotFound) {
			return RecordResult{Outcome: outcome.NotFound, Reason: "subject not found"}, nil
		}
		return RecordResult{}, err
	}

	if s.Find(kind, subType, day) >= 0 {
		return alreadyRecorded(kind, subType), nil
	}

	e := subject.Entry{
		ID:         uuid.New(),
		SubType:    subType,
		Day:        day,
		OccurredAt: at.UTC(),
		Status:     true,
	}
	s.Append(kind, e)
	s.UpdatedAt = r.clock.Now().UTC()

	if err := r.store.Save(ctx, s); err != nil {
		switch {
		case errors.Is(err, subject.ErrConflict):
			return alreadyRecorded(kind, subType), nil
		case errors.Is(err, subject.ErrNotFound):
			return RecordResult{Outcome: outcome.NotFound, Reason: "subject not found"}, nil
		}
		return RecordResult{}, err
	}
	return RecordResult{Outcome: outcome.Ok, Entry: e, Log: s.Log(kind)}, nil
}

func normalize(id uuid.UUID, k subject.Kind, subType string) (subject.Kind, string, RecordResult, bool) {
	invalid := func(reason string) (subject.Kind, string, RecordResult, bool) {
		return "", "", RecordResult{Outcome: outcome.InvalidInput, Reason: reason}, false
	}
	if id == uuid.Nil {
		return invalid("subject id required")
	}
	kind, ok := subject.ParseKind(string(k))
	if !ok {
		return invalid(fmt.Sprintf("unknown kind %q", k))
	}
	if !kind.Scoped() {
		return kind, "", RecordResult{}, true
	}
	subType = strings.ToLower(strings.TrimSpace(subType))
	if subType == "" {
		return invalid(fmt.Sprintf("%s type required", kind))
	}
	return kind, subType, RecordResult{}, true
}

func kindLabel(k subject.Kind) string {
	if kind, ok := subject.ParseKind(string(k)); ok {
		return string(kind)
	}
	return "unknown"
}

func alreadyRecorded(k subject.Kind, subType string) RecordResult {
	label := string(k)
	if subType != "" {
		label = subType
	}
	return RecordResult{Outcome: outcome.AlreadyRecorded, Reason: label + " already marked today"}
}
