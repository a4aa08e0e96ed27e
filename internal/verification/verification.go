// Package verification moves subjects through admin review and sends the welcome
// notification on acceptance.
package verification

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"conference/internal/clock"
	"conference/internal/keylock"
	"conference/internal/logger"
	"conference/internal/metrics"
	"conference/internal/notify"
	"conference/internal/outcome"
	"conference/internal/subject"
)

const defaultDispatchTimeout = 30 * time.Second

// Store is the persistence the verifier needs.
type Store interface {
	Load(ctx context.Context, id uuid.UUID) (*subject.Subject, error)
	Save(ctx context.Context, s *subject.Subject) error
}

// Verifier applies verification decisions.
type Verifier struct {
	store       Store
	dispatcher  notify.Dispatcher
	clock       clock.Clock
	log         logger.Logger
	metrics     *metrics.Metrics
	locks       keylock.Locker
	allowResend bool
	timeout     time.Duration

	wg sync.WaitGroup
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithClock sets the time source for verification stamps.
func WithClock(c clock.Clock) Option { return func(v *Verifier) { v.clock = c } }

// WithLogger sets the logger used for dispatch failures.
func WithLogger(l logger.Logger) Option { return func(v *Verifier) { v.log = l } }

// WithMetrics counts decisions and failed notifications on m.
func WithMetrics(m *metrics.Metrics) Option { return func(v *Verifier) { v.metrics = m } }

// WithDispatchTimeout bounds each background notification. Defaults to 30s.
func WithDispatchTimeout(d time.Duration) Option { return func(v *Verifier) { v.timeout = d } }

// WithLocker sets the per-subject lock. Pass the recorder's locker so both never
// interleave a load and save of the same subject.
func WithLocker(l keylock.Locker) Option { return func(v *Verifier) { v.locks = l } }

// WithAllowResend controls whether accepting an accepted subject re-stamps it and
// sends the welcome notification again. Enabled by default.
func WithAllowResend(allow bool) Option { return func(v *Verifier) { v.allowResend = allow } }

// New creates a Verifier. A nil dispatcher disables notifications.
func New(store Store, dispatcher notify.Dispatcher, opts ...Option) *Verifier {
	v := &Verifier{
		store:       store,
		dispatcher:  dispatcher,
		clock:       clock.Real{},
		log:         logger.Discard(),
		locks:       keylock.New(),
		allowResend: true,
		timeout:     defaultDispatchTimeout,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Request is one admin decision.
type Request struct {
	SubjectID  uuid.UUID
	Outcome    subject.Status
	AdminEmail string
	Remarks    string
}

// Result of Verify. Notified reports whether a notification was scheduled; delivery
// itself happens in the background.
type Result struct {
	Outcome  outcome.Outcome `json:"outcome"`
	Reason   string          `json:"reason,omitempty"`
	Status   subject.Status  `json:"status,omitempty"`
	Notified bool            `json:"notified"`
}

// Verify applies req. The returned error is non-nil only for persistence failures.
//
//	pending  -> accepted | rejected
//	accepted -> accepted (re-stamp and resend, if allowed)
//	rejected -> rejected (no-op)
func (v *Verifier) Verify(ctx context.Context, req Request) (res Result, err error) {
	defer func() {
		if err == nil {
			v.metrics.Verified(res.Outcome.String())
		}
	}()

	if req.SubjectID == uuid.Nil {
		return Result{Outcome: outcome.InvalidInput, Reason: "subject id required"}, nil
	}
	if req.Outcome != subject.StatusAccepted && req.Outcome != subject.StatusRejected {
		return Result{Outcome: outcome.InvalidInput, Reason: fmt.Sprintf("invalid outcome %q", req.Outcome)}, nil
	}

	unlock := v.locks.Lock(req.SubjectID.String())
	defer unlock()

	s, err := v.store.Load(ctx, req.SubjectID)
	if err != nil {
		if errors.Is(err, subject.ErrNotFound) {
			return Result{Outcome: outcome.NotFound, Reason: "subject not found"}, nil
		}
		return Result{}, err
	}

	current := s.Verification.Status
	switch {
	case current == subject.StatusPending:
	case current == req.Outcome && current == subject.StatusRejected:
		return Result{Outcome: outcome.Ok, Status: current}, nil
	case current == req.Outcome && !v.allowResend:
		return Result{Outcome: outcome.Ok, Status: current}, nil
	case current == req.Outcome:
	default:
		return Result{
			Outcome: outcome.InvalidInput,
			Reason:  fmt.Sprintf("cannot change verification from %s to %s", current, req.Outcome),
			Status:  current,
		}, nil
	}

	now := v.clock.Now().UTC()
	s.Verification.Status = req.Outcome
	s.Verification.AdminEmail = req.AdminEmail
	s.Verification.AdminRemarks = req.Remarks
	if req.Outcome == subject.StatusAccepted {
		s.Verification.Verified = true
		s.Verification.VerifiedAt = &now
	}
	s.UpdatedAt = now

	if err := v.store.Save(ctx, s); err != nil {
		if errors.Is(err, subject.ErrNotFound) {
			return Result{Outcome: outcome.NotFound, Reason: "subject not found"}, nil
		}
		return Result{}, err
	}

	res = Result{Outcome: outcome.Ok, Status: req.Outcome}
	if req.Outcome == subject.StatusAccepted && v.dispatcher != nil {
		v.dispatch(ctx, Welcome(s))
		res.Notified = true
	}
	return res, nil
}

// Welcome builds the acceptance notification for s.
func Welcome(s *subject.Subject) notify.Notification {
	return notify.Notification{
		Template: notify.TemplateWelcome,
		Data: map[string]string{
			"first_name": s.Name.First,
			"last_name":  s.Name.Last,
			"unique_id":  strconv.FormatInt(s.UniqueNumber, 10),
		},
		Recipient: notify.Recipient{Name: s.Name.Full(), Email: s.Email},
	}
}

// dispatch sends n in the background. The caller's cancellation does not reach it.
func (v *Verifier) dispatch(ctx context.Context, n notify.Notification) {
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.timeout)
		defer cancel()
		if err := v.dispatcher.Dispatch(ctx, n); err != nil {
			v.log.Error("welcome notification failed", "to", n.Recipient.Email, "err", err)
			v.metrics.NotificationFailed()
			return
		}
		v.log.Debug("welcome notification dispatched", "to", n.Recipient.Email)
	}()
}

// Wait blocks until every scheduled notification finished.
func (v *Verifier) Wait() {
	v.wg.Wait()
}
