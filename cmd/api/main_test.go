package main

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conference/internal/hub"
	"conference/internal/logger"
	"conference/internal/metrics"
	"conference/internal/notify"
	"conference/internal/subject"
	"conference/internal/verification"
)

func TestDrainLetsWelcomeReachHub(t *testing.T) {
	ctx := context.Background()
	repo := subject.NewMemoryRepository()
	s := subject.New(subject.Name{First: "Asha", Last: "Rai"}, "asha@example.com", time.Now())
	require.NoError(t, repo.Create(ctx, s))

	h := hub.New(hub.NewMemoryChat())
	m := metrics.New(prometheus.NewRegistry())
	var mailed atomic.Bool
	slowMail := notify.DispatcherFunc(func(context.Context, notify.Notification) error {
		time.Sleep(50 * time.Millisecond)
		mailed.Store(true)
		return nil
	})
	v := verification.New(repo, notify.Multi{slowMail, notify.NewBroadcast(h)}, verification.WithMetrics(m))

	res, err := v.Verify(ctx, verification.Request{SubjectID: s.ID, Outcome: subject.StatusAccepted})
	require.NoError(t, err)
	require.True(t, res.Notified)

	drain(ctx, &http.Server{}, v, h, logger.Discard())

	assert.True(t, mailed.Load())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.NotificationsFailed))
	assert.ErrorIs(t, h.Broadcast("x", nil), hub.ErrClosed)
}
