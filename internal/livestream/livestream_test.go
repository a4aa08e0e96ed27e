package livestream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.youtube.com/watch?v=abc", true},
		{"http://youtube.com/live/abc", true},
		{"youtu.be/abc", true},
		{"  https://youtu.be/abc  ", true},
		{"https://vimeo.com/123", false},
		{"https://youtube.com/", false},
		{"https://notyoutube.com/watch?v=abc", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidURL(tt.url))
		})
	}
}

func TestPublishAndCurrent(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := NewService(NewMemoryStore(), func() time.Time { return now })

	_, err := svc.Current(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Publish(ctx, "https://vimeo.com/1")
	assert.ErrorIs(t, err, ErrInvalidURL)

	first, err := svc.Publish(ctx, "https://youtu.be/day1")
	require.NoError(t, err)
	now = now.Add(24 * time.Hour)
	_, err = svc.Publish(ctx, " https://youtu.be/day2 ")
	require.NoError(t, err)

	cur, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://youtu.be/day2", cur.URL)
	assert.NotEqual(t, first.ID, cur.ID)
}
