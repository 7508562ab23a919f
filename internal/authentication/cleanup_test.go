package authentication

import (
	"context"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHousekeeper_PurgeExpired(t *testing.T) {
	f := newGormFixture(t)
	ctx := context.Background()
	p := seedPerson(t, f.db, "irish@example.com", true)

	pair, err := f.service.Login(ctx, p.Email, testPassword)
	require.NoError(t, err)
	_, err = f.service.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	h := NewHousekeeper(f.store, zap.NewNop())
	n, err := h.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "rotated but unexpired records stay for reuse detection")

	h.now = func() time.Time { return time.Now().UTC().Add(testSettings.RefreshTTL + time.Minute) }
	n, err = h.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestHousekeeper_Schedule(t *testing.T) {
	h := NewHousekeeper(newGormFixture(t).store, zap.NewNop())
	c := cron.New()

	id, err := h.Schedule(c, "5 3 * * *")
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Len(t, c.Entries(), 1)

	_, err = h.Schedule(c, "every tuesday")
	assert.Error(t, err)
}
