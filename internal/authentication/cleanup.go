package authentication

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const purgeTimeout = 2 * time.Minute

// Housekeeper deletes refresh token records that expired before the purge
// ran. Rotated and Revoked records are kept until they expire, so reuse of a
// stale token is still detected while it could have been valid.
type Housekeeper struct {
	store  RefreshTokenStore
	logger *zap.Logger
	now    func() time.Time
}

func NewHousekeeper(store RefreshTokenStore, logger *zap.Logger) *Housekeeper {
	return &Housekeeper{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (h *Housekeeper) PurgeExpired(ctx context.Context) (int64, error) {
	purged, err := h.store.PurgeExpired(ctx, h.now())
	if err != nil {
		h.logger.Error("refresh token purge failed", zap.Error(err))
		return 0, err
	}
	h.logger.Info("expired refresh tokens purged", zap.Int64("purged", purged))
	return purged, nil
}

// Schedule registers the purge on c using a standard five-field cron expression.
func (h *Housekeeper) Schedule(c *cron.Cron, schedule string) (cron.EntryID, error) {
	return c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
		defer cancel()
		_, _ = h.PurgeExpired(ctx)
	})
}
