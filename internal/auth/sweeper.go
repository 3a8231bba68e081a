package auth

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartCleanupSweeper runs CleanupExpired on a fixed interval until stopCh
// is closed. The registry itself never schedules anything; the caller owns
// this goroutine's lifetime.
func StartCleanupSweeper(registry *KeyRegistry, interval time.Duration, stopCh <-chan struct{}, logger *zap.Logger) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				removed, err := registry.CleanupExpired(context.Background())
				if err != nil {
					logger.Error("Expired key cleanup failed", zap.Error(err))
					continue
				}
				if removed > 0 {
					logger.Info("Expired API keys removed", zap.Int("count", removed))
				}
			case <-stopCh:
				logger.Info("Key cleanup sweeper stopped")
				return
			}
		}
	}()
}
