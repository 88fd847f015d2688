package cooldown

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// RunPruner clears expired cooldowns every minute until ctx is done.
func RunPruner(ctx context.Context, t *Tracker, interval time.Duration) error {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if n := t.Prune(now, interval); n > 0 {
				log.Debug().Int("removed", n).Msg("Pruned expired cooldowns")
			}
		}
	}
}
