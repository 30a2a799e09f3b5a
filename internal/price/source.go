package price

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"pair-alert-bot/internal/types"
)

// Provider fetches the current prices of the tracked instruments
type Provider interface {
	Name() string
	Prices(ctx context.Context) (types.Snapshot, error)
}

// Source wraps a Provider with bounded retries.
// FetchSnapshot never fails: exhausted retries yield an empty snapshot.
type Source struct {
	provider   Provider
	maxRetries int
	retryDelay time.Duration
}

// NewSource creates a snapshot source retrying the provider up to maxRetries times
func NewSource(provider Provider, maxRetries int, retryDelay time.Duration) *Source {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Source{
		provider:   provider,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// FetchSnapshot returns a fresh snapshot, or an empty one after maxRetries failures
func (s *Source) FetchSnapshot(ctx context.Context) types.Snapshot {
	failed := false

	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		snapshot, err := s.provider.Prices(ctx)
		if err == nil {
			if failed {
				log.Infof("✅ %s price fetch recovered after %d attempts", s.provider.Name(), attempt)
			}
			return snapshot
		}

		failed = true
		log.WithFields(log.Fields{
			"provider": s.provider.Name(),
			"attempt":  attempt,
			"max":      s.maxRetries,
		}).Errorf("❌ Failed to fetch prices: %v", err)

		if attempt == s.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return types.Snapshot{}
		case <-time.After(s.retryDelay):
		}
	}

	log.Errorf("❌ %s could not deliver prices after %d attempts, snapshot is empty", s.provider.Name(), s.maxRetries)
	return types.Snapshot{}
}
