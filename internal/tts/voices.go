package tts

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lexiqai/voice-relay/internal/observability"
	"github.com/lexiqai/voice-relay/internal/resilience"
)

// VoiceLister fetches the provider's voice ids.
type VoiceLister interface {
	ListVoices(ctx context.Context) ([]string, error)
}

// VoiceCatalog holds the seeded default voices and the last successfully
// fetched list. Readers always get a complete list, stale during a refresh.
type VoiceCatalog struct {
	lister    VoiceLister
	preferred string
	ttl       time.Duration
	retry     *resilience.RetryConfig

	mu          sync.RWMutex
	current     []string
	refreshedAt time.Time

	group singleflight.Group
	now   func() time.Time
}

// NewVoiceCatalog creates a catalog seeded with DefaultVoices. preferred is the
// voice picked when a caller names none; empty means PreferredVoice.
func NewVoiceCatalog(lister VoiceLister, preferred string, ttl time.Duration, retry *resilience.RetryConfig) *VoiceCatalog {
	if preferred == "" {
		preferred = PreferredVoice
	}
	return &VoiceCatalog{
		lister:    lister,
		preferred: preferred,
		ttl:       ttl,
		retry:     retry,
		current:   slices.Clone(DefaultVoices),
		now:       time.Now,
	}
}

// Current returns the active voice list.
func (c *VoiceCatalog) Current() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.current)
}

// Contains reports whether voiceID is in the active list. Unknown voices are
// still passed to the provider as given.
func (c *VoiceCatalog) Contains(voiceID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Contains(c.current, voiceID)
}

// DefaultVoice returns the preferred voice if the catalog offers it, else the
// catalog's first entry.
func (c *VoiceCatalog) DefaultVoice() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if slices.Contains(c.current, c.preferred) || len(c.current) == 0 {
		return c.preferred
	}
	return c.current[0]
}

// Refresh fetches the provider's voices. Concurrent calls share one fetch. On
// failure or an empty answer the previous list is kept and returned with the error.
func (c *VoiceCatalog) Refresh(ctx context.Context) ([]string, error) {
	ch := c.group.DoChan("refresh", func() (any, error) {
		return nil, c.refresh(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return c.Current(), ctx.Err()
	case res := <-ch:
		return c.Current(), res.Err
	}
}

// RefreshIfStale refreshes when the last successful refresh is older than the TTL.
func (c *VoiceCatalog) RefreshIfStale(ctx context.Context) {
	c.mu.RLock()
	stale := c.refreshedAt.IsZero() || (c.ttl > 0 && c.now().Sub(c.refreshedAt) >= c.ttl)
	c.mu.RUnlock()
	if !stale {
		return
	}
	if _, err := c.Refresh(ctx); err != nil {
		observability.LoggerFrom(ctx).Warn().Err(err).Msg("Voice catalog refresh failed, serving cached voices")
	}
}

// Watch refreshes the catalog now and then once per TTL until ctx is done.
// A non-positive TTL refreshes once.
func (c *VoiceCatalog) Watch(ctx context.Context) {
	c.RefreshIfStale(ctx)
	if c.ttl <= 0 {
		return
	}

	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RefreshIfStale(ctx)
		}
	}
}

func (c *VoiceCatalog) refresh(ctx context.Context) error {
	logger := observability.Component("voice_catalog")

	var voices []string
	err := resilience.Retry(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, CatalogTimeout)
		defer cancel()

		var err error
		voices, err = c.lister.ListVoices(callCtx)
		return err
	}, c.retry, resilience.IsRetryableNetworkError)
	if err != nil {
		return err
	}

	if len(voices) == 0 {
		logger.Warn().Msg("Provider returned no voices, keeping current catalog")
		return nil
	}

	c.mu.Lock()
	c.current = voices
	c.refreshedAt = c.now()
	c.mu.Unlock()

	logger.Info().Int("voices", len(voices)).Msg("Voice catalog refreshed")
	return nil
}
