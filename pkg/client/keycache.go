package client

import (
	"context"
	"log/slog"
	"sync"

	"credify/pkg/platform/circuit"
)

// KeyFetcher is the subset of Client that CachedKeys wraps.
type KeyFetcher interface {
	PublicKey(ctx context.Context, issuerID string) (string, error)
}

// CachedKeys remembers the last public key served for each issuer. When the
// server keeps failing, the breaker opens and the cached key is served while
// the server is still probed on every call.
type CachedKeys struct {
	fetcher KeyFetcher
	breaker *circuit.Breaker
	logger  *slog.Logger

	mu   sync.RWMutex
	keys map[string]string
}

func NewCachedKeys(fetcher KeyFetcher, breaker *circuit.Breaker, logger *slog.Logger) *CachedKeys {
	if breaker == nil {
		breaker = circuit.New("issuer-keys")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedKeys{fetcher: fetcher, breaker: breaker, logger: logger, keys: make(map[string]string)}
}

func (c *CachedKeys) PublicKey(ctx context.Context, issuerID string) (string, error) {
	pem, err := c.fetcher.PublicKey(ctx, issuerID)
	if err == nil {
		if _, change := c.breaker.RecordSuccess(); change.Closed {
			c.logger.InfoContext(ctx, "issuer key fetch recovered", "breaker", c.breaker.Name())
		}
		c.mu.Lock()
		c.keys[issuerID] = pem
		c.mu.Unlock()
		return pem, nil
	}
	if ctx.Err() != nil {
		return "", err
	}

	useFallback, change := c.breaker.RecordFailure()
	if change.Opened {
		c.logger.WarnContext(ctx, "issuer key fetch degraded, serving cached keys",
			"breaker", c.breaker.Name(),
			"error", err,
		)
	}
	if !useFallback {
		return "", err
	}
	c.mu.RLock()
	cached, ok := c.keys[issuerID]
	c.mu.RUnlock()
	if !ok {
		return "", err
	}
	return cached, nil
}
