package market

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// quoteKeyPrefix is the prefix for cached quote keys.
// Format: quote:{symbol}
const quoteKeyPrefix = "quote"

// QuoteCache wraps a QuoteProvider with a Redis read-through cache. A cache
// failure never fails a quote lookup; the cache logs and falls through to
// the underlying provider so pricing stays available when Redis is down.
type QuoteCache struct {
	provider QuoteProvider
	client   *redis.Client
	ttl      time.Duration
	logger   zerolog.Logger
}

// NewQuoteCache creates a cache over the given provider. ttl bounds quote
// staleness; a few seconds is appropriate for live-style execution.
func NewQuoteCache(provider QuoteProvider, client *redis.Client, ttl time.Duration, logger zerolog.Logger) *QuoteCache {
	return &QuoteCache{
		provider: provider,
		client:   client,
		ttl:      ttl,
		logger:   logger.With().Str("component", "quote_cache").Logger(),
	}
}

// GetQuote returns a cached quote when fresh, otherwise fetches from the
// underlying provider and stores the result.
func (c *QuoteCache) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	key := fmt.Sprintf("%s:%s", quoteKeyPrefix, symbol)

	if data, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var quote Quote
		if err := json.Unmarshal(data, &quote); err == nil {
			return quote, nil
		}
		c.logger.Warn().Str("symbol", symbol).Msg("discarding malformed cached quote")
	} else if err != redis.Nil {
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("quote cache read failed")
	}

	quote, err := c.provider.GetQuote(ctx, symbol)
	if err != nil {
		return Quote{}, err
	}

	if data, err := json.Marshal(quote); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn().Err(err).Str("symbol", symbol).Msg("quote cache write failed")
		}
	}

	return quote, nil
}
