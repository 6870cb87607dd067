package diagnosis

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const (
	ruleBaseKey    = "rulebase:v1"
	ruleBaseGenKey = "rulebase:gen"
)

type snapshotStore interface {
	GetJSON(ctx context.Context, key string, dst interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error
	Counter(ctx context.Context, key string) (int64, error)
	Incr(ctx context.Context, key string) (int64, error)
}

// CachedRuleBase serves the rule base from Redis, falling back to the
// underlying repository on a miss or when Redis is unreachable.
//
// Snapshots are stored under a generation number that Invalidate bumps. A
// reader that loaded from Postgres before an invalidation writes its snapshot
// under the old generation, where no later reader looks.
type CachedRuleBase struct {
	next   RuleBase
	store  snapshotStore
	ttl    time.Duration
	logger zerolog.Logger
}

func NewCachedRuleBase(next RuleBase, store snapshotStore, ttl time.Duration, logger zerolog.Logger) *CachedRuleBase {
	return &CachedRuleBase{next: next, store: store, ttl: ttl, logger: logger}
}

func snapshotKey(gen int64) string {
	return fmt.Sprintf("%s:%d", ruleBaseKey, gen)
}

func (c *CachedRuleBase) All(ctx context.Context) ([]Rule, error) {
	// The generation must be read before loading from Postgres.
	gen, err := c.store.Counter(ctx, ruleBaseGenKey)
	if err != nil {
		c.logger.Warn().Err(err).Msg("rule base cache unavailable, reading from database")
		return c.next.All(ctx)
	}
	key := snapshotKey(gen)

	var rules []Rule
	found, err := c.store.GetJSON(ctx, key, &rules)
	if err != nil {
		c.logger.Warn().Err(err).Msg("rule base cache read failed")
	}
	if found {
		return rules, nil
	}

	rules, err = c.next.All(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.store.SetJSON(ctx, key, rules, c.ttl); err != nil {
		c.logger.Warn().Err(err).Msg("rule base cache write failed")
	}
	return rules, nil
}

// Invalidate moves readers to a fresh generation so the next read reloads
// from the database. Snapshots of older generations expire with their TTL.
func (c *CachedRuleBase) Invalidate(ctx context.Context) error {
	_, err := c.store.Incr(ctx, ruleBaseGenKey)
	return err
}
