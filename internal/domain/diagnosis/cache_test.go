package diagnosis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/growthwatch/growthwatch/internal/platform/cache"
)

type countingRuleBase struct {
	rules []Rule
	calls int
}

func (c *countingRuleBase) All(context.Context) ([]Rule, error) {
	c.calls++
	return c.rules, nil
}

func newCachedRuleBase(t *testing.T, next RuleBase) (*miniredis.Miniredis, *CachedRuleBase) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewCachedRuleBase(next, cache.NewStore(client, "gw:"), time.Minute, zerolog.Nop())
}

func TestCachedRuleBase_ReadThrough(t *testing.T) {
	next := &countingRuleBase{rules: sampleRules()}
	_, c := newCachedRuleBase(t, next)
	ctx := context.Background()

	first, err := c.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	second, err := c.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if next.calls != 1 {
		t.Errorf("expected one repository load, got %d", next.calls)
	}
	if len(first) != len(second) || len(second) != 5 {
		t.Errorf("expected 5 rules from both reads, got %d and %d", len(first), len(second))
	}
	if second[0].ConditionCode != first[0].ConditionCode || second[0].SymptomCode != first[0].SymptomCode {
		t.Errorf("cached snapshot differs: %+v vs %+v", second[0], first[0])
	}
}

func TestCachedRuleBase_Invalidate(t *testing.T) {
	next := &countingRuleBase{rules: sampleRules()}
	mr, c := newCachedRuleBase(t, next)
	ctx := context.Background()

	_, _ = c.All(ctx)
	if !mr.Exists("gw:" + snapshotKey(0)) {
		t.Fatal("expected snapshot stored under generation 0")
	}
	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	_, _ = c.All(ctx)
	if next.calls != 2 {
		t.Errorf("expected reload after invalidation, got %d loads", next.calls)
	}
	if !mr.Exists("gw:" + snapshotKey(1)) {
		t.Error("expected snapshot stored under generation 1")
	}
}

// authoringRuleBase adds a rule and invalidates the cache while the first
// load is in flight, returning the rules it read before the write.
type authoringRuleBase struct {
	rules    []Rule
	cache    *CachedRuleBase
	authored bool
}

func (a *authoringRuleBase) All(ctx context.Context) ([]Rule, error) {
	loaded := append([]Rule(nil), a.rules...)
	if !a.authored {
		a.authored = true
		a.rules = append(a.rules, Rule{ConditionCode: "K01", GroupCode: "R03", SymptomCode: "G04"})
		if err := a.cache.Invalidate(ctx); err != nil {
			return nil, err
		}
	}
	return loaded, nil
}

func TestCachedRuleBase_InvalidateDuringLoad(t *testing.T) {
	next := &authoringRuleBase{rules: sampleRules()}
	_, c := newCachedRuleBase(t, next)
	next.cache = c
	ctx := context.Background()

	stale, err := c.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(stale) != 5 {
		t.Fatalf("expected the in-flight read to return 5 rules, got %d", len(stale))
	}

	fresh, err := c.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(fresh) != 6 {
		t.Errorf("expected the rule authored during the load to be visible, got %d rules", len(fresh))
	}
}

func TestCachedRuleBase_RedisDown(t *testing.T) {
	next := &countingRuleBase{rules: sampleRules()}
	mr, c := newCachedRuleBase(t, next)
	mr.Close()

	rules, err := c.All(context.Background())
	if err != nil {
		t.Fatalf("expected fallback to repository, got %v", err)
	}
	if len(rules) != 5 {
		t.Errorf("expected 5 rules, got %d", len(rules))
	}
}
