package redisad_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	redisad "place_reviews/internal/adapters/redis"
	"place_reviews/internal/domain"
)

func newCache(t *testing.T) *redisad.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	return redisad.New(mr.Addr(), "", 0)
}

func TestCache_SetGetRoundTrip(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	in := domain.Stats{Count: 42, AverageRating: 4.3}
	if err := c.Set(ctx, "stats:p1", in, 60); err != nil {
		t.Fatalf("set: %v", err)
	}

	var out domain.Stats
	ok, err := c.Get(ctx, "stats:p1", &out)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatalf("expected hit")
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v vs %+v", out, in)
	}
}

func TestCache_MissReturnsFalse(t *testing.T) {
	c := newCache(t)

	var out domain.Stats
	ok, err := c.Get(context.Background(), "nothing", &out)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("expected miss")
	}
}

func TestCache_DelRemovesKeys(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	_ = c.Set(ctx, "a", 1, 60)
	_ = c.Set(ctx, "b", 2, 60)
	if err := c.Del(ctx, "a", "b"); err != nil {
		t.Fatalf("del: %v", err)
	}

	var n int
	if ok, _ := c.Get(ctx, "a", &n); ok {
		t.Fatalf("key should be gone")
	}
	// deleting nothing is a no-op
	if err := c.Del(ctx); err != nil {
		t.Fatalf("empty del: %v", err)
	}
}
