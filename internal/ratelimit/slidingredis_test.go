package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestLimiterAllowSlidingWindow(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	window := 2 * time.Second
	limit := 2
	limiter := Limiter{Client: client, Prefix: "test:", Window: window, Max: limit}
	ctx := context.Background()

	for i := 0; i < limit; i++ {
		d, err := limiter.Allow(ctx, "key")
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("expected request %d to be allowed", i)
		}
		if d.Remaining != limit-(i+1) {
			t.Fatalf("unexpected remaining: %d", d.Remaining)
		}
	}

	d, err := limiter.Allow(ctx, "key")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected third request to be rejected")
	}
	if d.Remaining != 0 {
		t.Fatalf("expected remaining 0, got %d", d.Remaining)
	}

	mr.FastForward(window)

	d, err = limiter.Allow(ctx, "key")
	if err != nil {
		t.Fatalf("allow after window: %v", err)
	}
	if !d.Allowed {
		t.Fatal("expected request after window to be allowed")
	}
}

func TestLimiterWithoutClientAllows(t *testing.T) {
	d, err := Limiter{Window: time.Second, Max: 1}.Allow(context.Background(), "k")
	if err != nil || !d.Allowed {
		t.Fatalf("expected allow without client, got %+v %v", d, err)
	}
}

func TestLimiterDoesNotCountRejections(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := Limiter{Client: client, Prefix: "sessions:", Window: time.Minute, Max: 1}
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := limiter.Allow(ctx, "10.0.0.1")
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
	}
	members, err := client.ZCard(ctx, "sessions:10.0.0.1").Result()
	if err != nil {
		t.Fatalf("zcard: %v", err)
	}
	if members != 1 {
		t.Fatalf("expected only the admitted event to be stored, got %d", members)
	}

	d, err := limiter.Allow(ctx, "10.0.0.2")
	if err != nil || !d.Allowed {
		t.Fatalf("other keys must be independent, got %+v %v", d, err)
	}
}
