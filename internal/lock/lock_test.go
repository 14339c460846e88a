package lock

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLocalExclusive(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	release, ok, err := l.TryLock(ctx)
	if err != nil || !ok {
		t.Fatalf("Expected first TryLock to succeed, got %v %v", ok, err)
	}
	if _, ok, _ := l.TryLock(ctx); ok {
		t.Fatal("Expected second TryLock to fail while held")
	}
	release()
	release() // idempotent
	if l.Held() {
		t.Fatal("Expected lock to be free after release")
	}
	if _, ok, _ := l.TryLock(ctx); !ok {
		t.Fatal("Expected TryLock to succeed after release")
	}
}

func TestLocalConcurrent(t *testing.T) {
	l := NewLocal()
	var wins int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, ok, _ := l.TryLock(context.Background()); ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	close(start)
	wg.Wait()
	if wins != 1 {
		t.Errorf("Expected exactly one winner, got %d", wins)
	}
}

// TestRedis needs a live server; set TEST_REDIS_ADDR to run it.
func TestRedis(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client, err := Dial(ctx, addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	key := "crypto-trading-bot:test:" + t.Name()
	client.Del(ctx, key)

	a := NewRedis(client, key, time.Minute)
	b := NewRedis(client, key, time.Minute)

	release, ok, err := a.TryLock(ctx)
	if err != nil || !ok {
		t.Fatalf("Expected lock, got %v %v", ok, err)
	}
	if _, ok, _ := b.TryLock(ctx); ok {
		t.Fatal("Expected second holder to be refused")
	}
	release()
	releaseB, ok, err := b.TryLock(ctx)
	if err != nil || !ok {
		t.Fatalf("Expected lock after release, got %v %v", ok, err)
	}
	releaseB()
}
