package memory

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"genomedesigner/internal/blob/core"
)

func TestGetReturnsIndependentCopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.Put(ctx, "k", strings.NewReader("abc"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	_, rc, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	b[0] = 'z'
	_, rc, _ = s.Get(ctx, "k")
	again, _ := io.ReadAll(rc)
	if string(again) != "abc" {
		t.Fatalf("stored data mutated: %q", again)
	}
	if s.Location("k") != "memory://k" {
		t.Fatalf("unexpected location")
	}
}

func TestConcurrentPuts(t *testing.T) {
	ctx := context.Background()
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.Put(ctx, fmt.Sprintf("k/%02d", i), strings.NewReader("x"), core.PutOptions{})
		}(i)
	}
	wg.Wait()
	infos, err := s.List(ctx, "k/")
	if err != nil || len(infos) != 20 {
		t.Fatalf("expected 20 blobs, got %d %v", len(infos), err)
	}
	if infos[0].Key != "k/00" {
		t.Fatalf("expected sorted listing, got %s", infos[0].Key)
	}
}
