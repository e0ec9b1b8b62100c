package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type mapCache struct {
	m map[string][]byte
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, error) {
	b, ok := c.m[key]
	if !ok {
		return nil, ErrMiss
	}
	return b, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.m[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.m, k)
	}
	return nil
}

func (c *mapCache) Ping(context.Context) error { return nil }

func TestNoopCacheAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	var c Cache = NoopCache{}
	if err := SetJSON(ctx, c, "k", []int{1, 2}, time.Minute); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	var got []int
	if err := GetJSON(ctx, c, "k", &got); !errors.Is(err, ErrMiss) {
		t.Fatalf("GetJSON err = %v, want ErrMiss", err)
	}
	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestJSONHelpersRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := &mapCache{m: map[string][]byte{}}

	type item struct {
		ID    uint   `json:"id"`
		Title string `json:"title"`
	}
	in := []item{{ID: 1, Title: "Algebra"}, {ID: 2, Title: "Sets"}}
	if err := SetJSON(ctx, c, "quizzes", in, time.Minute); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}

	var out []item
	if err := GetJSON(ctx, c, "quizzes", &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if len(out) != 2 || out[1].Title != "Sets" {
		t.Fatalf("got %+v", out)
	}

	c.Delete(ctx, "quizzes")
	if err := GetJSON(ctx, c, "quizzes", &out); !errors.Is(err, ErrMiss) {
		t.Fatalf("after delete err = %v, want ErrMiss", err)
	}
}
