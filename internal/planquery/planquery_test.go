package planquery

import (
	"context"
	"testing"

	"github.com/oriys/lancebridge/internal/cache"
	"github.com/oriys/lancebridge/internal/vendorstore"
)

func TestGetMissesUntilPut(t *testing.T) {
	c := New(cache.NewInMemoryCache())
	ctx := context.Background()
	spec := vendorstore.QuerySpec{Filter: "id = 1", Limit: 10}

	if _, ok := c.Get(ctx, 1, 1, false, spec); ok {
		t.Fatal("expected miss before Put")
	}
	c.Put(ctx, 1, 1, false, spec, "Scan(table=t, limit=10)")
	plan, ok := c.Get(ctx, 1, 1, false, spec)
	if !ok || plan != "Scan(table=t, limit=10)" {
		t.Fatalf("Get after Put: got (%q, %v)", plan, ok)
	}
}

func TestDifferentQueryShapesDoNotCollide(t *testing.T) {
	c := New(cache.NewInMemoryCache())
	ctx := context.Background()

	c.Put(ctx, 1, 1, false, vendorstore.QuerySpec{Filter: "id = 1"}, "plan-a")
	c.Put(ctx, 1, 1, false, vendorstore.QuerySpec{Filter: "id = 2"}, "plan-b")
	c.Put(ctx, 1, 1, true, vendorstore.QuerySpec{Filter: "id = 1"}, "plan-c")

	if plan, _ := c.Get(ctx, 1, 1, false, vendorstore.QuerySpec{Filter: "id = 1"}); plan != "plan-a" {
		t.Fatalf("plan-a: got %q", plan)
	}
	if plan, _ := c.Get(ctx, 1, 1, false, vendorstore.QuerySpec{Filter: "id = 2"}); plan != "plan-b" {
		t.Fatalf("plan-b: got %q", plan)
	}
	if plan, _ := c.Get(ctx, 1, 1, true, vendorstore.QuerySpec{Filter: "id = 1"}); plan != "plan-c" {
		t.Fatalf("plan-c (vector): got %q", plan)
	}
}

func TestInvalidateDropsPreviouslyCachedPlan(t *testing.T) {
	c := New(cache.NewInMemoryCache())
	ctx := context.Background()
	spec := vendorstore.QuerySpec{Filter: "id = 1"}

	c.Put(ctx, 1, 1, false, spec, "stale-plan")
	if _, ok := c.Get(ctx, 1, 1, false, spec); !ok {
		t.Fatal("expected hit before Invalidate")
	}

	c.Invalidate(1, 1)

	if _, ok := c.Get(ctx, 1, 1, false, spec); ok {
		t.Fatal("expected miss after Invalidate, plan should no longer be reachable")
	}
}

func TestInvalidateIsScopedToItsOwnTable(t *testing.T) {
	c := New(cache.NewInMemoryCache())
	ctx := context.Background()
	spec := vendorstore.QuerySpec{Filter: "id = 1"}

	c.Put(ctx, 1, 1, false, spec, "table-1-plan")
	c.Put(ctx, 1, 2, false, spec, "table-2-plan")

	c.Invalidate(1, 1)

	if _, ok := c.Get(ctx, 1, 1, false, spec); ok {
		t.Fatal("table 1's plan should be invalidated")
	}
	if plan, ok := c.Get(ctx, 1, 2, false, spec); !ok || plan != "table-2-plan" {
		t.Fatalf("table 2's plan should be unaffected: got (%q, %v)", plan, ok)
	}
}
