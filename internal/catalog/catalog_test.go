package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"expenso/internal/core"
)

func TestLookupFallsBack(t *testing.T) {
	got := Lookup("no-such-category")
	if got.Name != FallbackName || got.Icon != FallbackIcon || got.ID != "no-such-category" {
		t.Fatalf("fallback = %+v", got)
	}
	if Name("") != FallbackName {
		t.Fatal("empty id should fall back")
	}
	if Lookup("food").Name != "Food & Dining" {
		t.Fatal("known id should resolve")
	}
}

func TestPartitionsAreDisjointAndTyped(t *testing.T) {
	for _, c := range ForType(core.Income) {
		if c.Type != core.Income || Valid(core.Expense, c.ID) {
			t.Errorf("income category %q leaks into expense set", c.ID)
		}
	}
	for _, c := range ForType(core.Expense) {
		if c.Type != core.Expense || Valid(core.Income, c.ID) {
			t.Errorf("expense category %q leaks into income set", c.ID)
		}
	}
	if ForType("TRANSFER") != nil {
		t.Fatal("unknown type should have no categories")
	}
}

func TestSwitchTypeKeepsCategoryValid(t *testing.T) {
	types := []core.TransactionType{core.Income, core.Expense}
	for _, from := range types {
		for _, cat := range ForType(from) {
			for _, to := range types {
				got := SwitchType(to, cat.ID)
				if got != "" && !Valid(to, got) {
					t.Fatalf("switch %s->%s left invalid category %q", from, to, got)
				}
				if from == to && got != cat.ID {
					t.Fatalf("switch to same type cleared %q", cat.ID)
				}
				if from != to && got != "" {
					t.Fatalf("switch %s->%s kept %q", from, to, got)
				}
			}
		}
	}
}

func TestDateRangeBounds(t *testing.T) {
	now := time.Date(2024, 3, 14, 15, 0, 0, 0, time.UTC) // Thursday
	cases := []struct {
		r        DateRange
		from, to string
	}{
		{ThisWeek, "2024-03-11", "2024-03-17"},
		{ThisMonth, "2024-03-01", "2024-03-31"},
		{LastMonth, "2024-02-01", "2024-02-29"},
		{ThisYear, "2024-01-01", "2024-12-31"},
		{LastYear, "2023-01-01", "2023-12-31"},
	}
	for _, tc := range cases {
		from, to := tc.r.Bounds(now)
		if from.String() != tc.from || to.String() != tc.to {
			t.Errorf("%s: got %s..%s want %s..%s", tc.r, from, to, tc.from, tc.to)
		}
	}
	sunday := time.Date(2024, 3, 17, 9, 0, 0, 0, time.UTC)
	if from, _ := ThisWeek.Bounds(sunday); from.String() != "2024-03-11" {
		t.Errorf("sunday belongs to the week starting monday, got %s", from)
	}
	if ParseDateRange("bogus") != ThisMonth {
		t.Error("unknown range should default to this month")
	}
}

func TestColorCycles(t *testing.T) {
	if Color(0) != Color(len(Palette)) || Color(-1) != Palette[0] {
		t.Fatal("palette should cycle")
	}
}

func TestServiceCachesAndCollapses(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	svc := NewService(func(ctx context.Context) ([]Category, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []Category{
			{ID: "salary", Type: core.Income},
			{ID: "crypto", Name: "Crypto", Icon: "🪙", Type: core.Income},
			{ID: "food", Type: core.Expense},
		}, nil
	}, time.Minute, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.Catalog(context.Background())
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	c := svc.Catalog(context.Background())
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("fetch called %d times", n)
	}
	if !c.Valid(core.Income, "crypto") || c.Valid(core.Expense, "crypto") {
		t.Fatal("remote category not partitioned")
	}
	if c.Name("salary") != "Salary" {
		t.Fatalf("missing name should be filled from built-in catalog, got %q", c.Name("salary"))
	}
}

func TestServiceFallsBackOnError(t *testing.T) {
	svc := NewService(func(ctx context.Context) ([]Category, error) {
		return nil, errors.New("backend down")
	}, time.Minute, nil)
	if c := svc.Catalog(context.Background()); c != Default {
		t.Fatal("expected built-in catalog on error")
	}
}
