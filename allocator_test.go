package lyralink

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/xerrors"
)

// scriptedDraw returns the codes in order, then fails the test if asked for more.
// It records the lengths it was asked for.
func scriptedDraw(t *testing.T, codes ...string) (draw func(int) (string, error), lengths *[]int) {
	lengths = &[]int{}
	return func(n int) (string, error) {
		*lengths = append(*lengths, n)
		if len(codes) == 0 {
			t.Fatalf("unexpected draw number %d", len(*lengths))
		}
		code := codes[0]
		codes = codes[1:]
		return code, nil
	}, lengths
}

func seed(t *testing.T, s Store, links map[string]string) {
	t.Helper()
	for code, longURL := range links {
		if _, err := s.Insert(context.Background(), code, longURL, time.Now()); err != nil {
			t.Fatal(err)
		}
	}
}

func TestAllocate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := NewAllocator(s, DefaultAllocationPolicy, nil, nil)
	r := NewResolver(s, 0, nil, nil)

	const longURL = "https://example.com/very/long/path"

	l, err := a.Allocate(ctx, longURL)
	if err != nil {
		t.Fatal(err)
	}
	if len(l.ShortCode) < 3 || !IsCode(l.ShortCode) {
		t.Errorf("unexpected short code %q", l.ShortCode)
	}
	if l.OriginalURL != longURL {
		t.Errorf("original URL = %q, want %q", l.OriginalURL, longURL)
	}
	if l.CreatedAt.IsZero() || l.CreatedAt.Location() != time.UTC {
		t.Errorf("created_at = %v, want a UTC timestamp", l.CreatedAt)
	}

	again, err := a.Allocate(ctx, longURL)
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != l.ID || again.ShortCode != l.ShortCode || !again.CreatedAt.Equal(l.CreatedAt) {
		t.Errorf("second allocation returned %+v, want %+v", again, l)
	}

	resolved, err := r.Resolve(ctx, l.ShortCode)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.OriginalURL != longURL {
		t.Errorf("resolved to %q, want %q", resolved.OriginalURL, longURL)
	}
}

func TestAllocateStoresURLVerbatim(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := NewAllocator(s, DefaultAllocationPolicy, nil, nil)

	urls := []string{
		"",
		"https://example.com",
		"https://example.com/",
		"HTTPS://EXAMPLE.COM/",
		"not a url at all",
		"https://example.com/page?q=1&r=ä#frag",
	}

	codes := map[string]string{}
	for _, u := range urls {
		l, err := a.Allocate(ctx, u)
		if err != nil {
			t.Fatalf("allocating %q: %v", u, err)
		}
		if l.OriginalURL != u {
			t.Errorf("stored %q as %q", u, l.OriginalURL)
		}
		if other, ok := codes[l.ShortCode]; ok {
			t.Errorf("%q and %q share code %s", u, other, l.ShortCode)
		}
		codes[l.ShortCode] = u
	}
}

func TestAllocateRetriesOnCollision(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s, map[string]string{
		"aaa": "https://taken.example/1",
		"bbb": "https://taken.example/2",
	})

	m := NewMetrics()
	a := NewAllocator(s, DefaultAllocationPolicy, nil, m)
	draw, lengths := scriptedDraw(t, "aaa", "bbb", "ccc")
	a.draw = draw

	l, err := a.Allocate(ctx, "https://new.example")
	if err != nil {
		t.Fatal(err)
	}
	if l.ShortCode != "ccc" {
		t.Errorf("got code %q, want ccc", l.ShortCode)
	}
	if len(*lengths) != 3 {
		t.Errorf("drew %d candidates, want 3", len(*lengths))
	}
	if got := testutil.ToFloat64(m.collisions); got != 2 {
		t.Errorf("collision counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.allocations.WithLabelValues("created")); got != 1 {
		t.Errorf("created counter = %v, want 1", got)
	}

	// the colliding links are untouched
	taken, err := s.FindByShortCode(ctx, "aaa")
	if err != nil {
		t.Fatal(err)
	}
	if taken.OriginalURL != "https://taken.example/1" {
		t.Errorf("aaa now points to %q", taken.OriginalURL)
	}
}

func TestAllocateGrowsCodeLength(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s, map[string]string{
		"0": "https://taken.example/0",
		"1": "https://taken.example/1",
	})

	a := NewAllocator(s, AllocationPolicy{StartLength: 1, AttemptsPerLength: 2, MaxAttempts: 10}, nil, nil)
	draw, lengths := scriptedDraw(t, "0", "1", "00")
	a.draw = draw

	l, err := a.Allocate(ctx, "https://grow.example")
	if err != nil {
		t.Fatal(err)
	}
	if l.ShortCode != "00" {
		t.Errorf("got code %q, want 00", l.ShortCode)
	}
	if fmt.Sprint(*lengths) != "[1 1 2]" {
		t.Errorf("requested lengths %v, want [1 1 2]", *lengths)
	}
}

func TestAllocateExhausted(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s, map[string]string{"zzz": "https://taken.example"})

	a := NewAllocator(s, AllocationPolicy{StartLength: 3, AttemptsPerLength: 1, MaxAttempts: 5}, nil, nil)
	draws := 0
	a.draw = func(n int) (string, error) {
		draws++
		return "zzz", nil
	}

	_, err := a.Allocate(ctx, "https://unlucky.example")
	if !xerrors.Is(err, ErrAllocationExhausted) {
		t.Fatalf("expected ErrAllocationExhausted, got %v", err)
	}
	if draws != 5 {
		t.Errorf("drew %d candidates, want 5", draws)
	}
	if _, err := s.FindByOriginalURL(ctx, "https://unlucky.example"); !xerrors.Is(err, ErrNotFound) {
		t.Errorf("exhausted allocation stored a link: %v", err)
	}
}

func TestAllocateDistinctURLsConcurrently(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	// start at length 1 to force collisions between the goroutines
	a := NewAllocator(s, AllocationPolicy{StartLength: 1, AttemptsPerLength: 2, MaxAttempts: 64}, nil, nil)

	const n = 100
	links := make([]Link, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			links[i], errs[i] = a.Allocate(ctx, fmt.Sprintf("https://example.com/%d", i))
		}(i)
	}
	wg.Wait()

	seen := map[string]int{}
	for i, l := range links {
		if errs[i] != nil {
			t.Fatalf("allocation %d failed: %v", i, errs[i])
		}
		if j, ok := seen[l.ShortCode]; ok {
			t.Fatalf("URLs %d and %d got the same code %s", i, j, l.ShortCode)
		}
		seen[l.ShortCode] = i
	}
}

func TestAllocateSameURLConcurrently(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := NewAllocator(s, DefaultAllocationPolicy, nil, nil)

	const n = 20
	codes := make([]string, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var l Link
			l, errs[i] = a.Allocate(ctx, "https://popular.example")
			codes[i] = l.ShortCode
		}(i)
	}
	wg.Wait()

	for i := range codes {
		if errs[i] != nil {
			t.Fatalf("allocation %d failed: %v", i, errs[i])
		}
		if codes[i] != codes[0] {
			t.Fatalf("same URL got codes %s and %s", codes[0], codes[i])
		}
	}
}

// racyStore hides existing links from the first URL lookup, as if another
// allocation committed right after it.
type racyStore struct {
	Store
	lookups int
}

func (r *racyStore) FindByOriginalURL(ctx context.Context, longURL string) (Link, error) {
	r.lookups++
	if r.lookups == 1 {
		return Link{}, ErrNotFound
	}
	return r.Store.FindByOriginalURL(ctx, longURL)
}

func TestAllocateLosesRace(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s, map[string]string{"win": "https://race.example"})

	a := NewAllocator(&racyStore{Store: s}, DefaultAllocationPolicy, nil, nil)
	draw, _ := scriptedDraw(t, "lose")
	a.draw = draw

	l, err := a.Allocate(ctx, "https://race.example")
	if err != nil {
		t.Fatal(err)
	}
	if l.ShortCode != "win" {
		t.Errorf("got code %q, want the winner's code", l.ShortCode)
	}
	if _, err := s.FindByShortCode(ctx, "lose"); !xerrors.Is(err, ErrNotFound) {
		t.Errorf("losing code was stored: %v", err)
	}
}

func TestAllocateStorageUnavailable(t *testing.T) {
	s := newTestStore(t)
	a := NewAllocator(s, DefaultAllocationPolicy, nil, nil)
	s.Close()

	_, err := a.Allocate(context.Background(), "https://example.com")
	if !xerrors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if xerrors.Is(err, ErrAllocationExhausted) {
		t.Error("storage failure must not be reported as exhaustion")
	}
}

func TestRandomCode(t *testing.T) {
	for n := 1; n <= 12; n++ {
		code, err := RandomCode(n)
		if err != nil {
			t.Fatal(err)
		}
		if len(code) != n || !IsCode(code) {
			t.Errorf("RandomCode(%d) = %q", n, code)
		}
	}

	if IsCode("") || IsCode("ab-c") || IsCode("äb") {
		t.Error("IsCode accepted a non-code")
	}
}
