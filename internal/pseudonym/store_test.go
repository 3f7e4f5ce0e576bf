package pseudonym

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"
)

// counterGenerator returns numbered values so every draw is distinct
type counterGenerator struct {
	mu sync.Mutex
	n  int
}

func (g *counterGenerator) next(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s%d", prefix, g.n)
}

func (g *counterGenerator) FirstName() string  { return g.next("first") }
func (g *counterGenerator) LastName() string   { return g.next("last") }
func (g *counterGenerator) Location() string   { return g.next("city") }
func (g *counterGenerator) Phone() string      { return g.next("phone") }
func (g *counterGenerator) PostalCode() string { return g.next("zip") }
func (g *counterGenerator) Email() string      { return g.next("mail") }

// mapBackend is an in-memory Backend shared between stores
type mapBackend struct {
	mu     sync.Mutex
	values map[string]string
	purged []string
}

func newMapBackend() *mapBackend {
	return &mapBackend{values: make(map[string]string)}
}

func (b *mapBackend) key(sessionID string, kind Kind, original string) string {
	return sessionID + "|" + string(kind) + "|" + original
}

func (b *mapBackend) Lookup(_ context.Context, sessionID string, kind Kind, original string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.values[b.key(sessionID, kind, original)]
	return v, ok, nil
}

func (b *mapBackend) Insert(_ context.Context, sessionID string, kind Kind, original, substitute string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := b.key(sessionID, kind, original)
	if v, ok := b.values[k]; ok {
		return v, nil
	}
	b.values[k] = substitute
	return substitute, nil
}

func (b *mapBackend) Purge(_ context.Context, sessionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.purged = append(b.purged, sessionID)
	return nil
}

type failingBackend struct{}

var errBackendDown = errors.New("backend down")

func (failingBackend) Lookup(context.Context, string, Kind, string) (string, bool, error) {
	return "", false, errBackendDown
}

func (failingBackend) Insert(context.Context, string, Kind, string, string) (string, error) {
	return "", errBackendDown
}

func (failingBackend) Purge(context.Context, string) error { return errBackendDown }

func TestStoreResolveIsConsistent(t *testing.T) {
	ctx := context.Background()
	store := NewStore("s1", &counterGenerator{}, nil, zap.NewNop())

	for _, kind := range []Kind{KindFirstName, KindLastName, KindLocation, KindPhone, KindPostalCode, KindEmail} {
		t.Run(string(kind), func(t *testing.T) {
			a := store.Resolve(ctx, kind, "original")
			b := store.Resolve(ctx, kind, "original")
			if a != b {
				t.Errorf("same original resolved to %q then %q", a, b)
			}
			if c := store.Resolve(ctx, kind, "other"); c == a {
				t.Errorf("distinct originals share substitute %q", c)
			}
			if store.Len(kind) != 2 {
				t.Errorf("table has %d entries, want 2", store.Len(kind))
			}
		})
	}
}

func TestStoreTablesAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := NewStore("s1", &counterGenerator{}, nil, zap.NewNop())

	first := store.Resolve(ctx, KindFirstName, "Paris")
	city := store.Resolve(ctx, KindLocation, "Paris")
	if first == city {
		t.Errorf("first name and location tables share %q", first)
	}
}

func TestStoreFullName(t *testing.T) {
	ctx := context.Background()
	store := NewStore("s1", &counterGenerator{}, nil, zap.NewNop())

	full := store.Resolve(ctx, KindFullName, "Jean Paul Dupont")
	first := store.Resolve(ctx, KindFirstName, "Jean Paul")
	last := store.Resolve(ctx, KindLastName, "Dupont")

	if want := first + " " + last; full != want {
		t.Errorf("full name = %q, want %q", full, want)
	}
	if again := store.Resolve(ctx, KindFullName, "Jean Paul Dupont"); again != full {
		t.Errorf("full name resolved to %q then %q", full, again)
	}
	if store.Len(KindFullName) != 1 || store.Len(KindFirstName) != 1 || store.Len(KindLastName) != 1 {
		t.Errorf("unexpected table sizes: %v", store.Stats())
	}
}

func TestSplitFullName(t *testing.T) {
	tests := []struct {
		in, first, last string
	}{
		{"Jean Dupont", "Jean", "Dupont"},
		{"Jean  Paul\tDupont", "Jean Paul", "Dupont"},
		{"Dupont", "", "Dupont"},
		{"", "", ""},
	}
	for _, tt := range tests {
		first, last := splitFullName(tt.in)
		if first != tt.first || last != tt.last {
			t.Errorf("splitFullName(%q) = (%q, %q), want (%q, %q)", tt.in, first, last, tt.first, tt.last)
		}
	}
}

func TestStoreUnknownKind(t *testing.T) {
	store := NewStore("s1", &counterGenerator{}, nil, zap.NewNop())
	if got := store.Resolve(context.Background(), Kind("other"), "x"); got != "x" {
		t.Errorf("unknown kind resolved to %q", got)
	}
}

func TestStoreConcurrentFirstUse(t *testing.T) {
	ctx := context.Background()
	store := NewStore("s1", &counterGenerator{}, nil, zap.NewNop())

	const workers = 32
	results := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = store.Resolve(ctx, KindLastName, "Martin")
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		if r != results[0] {
			t.Fatalf("worker %d got %q, worker 0 got %q", i, r, results[0])
		}
	}
	if st := store.Stats()[KindLastName]; st.Misses != 1 || st.Hits != workers-1 {
		t.Errorf("stats = %+v, want 1 miss and %d hits", st, workers-1)
	}
}

func TestStoreSharedBackend(t *testing.T) {
	ctx := context.Background()
	backend := newMapBackend()

	a := NewStore("shared", &counterGenerator{}, backend, zap.NewNop())
	b := NewStore("shared", &counterGenerator{n: 1000}, backend, zap.NewNop())

	va := a.Resolve(ctx, KindLocation, "Lyon")
	vb := b.Resolve(ctx, KindLocation, "Lyon")
	if va != vb {
		t.Errorf("stores sharing a backend disagree: %q vs %q", va, vb)
	}

	other := NewStore("elsewhere", &counterGenerator{n: 2000}, backend, zap.NewNop())
	if vo := other.Resolve(ctx, KindLocation, "Lyon"); vo == va {
		t.Errorf("distinct sessions share substitute %q", vo)
	}

	if err := a.discard(ctx); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if len(backend.purged) != 1 || backend.purged[0] != "shared" {
		t.Errorf("purged = %v, want [shared]", backend.purged)
	}
	if a.Len(KindLocation) != 0 {
		t.Errorf("local table not cleared")
	}
}

func TestStoreBackendFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	store := NewStore("s1", &counterGenerator{}, failingBackend{}, zap.NewNop())

	a := store.Resolve(ctx, KindPhone, "01 02 03 04 05")
	b := store.Resolve(ctx, KindPhone, "01 02 03 04 05")
	if a == "" || a != b {
		t.Errorf("fallback not consistent: %q then %q", a, b)
	}
	if err := store.discard(ctx); !errors.Is(err, errBackendDown) {
		t.Errorf("discard error = %v, want %v", err, errBackendDown)
	}
}
