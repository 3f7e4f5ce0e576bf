package pseudonym

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Backend is a store shared by several processes working on the same
// session. Insert must be an atomic get-or-insert: when another writer got
// there first, the stored value is returned instead of substitute.
type Backend interface {
	Lookup(ctx context.Context, sessionID string, kind Kind, original string) (string, bool, error)
	Insert(ctx context.Context, sessionID string, kind Kind, original, substitute string) (string, error)
	Purge(ctx context.Context, sessionID string) error
}

// table is one memo table; its mutex makes get-or-insert atomic per kind
type table struct {
	mu     sync.Mutex
	values map[string]string
	hits   int64
	misses int64
}

// Store memoizes substitutes per kind. A given original always resolves to
// the same substitute for the lifetime of the store.
type Store struct {
	sessionID string
	tables    map[Kind]*table
	gen       Generator
	backend   Backend
	logger    *zap.Logger
}

// NewStore returns an empty store. backend may be nil.
func NewStore(sessionID string, gen Generator, backend Backend, logger *zap.Logger) *Store {
	tables := make(map[Kind]*table, len(Kinds()))
	for _, k := range Kinds() {
		tables[k] = &table{values: make(map[string]string)}
	}
	return &Store{
		sessionID: sessionID,
		tables:    tables,
		gen:       gen,
		backend:   backend,
		logger:    logger,
	}
}

// Resolve returns the substitute for original in the given table, creating
// it on first use. Full names are composed from the first-name substitute
// of every token but the last and the last-name substitute of the last one.
func (s *Store) Resolve(ctx context.Context, kind Kind, original string) string {
	switch kind {
	case KindFirstName:
		return s.resolve(ctx, kind, original, s.gen.FirstName)
	case KindLastName:
		return s.resolve(ctx, kind, original, s.gen.LastName)
	case KindFullName:
		return s.resolve(ctx, kind, original, func() string {
			first, last := splitFullName(original)
			return s.Resolve(ctx, KindFirstName, first) + " " + s.Resolve(ctx, KindLastName, last)
		})
	case KindLocation:
		return s.resolve(ctx, kind, original, s.gen.Location)
	case KindPhone:
		return s.resolve(ctx, kind, original, s.gen.Phone)
	case KindPostalCode:
		return s.resolve(ctx, kind, original, s.gen.PostalCode)
	case KindEmail:
		return s.resolve(ctx, kind, original, s.gen.Email)
	}
	return original
}

// splitFullName splits on whitespace: every token but the last is the
// first-name part
func splitFullName(full string) (first, last string) {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return "", ""
	}
	return strings.Join(fields[:len(fields)-1], " "), fields[len(fields)-1]
}

func (s *Store) resolve(ctx context.Context, kind Kind, original string, create func() string) string {
	t := s.tables[kind]
	t.mu.Lock()
	defer t.mu.Unlock()

	if v, ok := t.values[original]; ok {
		t.hits++
		return v
	}
	t.misses++

	v := s.shared(ctx, kind, original, create)
	t.values[original] = v
	return v
}

// shared consults the backend when one is configured. Backend failures fall
// back to a locally generated value, which stays consistent within this
// process.
func (s *Store) shared(ctx context.Context, kind Kind, original string, create func() string) string {
	if s.backend == nil {
		return create()
	}

	v, ok, err := s.backend.Lookup(ctx, s.sessionID, kind, original)
	if err != nil {
		s.logger.Warn("Shared store lookup failed, using local value",
			zap.String("kind", string(kind)),
			zap.Error(err))
		return create()
	}
	if ok {
		return v
	}

	candidate := create()
	winner, err := s.backend.Insert(ctx, s.sessionID, kind, original, candidate)
	if err != nil {
		s.logger.Warn("Shared store insert failed, using local value",
			zap.String("kind", string(kind)),
			zap.Error(err))
		return candidate
	}
	return winner
}

// TableStats reports activity of one memo table
type TableStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// Stats returns per-table counters
func (s *Store) Stats() map[Kind]TableStats {
	out := make(map[Kind]TableStats, len(s.tables))
	for k, t := range s.tables {
		t.mu.Lock()
		out[k] = TableStats{Entries: len(t.values), Hits: t.hits, Misses: t.misses}
		t.mu.Unlock()
	}
	return out
}

// Len returns the number of entries in a table
func (s *Store) Len(kind Kind) int {
	t, ok := s.tables[kind]
	if !ok {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.values)
}

// discard drops every entry and purges the shared backend
func (s *Store) discard(ctx context.Context) error {
	for _, t := range s.tables {
		t.mu.Lock()
		t.values = make(map[string]string)
		t.mu.Unlock()
	}
	if s.backend != nil {
		return s.backend.Purge(ctx, s.sessionID)
	}
	return nil
}
