package pseudonym

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrInvalidOffsetRange is returned by Open when the offset bounds are reversed
	ErrInvalidOffsetRange = errors.New("invalid day offset range")
	// ErrUnknownLocale is returned by Open for locales without generators
	ErrUnknownLocale = errors.New("unknown locale")
	// ErrSessionClosed is returned when a closed session is used
	ErrSessionClosed = errors.New("session closed")
)

// Default day offset bounds
const (
	DefaultMinOffsetDays = -300
	DefaultMaxOffsetDays = 10
)

// StatusUnparsed marks a date span that could not be read
const StatusUnparsed = "unparsed"

// Options configures a session. They are captured once by Open.
type Options struct {
	Locale        string
	MinOffsetDays int
	MaxOffsetDays int

	// Source drives every random draw of the session. Nil seeds a fresh
	// source from crypto/rand.
	Source rand.Source
	// Classifier routes NAME spans; nil uses the casing heuristic
	Classifier NameClassifier
	// Backend shares memo tables between processes; nil keeps them local
	Backend Backend
	// Generator overrides the default gofakeit-based generator
	Generator Generator
	// OnUnparsed is called for every date span that could not be read
	OnUnparsed func(Diagnostic)
	Logger     *zap.Logger
}

// DefaultOptions returns French locale options with the default offset range
func DefaultOptions() Options {
	return Options{
		Locale:        "fr",
		MinOffsetDays: DefaultMinOffsetDays,
		MaxOffsetDays: DefaultMaxOffsetDays,
	}
}

// Diagnostic is an audit record for a span left untransformed
type Diagnostic struct {
	SessionID  string    `json:"session_id"`
	Document   string    `json:"document,omitempty"`
	Category   Category  `json:"category"`
	Original   string    `json:"original"`
	Status     string    `json:"status"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Stats summarizes a session without revealing any value
type Stats struct {
	Resolved    map[Category]int64  `json:"resolved"`
	DateFormats map[string]int64    `json:"date_formats"`
	Unparsed    int                 `json:"unparsed"`
	Tables      map[Kind]TableStats `json:"tables"`
}

// Session holds the day offset and memo tables of one document-set run.
// It is safe for concurrent use.
type Session struct {
	id         string
	shifter    *DateShifter
	store      *Store
	classifier NameClassifier
	onUnparsed func(Diagnostic)
	logger     *zap.Logger
	openedAt   time.Time

	mu     sync.RWMutex
	closed bool

	statsMu     sync.Mutex
	resolved    map[Category]int64
	dateFormats map[string]int64
	diagnostics []Diagnostic
}

// Open starts a session, drawing its day offset uniformly from
// [MinOffsetDays, MaxOffsetDays]
func Open(opts Options) (*Session, error) {
	if opts.MinOffsetDays > opts.MaxOffsetDays {
		return nil, fmt.Errorf("%w: min %d > max %d", ErrInvalidOffsetRange, opts.MinOffsetDays, opts.MaxOffsetDays)
	}
	if opts.Locale == "" {
		opts.Locale = "fr"
	}
	if opts.Locale != "fr" && opts.Locale != "en" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLocale, opts.Locale)
	}

	src := opts.Source
	if src == nil {
		seed, err := randomSeed()
		if err != nil {
			return nil, fmt.Errorf("failed to seed random source: %w", err)
		}
		src = rand.NewSource(seed)
	}
	locked := &lockedSource{src: src}
	offset := opts.MinOffsetDays + rand.New(locked).Intn(opts.MaxOffsetDays-opts.MinOffsetDays+1)

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	classifier := opts.Classifier
	if classifier == nil {
		classifier = NewCasingClassifier()
	}
	gen := opts.Generator
	if gen == nil {
		gen = NewFakerGenerator(opts.Locale, locked)
	}

	id := uuid.NewString()
	logger = logger.With(zap.String("session_id", id))

	s := &Session{
		id:          id,
		shifter:     NewDateShifter(NewCatalog(opts.Locale), offset),
		store:       NewStore(id, gen, opts.Backend, logger),
		classifier:  classifier,
		onUnparsed:  opts.OnUnparsed,
		logger:      logger,
		openedAt:    time.Now(),
		resolved:    make(map[Category]int64),
		dateFormats: make(map[string]int64),
	}

	logger.Info("Pseudonymization session opened",
		zap.String("locale", opts.Locale),
		zap.Bool("shared_store", opts.Backend != nil))

	return s, nil
}

func randomSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Pseudonymize returns the substitute for text. Unknown categories pass
// through unchanged, as do dates that cannot be read; the latter are
// recorded as diagnostics.
func (s *Session) Pseudonymize(ctx context.Context, text string, category Category) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", ErrSessionClosed
	}

	var out string
	switch category {
	case CategoryName:
		out = s.store.Resolve(ctx, s.classifier.Classify(text), text)
	case CategoryFirstName:
		out = s.store.Resolve(ctx, KindFirstName, text)
	case CategoryLocation:
		out = s.store.Resolve(ctx, KindLocation, text)
	case CategoryPhone:
		out = s.store.Resolve(ctx, KindPhone, text)
	case CategoryPostalCode:
		out = s.store.Resolve(ctx, KindPostalCode, text)
	case CategoryEmail:
		out = s.store.Resolve(ctx, KindEmail, text)
	case CategoryDate:
		out = s.shiftDate(ctx, text)
	default:
		return text, nil
	}

	s.statsMu.Lock()
	s.resolved[category]++
	s.statsMu.Unlock()
	return out, nil
}

// PseudonymizeLabel is Pseudonymize for a raw recognizer label
func (s *Session) PseudonymizeLabel(ctx context.Context, text, label string) (string, error) {
	return s.Pseudonymize(ctx, text, ParseLabel(label))
}

type documentKey struct{}

// WithDocument tags ctx with the document being processed so diagnostics
// can point back to it
func WithDocument(ctx context.Context, document string) context.Context {
	return context.WithValue(ctx, documentKey{}, document)
}

func documentFrom(ctx context.Context) string {
	doc, _ := ctx.Value(documentKey{}).(string)
	return doc
}

func (s *Session) shiftDate(ctx context.Context, text string) string {
	out, tok := s.shifter.Shift(text)
	if tok.Parsed {
		s.statsMu.Lock()
		s.dateFormats[tok.FormatID]++
		s.statsMu.Unlock()
		return out
	}

	d := Diagnostic{
		SessionID:  s.id,
		Document:   documentFrom(ctx),
		Category:   CategoryDate,
		Original:   text,
		Status:     StatusUnparsed,
		RecordedAt: time.Now(),
	}
	s.statsMu.Lock()
	s.diagnostics = append(s.diagnostics, d)
	s.statsMu.Unlock()

	s.logger.Warn("Date span not recognized, left unchanged", zap.Int("length", len(text)))
	if s.onUnparsed != nil {
		s.onUnparsed(d)
	}
	return out
}

// Diagnostics returns the spans the session left untransformed
func (s *Session) Diagnostics() []Diagnostic {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	out := make([]Diagnostic, len(s.diagnostics))
	copy(out, s.diagnostics)
	return out
}

// Stats returns counters for the session
func (s *Session) Stats() Stats {
	s.statsMu.Lock()
	st := Stats{
		Resolved:    make(map[Category]int64, len(s.resolved)),
		DateFormats: make(map[string]int64, len(s.dateFormats)),
		Unparsed:    len(s.diagnostics),
	}
	for k, v := range s.resolved {
		st.Resolved[k] = v
	}
	for k, v := range s.dateFormats {
		st.DateFormats[k] = v
	}
	s.statsMu.Unlock()

	st.Tables = s.store.Stats()
	return st
}

// Close discards the session state. Further calls to Pseudonymize fail with
// ErrSessionClosed; closing twice is a no-op.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.store.discard(ctx)
	s.shifter = nil

	s.logger.Info("Pseudonymization session closed",
		zap.Duration("duration", time.Since(s.openedAt)),
		zap.Int("unparsed_dates", len(s.Diagnostics())))

	if err != nil {
		return fmt.Errorf("failed to purge shared store: %w", err)
	}
	return nil
}
