package pseudonym

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func openTestSession(t *testing.T, opts Options) *Session {
	t.Helper()
	s, err := Open(opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func fixedOffset(days int) Options {
	opts := DefaultOptions()
	opts.MinOffsetDays = days
	opts.MaxOffsetDays = days
	opts.Source = rand.NewSource(1)
	return opts
}

func TestOpenValidation(t *testing.T) {
	t.Run("reversed range", func(t *testing.T) {
		opts := DefaultOptions()
		opts.MinOffsetDays, opts.MaxOffsetDays = 10, -10
		if _, err := Open(opts); !errors.Is(err, ErrInvalidOffsetRange) {
			t.Errorf("err = %v, want %v", err, ErrInvalidOffsetRange)
		}
	})

	t.Run("unknown locale", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Locale = "xx"
		if _, err := Open(opts); !errors.Is(err, ErrUnknownLocale) {
			t.Errorf("err = %v, want %v", err, ErrUnknownLocale)
		}
	})

	t.Run("empty locale defaults to french", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Locale = ""
		openTestSession(t, opts)
	})

	t.Run("single day range", func(t *testing.T) {
		openTestSession(t, fixedOffset(0))
	})
}

func TestSessionDates(t *testing.T) {
	ctx := context.Background()
	s := openTestSession(t, fixedOffset(-10))

	tests := map[string]string{
		"15/03/2021": "05/03/2021",
		"Mars 2021":  "Février 2021",
		"15.03.21":   "05.03.21",
		"2021":       "2020",
		"??/??":      "??/??",
	}
	for in, want := range tests {
		got, err := s.Pseudonymize(ctx, in, CategoryDate)
		if err != nil {
			t.Fatalf("Pseudonymize(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("Pseudonymize(%q) = %q, want %q", in, got, want)
		}
	}

	st := s.Stats()
	if st.Resolved[CategoryDate] != int64(len(tests)) {
		t.Errorf("resolved dates = %d, want %d", st.Resolved[CategoryDate], len(tests))
	}
	if st.DateFormats["day_month_year"] != 1 || st.DateFormats["year"] != 1 {
		t.Errorf("date formats = %v", st.DateFormats)
	}
	if st.Unparsed != 1 {
		t.Errorf("unparsed = %d, want 1", st.Unparsed)
	}
}

func TestSessionOffsetInRange(t *testing.T) {
	ctx := context.Background()
	for seed := int64(0); seed < 50; seed++ {
		opts := DefaultOptions()
		opts.MinOffsetDays, opts.MaxOffsetDays = -3, 3
		opts.Source = rand.NewSource(seed)
		s := openTestSession(t, opts)

		got, err := s.Pseudonymize(ctx, "15/06/2021", CategoryDate)
		if err != nil {
			t.Fatal(err)
		}
		switch got {
		case "12/06/2021", "13/06/2021", "14/06/2021", "15/06/2021", "16/06/2021", "17/06/2021", "18/06/2021":
		default:
			t.Fatalf("seed %d shifted outside [-3, 3]: %q", seed, got)
		}
	}
}

func TestSessionConsistency(t *testing.T) {
	ctx := context.Background()
	s := openTestSession(t, DefaultOptions())

	spans := []struct {
		text     string
		category Category
	}{
		{"DUPONT", CategoryName},
		{"Marie", CategoryName},
		{"Marie Curie", CategoryName},
		{"Marie", CategoryFirstName},
		{"Lyon", CategoryLocation},
		{"06 12 34 56 78", CategoryPhone},
		{"75011", CategoryPostalCode},
		{"marie.curie@example.org", CategoryEmail},
		{"12/04/2019", CategoryDate},
	}

	first := make([]string, len(spans))
	for i, sp := range spans {
		out, err := s.Pseudonymize(ctx, sp.text, sp.category)
		if err != nil {
			t.Fatal(err)
		}
		first[i] = out
	}
	for round := 0; round < 3; round++ {
		for i, sp := range spans {
			out, _ := s.Pseudonymize(ctx, sp.text, sp.category)
			if out != first[i] {
				t.Errorf("%s %q resolved to %q then %q", sp.category, sp.text, first[i], out)
			}
		}
	}

	// NAME routed through the first-name table shares its substitutes
	name, _ := s.Pseudonymize(ctx, "Marie", CategoryName)
	firstName, _ := s.Pseudonymize(ctx, "Marie", CategoryFirstName)
	if name != firstName {
		t.Errorf("title-cased NAME %q and FIRST_NAME %q differ", name, firstName)
	}

	full, _ := s.Pseudonymize(ctx, "Marie Curie", CategoryName)
	if !strings.HasPrefix(full, firstName+" ") {
		t.Errorf("full name %q does not start with first-name substitute %q", full, firstName)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	ctx := context.Background()
	values := []struct {
		text     string
		category Category
	}{
		{"DUPONT", CategoryName},
		{"Lyon", CategoryLocation},
		{"06 12 34 56 78", CategoryPhone},
		{"75011", CategoryPostalCode},
		{"Jean", CategoryFirstName},
	}

	render := func(s *Session) string {
		var parts []string
		for _, v := range values {
			out, err := s.Pseudonymize(ctx, v.text, v.category)
			if err != nil {
				t.Fatal(err)
			}
			parts = append(parts, out)
		}
		return strings.Join(parts, "|")
	}

	a := openTestSession(t, DefaultOptions())
	b := openTestSession(t, DefaultOptions())
	if a.ID() == b.ID() {
		t.Fatalf("sessions share id %s", a.ID())
	}
	if render(a) == render(b) {
		t.Errorf("two independently seeded sessions produced identical substitutes")
	}
}

func TestSessionIsDeterministicForSeed(t *testing.T) {
	ctx := context.Background()
	run := func() []string {
		opts := DefaultOptions()
		opts.Source = rand.NewSource(2024)
		s := openTestSession(t, opts)
		var out []string
		for _, in := range []string{"Jean", "DUPONT", "Paris"} {
			v, _ := s.Pseudonymize(ctx, in, CategoryName)
			out = append(out, v)
		}
		d, _ := s.Pseudonymize(ctx, "01/01/2020", CategoryDate)
		return append(out, d)
	}

	a, b := run(), run()
	if strings.Join(a, "|") != strings.Join(b, "|") {
		t.Errorf("same seed gave %v and %v", a, b)
	}
}

func TestSessionPassthrough(t *testing.T) {
	ctx := context.Background()
	s := openTestSession(t, DefaultOptions())

	for _, label := range []string{"HOSPITAL", "misc", ""} {
		got, err := s.PseudonymizeLabel(ctx, "Hôpital Nord", label)
		if err != nil {
			t.Fatal(err)
		}
		if got != "Hôpital Nord" {
			t.Errorf("label %q rewrote text to %q", label, got)
		}
	}
	if n := s.Stats().Resolved[CategoryOther]; n != 0 {
		t.Errorf("passthrough spans counted: %d", n)
	}

	got, _ := s.PseudonymizeLabel(ctx, "Trifouillis-les-Oies", "ville")
	if got == "Trifouillis-les-Oies" {
		t.Errorf("VILLE label not treated as a location")
	}
}

func TestSessionEmptyName(t *testing.T) {
	s := openTestSession(t, DefaultOptions())
	a, err := s.Pseudonymize(context.Background(), "", CategoryName)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := s.Pseudonymize(context.Background(), "", CategoryName)
	if a == "" || a != b {
		t.Errorf("empty name resolved to %q then %q", a, b)
	}
}

func TestSessionClose(t *testing.T) {
	ctx := context.Background()
	backend := newMapBackend()
	opts := DefaultOptions()
	opts.Backend = backend

	s, err := Open(opts)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Pseudonymize(ctx, "Lyon", CategoryLocation); err != nil {
		t.Fatal(err)
	}

	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if len(backend.purged) != 1 || backend.purged[0] != s.ID() {
		t.Errorf("purged = %v, want [%s]", backend.purged, s.ID())
	}

	if _, err := s.Pseudonymize(ctx, "Lyon", CategoryLocation); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("err = %v, want %v", err, ErrSessionClosed)
	}
}

func TestSessionClosePurgeError(t *testing.T) {
	opts := DefaultOptions()
	opts.Backend = failingBackend{}
	s, err := Open(opts)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(context.Background()); !errors.Is(err, errBackendDown) {
		t.Errorf("Close err = %v, want %v", err, errBackendDown)
	}
}

func TestSessionUnparsedDiagnostics(t *testing.T) {
	ctx := WithDocument(context.Background(), "cr-2021-0042.pdf")
	core, logs := observer.New(zap.InfoLevel)

	var mu sync.Mutex
	var reported []Diagnostic
	opts := fixedOffset(-10)
	opts.Logger = zap.New(core)
	opts.OnUnparsed = func(d Diagnostic) {
		mu.Lock()
		reported = append(reported, d)
		mu.Unlock()
	}
	s := openTestSession(t, opts)

	got, err := s.Pseudonymize(ctx, "le jour d'avant", CategoryDate)
	if err != nil {
		t.Fatal(err)
	}
	if got != "le jour d'avant" {
		t.Errorf("unparsed date rewritten to %q", got)
	}

	diags := s.Diagnostics()
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %v, want one", diags)
	}
	if diags[0].Status != StatusUnparsed || diags[0].Original != "le jour d'avant" || diags[0].SessionID != s.ID() {
		t.Errorf("diagnostic = %+v", diags[0])
	}
	if diags[0].Document != "cr-2021-0042.pdf" {
		t.Errorf("document = %q", diags[0].Document)
	}
	if len(reported) != 1 {
		t.Errorf("OnUnparsed called %d times, want 1", len(reported))
	}

	for _, entry := range logs.All() {
		for _, f := range entry.Context {
			if f.String == "le jour d'avant" {
				t.Errorf("log entry %q leaks span text", entry.Message)
			}
			if f.Key == "offset" || f.Key == "offset_days" {
				t.Errorf("log entry %q leaks the day offset", entry.Message)
			}
		}
	}
}

func TestSessionConcurrentUse(t *testing.T) {
	ctx := context.Background()
	s := openTestSession(t, DefaultOptions())

	names := []string{"DUPONT", "MARTIN", "Jean", "Marie Curie", "BERNARD"}
	const workers = 16
	results := make([][]string, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for _, n := range names {
				out, err := s.Pseudonymize(ctx, n, CategoryName)
				if err != nil {
					t.Error(err)
					return
				}
				results[w] = append(results[w], out)
			}
		}(w)
	}
	wg.Wait()

	for w := 1; w < workers; w++ {
		if strings.Join(results[w], "|") != strings.Join(results[0], "|") {
			t.Fatalf("worker %d saw %v, worker 0 saw %v", w, results[w], results[0])
		}
	}
}
