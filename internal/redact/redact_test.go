package redact

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/raaihank/rcp-pseudonymizer/internal/pseudonym"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openSession(t *testing.T) *pseudonym.Session {
	t.Helper()
	opts := pseudonym.DefaultOptions()
	opts.MinOffsetDays, opts.MaxOffsetDays = -10, -10
	opts.Source = rand.NewSource(3)
	s, err := pseudonym.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func defaultRecognizers(t *testing.T) []Recognizer {
	t.Helper()
	rules, err := NewRuleRecognizer(GetDefaultRules(), []string{"all"}, zap.NewNop())
	require.NoError(t, err)
	return []Recognizer{NewKnownIdentifiers([]string{"POITIERS", "CHU LA MILETRIE", "CHU"}, ""), rules}
}

func TestRuleRecognizer(t *testing.T) {
	t.Run("enable all", func(t *testing.T) {
		r, err := NewRuleRecognizer(GetDefaultRules(), []string{"all"}, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, []string{"date", "email", "phone", "postal_code"}, r.EnabledRules())
	})

	t.Run("unknown rule", func(t *testing.T) {
		_, err := NewRuleRecognizer(GetDefaultRules(), []string{"secu"}, zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("matches", func(t *testing.T) {
		r, err := NewRuleRecognizer(GetDefaultRules(), []string{"all"}, zap.NewNop())
		require.NoError(t, err)

		text := "Contact: 05 49 44 44 44, secretariat@chu-poitiers.fr. 86000 Poitiers, vu le 12/03/2021."
		spans, err := r.Recognize(context.Background(), text)
		require.NoError(t, err)
		assert.ElementsMatch(t, []Span{
			{Text: "05 49 44 44 44", Label: "TEL"},
			{Text: "secretariat@chu-poitiers.fr", Label: "MAIL"},
			{Text: "86000", Label: "ZIP"},
			{Text: "12/03/2021", Label: "DATE"},
		}, spans)
	})

	t.Run("disabled rules stay silent", func(t *testing.T) {
		r, err := NewRuleRecognizer(GetDefaultRules(), []string{"email"}, zap.NewNop())
		require.NoError(t, err)

		spans, err := r.Recognize(context.Background(), "05 49 44 44 44 le 12/03/2021")
		require.NoError(t, err)
		assert.Empty(t, spans)
	})
}

func TestKnownIdentifiers(t *testing.T) {
	k := NewKnownIdentifiers([]string{"CHU", "CHU LA MILETRIE", "  "}, "")

	spans, err := k.Recognize(context.Background(), "Adressé au Chu La Miletrie puis au CHU de Niort")
	require.NoError(t, err)
	assert.Equal(t, []Span{
		{Text: "Chu La Miletrie", Label: "LOCATION"},
		{Text: "CHU", Label: "LOCATION"},
	}, spans)

	empty := NewKnownIdentifiers(nil, "VILLE")
	spans, err = empty.Recognize(context.Background(), "Niort")
	require.NoError(t, err)
	assert.Empty(t, spans)
}

func TestRedactText(t *testing.T) {
	s := openSession(t)
	text := "Patient adressé au CHU LA MILETRIE le 12/03/2021. Tél 05 49 44 44 44, revu à POITIERS."

	out, report, err := RedactText(context.Background(), s, 1, text, zap.NewNop(), defaultRecognizers(t)...)
	require.NoError(t, err)

	for _, original := range []string{"CHU LA MILETRIE", "12/03/2021", "05 49 44 44 44", "POITIERS"} {
		assert.NotContains(t, out, original)
	}
	assert.Contains(t, out, "02/03/2021")
	assert.True(t, strings.HasPrefix(out, "Patient adressé au "))

	assert.Equal(t, 1, report.Page)
	assert.Equal(t, 4, report.Spans)
	assert.Equal(t, 0, report.Passthrough)
	assert.Equal(t, 2, report.PerCategory[pseudonym.CategoryLocation])
	assert.Equal(t, 1, report.PerCategory[pseudonym.CategoryDate])
	assert.Equal(t, 1, report.PerCategory[pseudonym.CategoryPhone])
}

func TestProcessPageConsistentAcrossPages(t *testing.T) {
	s := openSession(t)
	o := NewOrchestrator(s, nil, zap.NewNop(), defaultRecognizers(t)...)

	_, first, err := o.ProcessPage(context.Background(), 1, "Hospitalisé à POITIERS.")
	require.NoError(t, err)
	_, second, err := o.ProcessPage(context.Background(), 2, "Sortie de POITIERS, retour à POITIERS.")
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Substitute, second[0].Substitute)
}

func TestProcessPagePassthrough(t *testing.T) {
	s := openSession(t)
	secu := RecognizerFunc(func(context.Context, string) ([]Span, error) {
		return []Span{{Text: "1 85 05 78 006 084 36", Label: "SECU"}}, nil
	})

	text := "NIR 1 85 05 78 006 084 36"
	out, report, err := RedactText(context.Background(), s, 3, text, zap.NewNop(), secu)
	require.NoError(t, err)
	assert.Equal(t, text, out)
	assert.Equal(t, 1, report.Spans)
	assert.Equal(t, 1, report.Passthrough)
	assert.Empty(t, report.PerCategory)
}

func TestProcessPageErrors(t *testing.T) {
	t.Run("recognizer failure", func(t *testing.T) {
		s := openSession(t)
		boom := errors.New("model unavailable")
		failing := RecognizerFunc(func(context.Context, string) ([]Span, error) { return nil, boom })

		_, _, err := NewOrchestrator(s, nil, zap.NewNop(), failing).ProcessPage(context.Background(), 1, "texte")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("closed session", func(t *testing.T) {
		s := openSession(t)
		require.NoError(t, s.Close(context.Background()))

		_, _, err := RedactText(context.Background(), s, 1, "à POITIERS", zap.NewNop(), defaultRecognizers(t)...)
		assert.ErrorIs(t, err, pseudonym.ErrSessionClosed)
	})
}

func TestTextRewriter(t *testing.T) {
	ctx := context.Background()

	t.Run("longest span wins", func(t *testing.T) {
		w := NewTextRewriter()
		require.NoError(t, w.Rewrite(ctx, 1, Span{Text: "Jean", Label: "FIRST_NAME"}, "Luc"))
		require.NoError(t, w.Rewrite(ctx, 1, Span{Text: "Jean Dupont", Label: "NAME"}, "Marc Petit"))

		assert.Equal(t, "Marc Petit, puis Luc", w.Apply(1, "Jean Dupont, puis Jean"))
	})

	t.Run("substitutes are not rewritten again", func(t *testing.T) {
		w := NewTextRewriter()
		require.NoError(t, w.Rewrite(ctx, 1, Span{Text: "Niort", Label: "LOCATION"}, "Poitiers"))
		require.NoError(t, w.Rewrite(ctx, 1, Span{Text: "Poitiers", Label: "LOCATION"}, "Angers"))

		assert.Equal(t, "Poitiers et Angers", w.Apply(1, "Niort et Poitiers"))
	})

	t.Run("pages are independent", func(t *testing.T) {
		w := NewTextRewriter()
		require.NoError(t, w.Rewrite(ctx, 1, Span{Text: "Niort", Label: "LOCATION"}, "Angers"))

		assert.Equal(t, "Niort", w.Apply(2, "Niort"))
		assert.Equal(t, "Angers", w.Apply(1, "Niort"))
		assert.Equal(t, "Niort", w.Apply(1, "Niort"), "queue is cleared after Apply")
	})
}
