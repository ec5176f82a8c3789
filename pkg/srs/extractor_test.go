package srs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractClozeCards(t *testing.T) {
	body := "Newton's second law: F = {{c1::ma}}\nEnergy: E = {{c2::mc^2}}"
	cards := extractCloze(1, body)
	require.Len(t, cards, 2)
	require.Equal(t, "ma", cards[0].Back)
	require.Contains(t, cards[0].Front, "[...]")
	require.Equal(t, "mc^2", cards[1].Back)
}

func TestExtractQAHeaders(t *testing.T) {
	body := "### Q: What is inertia?\n### A: The tendency to resist a change in motion."
	cards := extractQAHeaders(1, body)
	require.Len(t, cards, 1)
	require.Contains(t, cards[0].Front, "inertia")
	require.Contains(t, cards[0].Back, "tendency")
}

func TestExtractQAHeadersRequiresAnswer(t *testing.T) {
	body := "### Q: What is inertia?\nSome unrelated text, no answer header."
	cards := extractQAHeaders(1, body)
	require.Empty(t, cards)
}

func TestExtractDefinitions(t *testing.T) {
	body := "**Inertia**: resistance to change in motion\n**Velocity**: rate of change of position"
	cards := extractDefinitions(1, body)
	require.Len(t, cards, 2)
	require.Equal(t, "Inertia", cards[0].Front)
	require.Equal(t, "Velocity", cards[1].Front)
}

func TestExtractCardsCombinesAllPatterns(t *testing.T) {
	body := "{{c1::answer}}\n### Q: q?\n### A: a.\n**Term**: def"
	cards := ExtractCards(42, body)
	require.Len(t, cards, 3)
	for _, c := range cards {
		require.Equal(t, uint64(42), c.NoteID)
	}
}
