package srs

import (
	"regexp"
	"strings"

	"github.com/ochichan/lazarus/pkg/types"
)

var (
	clozePattern = regexp.MustCompile(`\{\{c\d+::([^}]+)\}\}`)
	qaQuestion   = regexp.MustCompile(`(?i)^#{1,4}\s*Q:\s*(.+)$`)
	qaAnswer     = regexp.MustCompile(`(?i)^#{1,4}\s*A:\s*(.+)$`)
	definition   = regexp.MustCompile(`\*\*(.+?)\*\*:\s*(.+)`)
)

// ExtractCards scans a note body for cloze, Q&A-header, and definition
// patterns and returns newly-minted, unpersisted cards for the caller
// to decide whether to add. It never mutates the SRS store itself.
func ExtractCards(noteID uint64, body string) []types.Card {
	var cards []types.Card
	cards = append(cards, extractCloze(noteID, body)...)
	cards = append(cards, extractQAHeaders(noteID, body)...)
	cards = append(cards, extractDefinitions(noteID, body)...)
	return cards
}

func extractCloze(noteID uint64, body string) []types.Card {
	var cards []types.Card
	for _, line := range strings.Split(body, "\n") {
		m := clozePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		answer := strings.TrimSpace(m[1])
		if answer == "" {
			continue
		}
		front := strings.TrimSpace(clozePattern.ReplaceAllString(line, "[...]"))
		cards = append(cards, types.Card{
			NoteID: noteID,
			Type:   types.CardCloze,
			Front:  front,
			Back:   answer,
		})
	}
	return cards
}

func extractQAHeaders(noteID uint64, body string) []types.Card {
	var cards []types.Card
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		qm := qaQuestion.FindStringSubmatch(line)
		if qm == nil {
			continue
		}
		question := strings.TrimSpace(qm[1])
		if question == "" {
			continue
		}
		for j := i + 1; j < len(lines); j++ {
			trimmed := strings.TrimSpace(lines[j])
			if trimmed == "" {
				continue
			}
			if am := qaAnswer.FindStringSubmatch(lines[j]); am != nil {
				answer := strings.TrimSpace(am[1])
				if answer != "" {
					cards = append(cards, types.Card{
						NoteID: noteID,
						Type:   types.CardBasic,
						Front:  question,
						Back:   answer,
					})
				}
			}
			break
		}
	}
	return cards
}

func extractDefinitions(noteID uint64, body string) []types.Card {
	var cards []types.Card
	for _, m := range definition.FindAllStringSubmatch(body, -1) {
		term := strings.TrimSpace(m[1])
		def := strings.TrimSpace(m[2])
		if term == "" || def == "" {
			continue
		}
		cards = append(cards, types.Card{
			NoteID: noteID,
			Type:   types.CardBasic,
			Front:  term,
			Back:   def,
		})
	}
	return cards
}
