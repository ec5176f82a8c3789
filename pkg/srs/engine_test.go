package srs

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ochichan/lazarus/pkg/types"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestAddCardAppendsWithoutRewrite(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(filepath.Join(dir, "srs.jsonl"))
	require.NoError(t, err)

	id, err := e.AddCard(types.Card{Type: types.CardBasic, Front: "Q1", Back: "A1"})
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)

	id2, err := e.AddCard(types.Card{Type: types.CardBasic, Front: "Q2", Back: "A2"})
	require.NoError(t, err)
	require.Equal(t, uint64(2), id2)

	reopened, err := Open(filepath.Join(dir, "srs.jsonl"))
	require.NoError(t, err)
	require.Equal(t, 2, reopened.Count())
	c, ok := reopened.GetCard(1)
	require.True(t, ok)
	require.Equal(t, "Q1", c.Front)
}

func TestDueCardsTreatsZeroAndPastAsDue(t *testing.T) {
	e, err := Open(filepath.Join(t.TempDir(), "srs.jsonl"))
	require.NoError(t, err)
	e.now = fixedClock(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))

	id, err := e.AddCard(types.Card{Type: types.CardBasic, Front: "Q", Back: "A"})
	require.NoError(t, err)
	require.Len(t, e.DueCards(), 1)

	card, _ := e.GetCard(id)
	card.SrsData.NextReview = e.now().Add(48 * time.Hour)
	require.Empty(t, e.DueCards())
}

// S7: new card trajectory of Good, Good, Good(ease 2.5), Again.
func TestSM2Trajectory(t *testing.T) {
	e, err := Open(filepath.Join(t.TempDir(), "srs.jsonl"))
	require.NoError(t, err)
	e.now = fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	id, err := e.AddCard(types.Card{Type: types.CardBasic, Front: "Q", Back: "A"})
	require.NoError(t, err)

	require.NoError(t, e.Review(id, types.ReviewGood))
	card, _ := e.GetCard(id)
	require.Equal(t, 1, card.SrsData.Interval)

	require.NoError(t, e.Review(id, types.ReviewGood))
	card, _ = e.GetCard(id)
	require.Equal(t, 3, card.SrsData.Interval)

	require.NoError(t, e.Review(id, types.ReviewGood))
	card, _ = e.GetCard(id)
	require.Equal(t, 8, card.SrsData.Interval) // ceil(3 * 2.5)

	require.NoError(t, e.Review(id, types.ReviewAgain))
	card, _ = e.GetCard(id)
	require.Equal(t, 1, card.SrsData.Interval)
	require.InDelta(t, 2.3, card.SrsData.EaseFactor, 0.0001)
	require.Equal(t, 0, card.SrsData.Streak)
}

func TestEaseFactorNeverDropsBelowFloor(t *testing.T) {
	e, err := Open(filepath.Join(t.TempDir(), "srs.jsonl"))
	require.NoError(t, err)

	id, err := e.AddCard(types.Card{Type: types.CardBasic, Front: "Q", Back: "A"})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, e.Review(id, types.ReviewAgain))
	}
	card, _ := e.GetCard(id)
	require.GreaterOrEqual(t, card.SrsData.EaseFactor, minEaseFactor)
}

func TestStreakAccounting(t *testing.T) {
	e, err := Open(filepath.Join(t.TempDir(), "srs.jsonl"))
	require.NoError(t, err)

	day1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e.now = fixedClock(day1)
	id, err := e.AddCard(types.Card{Type: types.CardBasic, Front: "Q", Back: "A"})
	require.NoError(t, err)

	require.NoError(t, e.Review(id, types.ReviewGood))
	require.Equal(t, 1, e.Stats().CurrentStreak)
	require.Equal(t, 1, e.Stats().TotalDays)
	require.Equal(t, 1, e.Stats().TotalReviews)

	// Same day again: streak unaffected, reviews still count.
	e.now = fixedClock(day1.Add(2 * time.Hour))
	require.NoError(t, e.Review(id, types.ReviewGood))
	require.Equal(t, 1, e.Stats().CurrentStreak)
	require.Equal(t, 1, e.Stats().TotalDays)
	require.Equal(t, 2, e.Stats().TotalReviews)

	// Next day: streak increments.
	day2 := day1.AddDate(0, 0, 1)
	e.now = fixedClock(day2)
	require.NoError(t, e.Review(id, types.ReviewGood))
	require.Equal(t, 2, e.Stats().CurrentStreak)
	require.Equal(t, 2, e.Stats().TotalDays)

	// A gap day: streak resets to 1.
	dayN := day2.AddDate(0, 0, 5)
	e.now = fixedClock(dayN)
	require.NoError(t, e.Review(id, types.ReviewGood))
	require.Equal(t, 1, e.Stats().CurrentStreak)
	require.Equal(t, 3, e.Stats().TotalDays)

	// Stats survive a reopen.
	reopened, err := Open(e.path)
	require.NoError(t, err)
	require.Equal(t, e.Stats(), reopened.Stats())
}

func TestDeleteCard(t *testing.T) {
	e, err := Open(filepath.Join(t.TempDir(), "srs.jsonl"))
	require.NoError(t, err)

	id, err := e.AddCard(types.Card{Type: types.CardBasic, Front: "Q", Back: "A"})
	require.NoError(t, err)

	deleted, err := e.Delete(id)
	require.NoError(t, err)
	require.True(t, deleted)
	require.Equal(t, 0, e.Count())

	deletedAgain, err := e.Delete(id)
	require.NoError(t, err)
	require.False(t, deletedAgain)
}

func TestDeckStats(t *testing.T) {
	e, err := Open(filepath.Join(t.TempDir(), "srs.jsonl"))
	require.NoError(t, err)
	e.now = fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	newID, err := e.AddCard(types.Card{Type: types.CardBasic, Front: "new", Back: "a"})
	require.NoError(t, err)
	matureID, err := e.AddCard(types.Card{Type: types.CardBasic, Front: "mature", Back: "b"})
	require.NoError(t, err)

	mature, _ := e.GetCard(matureID)
	mature.SrsData.Reps = 10
	mature.SrsData.Interval = 30
	mature.SrsData.NextReview = e.now().AddDate(0, 1, 0)

	stats := e.DeckStats()
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 1, stats.New)
	require.Equal(t, 1, stats.Mature)
	require.Equal(t, 1, stats.Due) // only the unreviewed one is due
	_ = newID
}

func TestCardsByNote(t *testing.T) {
	e, err := Open(filepath.Join(t.TempDir(), "srs.jsonl"))
	require.NoError(t, err)

	_, err = e.AddCard(types.Card{NoteID: 5, Type: types.CardBasic, Front: "a", Back: "b"})
	require.NoError(t, err)
	_, err = e.AddCard(types.Card{NoteID: 9, Type: types.CardBasic, Front: "c", Back: "d"})
	require.NoError(t, err)

	cards := e.CardsByNote(5)
	require.Len(t, cards, 1)
	require.Equal(t, "a", cards[0].Front)
}
