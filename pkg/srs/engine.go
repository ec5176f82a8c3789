package srs

import (
	"bufio"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ochichan/lazarus/pkg/lazerr"
	"github.com/ochichan/lazarus/pkg/log"
	"github.com/ochichan/lazarus/pkg/types"
)

// minEaseFactor is the floor SM-2 never lets EaseFactor drop below.
const minEaseFactor = 1.3

// Engine is the SM-2 flashcard scheduler. Cards live in an in-memory
// id→Card map backed by srs.jsonl; a sibling srs_stats.json tracks the
// daily-study streak. Callers serialize access; Engine performs no
// locking itself.
type Engine struct {
	path      string
	statsPath string
	cards     map[uint64]*types.Card
	nextID    uint64
	stats     types.StreakStats
	now       func() time.Time
}

// Open loads path (if present) into an id→Card map and its sibling
// stats file, creating neither until the first write. A missing deck
// file is treated as an empty deck, not an error.
func Open(path string) (*Engine, error) {
	e := &Engine{
		path:      path,
		statsPath: statsPathFor(path),
		cards:     make(map[uint64]*types.Card),
		nextID:    1,
		now:       time.Now,
	}
	if err := e.load(); err != nil {
		return nil, err
	}
	e.loadStats()
	return e, nil
}

func statsPathFor(deckPath string) string {
	if strings.HasSuffix(deckPath, ".jsonl") {
		return strings.TrimSuffix(deckPath, ".jsonl") + "_stats.json"
	}
	return deckPath + "_stats.json"
}

func (e *Engine) load() error {
	clog := log.WithComponent("srs")

	f, err := os.Open(e.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return lazerr.Wrap(lazerr.Io, "opening srs deck", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	loaded, skipped := 0, 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var card types.Card
		if err := json.Unmarshal([]byte(line), &card); err != nil {
			skipped++
			clog.Warn().Err(err).Msg("skipping undecodable srs card line")
			continue
		}
		e.cards[card.ID] = &card
		if card.ID >= e.nextID {
			e.nextID = card.ID + 1
		}
		loaded++
	}
	if err := scanner.Err(); err != nil {
		return lazerr.Wrap(lazerr.Io, "reading srs deck", err)
	}
	clog.Info().Int("loaded", loaded).Int("skipped", skipped).Msg("srs deck loaded")
	return nil
}

func (e *Engine) loadStats() {
	data, err := os.ReadFile(e.statsPath)
	if err != nil {
		return
	}
	var stats types.StreakStats
	if err := json.Unmarshal(data, &stats); err != nil {
		log.WithComponent("srs").Warn().Err(err).Msg("ignoring unreadable srs stats file")
		return
	}
	e.stats = stats
}

// SaveStats persists the streak-accounting file.
func (e *Engine) SaveStats() error {
	data, err := json.MarshalIndent(&e.stats, "", "  ")
	if err != nil {
		return lazerr.Wrap(lazerr.Serialize, "marshaling srs stats", err)
	}
	if dir := filepath.Dir(e.statsPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return lazerr.Wrap(lazerr.Io, "creating srs stats directory", err)
		}
	}
	if err := os.WriteFile(e.statsPath, data, 0o644); err != nil {
		return lazerr.Wrap(lazerr.Io, "writing srs stats", err)
	}
	return nil
}

// Stats returns the current streak-accounting snapshot.
func (e *Engine) Stats() types.StreakStats {
	return e.stats
}

// AddCard assigns card the next id, a fresh SrsData, and appends it as
// a single line to the deck file. It does not rewrite the whole file.
func (e *Engine) AddCard(card types.Card) (uint64, error) {
	id := e.nextID
	e.nextID++

	card.ID = id
	card.SrsData = types.SrsData{EaseFactor: 2.5}
	card.CreatedAt = e.now().Unix()

	if err := e.appendLine(&card); err != nil {
		e.nextID--
		return 0, err
	}
	e.cards[id] = &card
	return id, nil
}

func (e *Engine) appendLine(card *types.Card) error {
	if dir := filepath.Dir(e.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return lazerr.Wrap(lazerr.Io, "creating srs data directory", err)
		}
	}
	f, err := os.OpenFile(e.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return lazerr.Wrap(lazerr.Io, "opening srs deck for append", err)
	}
	defer f.Close()

	data, err := json.Marshal(card)
	if err != nil {
		return lazerr.Wrap(lazerr.Serialize, "marshaling srs card", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return lazerr.Wrap(lazerr.Io, "appending srs card", err)
	}
	return nil
}

// saveAll rewrites the entire deck file, committing every in-memory
// card. Used after review and delete, never after add.
func (e *Engine) saveAll() error {
	if dir := filepath.Dir(e.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return lazerr.Wrap(lazerr.Io, "creating srs data directory", err)
		}
	}
	f, err := os.Create(e.path)
	if err != nil {
		return lazerr.Wrap(lazerr.Io, "rewriting srs deck", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, card := range e.cards {
		data, err := json.Marshal(card)
		if err != nil {
			return lazerr.Wrap(lazerr.Serialize, "marshaling srs card", err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return lazerr.Wrap(lazerr.Io, "writing srs deck", err)
		}
	}
	return w.Flush()
}

// GetCard returns the card for id, if present.
func (e *Engine) GetCard(id uint64) (*types.Card, bool) {
	c, ok := e.cards[id]
	return c, ok
}

// AllCards returns every card in the deck, order unspecified.
func (e *Engine) AllCards() []*types.Card {
	out := make([]*types.Card, 0, len(e.cards))
	for _, c := range e.cards {
		out = append(out, c)
	}
	return out
}

// CardsByNote returns every card extracted from noteID.
func (e *Engine) CardsByNote(noteID uint64) []*types.Card {
	var out []*types.Card
	for _, c := range e.cards {
		if c.NoteID == noteID {
			out = append(out, c)
		}
	}
	return out
}

// DueCards returns cards whose NextReview is zero or not after now.
func (e *Engine) DueCards() []*types.Card {
	now := e.now()
	var out []*types.Card
	for _, c := range e.cards {
		if c.SrsData.NextReview.IsZero() || !c.SrsData.NextReview.After(now) {
			out = append(out, c)
		}
	}
	return out
}

// Count returns the number of cards in the deck.
func (e *Engine) Count() int {
	return len(e.cards)
}

// Review applies the SM-2 update for result to card id, rewrites the
// deck file, records the study day on the streak stats, and persists
// both files. An unknown id is a DbRead error.
func (e *Engine) Review(id uint64, result types.ReviewResult) error {
	card, ok := e.cards[id]
	if !ok {
		return lazerr.NotFoundRead(id)
	}

	applySM2(&card.SrsData, result)
	card.SrsData.Reps++
	card.SrsData.NextReview = e.now().AddDate(0, 0, card.SrsData.Interval)

	now := e.now()
	recordStudy(&e.stats, now)

	if err := e.saveAll(); err != nil {
		return err
	}
	return e.SaveStats()
}

// applySM2 mutates srs in place per the SM-2 grading rules. Reps is
// read here (pre-increment) to decide Good/Easy's first-review cases.
func applySM2(srs *types.SrsData, result types.ReviewResult) {
	switch result {
	case types.ReviewAgain:
		srs.Interval = 1
		srs.Streak = 0
		srs.EaseFactor = math.Max(minEaseFactor, srs.EaseFactor-0.2)
	case types.ReviewHard:
		srs.Interval = int(math.Ceil(float64(srs.Interval) * 1.2))
		if srs.Interval < 1 {
			srs.Interval = 1
		}
		srs.Streak++
		srs.EaseFactor = math.Max(minEaseFactor, srs.EaseFactor-0.15)
	case types.ReviewGood:
		switch srs.Reps {
		case 0:
			srs.Interval = 1
		case 1:
			srs.Interval = 3
		default:
			srs.Interval = int(math.Ceil(float64(srs.Interval) * srs.EaseFactor))
		}
		srs.Streak++
	case types.ReviewEasy:
		if srs.Reps == 0 {
			srs.Interval = 4
		} else {
			srs.Interval = int(math.Ceil(float64(srs.Interval) * srs.EaseFactor * 1.3))
		}
		srs.Streak++
		srs.EaseFactor += 0.15
	}
}

const dateLayout = "2006-01-02"

// recordStudy updates the streak-accounting stats for a review
// happening at now. TotalReviews always increments; CurrentStreak and
// TotalDays only move on a new distinct calendar day.
func recordStudy(stats *types.StreakStats, now time.Time) {
	today := now.Format(dateLayout)
	switch stats.LastStudyDate {
	case today:
		// already studied today: streak unchanged
	case "":
		stats.CurrentStreak = 1
		stats.TotalDays = 1
		stats.LastStudyDate = today
	default:
		yesterday := now.AddDate(0, 0, -1).Format(dateLayout)
		if stats.LastStudyDate == yesterday {
			stats.CurrentStreak++
		} else {
			stats.CurrentStreak = 1
		}
		stats.TotalDays++
		stats.LastStudyDate = today
	}
	stats.TotalReviews++
}

// Delete removes id from the deck and rewrites the file, reporting
// whether it had been present.
func (e *Engine) Delete(id uint64) (bool, error) {
	if _, ok := e.cards[id]; !ok {
		return false, nil
	}
	delete(e.cards, id)
	if err := e.saveAll(); err != nil {
		return false, err
	}
	return true, nil
}

// DeckStats summarizes the whole deck for a dashboard.
func (e *Engine) DeckStats() types.SrsStats {
	now := e.now()
	stats := types.SrsStats{Total: len(e.cards)}
	for _, c := range e.cards {
		if c.SrsData.NextReview.IsZero() || !c.SrsData.NextReview.After(now) {
			stats.Due++
		}
		switch {
		case c.SrsData.Reps == 0:
			stats.New++
		case c.SrsData.Interval < 7:
			stats.Learning++
		default:
			stats.Mature++
		}
	}
	return stats
}
