// Package types holds the domain objects shared across every Lazarus
// core component: notes, flashcards, bulletin posts, Q&A threads, and
// the USB sync manifest. Storage-format specifics (WAL framing, ZIM
// binary layout) live next to their readers/writers, not here.
package types

import "time"

// Note is the in-memory domain representation of a note. Storage
// serializes it to a YAML-frontmatter markdown body before compression;
// ID is stable across edits, CreatedAt never changes after the first
// save.
type Note struct {
	ID        uint64    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Encrypted bool      `json:"encrypted"`
}

// NoteRecord is the archived atom written to the WAL. Content is
// zstd-compressed markdown, optionally further wrapped in an AEAD
// envelope when Encrypted is set. A Deleted record is a tombstone: its
// Content is empty and it exists only to hide prior records for ID.
type NoteRecord struct {
	ID        uint64
	CreatedAt int64
	UpdatedAt int64
	Content   []byte
	Vector    []int8
	Encrypted bool
	Deleted   bool
}

// CardType distinguishes the two flashcard shapes SM-2 review serves.
type CardType string

const (
	CardBasic CardType = "basic"
	CardCloze CardType = "cloze"
)

// SrsData is the spaced-repetition scheduling state embedded in Card.
// EaseFactor never drops below 1.3. NextReview is the zero time when a
// card has never been reviewed, which srs.Engine.DueCards treats as
// due now.
type SrsData struct {
	NextReview time.Time `json:"next_review,omitempty"`
	Interval   int       `json:"interval"`
	EaseFactor float64   `json:"ease_factor"`
	Reps       int       `json:"reps"`
	Streak     int       `json:"streak"`
}

// Card is one flashcard, either hand-authored or extracted from a
// note's body. NoteID is zero for cards with no originating note.
type Card struct {
	ID        uint64   `json:"id"`
	NoteID    uint64   `json:"note_id"`
	Type      CardType `json:"type"`
	Front     string   `json:"front"`
	Back      string   `json:"back"`
	SrsData   SrsData  `json:"srs"`
	CreatedAt int64    `json:"created_at"`
}

// ReviewResult is the grade a reviewer assigns a card, driving the SM-2
// interval/ease update.
type ReviewResult string

const (
	ReviewAgain ReviewResult = "again"
	ReviewHard  ReviewResult = "hard"
	ReviewGood  ReviewResult = "good"
	ReviewEasy  ReviewResult = "easy"
)

// SrsStats summarizes the card deck for a dashboard: New cards have
// never been reviewed, Learning cards have an interval under a week,
// Mature cards have graduated past it.
type SrsStats struct {
	Total    int `json:"total"`
	Due      int `json:"due"`
	New      int `json:"new"`
	Learning int `json:"learning"`
	Mature   int `json:"mature"`
}

// StreakStats is the sibling file tracking daily-study continuity,
// independent of any single card's own streak counter.
type StreakStats struct {
	LastStudyDate string `json:"last_study_date"`
	CurrentStreak int    `json:"current_streak"`
	TotalReviews  int    `json:"total_reviews"`
	TotalDays     int    `json:"total_days"`
}

// Reply is a single response appended to a bulletin Post.
type Reply struct {
	ID        uint64 `json:"id"`
	Author    string `json:"author"`
	Body      string `json:"body"`
	CreatedAt int64  `json:"created_at"`
}

// Post is a bulletin-board thread. Append-only: once created, a Post
// only grows its Replies list (or is deleted outright).
type Post struct {
	ID        uint64   `json:"id"`
	Author    string   `json:"author"`
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	Tags      []string `json:"tags"`
	Replies   []Reply  `json:"replies"`
	CreatedAt int64    `json:"created_at"`
}

// Answer is one response to a Question, with a vote count used to
// surface the most useful answer even before one is accepted.
type Answer struct {
	ID        uint64 `json:"id"`
	Author    string `json:"author"`
	Body      string `json:"body"`
	CreatedAt int64  `json:"created_at"`
	Votes     int    `json:"votes"`
}

// Question is a Q&A thread. AcceptedAnswer is zero until the asker
// marks one of Answers as accepted.
type Question struct {
	ID             uint64   `json:"id"`
	Author         string   `json:"author"`
	Title          string   `json:"title"`
	Body           string   `json:"body"`
	Tags           []string `json:"tags"`
	Answers        []Answer `json:"answers"`
	AcceptedAnswer uint64   `json:"accepted_answer"`
	CreatedAt      int64    `json:"created_at"`
}

// CollectionCounts summarizes how much content a USB volume (or the
// local store) currently holds, per collection.
type CollectionCounts struct {
	Notes     int `json:"notes"`
	Posts     int `json:"posts"`
	Questions int `json:"questions"`
	Packages  int `json:"packages"`
}

// SyncRecord is one entry in a UsbManifest's history ring buffer.
type SyncRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	Uploaded   int       `json:"uploaded"`
	Downloaded int       `json:"downloaded"`
	Conflicts  int       `json:"conflicts"`
}

// UsbManifestHistoryLimit bounds the SyncRecord ring buffer persisted
// in manifest.json.
const UsbManifestHistoryLimit = 100

// UsbManifest is the JSON document persisted at the root of every
// Lazarus USB volume, describing what device last touched it and a
// rolling history of sync outcomes.
type UsbManifest struct {
	Version    int              `json:"version"`
	CreatedAt  time.Time        `json:"created_at"`
	LastSync   time.Time        `json:"last_sync"`
	DeviceName string           `json:"device_name"`
	History    []SyncRecord     `json:"history"`
	Summary    CollectionCounts `json:"summary"`
}

// AppendHistory pushes a sync record, trimming the oldest entry once
// the manifest holds UsbManifestHistoryLimit records.
func (m *UsbManifest) AppendHistory(rec SyncRecord) {
	m.History = append(m.History, rec)
	if len(m.History) > UsbManifestHistoryLimit {
		m.History = m.History[len(m.History)-UsbManifestHistoryLimit:]
	}
}

// LinkNode is one note as it appears in a graph projection of the link
// index.
type LinkNode struct {
	ID            uint64 `json:"id"`
	Title         string `json:"title"`
	BacklinkCount int    `json:"backlink_count"`
}

// LinkEdge is a directed [[Title]] reference from one note to another.
type LinkEdge struct {
	SourceID uint64 `json:"source_id"`
	TargetID uint64 `json:"target_id"`
}

// LinkGraph is the projection returned by the link index for rendering
// a note-graph visualization.
type LinkGraph struct {
	Nodes []LinkNode `json:"nodes"`
	Edges []LinkEdge `json:"edges"`
}
