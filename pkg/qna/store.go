package qna

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ochichan/lazarus/pkg/lazerr"
	"github.com/ochichan/lazarus/pkg/log"
	"github.com/ochichan/lazarus/pkg/types"
)

// Store is the Q&A collection: an id→Question map backed by a JSONL
// file, rewritten whole on every mutation. Callers serialize access;
// Store performs no locking itself.
type Store struct {
	path      string
	questions map[uint64]*types.Question
	nextID    uint64
	now       func() int64
}

// Open loads path (if present) into an id→Question map. A missing
// file is an empty collection, not an error.
func Open(path string) (*Store, error) {
	s := &Store{
		path:      path,
		questions: make(map[uint64]*types.Question),
		nextID:    1,
		now:       func() int64 { return time.Now().Unix() },
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return lazerr.Wrap(lazerr.Io, "opening qna store", err)
	}
	defer f.Close()

	clog := log.WithComponent("qna")
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var q types.Question
		if err := json.Unmarshal(line, &q); err != nil {
			clog.Warn().Err(err).Msg("skipping undecodable qna question line")
			continue
		}
		cp := q
		s.questions[q.ID] = &cp
		if q.ID >= s.nextID {
			s.nextID = q.ID + 1
		}
	}
	if err := scanner.Err(); err != nil {
		return lazerr.Wrap(lazerr.Io, "reading qna store", err)
	}
	return nil
}

func (s *Store) rewrite() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return lazerr.Wrap(lazerr.Io, "creating qna directory", err)
		}
	}
	f, err := os.Create(s.path)
	if err != nil {
		return lazerr.Wrap(lazerr.Io, "rewriting qna store", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, q := range s.questions {
		data, err := json.Marshal(q)
		if err != nil {
			return lazerr.Wrap(lazerr.Serialize, "marshaling question", err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return lazerr.Wrap(lazerr.Io, "writing qna store", err)
		}
	}
	return w.Flush()
}

// List returns every question, newest-created first.
func (s *Store) List() []*types.Question {
	out := s.All()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out
}

// All returns every question in unspecified order.
func (s *Store) All() []*types.Question {
	out := make([]*types.Question, 0, len(s.questions))
	for _, q := range s.questions {
		out = append(out, q)
	}
	return out
}

// Get returns the question for id, if present.
func (s *Store) Get(id uint64) (*types.Question, bool) {
	q, ok := s.questions[id]
	return q, ok
}

// Save assigns question an id (if zero) and CreatedAt (if zero), then
// rewrites the store.
func (s *Store) Save(q *types.Question) (uint64, error) {
	if q.ID == 0 {
		q.ID = s.nextID
		s.nextID++
	} else if q.ID >= s.nextID {
		s.nextID = q.ID + 1
	}
	if q.CreatedAt == 0 {
		q.CreatedAt = s.now()
	}
	cp := *q
	s.questions[q.ID] = &cp
	if err := s.rewrite(); err != nil {
		return 0, err
	}
	return q.ID, nil
}

// Delete removes id, reporting whether it had been present.
func (s *Store) Delete(id uint64) (bool, error) {
	if _, ok := s.questions[id]; !ok {
		return false, nil
	}
	delete(s.questions, id)
	if err := s.rewrite(); err != nil {
		return false, err
	}
	return true, nil
}

// AddAnswer appends answer to questionID's answer list, assigning it a
// sequential id within that question if unset.
func (s *Store) AddAnswer(questionID uint64, answer types.Answer) error {
	q, ok := s.questions[questionID]
	if !ok {
		return lazerr.NotFoundRead(questionID)
	}
	if answer.ID == 0 {
		answer.ID = uint64(len(q.Answers)) + 1
	}
	if answer.CreatedAt == 0 {
		answer.CreatedAt = s.now()
	}
	q.Answers = append(q.Answers, answer)
	return s.rewrite()
}

// AcceptAnswer marks answerID as the accepted answer for questionID.
// It fails if the answer does not belong to the question.
func (s *Store) AcceptAnswer(questionID, answerID uint64) error {
	q, ok := s.questions[questionID]
	if !ok {
		return lazerr.NotFoundRead(questionID)
	}
	found := false
	for _, a := range q.Answers {
		if a.ID == answerID {
			found = true
			break
		}
	}
	if !found {
		return lazerr.NotFoundRead(answerID)
	}
	q.AcceptedAnswer = answerID
	return s.rewrite()
}

// VoteAnswer adds delta (positive or negative) to answerID's vote
// count within questionID.
func (s *Store) VoteAnswer(questionID, answerID uint64, delta int) error {
	q, ok := s.questions[questionID]
	if !ok {
		return lazerr.NotFoundRead(questionID)
	}
	for i := range q.Answers {
		if q.Answers[i].ID == answerID {
			q.Answers[i].Votes += delta
			return s.rewrite()
		}
	}
	return lazerr.NotFoundRead(answerID)
}

// Merge inserts every question whose id is absent locally, used by
// USB sync's set-union semantics. It returns the number inserted.
func (s *Store) Merge(questions []types.Question) (int, error) {
	inserted := 0
	for _, q := range questions {
		if _, ok := s.questions[q.ID]; ok {
			continue
		}
		cp := q
		s.questions[q.ID] = &cp
		if q.ID >= s.nextID {
			s.nextID = q.ID + 1
		}
		inserted++
	}
	if inserted == 0 {
		return 0, nil
	}
	if err := s.rewrite(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// Count returns the number of questions in the store.
func (s *Store) Count() int {
	return len(s.questions)
}
