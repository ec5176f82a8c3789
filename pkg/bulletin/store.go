package bulletin

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

// Store is the bulletin board collection: an id→Post map backed by a
// JSONL file, rewritten whole on every mutation (consistent with the
// SRS store's persistence model at this scale). Callers serialize
// access; Store performs no locking itself.
type Store struct {
	path   string
	posts  map[uint64]*types.Post
	nextID uint64
	now    func() int64
}

// Open loads path (if present) into an id→Post map. A missing file is
// an empty board, not an error.
func Open(path string) (*Store, error) {
	s := &Store{
		path:   path,
		posts:  make(map[uint64]*types.Post),
		nextID: 1,
		now:    func() int64 { return time.Now().Unix() },
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
		return lazerr.Wrap(lazerr.Io, "opening bulletin store", err)
	}
	defer f.Close()

	clog := log.WithComponent("bulletin")
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var post types.Post
		if err := json.Unmarshal(line, &post); err != nil {
			clog.Warn().Err(err).Msg("skipping undecodable bulletin post line")
			continue
		}
		cp := post
		s.posts[post.ID] = &cp
		if post.ID >= s.nextID {
			s.nextID = post.ID + 1
		}
	}
	if err := scanner.Err(); err != nil {
		return lazerr.Wrap(lazerr.Io, "reading bulletin store", err)
	}
	return nil
}

func (s *Store) rewrite() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return lazerr.Wrap(lazerr.Io, "creating bulletin directory", err)
		}
	}
	f, err := os.Create(s.path)
	if err != nil {
		return lazerr.Wrap(lazerr.Io, "rewriting bulletin store", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, post := range s.posts {
		data, err := json.Marshal(post)
		if err != nil {
			return lazerr.Wrap(lazerr.Serialize, "marshaling post", err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return lazerr.Wrap(lazerr.Io, "writing bulletin store", err)
		}
	}
	return w.Flush()
}

// List returns every post, newest-created first.
func (s *Store) List() []*types.Post {
	out := s.All()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out
}

// All returns every post in unspecified order.
func (s *Store) All() []*types.Post {
	out := make([]*types.Post, 0, len(s.posts))
	for _, p := range s.posts {
		out = append(out, p)
	}
	return out
}

// Get returns the post for id, if present.
func (s *Store) Get(id uint64) (*types.Post, bool) {
	p, ok := s.posts[id]
	return p, ok
}

// Save assigns post an id (if zero) and CreatedAt (if zero), then
// rewrites the store.
func (s *Store) Save(post *types.Post) (uint64, error) {
	if post.ID == 0 {
		post.ID = s.nextID
		s.nextID++
	} else if post.ID >= s.nextID {
		s.nextID = post.ID + 1
	}
	if post.CreatedAt == 0 {
		post.CreatedAt = s.now()
	}
	cp := *post
	s.posts[post.ID] = &cp
	if err := s.rewrite(); err != nil {
		return 0, err
	}
	return post.ID, nil
}

// Delete removes id, reporting whether it had been present.
func (s *Store) Delete(id uint64) (bool, error) {
	if _, ok := s.posts[id]; !ok {
		return false, nil
	}
	delete(s.posts, id)
	if err := s.rewrite(); err != nil {
		return false, err
	}
	return true, nil
}

// AddReply appends reply to postID's reply list, assigning it a
// sequential id within that post if unset.
func (s *Store) AddReply(postID uint64, reply types.Reply) error {
	post, ok := s.posts[postID]
	if !ok {
		return lazerr.NotFoundRead(postID)
	}
	if reply.ID == 0 {
		reply.ID = uint64(len(post.Replies)) + 1
	}
	if reply.CreatedAt == 0 {
		reply.CreatedAt = s.now()
	}
	post.Replies = append(post.Replies, reply)
	return s.rewrite()
}

// Merge inserts every post whose id is absent locally, used by USB
// sync's set-union semantics. It returns the number inserted.
func (s *Store) Merge(posts []types.Post) (int, error) {
	inserted := 0
	for _, p := range posts {
		if _, ok := s.posts[p.ID]; ok {
			continue
		}
		cp := p
		s.posts[p.ID] = &cp
		if p.ID >= s.nextID {
			s.nextID = p.ID + 1
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

// Count returns the number of posts in the store.
func (s *Store) Count() int {
	return len(s.posts)
}
