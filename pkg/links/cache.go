package links

import (
	"encoding/binary"
	"encoding/json"

	bolt "go.etcd.io/bbolt"

	"github.com/ochichan/lazarus/pkg/lazerr"
)

var (
	bucketTitles   = []byte("link_titles")
	bucketOutgoing = []byte("link_outgoing")
)

// Cache is an optional on-disk snapshot of an Index, so a large note
// collection's link graph does not need to be rebuilt by walking every
// note on every host startup. It is a cache, not a source of truth:
// the in-memory Index built from live notes always wins if the two
// disagree, and a missing or stale cache file is never fatal.
type Cache struct {
	db *bolt.DB
}

// OpenCache opens (or creates) a bbolt-backed cache file at path.
func OpenCache(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, lazerr.Wrap(lazerr.IndexCreate, "opening link cache", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketTitles); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketOutgoing)
		return err
	})
	if err != nil {
		db.Close()
		return nil, lazerr.Wrap(lazerr.IndexCreate, "creating link cache buckets", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the underlying bbolt database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Save overwrites the cache with a full snapshot of idx: id->title
// entries and each id's outgoing title set. Incoming, being fully
// derivable from outgoing + id_to_title, is not persisted.
func (c *Cache) Save(idx *Index) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		titles := tx.Bucket(bucketTitles)
		outgoing := tx.Bucket(bucketOutgoing)

		if err := titles.ForEach(func(k, _ []byte) error { return titles.Delete(k) }); err != nil {
			return err
		}
		if err := outgoing.ForEach(func(k, _ []byte) error { return outgoing.Delete(k) }); err != nil {
			return err
		}

		for id, title := range idx.idToTitle {
			if err := titles.Put(idKey(id), []byte(title)); err != nil {
				return err
			}
			targets := make([]string, 0, len(idx.outgoing[id]))
			for t := range idx.outgoing[id] {
				targets = append(targets, t)
			}
			data, err := json.Marshal(targets)
			if err != nil {
				return err
			}
			if err := outgoing.Put(idKey(id), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load reconstructs an Index from the cached snapshot, rebuilding
// incoming backlink sets from the persisted outgoing sets.
func (c *Cache) Load() (*Index, error) {
	idx := New()
	err := c.db.View(func(tx *bolt.Tx) error {
		titles := tx.Bucket(bucketTitles)
		outgoing := tx.Bucket(bucketOutgoing)

		if err := titles.ForEach(func(k, v []byte) error {
			idx.Register(decodeIDKey(k), string(v))
			return nil
		}); err != nil {
			return err
		}

		return outgoing.ForEach(func(k, v []byte) error {
			var targets []string
			if err := json.Unmarshal(v, &targets); err != nil {
				return lazerr.Wrap(lazerr.Deserialize, "decoding cached outgoing links", err)
			}
			id := decodeIDKey(k)
			set := make(map[string]struct{}, len(targets))
			for _, t := range targets {
				set[t] = struct{}{}
				idx.addIncoming(t, id)
			}
			idx.outgoing[id] = set
			return nil
		})
	})
	if err != nil {
		return nil, lazerr.Wrap(lazerr.IndexCreate, "loading link cache", err)
	}
	return idx, nil
}

func idKey(id uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, id)
	return b
}

func decodeIDKey(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
