// Package links implements Lazarus's bidirectional [[Title]] link
// index: a pure in-memory graph rebuilt from live notes at startup,
// with an optional on-disk cache to skip that rebuild on a large
// collection's next open.
package links

import (
	"regexp"

	"github.com/ochichan/lazarus/pkg/types"
)

// linkPattern matches [[Title]] references. Nested brackets are
// intentionally rejected, matching the character class exclusion.
var linkPattern = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)

// ExtractLinks returns every [[Title]] target referenced in content,
// in order of appearance (duplicates included).
func ExtractLinks(content string) []string {
	matches := linkPattern.FindAllStringSubmatch(content, -1)
	if matches == nil {
		return nil
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m[1]
	}
	return out
}

// Index is the bidirectional link graph. Construct one with New; the
// zero value has nil maps and panics on its first write. Callers
// serialize access; Index performs no locking itself.
type Index struct {
	outgoing  map[uint64]map[string]struct{}
	incoming  map[string]map[uint64]struct{}
	idToTitle map[uint64]string
	titleToID map[string]uint64
}

// New returns an empty Index.
func New() *Index {
	return &Index{
		outgoing:  make(map[uint64]map[string]struct{}),
		incoming:  make(map[string]map[uint64]struct{}),
		idToTitle: make(map[uint64]string),
		titleToID: make(map[string]uint64),
	}
}

// Register updates the id<->title bijection. If id previously had a
// different title, that mapping is erased first so title changes are
// handled cleanly.
func (idx *Index) Register(id uint64, title string) {
	if oldTitle, ok := idx.idToTitle[id]; ok && oldTitle != title {
		delete(idx.titleToID, oldTitle)
	}
	idx.idToTitle[id] = title
	idx.titleToID[title] = id
}

// UpdateLinks diffs id's previous outgoing set against the links
// extracted from body and adjusts incoming sets accordingly.
func (idx *Index) UpdateLinks(id uint64, body string) {
	if oldTargets, ok := idx.outgoing[id]; ok {
		for target := range oldTargets {
			idx.removeIncoming(target, id)
		}
	}

	newTargets := make(map[string]struct{})
	for _, title := range ExtractLinks(body) {
		newTargets[title] = struct{}{}
	}
	for target := range newTargets {
		idx.addIncoming(target, id)
	}
	idx.outgoing[id] = newTargets
}

func (idx *Index) addIncoming(title string, id uint64) {
	set, ok := idx.incoming[title]
	if !ok {
		set = make(map[uint64]struct{})
		idx.incoming[title] = set
	}
	set[id] = struct{}{}
}

func (idx *Index) removeIncoming(title string, id uint64) {
	set, ok := idx.incoming[title]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(idx.incoming, title)
	}
}

// Remove drops every trace of id: its outgoing links (and the
// backlinks they created), and its title mapping (and any backlinks
// pointed at that title).
func (idx *Index) Remove(id uint64) {
	if targets, ok := idx.outgoing[id]; ok {
		for target := range targets {
			idx.removeIncoming(target, id)
		}
		delete(idx.outgoing, id)
	}
	if title, ok := idx.idToTitle[id]; ok {
		delete(idx.idToTitle, id)
		delete(idx.titleToID, title)
		delete(idx.incoming, title)
	}
}

// Backlinks returns every note id that links to title.
func (idx *Index) Backlinks(title string) []uint64 {
	set, ok := idx.incoming[title]
	if !ok {
		return nil
	}
	out := make([]uint64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// Outgoing returns every title note id links to.
func (idx *Index) Outgoing(id uint64) []string {
	set, ok := idx.outgoing[id]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for title := range set {
		out = append(out, title)
	}
	return out
}

// IDByTitle resolves a title to its note id.
func (idx *Index) IDByTitle(title string) (uint64, bool) {
	id, ok := idx.titleToID[title]
	return id, ok
}

// TitleByID resolves a note id to its title.
func (idx *Index) TitleByID(id uint64) (string, bool) {
	title, ok := idx.idToTitle[id]
	return title, ok
}

// AllTitles returns every registered title, for autocomplete.
func (idx *Index) AllTitles() []string {
	out := make([]string, 0, len(idx.titleToID))
	for title := range idx.titleToID {
		out = append(out, title)
	}
	return out
}

// Graph projects the full index into the node/edge shape a graph
// visualization renders.
func (idx *Index) Graph() types.LinkGraph {
	nodes := make([]types.LinkNode, 0, len(idx.idToTitle))
	for id, title := range idx.idToTitle {
		nodes = append(nodes, types.LinkNode{
			ID:            id,
			Title:         title,
			BacklinkCount: len(idx.incoming[title]),
		})
	}

	var edges []types.LinkEdge
	for sourceID, targets := range idx.outgoing {
		for target := range targets {
			if targetID, ok := idx.titleToID[target]; ok {
				edges = append(edges, types.LinkEdge{SourceID: sourceID, TargetID: targetID})
			}
		}
	}

	return types.LinkGraph{Nodes: nodes, Edges: edges}
}

// Rebuild clears the index and replays Register+UpdateLinks for every
// live note, the way the index is reconstructed at host startup.
func Rebuild(notes []*types.Note) *Index {
	idx := New()
	for _, n := range notes {
		idx.Register(n.ID, n.Title)
	}
	for _, n := range notes {
		idx.UpdateLinks(n.ID, n.Content)
	}
	return idx
}
