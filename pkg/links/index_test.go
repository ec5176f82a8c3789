package links

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ochichan/lazarus/pkg/types"
)

func TestExtractLinksBasic(t *testing.T) {
	links := ExtractLinks("today studied [[Rust]] and built [[Lazarus]].")
	require.Equal(t, []string{"Rust", "Lazarus"}, links)
}

func TestExtractLinksEmpty(t *testing.T) {
	require.Empty(t, ExtractLinks("a note with no links"))
}

func TestExtractLinksRejectsNestedBrackets(t *testing.T) {
	require.Empty(t, ExtractLinks("[[note [special]]] is not a link"))
}

func TestRegisterHandlesTitleChange(t *testing.T) {
	idx := New()
	idx.Register(1, "Old Title")
	title, ok := idx.TitleByID(1)
	require.True(t, ok)
	require.Equal(t, "Old Title", title)

	idx.Register(1, "New Title")
	_, ok = idx.IDByTitle("Old Title")
	require.False(t, ok)
	id, ok := idx.IDByTitle("New Title")
	require.True(t, ok)
	require.EqualValues(t, 1, id)
}

func TestUpdateLinksMaintainsBacklinkSymmetry(t *testing.T) {
	idx := New()
	idx.Register(1, "A")
	idx.Register(2, "B")

	idx.UpdateLinks(1, "links to [[B]]")
	require.ElementsMatch(t, []uint64{1}, idx.Backlinks("B"))
	require.ElementsMatch(t, []string{"B"}, idx.Outgoing(1))

	// Changing note 1's body to drop the link to B must remove the backlink.
	idx.UpdateLinks(1, "no longer links anywhere")
	require.Empty(t, idx.Backlinks("B"))
	require.Empty(t, idx.Outgoing(1))
}

func TestLinkSymmetryInvariant(t *testing.T) {
	idx := New()
	idx.Register(1, "A")
	idx.Register(2, "B")
	idx.Register(3, "C")
	idx.UpdateLinks(1, "[[B]] and [[C]]")
	idx.UpdateLinks(2, "[[C]]")

	for id, title := range map[uint64]string{1: "A", 2: "B", 3: "C"} {
		for _, target := range idx.Outgoing(id) {
			require.Contains(t, idx.Backlinks(target), id)
		}
		for _, backID := range idx.Backlinks(title) {
			require.Contains(t, idx.Outgoing(backID), title)
		}
	}
}

func TestRemoveDropsOutgoingAndIncoming(t *testing.T) {
	idx := New()
	idx.Register(1, "A")
	idx.Register(2, "B")
	idx.UpdateLinks(1, "[[B]]")
	idx.UpdateLinks(2, "[[A]]")

	idx.Remove(1)
	require.Empty(t, idx.Backlinks("A"))
	require.Empty(t, idx.Outgoing(1))
	_, ok := idx.TitleByID(1)
	require.False(t, ok)
	// B's outgoing link to the now-removed A's title stays recorded
	// until B itself is re-saved; Remove only clears id 1's own state.
	require.Equal(t, []string{"A"}, idx.Outgoing(2))
}

func TestGraphProjection(t *testing.T) {
	idx := New()
	idx.Register(1, "A")
	idx.Register(2, "B")
	idx.UpdateLinks(1, "[[B]]")

	g := idx.Graph()
	require.Len(t, g.Nodes, 2)
	require.Len(t, g.Edges, 1)
	require.Equal(t, uint64(1), g.Edges[0].SourceID)
	require.Equal(t, uint64(2), g.Edges[0].TargetID)

	for _, n := range g.Nodes {
		if n.Title == "B" {
			require.Equal(t, 1, n.BacklinkCount)
		}
	}
}

func TestRebuildFromNotes(t *testing.T) {
	notes := []*types.Note{
		{ID: 1, Title: "A", Content: "see [[B]]"},
		{ID: 2, Title: "B", Content: "no links here"},
	}
	idx := Rebuild(notes)
	require.ElementsMatch(t, []uint64{1}, idx.Backlinks("B"))
}
