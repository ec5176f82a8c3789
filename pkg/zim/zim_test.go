package zim

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
)

// fixtureEntry describes one directory entry for buildFixture.
type fixtureEntry struct {
	namespace byte
	url       string
	title     string
	entryType EntryType
	cluster   uint32
	blob      uint32
	redirect  uint32
}

func encodeDirEntry(e fixtureEntry) []byte {
	var buf bytes.Buffer
	switch e.entryType {
	case EntryRedirect:
		binary.Write(&buf, binary.LittleEndian, uint16(mimeRedirect))
		buf.WriteByte(0)
		buf.WriteByte(e.namespace)
		binary.Write(&buf, binary.LittleEndian, e.redirect)
	case EntryDeleted:
		binary.Write(&buf, binary.LittleEndian, uint16(mimeDeleted))
		buf.WriteByte(0)
		buf.WriteByte(e.namespace)
	default:
		binary.Write(&buf, binary.LittleEndian, uint16(0))
		buf.WriteByte(0)
		buf.WriteByte(e.namespace)
		binary.Write(&buf, binary.LittleEndian, uint32(0)) // revision
		binary.Write(&buf, binary.LittleEndian, e.cluster)
		binary.Write(&buf, binary.LittleEndian, e.blob)
	}
	buf.WriteString(e.url)
	buf.WriteByte(0)
	buf.WriteString(e.title)
	buf.WriteByte(0)
	return buf.Bytes()
}

// passthroughCluster builds an uncompressed (code 0) cluster body: a
// non-extended 4-byte offset table followed by the concatenated blobs.
func passthroughCluster(blobs [][]byte) []byte {
	table := make([]byte, (len(blobs)+1)*4)
	offset := uint32(len(table))
	binary.LittleEndian.PutUint32(table[0:4], offset)
	var body bytes.Buffer
	for i, b := range blobs {
		offset += uint32(len(b))
		binary.LittleEndian.PutUint32(table[(i+1)*4:(i+2)*4], offset)
		body.Write(b)
	}
	full := append(table, body.Bytes()...)
	return append([]byte{0x00}, full...)
}

func zstdCluster(t *testing.T, blobs [][]byte) []byte {
	t.Helper()
	table := make([]byte, (len(blobs)+1)*4)
	offset := uint32(len(table))
	binary.LittleEndian.PutUint32(table[0:4], offset)
	var body bytes.Buffer
	for i, b := range blobs {
		offset += uint32(len(b))
		binary.LittleEndian.PutUint32(table[(i+1)*4:(i+2)*4], offset)
		body.Write(b)
	}
	full := append(table, body.Bytes()...)

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	compressed := enc.EncodeAll(full, nil)
	require.NoError(t, enc.Close())
	return append([]byte{0x05}, compressed...)
}

// buildFixture assembles a minimal, valid ZIM file: entries must
// already be URL-sorted (binary search depends on it). clusters is a
// list of pre-encoded cluster bodies (info byte + payload).
func buildFixture(t *testing.T, entries []fixtureEntry, clusters [][]byte) string {
	t.Helper()

	dirents := make([][]byte, len(entries))
	for i, e := range entries {
		dirents[i] = encodeDirEntry(e)
	}

	urlPtrPos := uint64(HeaderLen)
	clusterPtrPos := urlPtrPos + uint64(len(entries))*8
	direntsStart := clusterPtrPos + uint64(len(clusters))*8

	direntOffsets := make([]uint64, len(dirents))
	cursor := direntsStart
	for i, d := range dirents {
		direntOffsets[i] = cursor
		cursor += uint64(len(d))
	}

	clusterOffsets := make([]uint64, len(clusters))
	for i, c := range clusters {
		clusterOffsets[i] = cursor
		cursor += uint64(len(c))
	}
	checksumPos := cursor

	var buf bytes.Buffer
	header := make([]byte, HeaderLen)
	binary.LittleEndian.PutUint32(header[0:4], Magic)
	binary.LittleEndian.PutUint32(header[24:28], uint32(len(entries)))
	binary.LittleEndian.PutUint32(header[28:32], uint32(len(clusters)))
	binary.LittleEndian.PutUint64(header[32:40], urlPtrPos)
	binary.LittleEndian.PutUint64(header[40:48], urlPtrPos) // title ptr unused by reader
	binary.LittleEndian.PutUint64(header[48:56], clusterPtrPos)
	binary.LittleEndian.PutUint64(header[56:64], 0)
	binary.LittleEndian.PutUint32(header[64:68], 0xFFFFFFFF) // no main page
	binary.LittleEndian.PutUint64(header[72:80], checksumPos)
	buf.Write(header)

	for _, off := range direntOffsets {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], off)
		buf.Write(b[:])
	}
	for _, off := range clusterOffsets {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], off)
		buf.Write(b[:])
	}
	for _, d := range dirents {
		buf.Write(d)
	}
	for _, c := range clusters {
		buf.Write(c)
	}

	path := filepath.Join(t.TempDir(), "fixture.zim")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func basicFixture(t *testing.T) string {
	cluster0 := passthroughCluster([][]byte{[]byte("Apple content"), []byte("Banana content")})
	cluster1 := zstdCluster(t, [][]byte{[]byte("Cherry content")})

	entries := []fixtureEntry{
		{namespace: 'A', url: "apple", title: "Apple", entryType: EntryContent, cluster: 0, blob: 0},
		{namespace: 'A', url: "banana", title: "Banana", entryType: EntryContent, cluster: 0, blob: 1},
		{namespace: 'A', url: "cherry", title: "Cherry", entryType: EntryContent, cluster: 1, blob: 0},
		{namespace: 'A', url: "redirect_to_apple", title: "Redirect", entryType: EntryRedirect, redirect: 0},
	}
	return buildFixture(t, entries, [][]byte{cluster0, cluster1})
}

func TestOpenParsesHeader(t *testing.T) {
	r, err := Open(basicFixture(t))
	require.NoError(t, err)
	defer r.Close()

	require.EqualValues(t, 4, r.Header.ArticleCount)
	require.EqualValues(t, 2, r.Header.ClusterCount)
}

func TestBadMagicRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.zim")
	require.NoError(t, os.WriteFile(path, make([]byte, HeaderLen), 0o644))
	_, err := Open(path)
	require.Error(t, err)
}

func TestReadDirEntryContent(t *testing.T) {
	r, err := Open(basicFixture(t))
	require.NoError(t, err)
	defer r.Close()

	e, err := r.ReadDirEntry(0)
	require.NoError(t, err)
	require.Equal(t, "apple", e.URL)
	require.Equal(t, "Apple", e.Title)
	require.Equal(t, EntryContent, e.Type)
}

func TestGetContentFastUncompressed(t *testing.T) {
	r, err := Open(basicFixture(t))
	require.NoError(t, err)
	defer r.Close()

	data, err := r.GetContentFast("apple")
	require.NoError(t, err)
	require.Equal(t, "Apple content", string(data))

	data, err = r.GetContentFast("banana")
	require.NoError(t, err)
	require.Equal(t, "Banana content", string(data))
}

func TestGetContentFastZstd(t *testing.T) {
	r, err := Open(basicFixture(t))
	require.NoError(t, err)
	defer r.Close()

	data, err := r.GetContentFast("cherry")
	require.NoError(t, err)
	require.Equal(t, "Cherry content", string(data))
}

func TestRedirectResolution(t *testing.T) {
	r, err := Open(basicFixture(t))
	require.NoError(t, err)
	defer r.Close()

	data, err := r.GetContentFast("redirect_to_apple")
	require.NoError(t, err)
	require.Equal(t, "Apple content", string(data))
}

func TestMissingURLReturnsNil(t *testing.T) {
	r, err := Open(basicFixture(t))
	require.NoError(t, err)
	defer r.Close()

	data, err := r.GetContentFast("does-not-exist")
	require.NoError(t, err)
	require.Nil(t, data)
}

func TestBinarySearchMatchesLinear(t *testing.T) {
	r, err := Open(basicFixture(t))
	require.NoError(t, err)
	defer r.Close()

	for _, url := range []string{"apple", "banana", "cherry"} {
		viaLinear, err := r.FindByURLLinear('A', url)
		require.NoError(t, err)
		viaBinary, err := r.FindByURLBinary(url)
		require.NoError(t, err)
		require.Equal(t, viaLinear.URL, viaBinary.URL)
	}
}

func TestSearchFindsByTitleSubstring(t *testing.T) {
	r, err := Open(basicFixture(t))
	require.NoError(t, err)
	defer r.Close()

	results := r.Search("cherr", 10)
	require.Len(t, results, 1)
	require.Equal(t, "cherry", results[0].URL)
}

func TestSearchFuzzyFallsBackToEditDistance(t *testing.T) {
	r, err := Open(basicFixture(t))
	require.NoError(t, err)
	defer r.Close()

	// "Aple" is within edit distance 1 of "apple" and has no exact match.
	exact := r.Search("xyznotfound", 10)
	require.Empty(t, exact)

	results := r.SearchFuzzy("Aple", 10)
	require.NotEmpty(t, results)
	require.Equal(t, "apple", results[0].URL)
}

func TestLevenshteinBasic(t *testing.T) {
	require.Equal(t, 0, levenshtein("abc", "abc"))
	require.Equal(t, 1, levenshtein("abc", "abd"))
	require.Equal(t, 3, levenshtein("", "abc"))
}
