// Package zim implements a read-only reader for ZIM archives: a
// memory-mapped binary format carrying a directory of URL/title
// entries pointing at zstd- or LZMA-compressed content clusters.
package zim

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz/lzma"
	"golang.org/x/sys/unix"

	"github.com/ochichan/lazarus/pkg/lazerr"
)

// Magic is the 4-byte little-endian ZIM file signature (0x044D495A).
const Magic uint32 = 0x044D495A

// HeaderLen is the fixed size of a ZIM file's leading header.
const HeaderLen = 80

// maxRedirectHops bounds redirect-chain resolution so a cyclic or
// malformed archive cannot hang a lookup. The original reader had no
// such bound; this is a deliberate hardening over it.
const maxRedirectHops = 8

// binaryExtensions lists URL suffixes search excludes as non-article
// content (images, stylesheets, fonts, scripts).
var binaryExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".css", ".js", ".woff", ".woff2", ".ttf",
}

// Header is the fixed 80-byte ZIM preamble.
type Header struct {
	Magic          uint32
	MajorVersion   uint16
	MinorVersion   uint16
	UUID           [16]byte
	ArticleCount   uint32
	ClusterCount   uint32
	URLPtrPos      uint64
	TitlePtrPos    uint64
	ClusterPtrPos  uint64
	MimeListPos    uint64
	MainPage       uint32
	LayoutPage     uint32
	ChecksumPos    uint64
}

// parseHeader parses the fixed 80-byte header from the start of data.
func parseHeader(data []byte) (Header, error) {
	if len(data) < HeaderLen {
		return Header{}, lazerr.New(lazerr.ZimOpen, "header shorter than 80 bytes")
	}
	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != Magic {
		return Header{}, lazerr.New(lazerr.ZimOpen, "bad magic number")
	}
	var h Header
	h.Magic = magic
	h.MajorVersion = binary.LittleEndian.Uint16(data[4:6])
	h.MinorVersion = binary.LittleEndian.Uint16(data[6:8])
	copy(h.UUID[:], data[8:24])
	h.ArticleCount = binary.LittleEndian.Uint32(data[24:28])
	h.ClusterCount = binary.LittleEndian.Uint32(data[28:32])
	h.URLPtrPos = binary.LittleEndian.Uint64(data[32:40])
	h.TitlePtrPos = binary.LittleEndian.Uint64(data[40:48])
	h.ClusterPtrPos = binary.LittleEndian.Uint64(data[48:56])
	h.MimeListPos = binary.LittleEndian.Uint64(data[56:64])
	h.MainPage = binary.LittleEndian.Uint32(data[64:68])
	h.LayoutPage = binary.LittleEndian.Uint32(data[68:72])
	h.ChecksumPos = binary.LittleEndian.Uint64(data[72:80])
	return h, nil
}

// EntryType classifies a DirEntry.
type EntryType int

const (
	EntryContent EntryType = iota
	EntryRedirect
	EntryDeleted
)

const (
	mimeRedirect = 0xFFFF
	mimeDeleted  = 0xFFFE
)

// DirEntry is one parsed directory entry.
type DirEntry struct {
	Index         uint32
	MimeType      uint16
	Namespace     byte
	URL           string
	Title         string
	Type          EntryType
	ClusterNumber uint32
	BlobNumber    uint32
	RedirectIndex uint32
}

// Reader is a memory-mapped, read-only ZIM archive.
type Reader struct {
	path   string
	file   *os.File
	data   []byte
	Header Header

	zstdDecoder *zstd.Decoder
}

// Open memory-maps path read-only and parses its header.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, lazerr.Wrap(lazerr.ZimOpen, "opening zim file", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, lazerr.Wrap(lazerr.ZimOpen, "statting zim file", err)
	}
	if info.Size() < HeaderLen {
		f.Close()
		return nil, lazerr.New(lazerr.ZimOpen, "file too small to contain a zim header")
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, lazerr.Wrap(lazerr.ZimOpen, "mmap failed", err)
	}

	header, err := parseHeader(data)
	if err != nil {
		unix.Munmap(data)
		f.Close()
		return nil, err
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		unix.Munmap(data)
		f.Close()
		return nil, lazerr.Wrap(lazerr.ZimOpen, "constructing zstd decoder", err)
	}

	return &Reader{path: path, file: f, data: data, Header: header, zstdDecoder: decoder}, nil
}

// Close unmaps the archive and closes its file handle.
func (r *Reader) Close() error {
	r.zstdDecoder.Close()
	if err := unix.Munmap(r.data); err != nil {
		r.file.Close()
		return lazerr.Wrap(lazerr.Io, "munmap failed", err)
	}
	return r.file.Close()
}

// Size returns the mapped file size in bytes.
func (r *Reader) Size() int { return len(r.data) }

func (r *Reader) urlOffset(index uint32) uint64 {
	pos := r.Header.URLPtrPos + uint64(index)*8
	return binary.LittleEndian.Uint64(r.data[pos : pos+8])
}

func (r *Reader) clusterOffset(clusterNum uint32) uint64 {
	pos := r.Header.ClusterPtrPos + uint64(clusterNum)*8
	return binary.LittleEndian.Uint64(r.data[pos : pos+8])
}

func readNullTerminated(data []byte) string {
	n := 0
	for n < len(data) && data[n] != 0 {
		n++
	}
	return string(data[:n])
}

// ReadDirEntry parses the directory entry at the given index.
func (r *Reader) ReadDirEntry(index uint32) (*DirEntry, error) {
	if index >= r.Header.ArticleCount {
		return nil, lazerr.New(lazerr.ZimOpen, "directory index out of range")
	}
	offset := r.urlOffset(index)
	if offset+4 > uint64(len(r.data)) {
		return nil, lazerr.New(lazerr.ZimOpen, "directory entry offset out of bounds")
	}
	data := r.data[offset:]

	mimeType := binary.LittleEndian.Uint16(data[0:2])
	entryType := EntryContent
	switch mimeType {
	case mimeRedirect:
		entryType = EntryRedirect
	case mimeDeleted:
		entryType = EntryDeleted
	}
	namespace := data[3]

	var cluster, blob, redirect uint32
	var urlStart int
	switch entryType {
	case EntryContent:
		if len(data) < 16 {
			return nil, lazerr.New(lazerr.ZimOpen, "truncated content dirent")
		}
		cluster = binary.LittleEndian.Uint32(data[8:12])
		blob = binary.LittleEndian.Uint32(data[12:16])
		urlStart = 16
	case EntryRedirect:
		if len(data) < 8 {
			return nil, lazerr.New(lazerr.ZimOpen, "truncated redirect dirent")
		}
		redirect = binary.LittleEndian.Uint32(data[4:8])
		urlStart = 8
	case EntryDeleted:
		urlStart = 4
	}

	if urlStart > len(data) {
		return nil, lazerr.New(lazerr.ZimOpen, "truncated dirent strings")
	}
	url := readNullTerminated(data[urlStart:])
	titleStart := urlStart + len(url) + 1
	if titleStart > len(data) {
		return nil, lazerr.New(lazerr.ZimOpen, "truncated dirent title")
	}
	title := readNullTerminated(data[titleStart:])

	return &DirEntry{
		Index: index, MimeType: mimeType, Namespace: namespace,
		URL: url, Title: title, Type: entryType,
		ClusterNumber: cluster, BlobNumber: blob, RedirectIndex: redirect,
	}, nil
}

// FindByURLLinear scans every entry for an exact namespace+URL match.
func (r *Reader) FindByURLLinear(namespace byte, url string) (*DirEntry, error) {
	for i := uint32(0); i < r.Header.ArticleCount; i++ {
		e, err := r.ReadDirEntry(i)
		if err != nil {
			continue
		}
		if e.Namespace == namespace && e.URL == url {
			return e, nil
		}
	}
	return nil, nil
}

// FindByURLBinary performs a binary search assuming directory entries
// are URL-sorted. A failing read narrows the range on the failing
// side rather than aborting the search.
func (r *Reader) FindByURLBinary(url string) (*DirEntry, error) {
	if r.Header.ArticleCount == 0 {
		return nil, nil
	}
	low, high := uint32(0), r.Header.ArticleCount-1
	for low <= high {
		mid := low + (high-low)/2
		entry, err := r.ReadDirEntry(mid)
		if err != nil {
			if mid == 0 {
				break
			}
			high = mid - 1
			continue
		}
		switch {
		case url == entry.URL:
			return entry, nil
		case url < entry.URL:
			if mid == 0 {
				return nil, nil
			}
			high = mid - 1
		default:
			low = mid + 1
		}
	}
	return nil, nil
}

// resolveRedirect follows RedirectIndex chains to a content or deleted
// entry, bounded at maxRedirectHops.
func (r *Reader) resolveRedirect(entry *DirEntry) (*DirEntry, error) {
	for hops := 0; entry.Type == EntryRedirect; hops++ {
		if hops >= maxRedirectHops {
			return nil, lazerr.New(lazerr.ZimOpen, "redirect chain too long")
		}
		next, err := r.ReadDirEntry(entry.RedirectIndex)
		if err != nil {
			return nil, err
		}
		entry = next
	}
	return entry, nil
}

// GetContent resolves namespace+url to its blob bytes, or (nil, nil)
// if not found or a deleted entry.
func (r *Reader) GetContent(namespace byte, url string) ([]byte, error) {
	entry, err := r.FindByURLLinear(namespace, url)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	return r.contentFromEntry(entry)
}

// GetContentFast tries a binary search first, then falls back to a
// linear scan across the common content namespaces.
func (r *Reader) GetContentFast(url string) ([]byte, error) {
	if entry, err := r.FindByURLBinary(url); err != nil {
		return nil, err
	} else if entry != nil {
		return r.contentFromEntry(entry)
	}
	for _, ns := range []byte{'C', 'A', '-'} {
		content, err := r.GetContent(ns, url)
		if err != nil {
			return nil, err
		}
		if content != nil {
			return content, nil
		}
	}
	return nil, nil
}

func (r *Reader) contentFromEntry(entry *DirEntry) ([]byte, error) {
	switch entry.Type {
	case EntryDeleted:
		return nil, nil
	case EntryRedirect:
		resolved, err := r.resolveRedirect(entry)
		if err != nil {
			return nil, err
		}
		return r.contentFromEntry(resolved)
	default:
		return r.ReadBlob(entry.ClusterNumber, entry.BlobNumber)
	}
}

// MainPage returns the archive's designated main page entry, if any.
func (r *Reader) MainPage() (*DirEntry, error) {
	if r.Header.MainPage == 0xFFFFFFFF {
		return nil, nil
	}
	return r.ReadDirEntry(r.Header.MainPage)
}

// ReadBlob decompresses cluster clusterNum and extracts blob blobNum
// from its offset table.
func (r *Reader) ReadBlob(clusterNum, blobNum uint32) ([]byte, error) {
	if clusterNum >= r.Header.ClusterCount {
		return nil, lazerr.New(lazerr.ZimOpen, "cluster index out of range")
	}
	clusterOffset := r.clusterOffset(clusterNum)
	if clusterOffset >= uint64(len(r.data)) {
		return nil, lazerr.New(lazerr.ZimOpen, "cluster offset out of bounds")
	}

	infoByte := r.data[clusterOffset]
	compression := infoByte & 0x0F
	extended := infoByte&0x10 != 0
	offsetSize := 4
	if extended {
		offsetSize = 8
	}

	var nextClusterOffset uint64
	if clusterNum+1 < r.Header.ClusterCount {
		nextClusterOffset = r.clusterOffset(clusterNum + 1)
	} else {
		nextClusterOffset = r.Header.ChecksumPos
	}
	if nextClusterOffset > uint64(len(r.data)) || clusterOffset+1 > nextClusterOffset {
		return nil, lazerr.New(lazerr.ZimOpen, "invalid cluster bounds")
	}
	clusterData := r.data[clusterOffset+1 : nextClusterOffset]

	var decompressed []byte
	switch compression {
	case 0, 1:
		decompressed = clusterData
	case 5:
		out, err := r.zstdDecoder.DecodeAll(clusterData, nil)
		if err != nil {
			return nil, lazerr.Wrap(lazerr.ZimDecompress, "zstd cluster decompression failed", err)
		}
		decompressed = out
	case 4:
		lr, err := lzma.NewReader(bytes.NewReader(clusterData))
		if err != nil {
			return nil, lazerr.Wrap(lazerr.ZimDecompress, "constructing lzma reader", err)
		}
		out, err := io.ReadAll(lr)
		if err != nil {
			return nil, lazerr.Wrap(lazerr.ZimDecompress, "lzma cluster decompression failed", err)
		}
		decompressed = out
	default:
		return nil, lazerr.New(lazerr.ZimDecompress, "unknown cluster compression code")
	}

	readOffset := func(n uint32) (int, error) {
		start := int(n) * offsetSize
		if start+offsetSize > len(decompressed) {
			return 0, lazerr.New(lazerr.ZimDecompress, "blob offset table truncated")
		}
		if extended {
			return int(binary.LittleEndian.Uint64(decompressed[start : start+8])), nil
		}
		return int(binary.LittleEndian.Uint32(decompressed[start : start+4])), nil
	}

	blobOffset, err := readOffset(blobNum)
	if err != nil {
		return nil, err
	}
	nextBlobOffset, err := readOffset(blobNum + 1)
	if err != nil {
		return nil, err
	}
	if blobOffset < 0 || nextBlobOffset > len(decompressed) || blobOffset > nextBlobOffset {
		return nil, lazerr.New(lazerr.ZimDecompress, "blob bounds out of range")
	}
	return decompressed[blobOffset:nextBlobOffset], nil
}

// isArticle reports whether entry belongs in Search/SearchFuzzy
// results: content in namespace A or C, URL not ending in a known
// binary extension.
func isArticle(e *DirEntry) bool {
	if e.Type != EntryContent || (e.Namespace != 'A' && e.Namespace != 'C') {
		return false
	}
	lowered := strings.ToLower(e.URL)
	for _, ext := range binaryExtensions {
		if strings.HasSuffix(lowered, ext) {
			return false
		}
	}
	return true
}

// Search scans directory order for content entries whose title or URL
// case-insensitively contains query, up to limit results.
func (r *Reader) Search(query string, limit int) []DirEntry {
	queryLower := strings.ToLower(query)
	var results []DirEntry
	for i := uint32(0); i < r.Header.ArticleCount && len(results) < limit; i++ {
		e, err := r.ReadDirEntry(i)
		if err != nil || !isArticle(e) {
			continue
		}
		if strings.Contains(strings.ToLower(e.Title), queryLower) || strings.Contains(strings.ToLower(e.URL), queryLower) {
			results = append(results, *e)
		}
	}
	return results
}

// SearchFuzzy tries Search first; if that returns nothing, it accepts
// any title containing a whitespace-delimited token within Levenshtein
// distance 2 of query.
func (r *Reader) SearchFuzzy(query string, limit int) []DirEntry {
	if exact := r.Search(query, limit); len(exact) > 0 {
		return exact
	}

	queryLower := strings.ToLower(query)
	var results []DirEntry
	for i := uint32(0); i < r.Header.ArticleCount && len(results) < limit; i++ {
		e, err := r.ReadDirEntry(i)
		if err != nil || !isArticle(e) {
			continue
		}
		if fuzzyMatch(queryLower, e.Title, 2) {
			results = append(results, *e)
		}
	}
	return results
}

// fuzzyMatch reports whether any alphanumeric token in text is within
// maxDistance Levenshtein edits of query, after an exact-substring
// fast path.
func fuzzyMatch(queryLower, text string, maxDistance int) bool {
	textLower := strings.ToLower(text)
	if strings.Contains(textLower, queryLower) {
		return true
	}
	for _, word := range strings.FieldsFunc(textLower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if word == "" {
			continue
		}
		if abs(len(word)-len(queryLower)) > maxDistance {
			continue
		}
		if levenshtein(queryLower, word) <= maxDistance {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// levenshtein computes the classic edit distance between a and b.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
