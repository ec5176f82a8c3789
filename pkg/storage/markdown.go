package storage

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ochichan/lazarus/pkg/lazerr"
	"github.com/ochichan/lazarus/pkg/types"
)

// frontmatter is the YAML block a note's markdown serialization
// carries ahead of its body.
type frontmatter struct {
	ID      uint64   `yaml:"id"`
	Title   string   `yaml:"title"`
	Created string   `yaml:"created"`
	Updated string   `yaml:"updated"`
	Tags    []string `yaml:"tags,omitempty"`
}

// ToMarkdown renders a Note as "---\n<yaml frontmatter>\n---\n\n<body>",
// the text that gets zstd-compressed into a NoteRecord's Content.
func ToMarkdown(n *types.Note) ([]byte, error) {
	fm := frontmatter{
		ID:      n.ID,
		Title:   n.Title,
		Created: n.CreatedAt.UTC().Format(time.RFC3339),
		Updated: n.UpdatedAt.UTC().Format(time.RFC3339),
		Tags:    n.Tags,
	}
	yamlBytes, err := yaml.Marshal(&fm)
	if err != nil {
		return nil, lazerr.Wrap(lazerr.Serialize, "marshaling note frontmatter", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(yamlBytes)
	b.WriteString("---\n\n")
	b.WriteString(n.Content)
	return []byte(b.String()), nil
}

// FromMarkdown parses the text produced by ToMarkdown back into a
// Note. Text with no frontmatter delimiter is treated as a bare body
// with an empty title, matching the original implementation's
// tolerant fallback.
func FromMarkdown(id uint64, markdown []byte) (*types.Note, error) {
	text := string(markdown)
	if !strings.HasPrefix(text, "---\n") {
		return &types.Note{ID: id, Content: text}, nil
	}

	parts := strings.SplitN(text, "---\n", 3)
	if len(parts) < 3 {
		return &types.Note{ID: id, Content: text}, nil
	}

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(parts[1]), &fm); err != nil {
		return nil, lazerr.Wrap(lazerr.Deserialize, "parsing note frontmatter", err)
	}

	note := &types.Note{
		ID:      id,
		Title:   fm.Title,
		Content: strings.TrimSpace(parts[2]),
		Tags:    fm.Tags,
	}
	if t, err := time.Parse(time.RFC3339, fm.Created); err == nil {
		note.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, fm.Updated); err == nil {
		note.UpdatedAt = t
	}
	return note, nil
}

// lockedPlaceholder builds the sentinel Note returned by Get when a
// record is encrypted but no crypto manager is available to open it.
func lockedPlaceholder(id uint64, createdAt, updatedAt int64) *types.Note {
	return &types.Note{
		ID:        id,
		Title:     "🔒 Encrypted note",
		Content:   fmt.Sprintf("Enter your PIN to unlock note #%d", id),
		Encrypted: true,
		CreatedAt: time.Unix(createdAt, 0).UTC(),
		UpdatedAt: time.Unix(updatedAt, 0).UTC(),
	}
}
