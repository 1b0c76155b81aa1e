package core

import (
	"maps"
	"slices"
)

// CurrentSchema is the index block schema version written by this package.
const CurrentSchema = 1

// Well-known front matter fields.
const (
	FieldDocType   = "doc_type"
	FieldTitle     = "title"
	FieldCreated   = "created"
	FieldUpdated   = "updated"
	FieldTags      = "tags"
	FieldRelatesTo = "relates_to"
)

// Well-known index block meta keys.
const (
	MetaFingerprint    = "content_fingerprint"
	MetaEmbeddingModel = "embedding_model"
	MetaEmbeddingDim   = "embedding_dim"
)

// IndexBlock is the trailing JSON section of a document.
// Schema is 0 when the source block carried no schema field.
type IndexBlock struct {
	Schema    int
	Tags      []string
	Title     string
	Embedding []float64
	Meta      map[string]any
}

// HasEmbedding reports whether the block carries a non-empty embedding.
func (ib *IndexBlock) HasEmbedding() bool {
	return ib != nil && len(ib.Embedding) > 0
}

// Dimensions returns the length of the embedding.
func (ib *IndexBlock) Dimensions() int {
	if ib == nil {
		return 0
	}
	return len(ib.Embedding)
}

// Fingerprint returns the content fingerprint stored in meta, if any.
func (ib *IndexBlock) Fingerprint() (string, bool) {
	return ib.metaString(MetaFingerprint)
}

// Model returns the embedding model recorded in meta, if any.
func (ib *IndexBlock) Model() (string, bool) {
	return ib.metaString(MetaEmbeddingModel)
}

// RecordedDimensions returns the embedding dimensionality recorded in meta, if any.
func (ib *IndexBlock) RecordedDimensions() (int, bool) {
	if ib == nil {
		return 0, false
	}
	switch n := ib.Meta[MetaEmbeddingDim].(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), n == float64(int(n))
	}
	return 0, false
}

func (ib *IndexBlock) metaString(key string) (string, bool) {
	if ib == nil {
		return "", false
	}
	s, ok := ib.Meta[key].(string)
	return s, ok && s != ""
}

// Clone returns a deep copy of the block.
func (ib *IndexBlock) Clone() *IndexBlock {
	if ib == nil {
		return nil
	}
	return &IndexBlock{
		Schema:    ib.Schema,
		Tags:      slices.Clone(ib.Tags),
		Title:     ib.Title,
		Embedding: slices.Clone(ib.Embedding),
		Meta:      cloneMeta(ib.Meta),
	}
}

func cloneMeta(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneAny(v)
	}
	return out
}

func cloneAny(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMeta(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneAny(item)
		}
		return out
	default:
		return v
	}
}

// Document is a parsed YMJ file. Documents are immutable: accessors return
// copies, and re-embedding produces a new Document via WithIndexBlock.
type Document struct {
	frontMatter *FrontMatter
	body        string
	index       *IndexBlock
}

// NewDocument builds a document from its sections. Inputs are copied.
func NewDocument(fm *FrontMatter, body string, index *IndexBlock) *Document {
	return &Document{
		frontMatter: fm.Clone(),
		body:        body,
		index:       index.Clone(),
	}
}

// FrontMatter returns a copy of the header mapping.
func (d *Document) FrontMatter() *FrontMatter {
	return d.frontMatter.Clone()
}

// Body returns the markdown body exactly as it appeared in the source.
func (d *Document) Body() string {
	return d.body
}

// IndexBlock returns a copy of the index block, or nil when absent.
func (d *Document) IndexBlock() *IndexBlock {
	return d.index.Clone()
}

func (d *Document) HasIndexBlock() bool {
	return d.index != nil
}

// Embedding returns the stored embedding without copying. Callers must not modify it.
func (d *Document) Embedding() []float64 {
	if d.index == nil {
		return nil
	}
	return d.index.Embedding
}

func (d *Document) DocType() string {
	s, _ := d.frontMatter.GetString(FieldDocType)
	return s
}

// Title returns the header title, falling back to the index block title.
func (d *Document) Title() string {
	if s, ok := d.frontMatter.GetString(FieldTitle); ok && s != "" {
		return s
	}
	if d.index != nil {
		return d.index.Title
	}
	return ""
}

// Tags returns the header tags, or nil when absent or not a list of strings.
func (d *Document) Tags() []string {
	tags, _ := d.frontMatter.GetStrings(FieldTags)
	return tags
}

// Fingerprint hashes the current header and body.
func (d *Document) Fingerprint() string {
	return ContentFingerprint(d.frontMatter, d.body)
}

// WithIndexBlock returns a new document with the same header and body and the
// given index block. The receiver is left untouched.
func (d *Document) WithIndexBlock(ib *IndexBlock) *Document {
	return &Document{
		frontMatter: d.frontMatter,
		body:        d.body,
		index:       ib.Clone(),
	}
}

// Entry is a document in a corpus together with its source identifier.
type Entry struct {
	ID  string
	Doc *Document
}

// MergeMeta returns a copy of base with the entries of overlay applied.
func MergeMeta(base, overlay map[string]any) map[string]any {
	out := cloneMeta(base)
	if out == nil {
		out = make(map[string]any, len(overlay))
	}
	maps.Copy(out, overlay)
	return out
}
