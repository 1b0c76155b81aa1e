package format

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/poiesic/ymj/core"
)

type wireIndex struct {
	Tags      []string  `json:"tags"`
	Title     string    `json:"title,omitempty"`
	Embedding []float64 `json:"embedding,omitempty"`
}

type wireBlock struct {
	Schema int            `json:"schema"`
	Index  wireIndex      `json:"index"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// EncodeIndexBlock renders the block as indented JSON. The schema is always
// written as core.CurrentSchema regardless of the value in ib.
func EncodeIndexBlock(ib *core.IndexBlock) ([]byte, error) {
	if ib == nil {
		return nil, errors.New("nil index block")
	}
	tags := ib.Tags
	if tags == nil {
		tags = []string{}
	}
	return json.MarshalIndent(wireBlock{
		Schema: core.CurrentSchema,
		Index: wireIndex{
			Tags:      tags,
			Title:     ib.Title,
			Embedding: ib.Embedding,
		},
		Meta: ib.Meta,
	}, "", "  ")
}

// DecodeIndexBlock parses the content of a json fence. A nil block means the
// content was rejected; the returned issues say why. A block without a schema
// is accepted as schema 0 with a MissingSchema issue. A block whose
// embedding length disagrees with the recorded embedding_dim is kept, with a
// MalformedIndexBlock issue on that field.
func DecodeIndexBlock(content string) (*core.IndexBlock, []core.Issue) {
	var raw map[string]json.RawMessage
	if err := decodeStrict([]byte(content), &raw); err != nil {
		return nil, malformed("", "invalid JSON: %v", err)
	}
	if raw == nil {
		return nil, malformed("", "index block must be a JSON object")
	}

	var issues []core.Issue
	ib := &core.IndexBlock{}

	if schemaRaw, ok := raw["schema"]; ok {
		var n json.Number
		if err := decodeStrict(schemaRaw, &n); err != nil {
			return nil, malformed("schema", "schema must be a positive integer")
		}
		schema, err := n.Int64()
		if err != nil || schema < 1 {
			return nil, malformed("schema", "schema must be a positive integer, got %s", n)
		}
		ib.Schema = int(schema)
		if ib.Schema > core.CurrentSchema {
			issues = append(issues, core.Issue{
				Kind:    core.IssueUnsupportedSchema,
				Field:   "schema",
				Message: fmt.Sprintf("schema %d is newer than %d; unknown fields are ignored", ib.Schema, core.CurrentSchema),
			})
		}
	} else {
		issues = append(issues, core.Issue{
			Kind:    core.IssueMissingSchema,
			Field:   "schema",
			Message: "index block has no schema; treating it as version 0",
		})
	}

	if indexRaw, ok := raw["index"]; ok && !isNull(indexRaw) {
		var index map[string]json.RawMessage
		if err := decodeStrict(indexRaw, &index); err != nil {
			return nil, malformed("index", "index must be a JSON object")
		}
		if rejected := decodeIndexFields(index, ib); rejected != nil {
			return nil, rejected
		}
	}

	if metaRaw, ok := raw["meta"]; ok && !isNull(metaRaw) {
		if err := json.Unmarshal(metaRaw, &ib.Meta); err != nil || ib.Meta == nil {
			return nil, malformed("meta", "meta must be a JSON object")
		}
	}

	if dim, ok := ib.RecordedDimensions(); ok && ib.HasEmbedding() && dim != len(ib.Embedding) {
		issues = append(issues, core.Issue{
			Kind:    core.IssueMalformedIndexBlock,
			Field:   "meta." + core.MetaEmbeddingDim,
			Message: fmt.Sprintf("embedding has %d dimensions but meta records %d", len(ib.Embedding), dim),
		})
	}

	return ib, issues
}

func decodeIndexFields(index map[string]json.RawMessage, ib *core.IndexBlock) []core.Issue {
	if raw, ok := index["tags"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &ib.Tags); err != nil {
			return malformed("index.tags", "tags must be an array of strings")
		}
	}
	if raw, ok := index["title"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &ib.Title); err != nil {
			return malformed("index.title", "title must be a string")
		}
	}
	if raw, ok := index["embedding"]; ok && !isNull(raw) {
		var items []any
		if err := decodeStrict(raw, &items); err != nil {
			return malformed("index.embedding", "embedding must be an array of numbers")
		}
		ib.Embedding = make([]float64, len(items))
		for i, item := range items {
			n, ok := item.(json.Number)
			if !ok {
				return malformed("index.embedding", "embedding entry %d is not a number", i)
			}
			f, err := n.Float64()
			if err != nil {
				return malformed("index.embedding", "embedding entry %d: %v", i, err)
			}
			ib.Embedding[i] = f
		}
	}
	return nil
}

// decodeStrict decodes a single JSON value, keeping numbers as json.Number and
// rejecting trailing data.
func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

func malformed(field, format string, args ...any) []core.Issue {
	return []core.Issue{{
		Kind:    core.IssueMalformedIndexBlock,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}}
}
