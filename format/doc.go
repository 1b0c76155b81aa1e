// Package format reads and writes YMJ documents.
//
// A YMJ file has three sections: a YAML header between "---" lines, a
// markdown body, and an optional trailing ```json fence holding the index
// block (schema, tags, title, embedding, meta).
//
// Parse runs a line-oriented state machine over the text. Header problems
// are fatal; index block problems are reported as issues and leave the
// document without an index block. Header YAML is decoded through a tag
// allow-list so no custom type can be constructed from input.
//
// Render writes a document back in canonical layout, and EmbeddingText
// produces the text handed to an embedding model.
package format
