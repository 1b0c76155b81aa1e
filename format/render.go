package format

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/poiesic/ymj/core"
)

// Render writes a document back out in YMJ layout:
//
//	---
//	<yaml header>
//	---
//	<body>
//	```json
//	<index block>
//	```
//
// The body is written verbatim; a newline is added before the index fence
// when the body does not end with one. A code fence left open at the end of
// the body is closed before the index fence so the block reads back.
func Render(doc *core.Document) ([]byte, error) {
	header, err := encodeHeader(doc.FrontMatter())
	if err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(Delimiter + "\n")
	buf.Write(header)
	buf.WriteString(Delimiter + "\n")

	body := doc.Body()
	buf.WriteString(body)

	ib := doc.IndexBlock()
	if ib == nil {
		return buf.Bytes(), nil
	}
	block, err := EncodeIndexBlock(ib)
	if err != nil {
		return nil, fmt.Errorf("encode index block: %w", err)
	}
	if body != "" && !strings.HasSuffix(body, "\n") {
		buf.WriteByte('\n')
	}
	if f := unclosedFence(body); f != nil {
		buf.WriteString(strings.Repeat(string(f.char), f.width) + "\n")
	}
	buf.WriteString("```json\n")
	buf.Write(block)
	buf.WriteString("\n```\n")
	return buf.Bytes(), nil
}

// unclosedFence returns the fence still open at the end of body, if any.
func unclosedFence(body string) *fence {
	var open *fence
	for len(body) > 0 {
		line := body
		if i := strings.IndexByte(body, '\n'); i >= 0 {
			line, body = body[:i+1], body[i+1:]
		} else {
			body = ""
		}
		switch {
		case open == nil:
			open = openFence(line)
		case closesFence(line, open):
			open = nil
		}
	}
	return open
}

// EmbeddingText is the text sent to the embedding model for a document: the
// YAML header, a blank line, and the trimmed body.
func EmbeddingText(doc *core.Document) (string, error) {
	header, err := encodeHeader(doc.FrontMatter())
	if err != nil {
		return "", fmt.Errorf("encode header: %w", err)
	}
	return string(header) + "\n" + strings.TrimSpace(doc.Body()), nil
}
