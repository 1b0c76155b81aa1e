package format

import (
	"testing"

	"github.com/poiesic/ymj/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = "---\ndoc_type: note\ntitle: Minimal Example\n---\n\nThis is a minimal YMJ file.\n"

func TestParse_Minimal(t *testing.T) {
	doc, issues, err := Parse(minimal)
	require.NoError(t, err)
	assert.Empty(t, issues)

	assert.Equal(t, "\nThis is a minimal YMJ file.\n", doc.Body())
	assert.False(t, doc.HasIndexBlock())
	assert.Equal(t, "note", doc.DocType())
	assert.Equal(t, "Minimal Example", doc.Title())
	assert.Equal(t, []string{"doc_type", "title"}, doc.FrontMatter().Keys())
}

func TestParse_WithIndexBlock(t *testing.T) {
	text := "---\ndoc_type: note\ntitle: Indexed\ntags: [a, b]\n---\n\nBody.\n\n" +
		"```json\n{\n  \"schema\": 1,\n  \"index\": {\"tags\": [\"a\"], \"title\": \"Indexed\", \"embedding\": [0.5, -1, 2e-3]},\n  \"meta\": {\"source\": \"test\"}\n}\n```\n"

	doc, issues, err := Parse(text)
	require.NoError(t, err)
	assert.Empty(t, issues)

	assert.Equal(t, "\nBody.\n\n", doc.Body())
	ib := doc.IndexBlock()
	require.NotNil(t, ib)
	assert.Equal(t, 1, ib.Schema)
	assert.Equal(t, []string{"a"}, ib.Tags)
	assert.Equal(t, "Indexed", ib.Title)
	assert.Equal(t, []float64{0.5, -1, 0.002}, ib.Embedding)
	assert.Equal(t, "test", ib.Meta["source"])
	assert.Equal(t, []string{"a", "b"}, doc.Tags())
}

func TestParse_LastJSONFenceWins(t *testing.T) {
	text := "---\ndoc_type: note\ntitle: Two fences\n---\n" +
		"Example:\n\n```json\n{\"schema\": 1, \"index\": {\"embedding\": [9, 9]}}\n```\n\nMore prose.\n\n" +
		"```json\n{\"schema\": 1, \"index\": {\"embedding\": [1, 0]}}\n```\n"

	doc, issues, err := Parse(text)
	require.NoError(t, err)
	assert.Empty(t, issues)

	assert.Equal(t, []float64{1, 0}, doc.Embedding())
	assert.Contains(t, doc.Body(), "[9, 9]")
	assert.Contains(t, doc.Body(), "More prose.")
	assert.NotContains(t, doc.Body(), "[1, 0]")
}

func TestParse_JSONInsideOtherFenceIsBody(t *testing.T) {
	text := "---\ndoc_type: note\ntitle: Nested\n---\n" +
		"````markdown\n```json\n{\"schema\": 1}\n```\n````\n"

	doc, issues, err := Parse(text)
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.False(t, doc.HasIndexBlock())
	assert.Equal(t, "````markdown\n```json\n{\"schema\": 1}\n```\n````\n", doc.Body())
}

func TestParse_MalformedIndexBlockIsNotFatal(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"invalid json", "{not json"},
		{"non-numeric embedding", `{"schema": 1, "index": {"embedding": [1, "two", 3]}}`},
		{"array at top level", `[1, 2, 3]`},
		{"zero schema", `{"schema": 0}`},
		{"tags not strings", `{"schema": 1, "index": {"tags": [1]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := "---\ndoc_type: note\ntitle: Bad block\n---\nBody\n```json\n" + tt.json + "\n```\n"
			doc, issues, err := Parse(text)
			require.NoError(t, err)
			assert.False(t, doc.HasIndexBlock())
			assert.Equal(t, "Body\n", doc.Body())
			assert.True(t, core.HasKind(issues, core.IssueMalformedIndexBlock), "issues: %v", issues)
		})
	}
}

func TestParse_MissingSchemaIsAccepted(t *testing.T) {
	text := "---\ndoc_type: note\ntitle: Legacy\n---\nBody\n```json\n{\"index\": {\"embedding\": [1, 2]}}\n```\n"

	doc, issues, err := Parse(text)
	require.NoError(t, err)
	require.True(t, doc.HasIndexBlock())
	assert.Equal(t, 0, doc.IndexBlock().Schema)
	assert.Equal(t, []float64{1, 2}, doc.Embedding())
	require.Len(t, issues, 1)
	assert.Equal(t, core.IssueMissingSchema, issues[0].Kind)
}

func TestParse_JSONFenceFollowedByProse(t *testing.T) {
	text := "---\ndoc_type: note\ntitle: Example\n---\n```json\n{\"schema\": 1}\n```\nAfter the example.\n"

	doc, issues, err := Parse(text)
	require.NoError(t, err)
	assert.False(t, doc.HasIndexBlock())
	assert.Contains(t, doc.Body(), "After the example.")
	assert.True(t, core.HasKind(issues, core.IssueTrailingContent))
}

func TestParse_UnclosedJSONFence(t *testing.T) {
	text := "---\ndoc_type: note\ntitle: Open\n---\nBody\n```json\n{\"schema\": 1}\n"

	doc, issues, err := Parse(text)
	require.NoError(t, err)
	assert.False(t, doc.HasIndexBlock())
	assert.Equal(t, "Body\n```json\n{\"schema\": 1}\n", doc.Body())
	assert.True(t, core.HasKind(issues, core.IssueMalformedIndexBlock))
}

func TestParse_FatalHeaderErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want error
	}{
		{"empty input", "", core.ErrMissingHeaderDelimiter},
		{"no delimiter", "title: x\n---\n", core.ErrMissingHeaderDelimiter},
		{"delimiter with trailing text", "--- yaml\ntitle: x\n---\n", core.ErrMissingHeaderDelimiter},
		{"unterminated", "---\ndoc_type: note\ntitle: x\n", core.ErrUnterminatedHeader},
		{"custom tag", "---\ntitle: !custom x\n---\n", core.ErrUnsafeHeaderContent},
		{"python object tag", "---\ntitle: !!python/object:os.system x\n---\n", core.ErrUnsafeHeaderContent},
		{"binary tag", "---\ndata: !!binary aGVsbG8=\n---\n", core.ErrUnsafeHeaderContent},
		{"merge key", "---\nbase: &b {a: 1}\nother:\n  <<: *b\n---\n", core.ErrUnsafeHeaderContent},
		{"scalar header", "---\njust a string\n---\n", core.ErrHeaderNotMapping},
		{"list header", "---\n- a\n- b\n---\n", core.ErrHeaderNotMapping},
		{"broken yaml", "---\ntitle: [unclosed\n---\n", core.ErrInvalidHeader},
		{"duplicate key", "---\ntitle: a\ntitle: b\n---\n", core.ErrInvalidHeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, _, err := Parse(tt.text)
			require.Error(t, err)
			assert.Nil(t, doc)
			assert.ErrorIs(t, err, tt.want)

			var perr *core.ParseError
			assert.ErrorAs(t, err, &perr)
		})
	}
}

func TestParse_LeadingBlankLinesAndCRLF(t *testing.T) {
	text := "\n  \n---\r\ndoc_type: note\r\ntitle: Windows\r\n---\r\nBody\r\n"

	doc, _, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, "Windows", doc.Title())
	assert.Equal(t, "Body\r\n", doc.Body())
}

func TestParse_EmptyHeaderParsesButFailsValidation(t *testing.T) {
	doc, _, err := Parse("---\n---\nBody\n")
	require.NoError(t, err)

	issues := core.Validate(doc.FrontMatter())
	assert.Len(t, issues, 2)
}

func TestParse_HeaderValueTypes(t *testing.T) {
	text := "---\n" +
		"doc_type: note\n" +
		"title: Typed\n" +
		"created: 2024-01-15\n" +
		"count: 42\n" +
		"ratio: 0.25\n" +
		"draft: true\n" +
		"missing: ~\n" +
		"quoted: \"2024-01-15\"\n" +
		"anchored: &a [x, y]\n" +
		"aliased: *a\n" +
		"nested:\n  key: value\n" +
		"---\n"

	doc, _, err := Parse(text)
	require.NoError(t, err)
	fm := doc.FrontMatter()

	kinds := map[string]core.Kind{
		"created":  core.KindDate,
		"count":    core.KindInt,
		"ratio":    core.KindFloat,
		"draft":    core.KindBool,
		"missing":  core.KindNull,
		"quoted":   core.KindString,
		"anchored": core.KindList,
		"aliased":  core.KindList,
		"nested":   core.KindMap,
	}
	for key, want := range kinds {
		v, ok := fm.Get(key)
		require.True(t, ok, key)
		assert.Equal(t, want, v.Kind(), key)
	}

	aliased, _ := fm.GetStrings("aliased")
	assert.Equal(t, []string{"x", "y"}, aliased)
	assert.Empty(t, core.Validate(fm))
}

func TestParse_AliasBombIsRejected(t *testing.T) {
	text := "---\n" +
		"a: &a [x, x, x, x, x, x, x, x, x, x]\n" +
		"b: &b [*a, *a, *a, *a, *a, *a, *a, *a, *a, *a]\n" +
		"c: &c [*b, *b, *b, *b, *b, *b, *b, *b, *b, *b]\n" +
		"d: &d [*c, *c, *c, *c, *c, *c, *c, *c, *c, *c]\n" +
		"e: &e [*d, *d, *d, *d, *d, *d, *d, *d, *d, *d]\n" +
		"---\n"

	_, _, err := Parse(text)
	assert.ErrorIs(t, err, core.ErrUnsafeHeaderContent)
}

func TestParse_IntegerBeyondInt64(t *testing.T) {
	doc, issues, err := Parse("---\ndoc_type: note\ntitle: T\nchecksum: 18446744073709551615\nsmall: -9223372036854775808\n---\nbody\n")
	require.NoError(t, err)
	assert.Empty(t, issues)

	checksum, ok := doc.FrontMatter().Get("checksum")
	require.True(t, ok)
	assert.Equal(t, core.KindFloat, checksum.Kind())
	f, _ := checksum.AsFloat()
	assert.InDelta(t, 1.8446744073709552e19, f, 1e4)

	small, _ := doc.FrontMatter().Get("small")
	n, ok := small.AsInt()
	assert.True(t, ok)
	assert.Equal(t, int64(-9223372036854775808), n)
	assert.Empty(t, core.Validate(doc.FrontMatter()))
}
