package search

import (
	"testing"

	"github.com/poiesic/ymj/core"
	"github.com/stretchr/testify/assert"
)

func TestTokenizeAndFilter(t *testing.T) {
	assert.Equal(t, []string{"quick", "fox"}, tokenizeAndFilter("The quick, fox!"))
	assert.Empty(t, tokenizeAndFilter("the and of"))
}

func TestMatchText(t *testing.T) {
	entries := []core.Entry{
		entry("a"),
		{ID: "nil"},
		entry("b", 1, 0),
		entry("c"),
	}

	t.Run("matches body words in corpus order", func(t *testing.T) {
		hits := MatchText(entries, "the body", 10)
		assert.Equal(t, []Hit{
			{ID: "a", Title: "Title a", Score: 1},
			{ID: "b", Title: "Title b", Score: 1},
			{ID: "c", Title: "Title c", Score: 1},
		}, hits)
	})

	t.Run("all words must be present", func(t *testing.T) {
		hits := MatchText(entries, "body b", 10)
		assert.Len(t, hits, 1)
		assert.Equal(t, "b", hits[0].ID)
	})

	t.Run("truncates to k", func(t *testing.T) {
		assert.Len(t, MatchText(entries, "body", 2), 2)
	})

	t.Run("stop words only", func(t *testing.T) {
		assert.Empty(t, MatchText(entries, "the of", 10))
	})

	t.Run("non-positive k", func(t *testing.T) {
		assert.Empty(t, MatchText(entries, "body", 0))
	})
}
