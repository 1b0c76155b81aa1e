package search

import (
	"strings"

	"github.com/poiesic/ymj/core"
)

// Stop words to filter out when checking for verbatim matches
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true,
}

// tokenizeAndFilter splits text into words, lowercases, trims punctuation, and removes stop words
func tokenizeAndFilter(text string) []string {
	words := strings.Fields(text)
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}`*#_"))
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}

	return filtered
}

// containsAllQueryWords checks if all query words (after filtering) appear in the document
func containsAllQueryWords(document string, queryWords []string) bool {
	if len(queryWords) == 0 {
		return false
	}

	docWords := tokenizeAndFilter(document)
	docWordSet := make(map[string]bool, len(docWords))
	for _, word := range docWords {
		docWordSet[word] = true
	}

	for _, qWord := range queryWords {
		if !docWordSet[qWord] {
			return false
		}
	}
	return true
}

// MatchText returns up to k documents whose title, tags and body contain every
// non-stop word of query, in corpus order. Matches score 1. It is the fallback
// for documents that carry no embedding.
func MatchText(entries []core.Entry, query string, k int) []Hit {
	queryWords := tokenizeAndFilter(query)
	if k <= 0 || len(queryWords) == 0 {
		return []Hit{}
	}

	hits := make([]Hit, 0, min(k, len(entries)))
	for _, entry := range entries {
		if entry.Doc == nil {
			continue
		}
		text := entry.Doc.Title() + " " + strings.Join(entry.Doc.Tags(), " ") + " " + entry.Doc.Body()
		if !containsAllQueryWords(text, queryWords) {
			continue
		}
		hits = append(hits, Hit{ID: entry.ID, Title: entry.Doc.Title(), Score: 1})
		if len(hits) == k {
			break
		}
	}
	return hits
}
