package core

import "fmt"

// IssueKind classifies a non-fatal finding about a document.
type IssueKind string

const (
	IssueMissingRequiredField IssueKind = "MissingRequiredField"
	IssueInvalidFieldType     IssueKind = "InvalidFieldType"
	IssueMalformedIndexBlock  IssueKind = "MalformedIndexBlock"
	IssueMissingSchema        IssueKind = "MissingSchema"
	IssueUnsupportedSchema    IssueKind = "UnsupportedSchema"
	IssueTrailingContent      IssueKind = "TrailingContent"
	IssueMissingEmbedding     IssueKind = "MissingEmbedding"
)

// Issue is an advisory finding. Callers decide whether it is fatal.
type Issue struct {
	Kind    IssueKind
	Field   string
	Message string
}

func (i Issue) String() string {
	if i.Field == "" {
		return fmt.Sprintf("%s: %s", i.Kind, i.Message)
	}
	return fmt.Sprintf("%s %s: %s", i.Kind, i.Field, i.Message)
}

// HasKind reports whether any issue is of the given kind.
func HasKind(issues []Issue, kind IssueKind) bool {
	for _, issue := range issues {
		if issue.Kind == kind {
			return true
		}
	}
	return false
}
