// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"strings"
)

// Validate checks the front matter rules and returns every issue found.
//
// Validation rules:
//   - doc_type and title must be non-empty strings
//   - created and updated, when present, must be dates
//   - tags and relates_to, when present, must be lists of strings
//
// Any other field is accepted as-is.
func Validate(fm *FrontMatter) []Issue {
	var issues []Issue

	for _, field := range []string{FieldDocType, FieldTitle} {
		if issue, ok := checkRequiredString(fm, field); !ok {
			issues = append(issues, issue)
		}
	}

	for _, field := range []string{FieldCreated, FieldUpdated} {
		v, present := fm.Get(field)
		if present && !IsDate(v) {
			issues = append(issues, Issue{
				Kind:    IssueInvalidFieldType,
				Field:   field,
				Message: fmt.Sprintf("expected a date, got %s", v.Kind()),
			})
		}
	}

	for _, field := range []string{FieldTags, FieldRelatesTo} {
		v, present := fm.Get(field)
		if !present {
			continue
		}
		if _, ok := v.AsStrings(); !ok {
			issues = append(issues, Issue{
				Kind:    IssueInvalidFieldType,
				Field:   field,
				Message: fmt.Sprintf("expected a list of strings, got %s", v.Kind()),
			})
		}
	}

	return issues
}

// ValidateStrict runs Validate and additionally requires a searchable index block.
func ValidateStrict(doc *Document) []Issue {
	issues := Validate(doc.frontMatter)
	switch {
	case doc.index == nil:
		issues = append(issues, Issue{
			Kind:    IssueMissingEmbedding,
			Message: "document has no index block",
		})
	case !doc.index.HasEmbedding():
		issues = append(issues, Issue{
			Kind:    IssueMissingEmbedding,
			Field:   "index.embedding",
			Message: "index block has no embedding",
		})
	}
	return issues
}

// IsDate reports whether v is a date or a string holding one.
func IsDate(v Value) bool {
	if _, ok := v.AsDate(); ok {
		return true
	}
	s, ok := v.AsString()
	if !ok {
		return false
	}
	_, ok = ParseDate(strings.TrimSpace(s))
	return ok
}

func checkRequiredString(fm *FrontMatter, field string) (Issue, bool) {
	v, present := fm.Get(field)
	if !present {
		return Issue{Kind: IssueMissingRequiredField, Field: field, Message: "field is required"}, false
	}
	s, ok := v.AsString()
	if !ok {
		return Issue{
			Kind:    IssueMissingRequiredField,
			Field:   field,
			Message: fmt.Sprintf("must be a non-empty string, got %s", v.Kind()),
		}, false
	}
	if strings.TrimSpace(s) == "" {
		return Issue{Kind: IssueMissingRequiredField, Field: field, Message: "must not be empty"}, false
	}
	return Issue{}, true
}
