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
	"errors"
	"fmt"
)

// Fatal parse errors. A document failing with one of these is rejected as a whole.
var (
	// ErrMissingHeaderDelimiter indicates the first non-blank line is not "---".
	ErrMissingHeaderDelimiter = errors.New("missing header delimiter")

	// ErrUnterminatedHeader indicates no closing "---" was found before end of input.
	ErrUnterminatedHeader = errors.New("unterminated header")

	// ErrUnsafeHeaderContent indicates the header uses custom tags, binary data,
	// merge keys or alias expansion beyond the allowed limits.
	ErrUnsafeHeaderContent = errors.New("unsafe header content")

	// ErrHeaderNotMapping indicates the header decoded to something other than a mapping.
	ErrHeaderNotMapping = errors.New("header is not a mapping")

	// ErrInvalidHeader indicates the header is not well-formed YAML.
	ErrInvalidHeader = errors.New("invalid header")
)

// ParseError reports a fatal problem in the header section of a document.
// Line is 1-based and zero when no specific line applies.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
