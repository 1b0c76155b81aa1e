package format

import (
	"fmt"
	"strings"

	"github.com/poiesic/ymj/core"
)

// Delimiter opens and closes the header section.
const Delimiter = "---"

type state int

const (
	stateAwaitingHeaderOpen state = iota
	stateInHeader
	stateInBody
	stateScanningIndexBlock
	stateDone
)

// fence is a fenced code block found in the body.
type fence struct {
	char    byte
	width   int
	json    bool
	line    int // line number of the opening fence
	start   int // offset of the opening fence line
	content int // offset of the first content line
	close   int // offset of the closing fence line
	end     int // offset just past the closing fence line
}

type parser struct {
	text string
	pos  int
	line int

	state       state
	headerOpen  int
	headerStart int
	headerText  string
	bodyStart   int

	open       *fence
	lastJSON   *fence
	unfinished *fence
}

// Parse splits a YMJ document into header, body and index block.
//
// Only header problems are fatal and are returned as *core.ParseError. A
// missing, malformed or misplaced index block yields a document without one,
// and the reasons are returned as issues. The index block is the last
// json-tagged fence of the body; earlier json fences stay part of the body.
func Parse(text string) (*core.Document, []core.Issue, error) {
	p := &parser{text: strings.TrimPrefix(text, "\ufeff")}
	for p.state != stateDone {
		line, ok := p.next()
		if err := p.step(line, ok); err != nil {
			return nil, nil, err
		}
	}

	fm, err := decodeHeader(p.headerText)
	if err != nil {
		return nil, nil, &core.ParseError{Line: p.headerOpen, Err: err}
	}

	body, ib, issues := p.finishBody()
	return core.NewDocument(fm, body, ib), issues, nil
}

// next returns the next line including its terminator.
func (p *parser) next() (string, bool) {
	if p.pos >= len(p.text) {
		return "", false
	}
	end := strings.IndexByte(p.text[p.pos:], '\n')
	if end < 0 {
		end = len(p.text)
	} else {
		end += p.pos + 1
	}
	line := p.text[p.pos:end]
	p.pos = end
	p.line++
	return line, true
}

func (p *parser) lineStart(line string) int {
	return p.pos - len(line)
}

func (p *parser) step(line string, ok bool) error {
	switch p.state {
	case stateAwaitingHeaderOpen:
		if !ok {
			return &core.ParseError{Err: core.ErrMissingHeaderDelimiter}
		}
		if strings.TrimSpace(line) == "" {
			return nil
		}
		if trimEOL(line) != Delimiter {
			return &core.ParseError{Line: p.line, Err: fmt.Errorf("%w: found %q", core.ErrMissingHeaderDelimiter, truncate(trimEOL(line)))}
		}
		p.headerOpen = p.line
		p.headerStart = p.pos
		p.state = stateInHeader

	case stateInHeader:
		if !ok {
			return &core.ParseError{Line: p.headerOpen, Err: core.ErrUnterminatedHeader}
		}
		if trimEOL(line) == Delimiter {
			p.headerText = p.text[p.headerStart:p.lineStart(line)]
			p.bodyStart = p.pos
			p.state = stateInBody
		}

	case stateInBody:
		if !ok {
			p.state = stateDone
			return nil
		}
		if p.open != nil {
			if closesFence(line, p.open) {
				p.open = nil
			}
			return nil
		}
		if f := openFence(line); f != nil {
			f.line = p.line
			f.start = p.lineStart(line)
			f.content = p.pos
			p.open = f
			if f.json {
				p.state = stateScanningIndexBlock
			}
		}

	case stateScanningIndexBlock:
		if !ok {
			p.unfinished = p.open
			p.open = nil
			p.state = stateDone
			return nil
		}
		if closesFence(line, p.open) {
			p.open.close = p.lineStart(line)
			p.open.end = p.pos
			p.lastJSON = p.open
			p.open = nil
			p.state = stateInBody
		}
	}
	return nil
}

// finishBody picks the index block, if any, and returns the body before it.
func (p *parser) finishBody() (string, *core.IndexBlock, []core.Issue) {
	var issues []core.Issue
	if p.unfinished != nil {
		issues = append(issues, core.Issue{
			Kind:    core.IssueMalformedIndexBlock,
			Message: fmt.Sprintf("json fence at line %d is never closed", p.unfinished.line),
		})
	}

	candidate := p.lastJSON
	if candidate == nil {
		return p.text[p.bodyStart:], nil, issues
	}
	if p.unfinished != nil || strings.TrimSpace(p.text[candidate.end:]) != "" {
		issues = append(issues, core.Issue{
			Kind:    core.IssueTrailingContent,
			Message: fmt.Sprintf("json fence at line %d is followed by more content and is kept as body text", candidate.line),
		})
		return p.text[p.bodyStart:], nil, issues
	}

	body := p.text[p.bodyStart:candidate.start]
	ib, blockIssues := DecodeIndexBlock(p.text[candidate.content:candidate.close])
	return body, ib, append(issues, blockIssues...)
}

// openFence recognises a CommonMark style opening fence: up to three spaces of
// indentation and at least three backticks or tildes followed by an info string.
func openFence(line string) *fence {
	s := trimEOL(line)
	indent := len(s) - len(strings.TrimLeft(s, " "))
	if indent > 3 {
		return nil
	}
	s = s[indent:]
	if len(s) < 3 || (s[0] != '`' && s[0] != '~') {
		return nil
	}
	ch := s[0]
	width := 0
	for width < len(s) && s[width] == ch {
		width++
	}
	if width < 3 {
		return nil
	}
	info := strings.TrimSpace(s[width:])
	if ch == '`' && strings.ContainsRune(info, '`') {
		return nil
	}
	lang, _, _ := strings.Cut(info, " ")
	return &fence{char: ch, width: width, json: strings.EqualFold(lang, "json")}
}

func closesFence(line string, f *fence) bool {
	s := strings.TrimRight(trimEOL(line), " \t")
	indent := len(s) - len(strings.TrimLeft(s, " "))
	if indent > 3 {
		return false
	}
	s = s[indent:]
	if len(s) < f.width {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] != f.char {
			return false
		}
	}
	return true
}

func trimEOL(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}

func truncate(s string) string {
	const limit = 40
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
