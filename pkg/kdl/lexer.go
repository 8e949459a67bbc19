package kdl

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNewline
	tokBare
	tokString
	tokLBrace
	tokRBrace
	tokAssign
)

type token struct {
	kind tokenKind
	text string
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of document"
	case tokNewline:
		return "newline"
	case tokBare:
		return fmt.Sprintf("%q", t.text)
	case tokString:
		return fmt.Sprintf("string %q", t.text)
	case tokLBrace:
		return "{"
	case tokRBrace:
		return "}"
	case tokAssign:
		return "="
	}
	return "unknown token"
}

type lexer struct {
	src    string
	pos    int
	line   int
	pushed *token
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1}
}

func (l *lexer) errorf(format string, args ...any) error {
	return fmt.Errorf("line %d: %s", l.line, fmt.Sprintf(format, args...))
}

func (l *lexer) unread(t token) {
	l.pushed = &t
}

// peekAssign reports whether the next token is '=', without consuming
// anything else. Used to distinguish properties from bare arguments.
func (l *lexer) peekAssign() bool {
	savePos, saveLine := l.pos, l.line
	l.skipSpace()
	assign := l.pos < len(l.src) && l.src[l.pos] == '='
	l.pos, l.line = savePos, saveLine
	return assign
}

func (l *lexer) consumeAssign() error {
	tok, err := l.next()
	if err != nil {
		return err
	}
	if tok.kind != tokAssign {
		return l.errorf("unexpected %s, expected =", tok)
	}
	return nil
}

func (l *lexer) next() (token, error) {
	if l.pushed != nil {
		t := *l.pushed
		l.pushed = nil
		return t, nil
	}
	l.skipSpace()
	if l.pos >= len(l.src) {
		return token{kind: tokEOF}, nil
	}
	c := l.src[l.pos]
	switch {
	case c == '\n':
		l.pos++
		l.line++
		return token{kind: tokNewline}, nil
	case c == ';':
		l.pos++
		return token{kind: tokNewline}, nil
	case c == '{':
		l.pos++
		return token{kind: tokLBrace}, nil
	case c == '}':
		l.pos++
		return token{kind: tokRBrace}, nil
	case c == '=':
		l.pos++
		return token{kind: tokAssign}, nil
	case c == '"':
		return l.lexString()
	default:
		return l.lexBare()
	}
}

// skipSpace consumes spaces, tabs, carriage returns, comments, and escaped
// newlines. Plain newlines are significant and left alone.
func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			l.pos++
		case c == '\\' && l.pos+1 < len(l.src):
			// Line continuation: backslash followed by (whitespace and) a
			// newline joins the next line onto this node.
			j := l.pos + 1
			for j < len(l.src) && (l.src[j] == ' ' || l.src[j] == '\t' || l.src[j] == '\r') {
				j++
			}
			if j < len(l.src) && l.src[j] == '\n' {
				l.pos = j + 1
				l.line++
				continue
			}
			return
		case c == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '/':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		case c == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '*':
			end := strings.Index(l.src[l.pos+2:], "*/")
			if end < 0 {
				l.pos = len(l.src)
				return
			}
			l.line += strings.Count(l.src[l.pos:l.pos+2+end+2], "\n")
			l.pos += 2 + end + 2
		default:
			return
		}
	}
}

func (l *lexer) lexString() (token, error) {
	l.pos++ // opening quote
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case '"':
			l.pos++
			return token{kind: tokString, text: b.String()}, nil
		case '\\':
			l.pos++
			if l.pos >= len(l.src) {
				return token{}, l.errorf("unterminated string")
			}
			esc := l.src[l.pos]
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			case '/':
				b.WriteByte('/')
			default:
				return token{}, l.errorf("unknown escape \\%c", esc)
			}
			l.pos++
		case '\n':
			return token{}, l.errorf("unterminated string")
		default:
			b.WriteByte(c)
			l.pos++
		}
	}
	return token{}, l.errorf("unterminated string")
}

func (l *lexer) lexBare() (token, error) {
	start := l.pos
	for l.pos < len(l.src) && !isBareTerminator(l.src[l.pos]) {
		l.pos++
	}
	if l.pos == start {
		return token{}, l.errorf("unexpected character %q", l.src[l.pos])
	}
	return token{kind: tokBare, text: l.src[start:l.pos]}, nil
}

func isBareTerminator(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', ';', '{', '}', '=', '"':
		return true
	}
	return false
}
