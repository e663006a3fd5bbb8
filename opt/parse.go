package opt

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
)

// ParseExpr parses the S-expression form produced by Expr.Format:
//
//   (Join (Scan 0) (Scan 1) (Eq (Col 1) (Col 3)))
//
// Operator names are those printed by Operator.String. Payloads precede the
// children: integers for Scan, Col and Const, and the optional "commuted"
// flag for Join, as in (Join commuted (Scan 1) (Scan 0) (Eq (Col 4) (Col 1))).
func ParseExpr(s string) (*Expr, error) {
	p := newParser(strings.NewReader(s))
	e := p.parseExpr()
	if p.err != nil {
		return nil, p.err
	}
	if p.scan() != eofToken {
		p.setTokenErr()
		return nil, p.err
	}
	return e, nil
}

type token int

const (
	illegalToken token = iota
	eofToken
	identToken
	numberToken
	whitespaceToken
	lparenToken
	rparenToken
)

type scanner struct {
	r        *bufio.Reader
	tok      token
	lit      string
	lineInfo struct {
		line int
		pos  int
		prev int
	}
}

func newScanner(r io.Reader) *scanner {
	return &scanner{r: bufio.NewReader(r)}
}

func (s *scanner) Scan() token {
	ch := s.read()

	// If we see whitespace then consume all contiguous whitespace.
	if unicode.IsSpace(ch) {
		s.unread()
		return s.scanWhitespace()
	}

	if unicode.IsLetter(ch) {
		s.unread()
		return s.scanIdentifier()
	}

	if unicode.IsDigit(ch) || ch == '-' {
		s.unread()
		return s.scanNumber()
	}

	switch ch {
	case rune(0):
		s.tok = eofToken
		s.lit = ""

	case '(':
		s.tok = lparenToken
		s.lit = "("

	case ')':
		s.tok = rparenToken
		s.lit = ")"

	default:
		s.tok = illegalToken
		s.lit = string(ch)
	}

	return s.tok
}

func (s *scanner) LineInfo() (line, pos int) {
	return s.lineInfo.line + 1, s.lineInfo.pos
}

// read reads the next rune from the buffered reader. Returns rune(0) on EOF
// or error.
func (s *scanner) read() rune {
	ch, _, err := s.r.ReadRune()
	if err != nil {
		return rune(0)
	}

	s.lineInfo.prev = s.lineInfo.pos
	if ch == '\n' {
		s.lineInfo.line++
		s.lineInfo.pos = 0
	} else {
		s.lineInfo.pos++
	}

	return ch
}

// unread places the previously read rune back on the reader.
func (s *scanner) unread() {
	if err := s.r.UnreadRune(); err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "unread"))
	}

	if s.lineInfo.pos == 0 {
		s.lineInfo.line--
	}
	s.lineInfo.pos = s.lineInfo.prev
	s.lineInfo.prev = -1
}

func (s *scanner) scanWhitespace() token {
	var buf bytes.Buffer
	buf.WriteRune(s.read())

	for {
		if ch := s.read(); ch == rune(0) {
			break
		} else if !unicode.IsSpace(ch) {
			s.unread()
			break
		} else {
			buf.WriteRune(ch)
		}
	}

	s.tok = whitespaceToken
	s.lit = buf.String()
	return s.tok
}

func (s *scanner) scanIdentifier() token {
	var buf bytes.Buffer
	buf.WriteRune(s.read())

	for {
		ch := s.read()
		if ch == rune(0) {
			break
		}
		if !unicode.IsLetter(ch) && !unicode.IsDigit(ch) {
			s.unread()
			break
		}
		buf.WriteRune(ch)
	}

	s.tok = identToken
	s.lit = buf.String()
	return s.tok
}

func (s *scanner) scanNumber() token {
	var buf bytes.Buffer
	buf.WriteRune(s.read())

	for {
		ch := s.read()
		if ch == rune(0) {
			break
		}
		if !unicode.IsDigit(ch) {
			s.unread()
			break
		}
		buf.WriteRune(ch)
	}

	s.lit = buf.String()
	if s.lit == "-" {
		s.tok = illegalToken
	} else {
		s.tok = numberToken
	}
	return s.tok
}

type parser struct {
	s   *scanner
	err error

	// True if the last token was unscanned (put back to be reparsed).
	unscanned bool
}

func newParser(r io.Reader) *parser {
	return &parser{s: newScanner(r)}
}

func (p *parser) parseExpr() *Expr {
	if !p.scanToken(lparenToken) {
		return nil
	}
	if !p.scanToken(identToken) {
		return nil
	}

	name := p.s.lit
	op, ok := LookupOperator(name)
	if !ok {
		p.setErr(errors.Newf("unknown operator %q", name))
		return nil
	}

	var private int64
	switch {
	case payloadOptional(op):
		// Join flags are identifiers and may be left out.
		if p.scan() != identToken {
			p.unscan()
			break
		}
		v, err := ParsePayload(op, p.s.lit)
		if err != nil {
			p.setErr(err)
			return nil
		}
		private = v

	case op.HasPayload():
		if !p.scanToken(numberToken) {
			return nil
		}
		v, err := ParsePayload(op, p.s.lit)
		if err != nil {
			p.setErr(err)
			return nil
		}
		private = v
	}

	var children []*Expr
	for {
		if p.scan() == rparenToken {
			break
		}
		p.unscan()

		child := p.parseExpr()
		if child == nil {
			return nil
		}
		children = append(children, child)
	}

	e, err := NewExpr(op, private, children...)
	if err != nil {
		p.setErr(err)
		return nil
	}
	return e
}

func (p *parser) scanToken(expected token) bool {
	if p.scan() != expected {
		p.setTokenErr()
		p.unscan()
		return false
	}
	return true
}

// scan returns the next non-whitespace token from the underlying scanner. If
// a token has been unscanned then read that instead.
func (p *parser) scan() token {
	if p.unscanned {
		p.unscanned = false
		return p.s.tok
	}

	for {
		if tok := p.s.Scan(); tok != whitespaceToken {
			return tok
		}
	}
}

// unscan pushes the previously read token back onto the buffer.
func (p *parser) unscan() {
	if p.unscanned {
		panic(errors.AssertionFailedf("unscan was already called"))
	}
	p.unscanned = true
}

func (p *parser) setTokenErr() {
	line, pos := p.s.LineInfo()
	lit := p.s.lit
	if p.s.tok == eofToken {
		lit = "EOF"
	}
	p.setErr(errors.Newf("unexpected token '%s' (line %d, pos %d)", lit, line, pos))
}

func (p *parser) setErr(err error) {
	if p.err == nil {
		p.err = err
	}
}
