package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var ErrInvalidQuery = errors.New("store: invalid query")

// Predicate is one `alias.field = literal` comparison.
// Value is a string, float64, bool or nil.
type Predicate struct {
	Field string
	Value any
}

// Query is a parsed `SELECT * FROM c [WHERE c.f = lit AND ...]` expression.
// Literals are kept as values and never spliced into backend SQL.
type Query struct {
	Alias string
	Where []Predicate
}

// Quote renders s as a query string literal.
func Quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(s) + "'"
}

// Match reports whether the JSON object doc satisfies every predicate.
// A missing field never matches.
func (q *Query) Match(doc []byte) (bool, error) {
	if len(q.Where) == 0 {
		return true, nil
	}
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return false, err
	}
	for _, p := range q.Where {
		v, ok := m[p.Field]
		if !ok || v != p.Value {
			return false, nil
		}
	}
	return true, nil
}

func (q *Query) String() string {
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(q.Alias)
	for i, p := range q.Where {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		b.WriteString(q.Alias + "." + p.Field + " = ")
		switch v := p.Value.(type) {
		case string:
			b.WriteString(Quote(v))
		case float64:
			b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		case bool:
			b.WriteString(strconv.FormatBool(v))
		default:
			b.WriteString("null")
		}
	}
	return b.String()
}

// ParseQuery parses the supported query subset:
//
//	SELECT * FROM c
//	SELECT * FROM c WHERE c.userid = 'alice' AND c.aptname = 'dentist'
//
// Keywords are case-insensitive. String literals use single quotes with
// backslash escapes. Numbers, true, false and null are also accepted.
func ParseQuery(expr string) (*Query, error) {
	toks, err := lex(expr)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}

	if err := p.keyword("SELECT"); err != nil {
		return nil, err
	}
	if t := p.next(); t.kind != tokStar {
		return nil, p.errorf(t, "expected *")
	}
	if err := p.keyword("FROM"); err != nil {
		return nil, err
	}
	alias := p.next()
	if alias.kind != tokIdent || !isIdent(alias.text) {
		return nil, p.errorf(alias, "expected collection alias")
	}
	q := &Query{Alias: alias.text}

	if p.peek().kind == tokEOF {
		return q, nil
	}
	if err := p.keyword("WHERE"); err != nil {
		return nil, err
	}
	for {
		pred, err := p.predicate(q.Alias)
		if err != nil {
			return nil, err
		}
		q.Where = append(q.Where, pred)
		if p.peek().kind == tokEOF {
			return q, nil
		}
		if err := p.keyword("AND"); err != nil {
			return nil, err
		}
	}
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokIdent
	tokStar
	tokEq
	tokString
	tokNumber
)

type token struct {
	kind tokKind
	text string
	pos  int
}

func lex(s string) ([]token, error) {
	var toks []token
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '*':
			toks = append(toks, token{kind: tokStar, text: "*", pos: i})
			i++
		case c == '=':
			toks = append(toks, token{kind: tokEq, text: "=", pos: i})
			i++
		case c == '\'':
			start := i
			var b strings.Builder
			i++
			closed := false
			for i < len(s) {
				if s[i] == '\\' && i+1 < len(s) {
					b.WriteByte(s[i+1])
					i += 2
					continue
				}
				if s[i] == '\'' {
					closed = true
					i++
					break
				}
				b.WriteByte(s[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("%w: unterminated string at %d", ErrInvalidQuery, start)
			}
			toks = append(toks, token{kind: tokString, text: b.String(), pos: start})
		case c == '-' || (c >= '0' && c <= '9'):
			start := i
			i++
			for i < len(s) && (s[i] == '.' || s[i] == 'e' || s[i] == 'E' || s[i] == '+' || s[i] == '-' || (s[i] >= '0' && s[i] <= '9')) {
				i++
			}
			toks = append(toks, token{kind: tokNumber, text: s[start:i], pos: start})
		case identRune(firstRune(s[i:]), true):
			start := i
			for i < len(s) {
				r, size := utf8.DecodeRuneInString(s[i:])
				if !identRune(r, false) {
					break
				}
				i += size
			}
			toks = append(toks, token{kind: tokIdent, text: s[start:i], pos: start})
		default:
			return nil, fmt.Errorf("%w: unexpected %q at %d", ErrInvalidQuery, firstRune(s[i:]), i)
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(s)}), nil
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

// identRune reports whether r may appear in a dotted identifier. Digits
// cannot start one.
func identRune(r rune, first bool) bool {
	if r == utf8.RuneError {
		return false
	}
	return r == '_' || r == '.' || unicode.IsLetter(r) || (!first && unicode.IsDigit(r))
}

type parser struct {
	toks []token
	i    int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return fmt.Errorf("%w: %s at %d", ErrInvalidQuery, fmt.Sprintf(format, args...), t.pos)
}

func (p *parser) keyword(kw string) error {
	t := p.next()
	if t.kind != tokIdent || !strings.EqualFold(t.text, kw) {
		return p.errorf(t, "expected %s", kw)
	}
	return nil
}

func (p *parser) predicate(alias string) (Predicate, error) {
	t := p.next()
	if t.kind != tokIdent {
		return Predicate{}, p.errorf(t, "expected %s.<field>", alias)
	}
	field, ok := strings.CutPrefix(t.text, alias+".")
	if !ok || !isIdent(field) {
		return Predicate{}, p.errorf(t, "expected %s.<field>, got %s", alias, t.text)
	}
	if eq := p.next(); eq.kind != tokEq {
		return Predicate{}, p.errorf(eq, "expected =")
	}

	lit := p.next()
	switch lit.kind {
	case tokString:
		return Predicate{Field: field, Value: lit.text}, nil
	case tokNumber:
		f, err := strconv.ParseFloat(lit.text, 64)
		if err != nil {
			return Predicate{}, p.errorf(lit, "bad number %s", lit.text)
		}
		return Predicate{Field: field, Value: f}, nil
	case tokIdent:
		switch strings.ToLower(lit.text) {
		case "true":
			return Predicate{Field: field, Value: true}, nil
		case "false":
			return Predicate{Field: field, Value: false}, nil
		case "null":
			return Predicate{Field: field, Value: nil}, nil
		}
	}
	return Predicate{}, p.errorf(lit, "expected literal")
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}
