// Package format implements a small title-formatting template
// language used to turn a track's fields into a display label.
//
// Supported syntax:
//
//	%field name%          substitute a field, empty if absent
//	[ ... %field% ... ]    optional segment, dropped if all its field
//	                       references are empty
//	$if2(%field%,fallback) field if non-empty, else the literal fallback
package format

import (
	"strings"

	"github.com/pkg/errors"
)

// FieldSource supplies field values to a compiled Template during
// evaluation. playlistitem.Item implements it.
type FieldSource interface {
	Field(name string) (value string, ok bool)
}

// node is one piece of a compiled template.
type node interface {
	// eval appends its rendering to b and reports whether it produced
	// any non-empty field value (used by optional-segment suppression).
	eval(src FieldSource, b *strings.Builder) (nonEmpty bool)
}

type literalNode string

func (n literalNode) eval(_ FieldSource, b *strings.Builder) bool {
	b.WriteString(string(n))
	return false
}

type fieldNode string

func (n fieldNode) eval(src FieldSource, b *strings.Builder) bool {
	v, ok := src.Field(string(n))
	if ok && v != "" {
		b.WriteString(v)
		return true
	}
	return false
}

type if2Node struct {
	field    string
	fallback string
}

func (n if2Node) eval(src FieldSource, b *strings.Builder) bool {
	if v, ok := src.Field(n.field); ok && v != "" {
		b.WriteString(v)
		return true
	}
	b.WriteString(n.fallback)
	return false
}

type optionalNode struct {
	children []node
}

func (n optionalNode) eval(src FieldSource, b *strings.Builder) bool {
	var sub strings.Builder
	any := false
	for _, c := range n.children {
		if c.eval(src, &sub) {
			any = true
		}
	}
	if any {
		b.WriteString(sub.String())
	}
	return any
}

// Template is a compiled format string, ready to be evaluated against
// any number of FieldSources.
type Template struct {
	nodes []node
	src   string
}

// String returns the original, uncompiled template text.
func (t *Template) String() string { return t.src }

// Eval renders t against src.
func (t *Template) Eval(src FieldSource) string {
	var b strings.Builder
	for _, n := range t.nodes {
		n.eval(src, &b)
	}
	return b.String()
}

// Compile parses a format string into a Template. It returns an error on
// unbalanced '[' ']' or unterminated '%' / "$if2(...)" constructs.
func Compile(s string) (*Template, error) {
	p := &parser{src: s}
	nodes, err := p.parseUntil(0, "")
	if err != nil {
		return nil, errors.Wrapf(err, "cannot compile format string %q", s)
	}
	return &Template{nodes: nodes, src: s}, nil
}

// MustCompile is like Compile but panics on error; intended for the
// small set of templates medialib itself compiles once at startup
// (album-key formula, tree node labels).
func MustCompile(s string) *Template {
	t, err := Compile(s)
	if err != nil {
		panic(err)
	}
	return t
}

type parser struct {
	src string
	pos int
}

// parseUntil parses nodes starting at pos until it reaches end of input
// or, when stopAt != "", the rune stopAt. It returns the parsed nodes and
// the new position is tracked on the parser itself.
func (p *parser) parseUntil(start int, stopAt string) ([]node, error) {
	p.pos = start
	var nodes []node
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			nodes = append(nodes, literalNode(lit.String()))
			lit.Reset()
		}
	}

	for p.pos < len(p.src) {
		c := p.src[p.pos]

		if stopAt != "" && string(c) == stopAt {
			flush()
			return nodes, nil
		}

		switch c {
		case '%':
			end := strings.IndexByte(p.src[p.pos+1:], '%')
			if end < 0 {
				return nil, errors.New("unterminated '%' field reference")
			}
			flush()
			name := p.src[p.pos+1 : p.pos+1+end]
			nodes = append(nodes, fieldNode(name))
			p.pos = p.pos + 1 + end + 1

		case '[':
			flush()
			children, err := p.parseUntil(p.pos+1, "]")
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, optionalNode{children: children})
			p.pos++ // consume ']'

		case '$':
			if strings.HasPrefix(p.src[p.pos:], "$if2(") {
				flush()
				n, newPos, err := p.parseIf2(p.pos + len("$if2("))
				if err != nil {
					return nil, err
				}
				nodes = append(nodes, n)
				p.pos = newPos
				continue
			}
			lit.WriteByte(c)
			p.pos++

		default:
			lit.WriteByte(c)
			p.pos++
		}
	}

	if stopAt != "" {
		return nil, errors.Errorf("unterminated segment, expected %q", stopAt)
	}
	flush()
	return nodes, nil
}

// parseIf2 parses the inside of "$if2(%field%,fallback)" starting right
// after the opening '('. It returns the node and the position right
// after the closing ')'.
func (p *parser) parseIf2(start int) (if2Node, int, error) {
	rest := p.src[start:]
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return if2Node{}, 0, errors.New("malformed $if2(...): missing ','")
	}
	close := strings.IndexByte(rest, ')')
	if close < 0 || close < comma {
		return if2Node{}, 0, errors.New("malformed $if2(...): missing ')'")
	}

	fieldPart := strings.TrimSpace(rest[:comma])
	fieldPart = strings.TrimPrefix(fieldPart, "%")
	fieldPart = strings.TrimSuffix(fieldPart, "%")
	fallback := rest[comma+1 : close]

	return if2Node{field: fieldPart, fallback: fallback}, start + close + 1, nil
}
