// Package boolexpr parses the Boolean formula mini-language used by the bool
// hook and prints it as TeX.
//
// Literals are single letters or bracketed long names ([A_1]). '!' inverts
// the following literal or parenthesized group, '|' and '+' are OR, '&' and
// '*' are AND. Spaces, '=', ',' and digits pass through as text.
package boolexpr

import (
	"strings"

	"slidepress/internal/errs"
)

// NodeType identifies a node in the parsed tree.
type NodeType int

const (
	Expr NodeType = iota
	Literal
	Invert
	Operator
	Text
	Parenthesis
)

// Op is a binary Boolean operator.
type Op int

const (
	Or Op = iota
	And
)

// Node is one element of a parsed formula. Literal and Text carry Value,
// Operator carries Op, the others carry Children.
type Node struct {
	Type     NodeType
	Value    string
	Op       Op
	Children []*Node
}

var operators = map[byte]Op{'|': Or, '+': Or, '&': And, '*': And}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isLongChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isText(c byte) bool {
	return c == ' ' || c == '=' || c == ',' || (c >= '0' && c <= '9')
}

type parser struct {
	s   string
	pos int
}

func (p *parser) more() bool { return p.pos < len(p.s) }

func (p *parser) peek() byte {
	if p.more() {
		return p.s[p.pos]
	}
	return 0
}

func (p *parser) errorf(format string, args ...any) error {
	return errs.Newf(errs.KindInvalidBooleanExpression, "error parsing Boolean formula %q: "+format, append([]any{p.s}, args...)...)
}

// Parse parses a formula.
func Parse(s string) (*Node, error) {
	p := &parser{s: s}
	n, err := p.expression()
	if err != nil {
		return nil, err
	}
	if p.more() {
		return nil, p.errorf("trailing unparsed data %q", p.s[p.pos:])
	}
	return n, nil
}

func (p *parser) expression() (*Node, error) {
	expr := &Node{Type: Expr}
	for p.more() {
		n, err := p.term()
		if err != nil {
			return nil, err
		}
		if n == nil {
			break
		}
		expr.Children = append(expr.Children, n)
	}
	if len(expr.Children) == 0 {
		return nil, p.errorf("expression has no terms")
	}
	return expr, nil
}

// term returns nil when the next character starts no term.
func (p *parser) term() (*Node, error) {
	c := p.peek()
	switch {
	case c == '[':
		return p.longLiteral()
	case isLetter(c):
		p.pos++
		return &Node{Type: Literal, Value: string(c)}, nil
	case c == '!':
		return p.inverted()
	case c == '(':
		return p.parenthesis()
	case isText(c):
		p.pos++
		return &Node{Type: Text, Value: string(c)}, nil
	}
	if op, ok := operators[c]; ok {
		p.pos++
		return &Node{Type: Operator, Op: op}, nil
	}
	return nil, nil
}

func (p *parser) longLiteral() (*Node, error) {
	p.pos++
	start := p.pos
	for p.more() && isLongChar(p.peek()) {
		p.pos++
	}
	if p.peek() != ']' {
		return nil, p.errorf("enclosed literal started with '[' is not terminated by ']'")
	}
	name := p.s[start:p.pos]
	p.pos++
	if name == "" {
		return nil, p.errorf("empty literal")
	}
	return &Node{Type: Literal, Value: name}, nil
}

func (p *parser) parenthesis() (*Node, error) {
	p.pos++
	inner, err := p.expression()
	if err != nil {
		return nil, err
	}
	if p.peek() != ')' {
		return nil, p.errorf("parenthesis is not terminated by ')'")
	}
	p.pos++
	return &Node{Type: Parenthesis, Children: []*Node{inner}}, nil
}

func (p *parser) inverted() (*Node, error) {
	p.pos++
	var operand *Node
	var err error
	c := p.peek()
	switch {
	case isLetter(c):
		p.pos++
		operand = &Node{Type: Literal, Value: string(c)}
	case c == '[':
		operand, err = p.longLiteral()
	case c == '(':
		operand, err = p.parenthesis()
	default:
		return nil, p.errorf("invalid token after '!': %q", p.s[p.pos:])
	}
	if err != nil {
		return nil, err
	}
	return &Node{Type: Invert, Children: []*Node{operand}}, nil
}

// Printer renders a parsed formula as TeX math.
type Printer struct {
	// InvertByOverline draws inversions as \overline; otherwise \neg is used.
	InvertByOverline bool
}

// Print returns the TeX source for n.
func (pr Printer) Print(n *Node) string {
	var b strings.Builder
	pr.print(&b, n, nil)
	return b.String()
}

func (pr Printer) printAll(b *strings.Builder, nodes []*Node) {
	var prev *Node
	for _, n := range nodes {
		pr.print(b, n, prev)
		prev = n
	}
}

func (pr Printer) print(b *strings.Builder, n, sibling *Node) {
	switch n.Type {
	case Literal:
		b.WriteString(`\textnormal{`)
		if prefix, suffix, ok := strings.Cut(n.Value, "_"); ok {
			b.WriteString(prefix + "}_{" + suffix)
		} else {
			b.WriteString(n.Value)
		}
		b.WriteString("}")
	case Text:
		b.WriteString(n.Value)
	case Operator:
		if n.Op == Or {
			b.WriteString(`\vee`)
		} else {
			b.WriteString(`\wedge`)
		}
	case Invert:
		if !pr.InvertByOverline {
			b.WriteString(`\neg `)
			pr.printAll(b, n.Children)
			return
		}
		if sibling != nil && sibling.Type == Invert {
			b.WriteString(`\ `)
		}
		b.WriteString(`\overline{`)
		if len(n.Children) == 1 && n.Children[0].Type == Parenthesis {
			pr.printAll(b, n.Children[0].Children)
		} else {
			pr.printAll(b, n.Children)
		}
		b.WriteString("}")
	case Parenthesis:
		b.WriteString("(")
		pr.printAll(b, n.Children)
		b.WriteString(")")
	case Expr:
		pr.printAll(b, n.Children)
	}
}

// String prints n back in the input notation. Long names are always
// bracketed.
func (n *Node) String() string {
	var b strings.Builder
	n.write(&b)
	return b.String()
}

func (n *Node) write(b *strings.Builder) {
	switch n.Type {
	case Literal:
		if len(n.Value) == 1 && isLetter(n.Value[0]) {
			b.WriteString(n.Value)
		} else {
			b.WriteString("[" + n.Value + "]")
		}
	case Text:
		b.WriteString(n.Value)
	case Operator:
		if n.Op == Or {
			b.WriteByte('|')
		} else {
			b.WriteByte('&')
		}
	case Invert:
		b.WriteByte('!')
		for _, c := range n.Children {
			c.write(b)
		}
	case Parenthesis:
		b.WriteByte('(')
		for _, c := range n.Children {
			c.write(b)
		}
		b.WriteByte(')')
	case Expr:
		for _, c := range n.Children {
			c.write(b)
		}
	}
}

// Equal reports whether two trees are structurally identical.
func Equal(a, b *Node) bool {
	if a.Type != b.Type || a.Value != b.Value || a.Op != b.Op || len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if !Equal(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}
