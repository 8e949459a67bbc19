// Package kdl parses the declarative document format read by the loader:
// a sequence of nodes, each with a name, positional arguments, optional
// key=value properties, and an optional {} block of child nodes.
package kdl

import (
	"fmt"
	"strconv"
)

// ValueKind discriminates the scalar types an argument or property can hold.
type ValueKind int

const (
	StringValue ValueKind = iota
	IntValue
	BoolValue
	NullValue
)

// Value is one scalar argument or property value.
type Value struct {
	Kind ValueKind
	Str  string
	Int  int64
	Bool bool
}

// String renders the value for error messages and debug output.
func (v Value) String() string {
	switch v.Kind {
	case StringValue:
		return strconv.Quote(v.Str)
	case IntValue:
		return strconv.FormatInt(v.Int, 10)
	case BoolValue:
		return strconv.FormatBool(v.Bool)
	default:
		return "null"
	}
}

// AsString returns the string payload if the value is a string.
func (v Value) AsString() (string, bool) {
	if v.Kind != StringValue {
		return "", false
	}
	return v.Str, true
}

// Node is one parsed document node.
type Node struct {
	Name     string
	Args     []Value
	Props    map[string]Value
	Children []*Node
}

// StringArg returns positional argument i, which must exist and be a string.
func (n *Node) StringArg(i int) (string, error) {
	if i >= len(n.Args) {
		return "", fmt.Errorf("%s: missing argument %d", n.Name, i)
	}
	s, ok := n.Args[i].AsString()
	if !ok {
		return "", fmt.Errorf("%s: argument %d is %s, expected a string", n.Name, i, n.Args[i])
	}
	return s, nil
}

// Prop returns the named property, if present.
func (n *Node) Prop(name string) (Value, bool) {
	v, ok := n.Props[name]
	return v, ok
}

// StringProp returns the named property as a string. Missing properties
// return ok=false; present non-string properties are an error.
func (n *Node) StringProp(name string) (string, bool, error) {
	v, ok := n.Props[name]
	if !ok {
		return "", false, nil
	}
	s, ok := v.AsString()
	if !ok {
		return "", true, fmt.Errorf("%s: property %s is %s, expected a string", n.Name, name, v)
	}
	return s, true, nil
}

// Child returns the first child node with the given name.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Document is a parsed file: its top-level nodes in declaration order.
type Document struct {
	Nodes []*Node
}

// Parse parses a complete document.
func Parse(src string) (*Document, error) {
	p := &parser{lex: newLexer(src)}
	nodes, err := p.parseNodes(false)
	if err != nil {
		return nil, err
	}
	return &Document{Nodes: nodes}, nil
}

type parser struct {
	lex *lexer
}

// parseNodes consumes nodes until EOF, or until a closing brace when nested.
func (p *parser) parseNodes(nested bool) ([]*Node, error) {
	var nodes []*Node
	for {
		tok, err := p.lex.next()
		if err != nil {
			return nil, err
		}
		switch tok.kind {
		case tokEOF:
			if nested {
				return nil, p.lex.errorf("unexpected end of document, expected }")
			}
			return nodes, nil
		case tokNewline:
			continue
		case tokRBrace:
			if !nested {
				return nil, p.lex.errorf("unexpected }")
			}
			return nodes, nil
		case tokBare, tokString:
			node, err := p.parseNode(tok.text)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
		default:
			return nil, p.lex.errorf("unexpected %s, expected a node name", tok)
		}
	}
}

// parseNode consumes the remainder of a node after its name.
func (p *parser) parseNode(name string) (*Node, error) {
	node := &Node{Name: name}
	for {
		tok, err := p.lex.next()
		if err != nil {
			return nil, err
		}
		switch tok.kind {
		case tokEOF, tokNewline:
			return node, nil
		case tokRBrace:
			p.lex.unread(tok)
			return node, nil
		case tokLBrace:
			children, err := p.parseNodes(true)
			if err != nil {
				return nil, err
			}
			node.Children = children
			return node, p.expectTerminator()
		case tokBare:
			// A bare token followed by = is a property; otherwise it is a
			// scalar argument (number, bool, null, or a bare string).
			if p.lex.peekAssign() {
				if err := p.parseProp(node, tok.text); err != nil {
					return nil, err
				}
				continue
			}
			node.Args = append(node.Args, bareValue(tok.text))
		case tokString:
			node.Args = append(node.Args, Value{Kind: StringValue, Str: tok.text})
		default:
			return nil, p.lex.errorf("unexpected %s in node %s", tok, name)
		}
	}
}

func (p *parser) parseProp(node *Node, key string) error {
	if err := p.lex.consumeAssign(); err != nil {
		return err
	}
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	var v Value
	switch tok.kind {
	case tokString:
		v = Value{Kind: StringValue, Str: tok.text}
	case tokBare:
		v = bareValue(tok.text)
	default:
		return p.lex.errorf("unexpected %s, expected a value for property %s", tok, key)
	}
	if node.Props == nil {
		node.Props = make(map[string]Value)
	}
	node.Props[key] = v
	return nil
}

// expectTerminator requires the node to end after its children block.
func (p *parser) expectTerminator() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	switch tok.kind {
	case tokEOF, tokNewline:
		return nil
	case tokRBrace:
		p.lex.unread(tok)
		return nil
	}
	return p.lex.errorf("unexpected %s after children block", tok)
}

// bareValue interprets an unquoted token as int, bool, null, or string.
func bareValue(text string) Value {
	switch text {
	case "true":
		return Value{Kind: BoolValue, Bool: true}
	case "false":
		return Value{Kind: BoolValue, Bool: false}
	case "null":
		return Value{Kind: NullValue}
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return Value{Kind: IntValue, Int: n}
	}
	return Value{Kind: StringValue, Str: text}
}
