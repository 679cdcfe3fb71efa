package tree

import (
	"github.com/beevik/etree"
)

// Item is anything that may appear inside an element description.
type Item interface {
	isItem()
}

// Node is an Item that becomes a child token of the built element.
type Node interface {
	Item
	isNode()
}

// Attr is a qualified attribute, e.g. A("w:val", "Heading1").
type Attr struct {
	Name  string
	Value string
}

func (Attr) isItem() {}

// Text is character data inside an element.
type Text string

func (Text) isItem() {}
func (Text) isNode() {}

// Element describes a qualified element with attributes and children.
type Element struct {
	Tag      string
	Attrs    []Attr
	Children []Node
}

func (*Element) isItem() {}
func (*Element) isNode() {}

// Raw splices an already built etree element into a description. The
// element is deep-copied when the description is built, so the source is
// never moved out of its own document.
type Raw struct {
	Elem *etree.Element
}

func (Raw) isItem() {}
func (Raw) isNode() {}

// A returns an attribute item.
func A(name, value string) Attr {
	return Attr{Name: name, Value: value}
}

// T returns a text item.
func T(text string) Text {
	return Text(text)
}

// R wraps an existing etree element.
func R(el *etree.Element) Raw {
	return Raw{Elem: el}
}

// E returns an element description. Attributes, text and child elements may
// be passed in any order; attributes keep their relative order and so do
// child nodes.
func E(tag string, items ...Item) *Element {
	e := &Element{Tag: tag}
	return e.Add(items...)
}

// Add appends items to the element and returns it for chaining.
func (e *Element) Add(items ...Item) *Element {
	for _, it := range items {
		switch v := it.(type) {
		case Attr:
			e.Attrs = append(e.Attrs, v)
		case Node:
			e.Children = append(e.Children, v)
		default:
			// nil interface values are kept so Build can report them
			e.Children = append(e.Children, nil)
		}
	}
	return e
}

// Set adds or replaces an attribute.
func (e *Element) Set(name, value string) *Element {
	for i := range e.Attrs {
		if e.Attrs[i].Name == name {
			e.Attrs[i].Value = value
			return e
		}
	}
	e.Attrs = append(e.Attrs, Attr{Name: name, Value: value})
	return e
}

// Val is shorthand for the very common single w:val attribute element.
func Val(tag, value string) *Element {
	return E(tag, A("w:val", value))
}
