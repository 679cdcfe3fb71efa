package tree

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// ErrMalformed is wrapped by every error Build returns.
var ErrMalformed = errors.New("malformed tree description")

// Builder turns element descriptions into etree elements.
type Builder struct {
	namespaces map[string]string
	inScope    map[string]bool
}

// NewBuilder returns a builder resolving prefixes against ns. A nil map
// selects DefaultNamespaces.
func NewBuilder(ns map[string]string) *Builder {
	if ns == nil {
		ns = DefaultNamespaces
	}
	return &Builder{
		namespaces: ns,
		inScope:    make(map[string]bool),
	}
}

// WithScope returns a copy of the builder that treats the given prefixes as
// already declared by the destination part.
func (b *Builder) WithScope(prefixes ...string) *Builder {
	nb := &Builder{
		namespaces: b.namespaces,
		inScope:    make(map[string]bool, len(b.inScope)+len(prefixes)),
	}
	for p := range b.inScope {
		nb.inScope[p] = true
	}
	for _, p := range prefixes {
		nb.inScope[p] = true
	}
	return nb
}

// URI returns the namespace URI bound to prefix.
func (b *Builder) URI(prefix string) (string, bool) {
	uri, ok := b.namespaces[prefix]
	return uri, ok
}

// Build constructs the element described by e.
func (b *Builder) Build(e *Element) (*etree.Element, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: nil element", ErrMalformed)
	}
	return b.build(e, b.inScope, e.Tag)
}

// BuildAll builds several sibling descriptions.
func (b *Builder) BuildAll(elems ...*Element) ([]*etree.Element, error) {
	out := make([]*etree.Element, 0, len(elems))
	for i, e := range elems {
		if e == nil {
			return nil, fmt.Errorf("%w: nil element at index %d", ErrMalformed, i)
		}
		built, err := b.Build(e)
		if err != nil {
			return nil, err
		}
		out = append(out, built)
	}
	return out, nil
}

func (b *Builder) build(e *Element, declared map[string]bool, path string) (*etree.Element, error) {
	prefix, err := splitQName(e.Tag)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: tag: %v", ErrMalformed, path, err)
	}

	var used []string
	seen := make(map[string]bool)
	use := func(p string) error {
		if p == "" || p == "xml" || seen[p] {
			return nil
		}
		if _, ok := b.namespaces[p]; !ok {
			return fmt.Errorf("unknown namespace prefix %q", p)
		}
		seen[p] = true
		if !declared[p] {
			used = append(used, p)
		}
		return nil
	}
	if err := use(prefix); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}

	for _, a := range e.Attrs {
		if a.Name == "xmlns" {
			continue
		}
		if strings.HasPrefix(a.Name, "xmlns:") {
			return nil, fmt.Errorf("%w: %s: prefixed namespace declaration %q is managed by the builder", ErrMalformed, path, a.Name)
		}
		ap, err := splitQName(a.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: attribute: %v", ErrMalformed, path, err)
		}
		if err := use(ap); err != nil {
			return nil, fmt.Errorf("%w: %s@%s: %v", ErrMalformed, path, a.Name, err)
		}
	}

	el := etree.NewElement(e.Tag)
	childScope := declared
	if len(used) > 0 {
		childScope = make(map[string]bool, len(declared)+len(used))
		for p := range declared {
			childScope[p] = true
		}
		for _, p := range used {
			el.CreateAttr("xmlns:"+p, b.namespaces[p])
			childScope[p] = true
		}
	}
	for _, a := range e.Attrs {
		el.CreateAttr(a.Name, a.Value)
	}

	for i, child := range e.Children {
		switch c := child.(type) {
		case Text:
			el.CreateText(string(c))
		case *Element:
			if c == nil {
				return nil, fmt.Errorf("%w: %s: nil child at index %d", ErrMalformed, path, i)
			}
			built, err := b.build(c, childScope, path+"/"+c.Tag)
			if err != nil {
				return nil, err
			}
			el.AddChild(built)
		case Raw:
			if c.Elem == nil {
				return nil, fmt.Errorf("%w: %s: nil raw element at index %d", ErrMalformed, path, i)
			}
			el.AddChild(c.Elem.Copy())
		default:
			return nil, fmt.Errorf("%w: %s: nil child at index %d", ErrMalformed, path, i)
		}
	}
	return el, nil
}

// splitQName validates a qualified name and returns its prefix.
func splitQName(name string) (string, error) {
	if name == "" {
		return "", errors.New("empty name")
	}
	parts := strings.Split(name, ":")
	switch len(parts) {
	case 1:
		return "", nil
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return "", fmt.Errorf("invalid qualified name %q", name)
		}
		return parts[0], nil
	default:
		return "", fmt.Errorf("invalid qualified name %q", name)
	}
}
