// Package tree builds namespaced WordprocessingML element trees.
//
// A tree is described with a small typed node set instead of nested literals:
//
//	p := tree.E("w:p",
//	    tree.E("w:pPr", tree.E("w:pStyle", tree.A("w:val", "Heading1"))),
//	    tree.E("w:r", tree.E("w:t", tree.T("Introduction"))),
//	)
//	el, err := tree.NewBuilder(nil).Build(p)
//
// The Builder resolves every prefix against a namespace table and declares,
// on each element, only the prefixes used by that element's tag or
// attributes that no ancestor in the built tree already declares. Prefixes
// that the destination part declares on its root can be marked in scope
// with WithScope so fragments spliced into an existing part stay compact.
//
// Malformed descriptions (empty tags, unknown prefixes, nil children,
// attempts to declare prefixed namespaces by hand) fail with an error
// wrapping ErrMalformed rather than producing an empty tree.
package tree
