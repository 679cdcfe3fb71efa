package docxcompose

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/benjaminschreck/go-docxcompose/pkg/docxcompose/tree"
)

// Relationship types used by the composer.
const (
	RelTypeHyperlink     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink"
	RelTypeImage         = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	RelTypeFootnotes     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/footnotes"
	RelTypeNumbering     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/numbering"
	RelTypeStyles        = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles"
	RelTypeSettings      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/settings"
	RelTypeOfficeDoc     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	RelTypeExtendedProps = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/extended-properties"
	RelTypeCoreProps     = "http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties"
)

// Relationship is one entry of a .rels part.
type Relationship struct {
	ID       string
	Type     string
	Target   string
	External bool
}

// NewRelationship validates and returns a relationship record.
func NewRelationship(id, relType, target string, external bool) (Relationship, error) {
	if id == "" {
		return Relationship{}, errors.New("relationship id is empty")
	}
	if target == "" {
		return Relationship{}, errors.New("relationship target is empty")
	}
	if err := validateRelType(relType); err != nil {
		return Relationship{}, err
	}
	return Relationship{ID: id, Type: relType, Target: target, External: external}, nil
}

func validateRelType(relType string) error {
	u, err := url.Parse(relType)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("invalid relationship type URI %q", relType)
	}
	return nil
}

type relKey struct {
	target  string
	relType string
}

// RelationshipRegistry hands out stable relationship ids for the
// relationships of one part. Registering the same target and type twice
// returns the id assigned the first time.
type RelationshipRegistry struct {
	rels  []Relationship
	byKey map[relKey]string
	taken map[string]bool
	log   *zap.Logger
}

// NewRelationshipRegistry returns a registry seeded with the relationships
// a part already has.
func NewRelationshipRegistry(existing []Relationship, log *zap.Logger) *RelationshipRegistry {
	if log == nil {
		log = zap.NewNop()
	}
	r := &RelationshipRegistry{
		byKey: make(map[relKey]string, len(existing)),
		taken: make(map[string]bool, len(existing)),
		log:   log,
	}
	for _, rel := range existing {
		r.rels = append(r.rels, rel)
		r.taken[rel.ID] = true
		key := relKey{rel.Target, rel.Type}
		if _, ok := r.byKey[key]; !ok {
			r.byKey[key] = rel.ID
		}
	}
	return r
}

// Register returns the id for target, assigning rId{count+1} on first use.
// When a seeded relationship already occupies that id the counter moves
// forward until a free id is found.
func (r *RelationshipRegistry) Register(target, relType string, external bool) (string, error) {
	if id, ok := r.byKey[relKey{target, relType}]; ok {
		return id, nil
	}

	n := len(r.rels) + 1
	id := "rId" + strconv.Itoa(n)
	for r.taken[id] {
		n++
		id = "rId" + strconv.Itoa(n)
	}

	rel, err := NewRelationship(id, relType, target, external)
	if err != nil {
		return "", err
	}
	r.rels = append(r.rels, rel)
	r.taken[id] = true
	r.byKey[relKey{target, relType}] = id
	r.log.Debug("relationship registered",
		zap.String("id", id), zap.String("target", target), zap.Bool("external", external))
	return id, nil
}

// Lookup returns the id already registered for target and type.
func (r *RelationshipRegistry) Lookup(target, relType string) (string, bool) {
	id, ok := r.byKey[relKey{target, relType}]
	return id, ok
}

// ByType returns the first relationship of the given type.
func (r *RelationshipRegistry) ByType(relType string) (Relationship, bool) {
	for _, rel := range r.rels {
		if rel.Type == relType {
			return rel, true
		}
	}
	return Relationship{}, false
}

// Len returns the number of relationships.
func (r *RelationshipRegistry) Len() int {
	return len(r.rels)
}

// Relationships returns the relationships in registration order.
func (r *RelationshipRegistry) Relationships() []Relationship {
	out := make([]Relationship, len(r.rels))
	copy(out, r.rels)
	return out
}

// Document renders the registry as a .rels part.
func (r *RelationshipRegistry) Document() (*etree.Document, error) {
	root := tree.E("Relationships", tree.A("xmlns", tree.NSPackageRels))
	for _, rel := range r.rels {
		el := tree.E("Relationship",
			tree.A("Id", rel.ID),
			tree.A("Type", rel.Type),
			tree.A("Target", rel.Target),
		)
		if rel.External {
			el.Set("TargetMode", "External")
		}
		root.Add(el)
	}
	built, err := tree.NewBuilder(nil).Build(root)
	if err != nil {
		return nil, err
	}
	return newXMLDocument(built), nil
}

// parseRelationships reads the entries of a .rels part.
func parseRelationships(doc *etree.Document) ([]Relationship, error) {
	root := doc.Root()
	if root == nil || root.Tag != "Relationships" {
		return nil, errors.New("missing Relationships root element")
	}
	var rels []Relationship
	for _, el := range root.SelectElements("Relationship") {
		rel := Relationship{
			ID:       el.SelectAttrValue("Id", ""),
			Type:     el.SelectAttrValue("Type", ""),
			Target:   el.SelectAttrValue("Target", ""),
			External: el.SelectAttrValue("TargetMode", "") == "External",
		}
		if rel.ID == "" {
			return nil, fmt.Errorf("relationship without Id (target %q)", rel.Target)
		}
		rels = append(rels, rel)
	}
	return rels, nil
}
