package model

import "github.com/signalsfoundry/sdh-provisioner/core"

// BusinessObject is an inventory object: equipment, port, link or service.
// Parent expresses containment (a port inside a shelf inside a router).
type BusinessObject struct {
	ClassName string `yaml:"class"`
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`

	// Parent is the zero ObjectRef for root objects.
	Parent core.ObjectRef `yaml:"parent,omitempty"`

	Attributes map[string]string `yaml:"attributes,omitempty"`
}

// Ref returns a reference to the object.
func (o BusinessObject) Ref() core.ObjectRef {
	return core.ObjectRef{ClassName: o.ClassName, ID: o.ID, Name: o.Name}
}

// Relationship is a named, undirected special relationship between two
// objects. Properties carry per-relationship data such as sdhPosition.
type Relationship struct {
	ID         string
	Name       string
	A          core.ObjectRef
	B          core.ObjectRef
	Properties map[string]string
}

// Other returns the side of the relationship that is not ref.
func (r Relationship) Other(ref core.ObjectRef) core.ObjectRef {
	if r.A.Same(ref) {
		return r.B
	}
	return r.A
}

// Touches reports whether ref is one of the two sides.
func (r Relationship) Touches(ref core.ObjectRef) bool {
	return r.A.Same(ref) || r.B.Same(ref)
}

// AnnotatedObject is an object reached through a relationship, together
// with the relationship's properties.
type AnnotatedObject struct {
	Object         core.ObjectRef
	RelationshipID string
	Properties     map[string]string
	// Outgoing is true when the queried object is side A of the relationship.
	Outgoing bool
}
