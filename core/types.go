package core

import (
	"fmt"
	"strings"
)

// Class names the SDH layer relies on. Concrete link and equipment classes
// are resolved against these through the class metadata store.
const (
	ClassInventoryObject              = "InventoryObject"
	ClassGenericCommunicationsElement = "GenericCommunicationsElement"
	ClassGenericPort                  = "GenericPort"
	ClassGenericLogicalConnection     = "GenericLogicalConnection"
	ClassGenericSDHTransportLink      = "GenericSDHTransportLink"
	ClassGenericSDHContainerLink      = "GenericSDHContainerLink"
	ClassGenericSDHHighOrderContainer = "GenericSDHHighOrderContainerLink"
	ClassGenericSDHLowOrderContainer  = "GenericSDHLowOrderContainerLink"
	ClassGenericSDHTributaryLink      = "GenericSDHTributaryLink"
	ClassGenericSDHHighOrderTributary = "GenericSDHHighOrderTributaryLink"
	ClassGenericSDHLowOrderTributary  = "GenericSDHLowOrderTributaryLink"
	ClassGenericService               = "GenericService"
	ClassGenericSDHService            = "GenericSDHService"
	tributaryLinkSuffix               = "TributaryLink"
)

// ObjectRef identifies an inventory object (equipment, port, link or
// service) by class and id. Name is informational.
type ObjectRef struct {
	ClassName string `json:"className" yaml:"class" validate:"required"`
	ID        string `json:"id" yaml:"id" validate:"required"`
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
}

// NewObjectRef is a shorthand used heavily by tests and the CLI.
func NewObjectRef(className, id, name string) ObjectRef {
	return ObjectRef{ClassName: className, ID: id, Name: name}
}

// IsZero reports whether the reference points at nothing.
func (r ObjectRef) IsZero() bool { return r.ClassName == "" && r.ID == "" }

// Key is the identity of the object; two refs with the same key denote the
// same object regardless of Name.
func (r ObjectRef) Key() string { return r.ClassName + ":" + r.ID }

// Same reports whether both refs denote the same object.
func (r ObjectRef) Same(other ObjectRef) bool {
	return r.ClassName == other.ClassName && r.ID == other.ID
}

func (r ObjectRef) String() string {
	if r.Name != "" {
		return fmt.Sprintf("%s [%s]", r.Name, r.ClassName)
	}
	return r.Key()
}

// ParseObjectRef parses the "Class:id" form produced by Key.
func ParseObjectRef(s string) (ObjectRef, error) {
	class, id, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || class == "" || id == "" {
		return ObjectRef{}, fmt.Errorf("object reference %q: want Class:id", s)
	}
	return ObjectRef{ClassName: class, ID: id}, nil
}

// SdhPosition is one committed slot assignment: the new container occupies
// Position (1-based, the first slot of its run) inside the given link.
type SdhPosition struct {
	LinkClass string `json:"linkClass" validate:"required"`
	LinkID    string `json:"linkId" validate:"required"`
	Position  int    `json:"position" validate:"min=1"`
}

// Link returns the link the position refers to.
func (p SdhPosition) Link() ObjectRef {
	return ObjectRef{ClassName: p.LinkClass, ID: p.LinkID}
}

func (p SdhPosition) String() string {
	return fmt.Sprintf("%s:%s@%d", p.LinkClass, p.LinkID, p.Position)
}

// SdhContainerLinkDefinition describes one container already carried by a
// transport or high-order container link.
type SdhContainerLinkDefinition struct {
	Container ObjectRef `json:"container"`
	// Structured is true when the container carries further containers
	// instead of delivering a tributary.
	Structured bool          `json:"structured"`
	Positions  []SdhPosition `json:"positions"`
}

// PositionIn returns the position the container uses inside link. A
// definition produced by a structure query normally carries exactly one.
func (d SdhContainerLinkDefinition) PositionIn(link ObjectRef) (int, bool) {
	for _, p := range d.Positions {
		if p.LinkID == link.ID && (p.LinkClass == "" || p.LinkClass == link.ClassName) {
			return p.Position, true
		}
	}
	if len(d.Positions) == 1 {
		return d.Positions[0].Position, true
	}
	return 0, false
}

// ContainerClassOf strips the TributaryLink suffix: "VC4-4TributaryLink"
// is delivered over a "VC4-4" container.
func ContainerClassOf(tributaryClass string) string {
	return strings.TrimSuffix(tributaryClass, tributaryLinkSuffix)
}
