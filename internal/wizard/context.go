package wizard

import (
	"fmt"

	"github.com/signalsfoundry/sdh-provisioner/core"
)

// Kind is the kind of link a wizard creates.
type Kind int

const (
	KindTransport Kind = iota
	KindContainer
	KindTributary
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindContainer:
		return "container"
	case KindTributary:
		return "tributary"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind is the inverse of String.
func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{KindTransport, KindContainer, KindTributary} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown link kind %q", s)
}

// Result is what a completed wizard created. Container is only set by the
// tributary wizard.
type Result struct {
	Link      core.ObjectRef  `json:"link"`
	Container *core.ObjectRef `json:"container,omitempty"`
}

// Context is the data collected so far. Steps never share one: each
// transition hands the next step an extended copy.
type Context struct {
	Kind       Kind           `json:"kind"`
	EquipmentA core.ObjectRef `json:"equipment_a"`
	EquipmentB core.ObjectRef `json:"equipment_b"`

	Name      string         `json:"name,omitempty"`
	ClassName string         `json:"class_name,omitempty"`
	GraphKind core.GraphKind `json:"graph_kind"`

	Routes []core.Route         `json:"routes,omitempty"`
	Route  int                  `json:"route"`
	Hops   []core.HopDefinition `json:"hops,omitempty"`

	PortA   core.ObjectRef  `json:"port_a"`
	PortB   core.ObjectRef  `json:"port_b"`
	Service *core.ObjectRef `json:"service,omitempty"`

	Result *Result `json:"result,omitempty"`
}

func newContext(kind Kind, a, b core.ObjectRef) Context {
	return Context{Kind: kind, EquipmentA: a, EquipmentB: b, Route: core.Unselected}
}

func (c Context) clone() Context {
	out := c
	out.Routes = append([]core.Route(nil), c.Routes...)
	out.Hops = append([]core.HopDefinition(nil), c.Hops...)
	if c.Service != nil {
		svc := *c.Service
		out.Service = &svc
	}
	if c.Result != nil {
		res := *c.Result
		out.Result = &res
	}
	return out
}

// SelectedRoute returns the chosen route, if any.
func (c Context) SelectedRoute() (core.Route, bool) {
	if c.Route < 0 || c.Route >= len(c.Routes) {
		return core.Route{}, false
	}
	return c.Routes[c.Route], true
}

// ContainerClass is the class of the container a link of ClassName rides
// in: the class itself for container links, the matching container for
// tributary links.
func (c Context) ContainerClass() string {
	if c.Kind == KindTributary {
		return core.ContainerClassOf(c.ClassName)
	}
	return c.ClassName
}

// Positions turns the selected hops into the list the create calls take.
func (c Context) Positions() []core.SdhPosition {
	res := make([]core.SdhPosition, len(c.Hops))
	for i, h := range c.Hops {
		res[i] = core.SdhPosition{LinkClass: h.Link.ClassName, LinkID: h.Link.ID, Position: h.Position}
	}
	return res
}
