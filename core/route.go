package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSameEndpoints = errors.New("route endpoints must be different equipment")
	ErrClassLookup   = errors.New("class metadata lookup failed")
	ErrRouteLookup   = errors.New("route lookup failed")
)

// Unselected marks a hop whose position has not been chosen yet.
const Unselected = -1

// GraphKind selects which layer of links routes are searched over.
type GraphKind int

const (
	// TransportGraph routes over STM transport links.
	TransportGraph GraphKind = iota
	// ContainerGraph routes over high-order container links.
	ContainerGraph
)

func (k GraphKind) String() string {
	switch k {
	case TransportGraph:
		return "transport"
	case ContainerGraph:
		return "container"
	default:
		return fmt.Sprintf("GraphKind(%d)", int(k))
	}
}

// ParseGraphKind is the inverse of String.
func ParseGraphKind(s string) (GraphKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "transport":
		return TransportGraph, nil
	case "container":
		return ContainerGraph, nil
	default:
		return 0, fmt.Errorf("unknown graph kind %q", s)
	}
}

// Route is one candidate path between two equipment. Elements keeps the
// backend order: equipment and links interleaved, endpoints included.
type Route struct {
	Label    string      `json:"label"`
	Elements []ObjectRef `json:"elements"`
	Hops     []ObjectRef `json:"hops"`
}

func (r Route) String() string {
	return fmt.Sprintf("%s - %d hops", r.Label, len(r.Hops))
}

// HopDefinition is a link of the chosen route plus the position selected
// for the new container in it.
type HopDefinition struct {
	Link     ObjectRef `json:"link"`
	Position int       `json:"position"`
}

// Selected reports whether a position has been chosen.
func (h HopDefinition) Selected() bool { return h.Position != Unselected }

// NewHopDefinitions returns one unselected hop per link of r, in order.
func NewHopDefinitions(r Route) []HopDefinition {
	hops := make([]HopDefinition, len(r.Hops))
	for i, link := range r.Hops {
		hops[i] = HopDefinition{Link: link, Position: Unselected}
	}
	return hops
}

// ClassMetadata answers class hierarchy questions.
type ClassMetadata interface {
	IsSubclassOf(ctx context.Context, className, allegedParent string) (bool, error)
}

// RouteSource returns raw routes as ordered object lists.
type RouteSource interface {
	FindSDHRoutesUsingTransportLinks(ctx context.Context, a, b ObjectRef) ([][]ObjectRef, error)
	FindSDHRoutesUsingContainerLinks(ctx context.Context, a, b ObjectRef) ([][]ObjectRef, error)
}

// RouteFinder turns raw routes into labelled Routes with their hops.
type RouteFinder struct {
	source RouteSource
	meta   ClassMetadata
}

// NewRouteFinder wires a finder to its route source and class metadata.
func NewRouteFinder(source RouteSource, meta ClassMetadata) *RouteFinder {
	return &RouteFinder{source: source, meta: meta}
}

// GraphKindFor picks the layer a new link of connectionClass travels over:
// high-order containers and tributaries ride transport links, everything
// else rides high-order containers.
func (f *RouteFinder) GraphKindFor(ctx context.Context, connectionClass string) (GraphKind, error) {
	for _, parent := range []string{ClassGenericSDHHighOrderContainer, ClassGenericSDHHighOrderTributary} {
		ok, err := f.meta.IsSubclassOf(ctx, connectionClass, parent)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %w", ErrClassLookup, connectionClass, err)
		}
		if ok {
			return TransportGraph, nil
		}
	}
	return ContainerGraph, nil
}

// FindRoutes returns the routes between a and b over the given layer,
// labelled "Route 1", "Route 2", ... in backend order.
func (f *RouteFinder) FindRoutes(ctx context.Context, a, b ObjectRef, kind GraphKind) ([]Route, error) {
	if a.Same(b) {
		return nil, fmt.Errorf("%w: %s", ErrSameEndpoints, a)
	}

	var (
		raw [][]ObjectRef
		err error
	)
	switch kind {
	case TransportGraph:
		raw, err = f.source.FindSDHRoutesUsingTransportLinks(ctx, a, b)
	case ContainerGraph:
		raw, err = f.source.FindSDHRoutesUsingContainerLinks(ctx, a, b)
	default:
		return nil, fmt.Errorf("unknown graph kind %v", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRouteLookup, err)
	}

	routes := make([]Route, 0, len(raw))
	for i, elements := range raw {
		route := Route{
			Label:    fmt.Sprintf("Route %d", i+1),
			Elements: append([]ObjectRef(nil), elements...),
		}
		for _, el := range elements {
			isLink, err := f.meta.IsSubclassOf(ctx, el.ClassName, ClassGenericLogicalConnection)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrClassLookup, el.ClassName, err)
			}
			if isLink {
				route.Hops = append(route.Hops, el)
			}
		}
		routes = append(routes, route)
	}
	return routes, nil
}
