package core

import (
	"context"
	"errors"
	"testing"
)

type fakeMeta map[string]string // class -> parent

func (m fakeMeta) IsSubclassOf(_ context.Context, className, allegedParent string) (bool, error) {
	if _, ok := m[className]; !ok {
		return false, errors.New("class not found: " + className)
	}
	for c := className; c != ""; c = m[c] {
		if c == allegedParent {
			return true, nil
		}
	}
	return false, nil
}

type fakeSource struct {
	transport, container [][]ObjectRef
	err                  error
	lastKind             string
}

func (s *fakeSource) FindSDHRoutesUsingTransportLinks(_ context.Context, _, _ ObjectRef) ([][]ObjectRef, error) {
	s.lastKind = "transport"
	return s.transport, s.err
}

func (s *fakeSource) FindSDHRoutesUsingContainerLinks(_ context.Context, _, _ ObjectRef) ([][]ObjectRef, error) {
	s.lastKind = "container"
	return s.container, s.err
}

func testMeta() fakeMeta {
	return fakeMeta{
		"InventoryObject":                  "",
		"Router":                           "InventoryObject",
		ClassGenericLogicalConnection:      "InventoryObject",
		ClassGenericSDHTransportLink:       ClassGenericLogicalConnection,
		"STM16":                            ClassGenericSDHTransportLink,
		ClassGenericSDHContainerLink:       ClassGenericLogicalConnection,
		ClassGenericSDHHighOrderContainer:  ClassGenericSDHContainerLink,
		ClassGenericSDHLowOrderContainer:   ClassGenericSDHContainerLink,
		"VC4":                              ClassGenericSDHHighOrderContainer,
		"VC12":                             ClassGenericSDHLowOrderContainer,
		ClassGenericSDHTributaryLink:       ClassGenericLogicalConnection,
		ClassGenericSDHHighOrderTributary:  ClassGenericSDHTributaryLink,
		ClassGenericSDHLowOrderTributary:   ClassGenericSDHTributaryLink,
		"VC4TributaryLink":                 ClassGenericSDHHighOrderTributary,
		"VC12TributaryLink":                ClassGenericSDHLowOrderTributary,
	}
}

func TestFindRoutesLabelsAndHops(t *testing.T) {
	a := NewObjectRef("Router", "a", "A")
	b := NewObjectRef("Router", "b", "B")
	c := NewObjectRef("Router", "c", "C")
	l1 := NewObjectRef("STM16", "l1", "Link1")
	l2 := NewObjectRef("STM16", "l2", "Link2")
	l3 := NewObjectRef("STM16", "l3", "Link3")

	src := &fakeSource{transport: [][]ObjectRef{
		{a, l3, b},
		{a, l1, c, l2, b},
	}}
	finder := NewRouteFinder(src, testMeta())

	routes, err := finder.FindRoutes(context.Background(), a, b, TransportGraph)
	if err != nil {
		t.Fatalf("FindRoutes error: %v", err)
	}
	if src.lastKind != "transport" {
		t.Fatalf("queried %s graph, want transport", src.lastKind)
	}
	if len(routes) != 2 {
		t.Fatalf("len(routes)=%d, want 2", len(routes))
	}
	if routes[0].String() != "Route 1 - 1 hops" || routes[1].String() != "Route 2 - 2 hops" {
		t.Fatalf("unexpected labels: %q, %q", routes[0], routes[1])
	}
	if !routes[1].Hops[0].Same(l1) || !routes[1].Hops[1].Same(l2) {
		t.Fatalf("hops out of order: %v", routes[1].Hops)
	}
	if len(routes[1].Elements) != 5 {
		t.Fatalf("elements=%v, want endpoints and links kept", routes[1].Elements)
	}

	hops := NewHopDefinitions(routes[1])
	for _, h := range hops {
		if h.Selected() {
			t.Fatalf("new hop %v should be unselected", h)
		}
	}
}

func TestFindRoutesEmptyAndErrors(t *testing.T) {
	a := NewObjectRef("Router", "a", "A")
	b := NewObjectRef("Router", "b", "B")

	finder := NewRouteFinder(&fakeSource{}, testMeta())
	routes, err := finder.FindRoutes(context.Background(), a, b, ContainerGraph)
	if err != nil || len(routes) != 0 {
		t.Fatalf("FindRoutes = %v, %v; want empty", routes, err)
	}

	if _, err := finder.FindRoutes(context.Background(), a, a, ContainerGraph); !errors.Is(err, ErrSameEndpoints) {
		t.Fatalf("err=%v, want ErrSameEndpoints", err)
	}

	failing := NewRouteFinder(&fakeSource{err: errors.New("backend down")}, testMeta())
	if _, err := failing.FindRoutes(context.Background(), a, b, TransportGraph); !errors.Is(err, ErrRouteLookup) {
		t.Fatalf("err=%v, want ErrRouteLookup", err)
	}

	unknown := NewRouteFinder(&fakeSource{transport: [][]ObjectRef{{a, NewObjectRef("Mystery", "x", ""), b}}}, testMeta())
	if _, err := unknown.FindRoutes(context.Background(), a, b, TransportGraph); !errors.Is(err, ErrClassLookup) {
		t.Fatalf("err=%v, want ErrClassLookup", err)
	}
}

func TestGraphKindFor(t *testing.T) {
	finder := NewRouteFinder(&fakeSource{}, testMeta())
	cases := map[string]GraphKind{
		"VC4":               TransportGraph,
		"VC4TributaryLink":  TransportGraph,
		"VC12":              ContainerGraph,
		"VC12TributaryLink": ContainerGraph,
	}
	for class, want := range cases {
		got, err := finder.GraphKindFor(context.Background(), class)
		if err != nil {
			t.Fatalf("GraphKindFor(%q) error: %v", class, err)
		}
		if got != want {
			t.Fatalf("GraphKindFor(%q)=%v, want %v", class, got, want)
		}
	}
	if _, err := finder.GraphKindFor(context.Background(), "Nope"); !errors.Is(err, ErrClassLookup) {
		t.Fatalf("err=%v, want ErrClassLookup", err)
	}
}

func TestParseObjectRef(t *testing.T) {
	ref, err := ParseObjectRef("Router:r-1")
	if err != nil || ref.ClassName != "Router" || ref.ID != "r-1" {
		t.Fatalf("ParseObjectRef = %+v, %v", ref, err)
	}
	if _, err := ParseObjectRef("r-1"); err == nil {
		t.Fatalf("expected error for missing class")
	}
	kind, err := ParseGraphKind("Container")
	if err != nil || kind != ContainerGraph {
		t.Fatalf("ParseGraphKind = %v, %v", kind, err)
	}
}
