package inventory

import (
	"testing"

	"github.com/signalsfoundry/sdh-provisioner/core"
	"github.com/signalsfoundry/sdh-provisioner/model"
)

func routeNames(route []core.ObjectRef) []string {
	names := make([]string, len(route))
	for i, r := range route {
		names[i] = r.Name
	}
	return names
}

func TestFindRoutesThroughSpecialRelationships(t *testing.T) {
	s := newStateForTest(t)
	a := mustCreate(t, s, model.BusinessObject{ClassName: "ADM", Name: "A"})
	b := mustCreate(t, s, model.BusinessObject{ClassName: "ADM", Name: "B"})
	c := mustCreate(t, s, model.BusinessObject{ClassName: "ADM", Name: "C"})
	direct := mustCreate(t, s, model.BusinessObject{ClassName: "STM4", Name: "A-B"})
	ac := mustCreate(t, s, model.BusinessObject{ClassName: "STM4", Name: "A-C"})
	cb := mustCreate(t, s, model.BusinessObject{ClassName: "STM4", Name: "C-B"})
	unrelated := mustCreate(t, s, model.BusinessObject{ClassName: "VC4", Name: "A-B container"})

	for _, pair := range [][2]core.ObjectRef{{a, direct}, {b, direct}, {a, ac}, {c, ac}, {c, cb}, {b, cb}} {
		mustRelate(t, s, "sdhTransportLink", pair[0], pair[1])
	}
	mustRelate(t, s, "sdhContainerLink", a, unrelated)
	mustRelate(t, s, "sdhContainerLink", b, unrelated)

	var routes [][]core.ObjectRef
	err := s.View(func(tx *Txn) error {
		var err error
		routes, err = tx.FindRoutesThroughSpecialRelationships(a, b, "sdhTransportLink", 0)
		return err
	})
	if err != nil {
		t.Fatalf("FindRoutesThroughSpecialRelationships error: %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("got %d routes, want 2: %v", len(routes), routes)
	}
	want := [][]string{{"A", "A-B", "B"}, {"A", "A-C", "C", "C-B", "B"}}
	for i := range want {
		got := routeNames(routes[i])
		if len(got) != len(want[i]) {
			t.Fatalf("route %d = %v, want %v", i, got, want[i])
		}
		for j := range got {
			if got[j] != want[i][j] {
				t.Fatalf("route %d = %v, want %v", i, got, want[i])
			}
		}
	}

	err = s.View(func(tx *Txn) error {
		var err error
		routes, err = tx.FindRoutesThroughSpecialRelationships(a, b, "sdhTransportLink", 1)
		return err
	})
	if err != nil || len(routes) != 1 {
		t.Fatalf("hop limit 1: routes=%v err=%v, want only the direct one", routes, err)
	}

	err = s.View(func(tx *Txn) error {
		var err error
		routes, err = tx.FindRoutesThroughSpecialRelationships(a, c, "sdhContainerLink", 0)
		return err
	})
	if err != nil || len(routes) != 0 {
		t.Fatalf("container graph: routes=%v err=%v, want none", routes, err)
	}
}
