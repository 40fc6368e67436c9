package kb

import (
	"errors"
	"sync"
	"testing"

	"github.com/signalsfoundry/sdh-provisioner/core"
	"github.com/signalsfoundry/sdh-provisioner/model"
)

func TestAddAndGetClass(t *testing.T) {
	store := NewKnowledgeBase()
	if err := store.AddClass(model.ClassMetadata{Name: "Root", Abstract: true}); err != nil {
		t.Fatalf("AddClass error: %v", err)
	}
	if err := store.AddClass(model.ClassMetadata{Name: "Leaf", Parent: "Root"}); err != nil {
		t.Fatalf("AddClass error: %v", err)
	}
	got, err := store.GetClass("Leaf")
	if err != nil || got.Parent != "Root" {
		t.Fatalf("GetClass returned %#v, %v", got, err)
	}
}

func TestAddClassValidation(t *testing.T) {
	store := NewKnowledgeBase()
	if err := store.AddClass(model.ClassMetadata{}); !errors.Is(err, ErrClassBadInput) {
		t.Fatalf("err=%v, want ErrClassBadInput", err)
	}
	if err := store.AddClass(model.ClassMetadata{Name: "Orphan", Parent: "Missing"}); !errors.Is(err, ErrClassNotFound) {
		t.Fatalf("err=%v, want ErrClassNotFound", err)
	}
	if err := store.AddClass(model.ClassMetadata{Name: "A"}); err != nil {
		t.Fatalf("AddClass error: %v", err)
	}
	if err := store.AddClass(model.ClassMetadata{Name: "A"}); !errors.Is(err, ErrClassExists) {
		t.Fatalf("err=%v, want ErrClassExists", err)
	}
}

func TestIsSubclassOf(t *testing.T) {
	store := NewSDHKnowledgeBase()
	cases := []struct {
		class, parent string
		want          bool
	}{
		{"STM16", core.ClassGenericSDHTransportLink, true},
		{"STM16", core.ClassGenericLogicalConnection, true},
		{"STM16", "STM16", true},
		{"VC4-4", core.ClassGenericSDHHighOrderContainer, true},
		{"VC12", core.ClassGenericSDHHighOrderContainer, false},
		{"VC4TributaryLink", core.ClassGenericSDHHighOrderTributary, true},
		{"OpticalPort", core.ClassGenericPort, true},
		{"Router", core.ClassGenericPort, false},
	}
	for _, tc := range cases {
		got, err := store.IsSubclassOf(tc.class, tc.parent)
		if err != nil {
			t.Fatalf("IsSubclassOf(%q,%q) error: %v", tc.class, tc.parent, err)
		}
		if got != tc.want {
			t.Fatalf("IsSubclassOf(%q,%q)=%v, want %v", tc.class, tc.parent, got, tc.want)
		}
	}
	if _, err := store.IsSubclassOf("Nope", core.ClassGenericPort); !errors.Is(err, ErrClassNotFound) {
		t.Fatalf("err=%v, want ErrClassNotFound", err)
	}
}

func TestSubClassesLight(t *testing.T) {
	store := NewSDHKnowledgeBase()

	got, err := store.SubClassesLight(core.ClassGenericSDHTransportLink, false, false)
	if err != nil {
		t.Fatalf("SubClassesLight error: %v", err)
	}
	want := []string{"STM1", "STM16", "STM256", "STM4", "STM64"}
	if len(got) != len(want) {
		t.Fatalf("SubClassesLight=%v, want %v", got, want)
	}
	for i := range want {
		if got[i].Name != want[i] {
			t.Fatalf("SubClassesLight[%d]=%q, want %q", i, got[i].Name, want[i])
		}
	}

	withAbstract, err := store.SubClassesLight(core.ClassGenericSDHTributaryLink, true, true)
	if err != nil {
		t.Fatalf("SubClassesLight error: %v", err)
	}
	names := map[string]bool{}
	for _, c := range withAbstract {
		names[c.Name] = true
	}
	for _, n := range []string{core.ClassGenericSDHTributaryLink, core.ClassGenericSDHHighOrderTributary, "VC12TributaryLink"} {
		if !names[n] {
			t.Fatalf("expected %q in %v", n, withAbstract)
		}
	}

	if _, err := store.SubClassesLight("Nope", false, false); !errors.Is(err, ErrClassNotFound) {
		t.Fatalf("err=%v, want ErrClassNotFound", err)
	}
}

func TestSubscribeClassAdded(t *testing.T) {
	store := NewSDHKnowledgeBase()

	var (
		mu     sync.Mutex
		events []Event
	)
	unsubscribe := store.Subscribe(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	})

	if err := store.AddClass(model.ClassMetadata{Name: "STM1024", Parent: core.ClassGenericSDHTransportLink}); err != nil {
		t.Fatalf("AddClass error: %v", err)
	}
	unsubscribe()
	if err := store.AddClass(model.ClassMetadata{Name: "STM2048", Parent: core.ClassGenericSDHTransportLink}); err != nil {
		t.Fatalf("AddClass error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 || events[0].Class.Name != "STM1024" || events[0].Type != EventClassAdded {
		t.Fatalf("events=%v, want a single STM1024 addition", events)
	}
}
