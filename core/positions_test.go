package core

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func containerAt(link ObjectRef, class, id string, pos int) SdhContainerLinkDefinition {
	return SdhContainerLinkDefinition{
		Container: NewObjectRef(class, id, id),
		Positions: []SdhPosition{{LinkClass: link.ClassName, LinkID: link.ID, Position: pos}},
	}
}

func TestBuildAvailablePositionsMarksSpans(t *testing.T) {
	link := NewObjectRef("STM16", "tl-1", "Link1")
	structure := []SdhContainerLinkDefinition{
		containerAt(link, "VC4-4", "c1", 1),
		containerAt(link, "VC4", "c2", 7),
	}

	positions, err := BuildAvailablePositions(link, structure)
	if err != nil {
		t.Fatalf("BuildAvailablePositions error: %v", err)
	}
	if len(positions) != 16 {
		t.Fatalf("len(positions)=%d, want 16", len(positions))
	}
	for i, p := range positions {
		if p.Position != i+1 {
			t.Fatalf("positions[%d].Position=%d, want %d", i, p.Position, i+1)
		}
		var want string
		switch {
		case i < 4:
			want = "c1"
		case i == 6:
			want = "c2"
		}
		got := ""
		if p.Container != nil {
			got = p.Container.ID
		}
		if got != want {
			t.Fatalf("slot %d occupied by %q, want %q", i+1, got, want)
		}
	}
	if FreeCount(positions) != 11 {
		t.Fatalf("FreeCount=%d, want 11", FreeCount(positions))
	}
}

func TestBuildAvailablePositionsContainerLink(t *testing.T) {
	link := NewObjectRef("VC4", "hoc-1", "VC4 A-B")
	positions, err := BuildAvailablePositions(link, []SdhContainerLinkDefinition{
		containerAt(link, "VC3", "lo-1", 22),
		containerAt(link, "VC12", "lo-2", 1),
	})
	if err != nil {
		t.Fatalf("BuildAvailablePositions error: %v", err)
	}
	if len(positions) != 63 {
		t.Fatalf("len(positions)=%d, want 63", len(positions))
	}
	if positions[0].Free() || !positions[1].Free() || positions[21].Free() || positions[41].Free() || !positions[42].Free() {
		t.Fatalf("unexpected layout: %v", positions)
	}
}

func TestBuildAvailablePositionsRejectsBadStructures(t *testing.T) {
	link := NewObjectRef("STM4", "tl-1", "Link1")
	cases := map[string]struct {
		structure []SdhContainerLinkDefinition
		want      error
	}{
		"run past end": {
			structure: []SdhContainerLinkDefinition{containerAt(link, "VC4-4", "c1", 2)},
			want:      ErrCorruptStructure,
		},
		"position out of range": {
			structure: []SdhContainerLinkDefinition{containerAt(link, "VC4", "c1", 5)},
			want:      ErrCorruptStructure,
		},
		"overlap": {
			structure: []SdhContainerLinkDefinition{
				containerAt(link, "VC4-2", "c1", 1),
				containerAt(link, "VC4", "c2", 2),
			},
			want: ErrCorruptStructure,
		},
		"malformed container class": {
			structure: []SdhContainerLinkDefinition{containerAt(link, "VC4-abc", "c1", 1)},
			want:      ErrCapacityUnknown,
		},
		"no position": {
			structure: []SdhContainerLinkDefinition{{Container: NewObjectRef("VC4", "c1", "")}},
			want:      ErrCorruptStructure,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			positions, err := BuildAvailablePositions(link, tc.structure)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err=%v, want %v", err, tc.want)
			}
			if positions != nil {
				t.Fatalf("expected no positions on failure, got %v", positions)
			}
		})
	}
}

func TestBuildAvailablePositionsMalformedLink(t *testing.T) {
	for _, class := range []string{"STMx", "STM292805461487453201", "STM1000000000", "VC4-292805461487453201"} {
		positions, err := BuildAvailablePositions(NewObjectRef(class, "tl", ""), nil)
		if !errors.Is(err, ErrCapacityUnknown) {
			t.Fatalf("%s: err=%v, want ErrCapacityUnknown", class, err)
		}
		if positions != nil {
			t.Fatalf("%s: got %d positions on a failed build", class, len(positions))
		}
	}
}

func TestValidateSelection(t *testing.T) {
	link := NewObjectRef("STM4", "tl-1", "Link1")
	positions, err := BuildAvailablePositions(link, []SdhContainerLinkDefinition{containerAt(link, "VC4", "c1", 2)})
	if err != nil {
		t.Fatalf("BuildAvailablePositions error: %v", err)
	}
	before := append([]AvailablePosition(nil), positions...)

	cases := []struct {
		start, span int
		want        error
	}{
		{1, 2, ErrPositionInUse},
		{4, 2, ErrNotEnoughPositions},
		{0, 1, ErrInvalidPosition},
		{3, 2, nil},
		{1, 1, nil},
		{4, 1, nil},
	}
	for _, tc := range cases {
		err := ValidateSelection(positions, tc.start, tc.span)
		if tc.want == nil && err != nil {
			t.Fatalf("ValidateSelection(%d,%d) error: %v", tc.start, tc.span, err)
		}
		if tc.want != nil && !errors.Is(err, tc.want) {
			t.Fatalf("ValidateSelection(%d,%d) err=%v, want %v", tc.start, tc.span, err, tc.want)
		}
	}
	if !reflect.DeepEqual(before, positions) {
		t.Fatalf("positions mutated by validation")
	}
}

func TestFirstFit(t *testing.T) {
	link := NewObjectRef("STM8", "tl-1", "Link1")
	positions, err := BuildAvailablePositions(link, []SdhContainerLinkDefinition{
		containerAt(link, "VC4", "c1", 2),
		containerAt(link, "VC4", "c2", 5),
	})
	if err != nil {
		t.Fatalf("BuildAvailablePositions error: %v", err)
	}
	if got, ok := FirstFit(positions, 1); !ok || got != 1 {
		t.Fatalf("FirstFit span 1 = %d,%v want 1", got, ok)
	}
	if got, ok := FirstFit(positions, 2); !ok || got != 3 {
		t.Fatalf("FirstFit span 2 = %d,%v want 3", got, ok)
	}
	if got, ok := FirstFit(positions, 3); !ok || got != 6 {
		t.Fatalf("FirstFit span 3 = %d,%v want 6", got, ok)
	}
	if _, ok := FirstFit(positions, 4); ok {
		t.Fatalf("FirstFit span 4 should not fit")
	}
}

// layoutFromCodes turns generated codes into a non-overlapping structure on
// an STM16: 0 leaves a slot free, 1 places a VC4, 2 places a VC4-4 when it
// fits.
func layoutFromCodes(link ObjectRef, codes []int) ([]SdhContainerLinkDefinition, []bool) {
	occupied := make([]bool, 16)
	var structure []SdhContainerLinkDefinition
	for slot, i := 0, 0; slot < 16 && i < len(codes); i++ {
		switch {
		case codes[i] == 2 && slot+4 <= 16:
			structure = append(structure, containerAt(link, "VC4-4", fmt.Sprintf("c%d", i), slot+1))
			for j := slot; j < slot+4; j++ {
				occupied[j] = true
			}
			slot += 4
		case codes[i] >= 1:
			structure = append(structure, containerAt(link, "VC4", fmt.Sprintf("c%d", i), slot+1))
			occupied[slot] = true
			slot++
		default:
			slot++
		}
	}
	return structure, occupied
}

func TestAllocationProperties(t *testing.T) {
	link := NewObjectRef("STM16", "tl-1", "Link1")
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	codes := gen.SliceOfN(16, gen.IntRange(0, 2))

	properties.Property("every slot of every container is marked", prop.ForAll(
		func(codes []int) bool {
			structure, occupied := layoutFromCodes(link, codes)
			positions, err := BuildAvailablePositions(link, structure)
			if err != nil || len(positions) != 16 {
				return false
			}
			for i := range positions {
				if positions[i].Free() == occupied[i] {
					return false
				}
			}
			return true
		},
		codes,
	))

	properties.Property("building twice yields the same map", prop.ForAll(
		func(codes []int) bool {
			structure, _ := layoutFromCodes(link, codes)
			a, errA := BuildAvailablePositions(link, structure)
			b, errB := BuildAvailablePositions(link, structure)
			return errA == nil && errB == nil && reflect.DeepEqual(a, b)
		},
		codes,
	))

	properties.Property("a selection is accepted iff its whole run is free and in range", prop.ForAll(
		func(codes []int, start, span int) bool {
			structure, occupied := layoutFromCodes(link, codes)
			positions, err := BuildAvailablePositions(link, structure)
			if err != nil {
				return false
			}
			before := append([]AvailablePosition(nil), positions...)

			fits := start >= 1 && start-1+span <= len(positions)
			if fits {
				for i := start - 1; i < start-1+span; i++ {
					if occupied[i] {
						fits = false
						break
					}
				}
			}
			err = ValidateSelection(positions, start, span)
			return (err == nil) == fits && reflect.DeepEqual(before, positions)
		},
		codes,
		gen.IntRange(0, 18),
		gen.IntRange(1, 5),
	))

	properties.Property("first fit is always a valid selection", prop.ForAll(
		func(codes []int, span int) bool {
			structure, _ := layoutFromCodes(link, codes)
			positions, err := BuildAvailablePositions(link, structure)
			if err != nil {
				return false
			}
			start, ok := FirstFit(positions, span)
			if !ok {
				return true
			}
			return ValidateSelection(positions, start, span) == nil
		},
		codes,
		gen.IntRange(1, 16),
	))

	properties.TestingRun(t)
}
