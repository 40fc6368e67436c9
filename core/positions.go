package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPosition    = errors.New("invalid position")
	ErrNotEnoughPositions = errors.New("not enough positions to transport the concatenated container")
	ErrPositionInUse      = errors.New("one of the positions to be assigned is already in use")
	ErrCorruptStructure   = errors.New("link structure is inconsistent")
)

// AvailablePosition is one timeslot of a link's allocation map. Container
// is nil for a free slot.
type AvailablePosition struct {
	Position  int        `json:"position"`
	Container *ObjectRef `json:"container,omitempty"`
}

// Free reports whether no container occupies the slot.
func (p AvailablePosition) Free() bool { return p.Container == nil }

func (p AvailablePosition) String() string {
	if p.Container == nil {
		return fmt.Sprintf("%d - free", p.Position)
	}
	return fmt.Sprintf("%d - %s", p.Position, p.Container)
}

// BuildAvailablePositions expands the containers carried by link into one
// entry per timeslot. A container spanning k slots marks all k of them.
// Structures that cannot be laid out (unknown classes, runs past the end,
// overlapping containers) are rejected instead of being silently clipped.
func BuildAvailablePositions(link ObjectRef, structure []SdhContainerLinkDefinition) ([]AvailablePosition, error) {
	slots, err := SlotCount(link.ClassName)
	if err != nil {
		return nil, err
	}

	positions := make([]AvailablePosition, slots)
	for i := range positions {
		positions[i].Position = i + 1
	}

	for _, def := range structure {
		start, ok := def.PositionIn(link)
		if !ok {
			return nil, fmt.Errorf("%w: container %s has no position in %s", ErrCorruptStructure, def.Container, link)
		}
		span, err := Span(def.Container.ClassName, link.ClassName)
		if err != nil {
			return nil, fmt.Errorf("container %s: %w", def.Container, err)
		}
		if start < 1 || start-1+span > slots {
			return nil, fmt.Errorf("%w: container %s at %d (span %d) exceeds %d slots of %s",
				ErrCorruptStructure, def.Container, start, span, slots, link)
		}

		container := def.Container
		for i := start - 1; i < start-1+span; i++ {
			if positions[i].Container != nil {
				return nil, fmt.Errorf("%w: slot %d of %s used by %s and %s",
					ErrCorruptStructure, i+1, link, positions[i].Container, container)
			}
			positions[i].Container = &container
		}
	}
	return positions, nil
}

// ValidateSelection checks that a container spanning span slots can start
// at the 1-based position start. positions is never modified.
func ValidateSelection(positions []AvailablePosition, start, span int) error {
	if start < 1 || span < 1 {
		return fmt.Errorf("%w: start %d, span %d", ErrInvalidPosition, start, span)
	}
	if start-1+span > len(positions) {
		return fmt.Errorf("%w: %d slots from %d, link has %d", ErrNotEnoughPositions, span, start, len(positions))
	}
	for i := start - 1; i < start-1+span; i++ {
		if !positions[i].Free() {
			return fmt.Errorf("%w: slot %d is used by %s", ErrPositionInUse, i+1, positions[i].Container)
		}
	}
	return nil
}

// FirstFit returns the lowest start position that passes ValidateSelection.
func FirstFit(positions []AvailablePosition, span int) (int, bool) {
	if span < 1 {
		return 0, false
	}
	run := 0
	for i, p := range positions {
		if !p.Free() {
			run = 0
			continue
		}
		run++
		if run == span {
			return i - span + 2, true
		}
	}
	return 0, false
}

// FreeCount returns the number of unoccupied slots.
func FreeCount(positions []AvailablePosition) int {
	n := 0
	for _, p := range positions {
		if p.Free() {
			n++
		}
	}
	return n
}

// RejectionReason classifies an allocation error into a short label for
// metrics and logs.
func RejectionReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPositionInUse):
		return "in_use"
	case errors.Is(err, ErrNotEnoughPositions):
		return "not_enough_positions"
	case errors.Is(err, ErrInvalidPosition):
		return "invalid_position"
	case errors.Is(err, ErrCapacityUnknown):
		return "capacity_unknown"
	case errors.Is(err, ErrIncompatibleContainer):
		return "incompatible_container"
	case errors.Is(err, ErrCorruptStructure):
		return "corrupt_structure"
	default:
		return "other"
	}
}
