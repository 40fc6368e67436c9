package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Capacities are expressed in VC12-equivalent units.
const (
	VC12Units = 1
	VC3Units  = 21
	VC4Units  = 63
)

// Upper bounds accepted when parsing class names. STM-256 and VC4-256 are the
// largest rates in use; anything past these is a malformed name.
const (
	MaxTransportLevel = 1024
	MaxConcatenation  = 256
)

var (
	ErrCapacityUnknown       = errors.New("capacity cannot be derived from class name")
	ErrIncompatibleContainer = errors.New("container does not fit the slot size of the link")
)

// ContainerType is the virtual container family of a container or
// tributary class.
type ContainerType int

const (
	ContainerUnknown ContainerType = iota
	ContainerVC12
	ContainerVC3
	ContainerVC4
)

func (t ContainerType) String() string {
	switch t {
	case ContainerVC12:
		return "VC12"
	case ContainerVC3:
		return "VC3"
	case ContainerVC4:
		return "VC4"
	default:
		return "unknown"
	}
}

// Units returns the size of a single, non-concatenated container.
func (t ContainerType) Units() int {
	switch t {
	case ContainerVC12:
		return VC12Units
	case ContainerVC3:
		return VC3Units
	case ContainerVC4:
		return VC4Units
	default:
		return 0
	}
}

// ContainerClass is a parsed container class name such as "VC4-16".
type ContainerClass struct {
	Type ContainerType
	// Concatenation is the number of concatenated containers, at least 1.
	Concatenation int
}

// Units returns the capacity of the (possibly concatenated) container.
func (c ContainerClass) Units() int { return c.Type.Units() * c.Concatenation }

func (c ContainerClass) String() string {
	if c.Concatenation == 1 {
		return c.Type.String()
	}
	return fmt.Sprintf("%s-%d", c.Type, c.Concatenation)
}

// ParseContainerClass parses VC4[-k], VC3[-k] and VC12[-k], with or without
// the TributaryLink suffix. A missing or zero k means 1.
func ParseContainerClass(className string) (ContainerClass, error) {
	name := ContainerClassOf(className)
	rest, ok := strings.CutPrefix(name, "VC")
	if !ok {
		return ContainerClass{}, fmt.Errorf("%w: %q is not a virtual container", ErrCapacityUnknown, className)
	}

	tokens := strings.Split(rest, "-")
	if len(tokens) > 2 {
		return ContainerClass{}, fmt.Errorf("%w: %q", ErrCapacityUnknown, className)
	}

	var cc ContainerClass
	switch tokens[0] {
	case "4":
		cc.Type = ContainerVC4
	case "3":
		cc.Type = ContainerVC3
	case "12":
		cc.Type = ContainerVC12
	default:
		return ContainerClass{}, fmt.Errorf("%w: unknown container type in %q", ErrCapacityUnknown, className)
	}

	cc.Concatenation = 1
	if len(tokens) == 2 {
		k, ok := parseCount(tokens[1], MaxConcatenation)
		if !ok {
			return ContainerClass{}, fmt.Errorf("%w: bad concatenation in %q", ErrCapacityUnknown, className)
		}
		if k > 0 {
			cc.Concatenation = k
		}
	}
	return cc, nil
}

// TransportLevel parses STM{n} and returns n.
func TransportLevel(className string) (int, error) {
	rest, ok := strings.CutPrefix(className, "STM")
	if !ok {
		return 0, fmt.Errorf("%w: %q is not a transport link", ErrCapacityUnknown, className)
	}
	n, ok := parseCount(strings.TrimPrefix(rest, "-"), MaxTransportLevel)
	if !ok || n == 0 {
		return 0, fmt.Errorf("%w: bad STM level in %q", ErrCapacityUnknown, className)
	}
	return n, nil
}

// parseCount reads an unsigned decimal no larger than limit. Signs, spaces
// and empty strings are rejected.
func parseCount(s string, limit int) (int, bool) {
	if s == "" || len(s) > len(strconv.Itoa(limit)) {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n > limit {
		return 0, false
	}
	return n, true
}

// IsTransportClass reports whether className has the STM{n} form.
func IsTransportClass(className string) bool {
	_, err := TransportLevel(className)
	return err == nil
}

// Capacity returns how many VC12-equivalent units a transport, container
// or tributary class carries. It never panics on malformed names.
func Capacity(className string) (int, error) {
	if strings.HasPrefix(className, "STM") {
		n, err := TransportLevel(className)
		if err != nil {
			return 0, err
		}
		return n * VC4Units, nil
	}
	cc, err := ParseContainerClass(className)
	if err != nil {
		return 0, err
	}
	return cc.Units(), nil
}

// SlotUnit returns the size of one allocation slot of a link: transport
// links are split in VC4 slots and high-order containers in VC12 slots.
func SlotUnit(linkClass string) (int, error) {
	if IsTransportClass(linkClass) {
		return VC4Units, nil
	}
	cc, err := ParseContainerClass(linkClass)
	if err != nil {
		return 0, err
	}
	if cc.Type != ContainerVC4 {
		return 0, fmt.Errorf("%w: %q does not carry other containers", ErrIncompatibleContainer, linkClass)
	}
	return VC12Units, nil
}

// SlotCount returns the number of timeslots in the allocation map of a link.
func SlotCount(linkClass string) (int, error) {
	unit, err := SlotUnit(linkClass)
	if err != nil {
		return 0, err
	}
	capacity, err := Capacity(linkClass)
	if err != nil {
		return 0, err
	}
	return capacity / unit, nil
}

// Span returns how many consecutive slots of linkClass a container of
// containerClass occupies.
func Span(containerClass, linkClass string) (int, error) {
	units, err := Capacity(containerClass)
	if err != nil {
		return 0, err
	}
	if IsTransportClass(containerClass) {
		return 0, fmt.Errorf("%w: %q is a transport link", ErrIncompatibleContainer, containerClass)
	}
	unit, err := SlotUnit(linkClass)
	if err != nil {
		return 0, err
	}
	if units%unit != 0 {
		return 0, fmt.Errorf("%w: %q in %q", ErrIncompatibleContainer, containerClass, linkClass)
	}
	return units / unit, nil
}
