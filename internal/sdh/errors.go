package sdh

import (
	"errors"

	"github.com/signalsfoundry/sdh-provisioner/internal/inventory"
)

var (
	// ErrNotSubclass indicates an object or class is not of the kind an
	// operation requires.
	ErrNotSubclass = errors.New("class is not of the required kind")
	// ErrInvalidRequest indicates a request failed validation.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrPortInUse indicates a port already terminates a link of the same layer.
	ErrPortInUse = errors.New("port is already an endpoint of another link")
	// ErrNoParentEquipment indicates a port is not inside communications equipment.
	ErrNoParentEquipment = errors.New("port is not located in communications equipment")
	// ErrMetadata indicates stored SDH relationships are inconsistent.
	ErrMetadata = errors.New("inconsistent SDH metadata")
	// ErrLinkInUse indicates a link still carries containers and force was
	// not set, or a container already delivers a tributary and cannot be
	// structured.
	ErrLinkInUse = errors.New("link still carries other links")

	// ErrNotFound is re-exported so callers can depend on sdh.* only.
	ErrNotFound = inventory.ErrObjectNotFound
)

// Relationship names of the SDH model.
const (
	RelTransportLinkEndpointA = "sdhTLEndpointA"
	RelTransportLinkEndpointB = "sdhTLEndpointB"
	RelTransportLink          = "sdhTransportLink"
	RelContainerLink          = "sdhContainerLink"
	RelTributaryEndpointA     = "sdhTTLEndpointA"
	RelTributaryEndpointB     = "sdhTTLEndpointB"
	RelTransports             = "sdhTransports"
	RelContains               = "sdhContains"
	RelDelivers               = "sdhDelivers"
	RelUses                   = "uses"

	// PropertyPosition holds the 1-based first slot a container uses in a link.
	PropertyPosition = "sdhPosition"
)
