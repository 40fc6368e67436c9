package model

import "github.com/signalsfoundry/sdh-provisioner/core"

// TransportLinkRequest creates an STM link between two ports.
type TransportLinkRequest struct {
	// ID is optional; a random one is assigned when empty.
	ID        string         `json:"id,omitempty"`
	PortA     core.ObjectRef `json:"portA" validate:"required"`
	PortB     core.ObjectRef `json:"portB" validate:"required"`
	ClassName string         `json:"className" validate:"required"`
	Name      string         `json:"name" validate:"required"`
}

// ContainerLinkRequest creates a container link between two equipment,
// carried by the given positions of the route's links.
type ContainerLinkRequest struct {
	EquipmentA core.ObjectRef     `json:"equipmentA" validate:"required"`
	EquipmentB core.ObjectRef     `json:"equipmentB" validate:"required"`
	ClassName  string             `json:"className" validate:"required"`
	Name       string             `json:"name" validate:"required"`
	Positions  []core.SdhPosition `json:"positions" validate:"required,min=1,dive"`
}

// TributaryLinkRequest creates a tributary link between two ports plus the
// container that delivers it.
type TributaryLinkRequest struct {
	PortA     core.ObjectRef     `json:"portA" validate:"required"`
	PortB     core.ObjectRef     `json:"portB" validate:"required"`
	ClassName string             `json:"className" validate:"required"`
	Name      string             `json:"name" validate:"required"`
	Positions []core.SdhPosition `json:"positions" validate:"required,min=1,dive"`
	// Service is optional; the tributary link is related to it when set.
	Service *core.ObjectRef `json:"service,omitempty" validate:"omitempty"`
}

// TributaryLinkResult names both objects a tributary creation produces.
type TributaryLinkResult struct {
	TributaryLink core.ObjectRef `json:"tributaryLink"`
	Container     core.ObjectRef `json:"container"`
}
