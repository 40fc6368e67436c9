package nbi

import (
	"github.com/signalsfoundry/sdh-provisioner/core"
	"github.com/signalsfoundry/sdh-provisioner/model"
)

// Request and response messages of the SDH service. Creation requests
// reuse the model types directly.

type IsSubclassOfRequest struct {
	ClassName     string `json:"className" validate:"required"`
	AllegedParent string `json:"allegedParent" validate:"required"`
}

type IsSubclassOfResponse struct {
	Result bool `json:"result"`
}

type SubClassesRequest struct {
	Parent          string `json:"parent" validate:"required"`
	IncludeAbstract bool   `json:"includeAbstract,omitempty"`
	IncludeSelf     bool   `json:"includeSelf,omitempty"`
}

type SubClassesResponse struct {
	Classes []model.ClassInfoLight `json:"classes"`
}

// FindRoutesRequest searches routes between two equipment over the links of
// Graph, "transport" or "container".
type FindRoutesRequest struct {
	A     core.ObjectRef `json:"a" validate:"required"`
	B     core.ObjectRef `json:"b" validate:"required"`
	Graph string         `json:"graph" validate:"required,oneof=transport container"`
}

type FindRoutesResponse struct {
	Routes [][]core.ObjectRef `json:"routes"`
}

// LinkRequest names a single link.
type LinkRequest struct {
	Link core.ObjectRef `json:"link" validate:"required"`
}

type StructureResponse struct {
	Containers []core.SdhContainerLinkDefinition `json:"containers"`
}

type PositionsResponse struct {
	Positions []core.AvailablePosition `json:"positions"`
}

type PortRequest struct {
	Port core.ObjectRef `json:"port" validate:"required"`
}

type ObjectResponse struct {
	Object core.ObjectRef `json:"object"`
}

type ObjectsResponse struct {
	Objects []core.ObjectRef `json:"objects"`
}

type CreateResponse struct {
	ID string `json:"id"`
}

// DeleteRequest removes a link. Force cascades to the containers it carries;
// tributary deletes ignore it.
type DeleteRequest struct {
	Link  core.ObjectRef `json:"link" validate:"required"`
	Force bool           `json:"force,omitempty"`
}
