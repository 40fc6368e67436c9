package wizard

import (
	"context"
	"errors"

	"github.com/signalsfoundry/sdh-provisioner/core"
	"github.com/signalsfoundry/sdh-provisioner/model"
)

var (
	// ErrValidation indicates user input was missing or rejected. The
	// wizard stays on the step and the input can be corrected.
	ErrValidation = errors.New("validation failed")
	// ErrLookup indicates a metadata or inventory query failed. The step
	// cannot be used until the backend is fixed.
	ErrLookup = errors.New("metadata lookup failed")
	// ErrCreationFailed indicates the backend rejected the final create
	// call. Nothing was created and the wizard stays on its last step.
	ErrCreationFailed = errors.New("link creation failed")
	// ErrFinished is returned when a completed or cancelled wizard is driven.
	ErrFinished = errors.New("wizard is finished")
)

// Backend is everything the wizards need from the inventory. It is
// implemented in-process by sdh.Service and over gRPC by nbi.Client.
type Backend interface {
	core.ClassMetadata
	core.RouteSource

	SubClassesLight(ctx context.Context, parent string, includeAbstract, includeSelf bool) ([]model.ClassInfoLight, error)
	GetSDHTransportLinkStructure(ctx context.Context, link core.ObjectRef) ([]core.SdhContainerLinkDefinition, error)
	GetSDHContainerLinkStructure(ctx context.Context, link core.ObjectRef) ([]core.SdhContainerLinkDefinition, error)
	ParentEquipment(ctx context.Context, port core.ObjectRef) (core.ObjectRef, error)
	ListServices(ctx context.Context) ([]core.ObjectRef, error)

	CreateSDHTransportLink(ctx context.Context, req model.TransportLinkRequest) (string, error)
	CreateSDHContainerLink(ctx context.Context, req model.ContainerLinkRequest) (string, error)
	CreateSDHTributaryLink(ctx context.Context, req model.TributaryLinkRequest) (model.TributaryLinkResult, error)
}

// Recorder receives wizard outcomes for metrics.
type Recorder interface {
	PositionRejected(reason string)
	WizardCommitted(kind string, ok bool)
}

type noopRecorder struct{}

func (noopRecorder) PositionRejected(string)      {}
func (noopRecorder) WizardCommitted(string, bool) {}
