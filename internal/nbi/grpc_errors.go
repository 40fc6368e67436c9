package nbi

import (
	"context"
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/sdh-provisioner/core"
	"github.com/signalsfoundry/sdh-provisioner/internal/inventory"
	"github.com/signalsfoundry/sdh-provisioner/internal/sdh"
)

// errorDomain tags the ErrorInfo detail attached to every mapped status.
const errorDomain = "sdh.signalsfoundry.io"

// errorMapping pairs a sentinel with its wire reason and status code. The
// order matters: errors wrapping several sentinels take the first match, so
// allocation failures come before the generic inventory errors.
var errorMapping = []struct {
	reason string
	code   codes.Code
	err    error
}{
	{"INVALID_POSITION", codes.InvalidArgument, core.ErrInvalidPosition},
	{"NOT_ENOUGH_POSITIONS", codes.InvalidArgument, core.ErrNotEnoughPositions},
	{"POSITION_IN_USE", codes.FailedPrecondition, core.ErrPositionInUse},
	{"CORRUPT_STRUCTURE", codes.FailedPrecondition, core.ErrCorruptStructure},
	{"CAPACITY_UNKNOWN", codes.InvalidArgument, core.ErrCapacityUnknown},
	{"INCOMPATIBLE_CONTAINER", codes.InvalidArgument, core.ErrIncompatibleContainer},
	{"SAME_ENDPOINTS", codes.InvalidArgument, core.ErrSameEndpoints},
	{"PORT_IN_USE", codes.FailedPrecondition, sdh.ErrPortInUse},
	{"LINK_IN_USE", codes.FailedPrecondition, sdh.ErrLinkInUse},
	{"NOT_SUBCLASS", codes.FailedPrecondition, sdh.ErrNotSubclass},
	{"NO_PARENT_EQUIPMENT", codes.FailedPrecondition, sdh.ErrNoParentEquipment},
	{"INCONSISTENT_METADATA", codes.FailedPrecondition, sdh.ErrMetadata},
	{"INVALID_REQUEST", codes.InvalidArgument, sdh.ErrInvalidRequest},
	{"NOT_FOUND", codes.NotFound, inventory.ErrObjectNotFound},
	{"RELATIONSHIP_NOT_FOUND", codes.NotFound, inventory.ErrRelationshipNotFound},
	{"CLASS_NOT_FOUND", codes.NotFound, inventory.ErrClassNotFound},
	{"ALREADY_EXISTS", codes.AlreadyExists, inventory.ErrObjectExists},
	{"RELATIONSHIP_EXISTS", codes.AlreadyExists, inventory.ErrRelationshipExists},
	{"INVALID_OBJECT", codes.InvalidArgument, inventory.ErrObjectInvalid},
	{"OBJECT_IN_USE", codes.FailedPrecondition, inventory.ErrObjectInUse},
}

// ToStatusError maps SDH and inventory errors onto gRPC status codes. The
// matched sentinel travels as an ErrorInfo reason so FromStatusError can
// restore it on the client.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	for _, m := range errorMapping {
		if !errors.Is(err, m.err) {
			continue
		}
		st := status.New(m.code, err.Error())
		detailed, derr := st.WithDetails(&errdetails.ErrorInfo{Reason: m.reason, Domain: errorDomain})
		if derr != nil {
			return st.Err()
		}
		return detailed.Err()
	}
	return status.Error(codes.Internal, err.Error())
}

// remoteError keeps the server's message and status while unwrapping to the
// local sentinel.
type remoteError struct {
	status   *status.Status
	sentinel error
}

func (e *remoteError) Error() string              { return e.status.Message() }
func (e *remoteError) Unwrap() error              { return e.sentinel }
func (e *remoteError) GRPCStatus() *status.Status { return e.status }

// FromStatusError is the client-side inverse of ToStatusError: errors.Is
// works against the same sentinels as in-process calls.
func FromStatusError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != errorDomain {
			continue
		}
		for _, m := range errorMapping {
			if m.reason == info.GetReason() {
				return &remoteError{status: st, sentinel: m.err}
			}
		}
	}

	switch st.Code() {
	case codes.NotFound:
		return &remoteError{status: st, sentinel: inventory.ErrObjectNotFound}
	case codes.InvalidArgument:
		return &remoteError{status: st, sentinel: sdh.ErrInvalidRequest}
	case codes.AlreadyExists:
		return &remoteError{status: st, sentinel: inventory.ErrObjectExists}
	case codes.Canceled:
		return &remoteError{status: st, sentinel: context.Canceled}
	case codes.DeadlineExceeded:
		return &remoteError{status: st, sentinel: context.DeadlineExceeded}
	}
	return err
}
