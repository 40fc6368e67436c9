// Package nbi exposes the SDH backend over gRPC. Messages are plain Go
// structs carried by a JSON codec, so the service descriptor is written by
// hand instead of generated.
package nbi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/signalsfoundry/sdh-provisioner/core"
	"github.com/signalsfoundry/sdh-provisioner/internal/logging"
	"github.com/signalsfoundry/sdh-provisioner/internal/sdh"
	"github.com/signalsfoundry/sdh-provisioner/model"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "sdh.v1.SdhService"

// SdhServiceServer is the server API of ServiceName.
type SdhServiceServer interface {
	IsSubclassOf(context.Context, *IsSubclassOfRequest) (*IsSubclassOfResponse, error)
	GetSubClassesLight(context.Context, *SubClassesRequest) (*SubClassesResponse, error)
	FindRoutes(context.Context, *FindRoutesRequest) (*FindRoutesResponse, error)
	GetTransportLinkStructure(context.Context, *LinkRequest) (*StructureResponse, error)
	GetContainerLinkStructure(context.Context, *LinkRequest) (*StructureResponse, error)
	GetAvailablePositions(context.Context, *LinkRequest) (*PositionsResponse, error)
	GetParentEquipment(context.Context, *PortRequest) (*ObjectResponse, error)
	ListServices(context.Context, *emptypb.Empty) (*ObjectsResponse, error)
	ListEquipment(context.Context, *emptypb.Empty) (*ObjectsResponse, error)
	CreateTransportLink(context.Context, *model.TransportLinkRequest) (*CreateResponse, error)
	CreateContainerLink(context.Context, *model.ContainerLinkRequest) (*CreateResponse, error)
	CreateTributaryLink(context.Context, *model.TributaryLinkRequest) (*model.TributaryLinkResult, error)
	DeleteTransportLink(context.Context, *DeleteRequest) (*emptypb.Empty, error)
	DeleteContainerLink(context.Context, *DeleteRequest) (*emptypb.Empty, error)
	DeleteTributaryLink(context.Context, *DeleteRequest) (*emptypb.Empty, error)
}

// ServiceDesc describes ServiceName for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SdhServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("IsSubclassOf", SdhServiceServer.IsSubclassOf),
		unary("GetSubClassesLight", SdhServiceServer.GetSubClassesLight),
		unary("FindRoutes", SdhServiceServer.FindRoutes),
		unary("GetTransportLinkStructure", SdhServiceServer.GetTransportLinkStructure),
		unary("GetContainerLinkStructure", SdhServiceServer.GetContainerLinkStructure),
		unary("GetAvailablePositions", SdhServiceServer.GetAvailablePositions),
		unary("GetParentEquipment", SdhServiceServer.GetParentEquipment),
		unary("ListServices", SdhServiceServer.ListServices),
		unary("ListEquipment", SdhServiceServer.ListEquipment),
		unary("CreateTransportLink", SdhServiceServer.CreateTransportLink),
		unary("CreateContainerLink", SdhServiceServer.CreateContainerLink),
		unary("CreateTributaryLink", SdhServiceServer.CreateTributaryLink),
		unary("DeleteTransportLink", SdhServiceServer.DeleteTransportLink),
		unary("DeleteContainerLink", SdhServiceServer.DeleteContainerLink),
		unary("DeleteTributaryLink", SdhServiceServer.DeleteTributaryLink),
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterSdhServiceServer registers srv on s.
func RegisterSdhServiceServer(s grpc.ServiceRegistrar, srv SdhServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// unary builds the method descriptor for one RPC: decode, run the
// interceptor chain, then call the typed handler.
func unary[Req, Resp any](method string, call func(SdhServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			server := srv.(SdhServiceServer)
			handler := func(ctx context.Context, req any) (any, error) {
				resp, err := call(server, ctx, req.(*Req))
				if err != nil {
					return nil, err
				}
				return resp, nil
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Server implements SdhServiceServer on top of an in-process sdh.Service.
type Server struct {
	svc *sdh.Service
	log logging.Logger
}

// NewServer constructs a Server bound to svc.
func NewServer(svc *sdh.Service, log logging.Logger) *Server {
	if log == nil {
		log = logging.Noop()
	}
	return &Server{svc: svc, log: log}
}

// handle validates req, runs fn and maps its error. Failures are logged on
// the request logger installed by RequestIDUnaryServerInterceptor.
func handle[Resp any](ctx context.Context, s *Server, op string, req any, fn func(context.Context) (*Resp, error)) (*Resp, error) {
	reqLog := logging.FromContext(ctx, s.log).With(logging.String("operation", op))
	if err := ValidateRequest(req); err != nil {
		reqLog.Debug(ctx, "request validation failed", logging.String("reason", err.Error()))
		return nil, ToStatusError(err)
	}
	resp, err := fn(ctx)
	if err != nil {
		reqLog.Warn(ctx, op+" failed", logging.Err(err))
		return nil, ToStatusError(err)
	}
	return resp, nil
}

func (s *Server) IsSubclassOf(ctx context.Context, in *IsSubclassOfRequest) (*IsSubclassOfResponse, error) {
	return handle(ctx, s, "IsSubclassOf", in, func(ctx context.Context) (*IsSubclassOfResponse, error) {
		ok, err := s.svc.IsSubclassOf(ctx, in.ClassName, in.AllegedParent)
		if err != nil {
			return nil, err
		}
		return &IsSubclassOfResponse{Result: ok}, nil
	})
}

func (s *Server) GetSubClassesLight(ctx context.Context, in *SubClassesRequest) (*SubClassesResponse, error) {
	return handle(ctx, s, "GetSubClassesLight", in, func(ctx context.Context) (*SubClassesResponse, error) {
		classes, err := s.svc.SubClassesLight(ctx, in.Parent, in.IncludeAbstract, in.IncludeSelf)
		if err != nil {
			return nil, err
		}
		return &SubClassesResponse{Classes: classes}, nil
	})
}

// FindRoutes returns raw routes; labelling and hop extraction happen on
// the client with core.RouteFinder.
func (s *Server) FindRoutes(ctx context.Context, in *FindRoutesRequest) (*FindRoutesResponse, error) {
	return handle(ctx, s, "FindRoutes", in, func(ctx context.Context) (*FindRoutesResponse, error) {
		kind, err := core.ParseGraphKind(in.Graph)
		if err != nil {
			return nil, err
		}
		var routes [][]core.ObjectRef
		if kind == core.ContainerGraph {
			routes, err = s.svc.FindSDHRoutesUsingContainerLinks(ctx, in.A, in.B)
		} else {
			routes, err = s.svc.FindSDHRoutesUsingTransportLinks(ctx, in.A, in.B)
		}
		if err != nil {
			return nil, err
		}
		return &FindRoutesResponse{Routes: routes}, nil
	})
}

func (s *Server) GetTransportLinkStructure(ctx context.Context, in *LinkRequest) (*StructureResponse, error) {
	return handle(ctx, s, "GetTransportLinkStructure", in, func(ctx context.Context) (*StructureResponse, error) {
		defs, err := s.svc.GetSDHTransportLinkStructure(ctx, in.Link)
		if err != nil {
			return nil, err
		}
		return &StructureResponse{Containers: defs}, nil
	})
}

func (s *Server) GetContainerLinkStructure(ctx context.Context, in *LinkRequest) (*StructureResponse, error) {
	return handle(ctx, s, "GetContainerLinkStructure", in, func(ctx context.Context) (*StructureResponse, error) {
		defs, err := s.svc.GetSDHContainerLinkStructure(ctx, in.Link)
		if err != nil {
			return nil, err
		}
		return &StructureResponse{Containers: defs}, nil
	})
}

func (s *Server) GetAvailablePositions(ctx context.Context, in *LinkRequest) (*PositionsResponse, error) {
	return handle(ctx, s, "GetAvailablePositions", in, func(ctx context.Context) (*PositionsResponse, error) {
		positions, err := s.svc.AvailablePositions(ctx, in.Link)
		if err != nil {
			return nil, err
		}
		return &PositionsResponse{Positions: positions}, nil
	})
}

func (s *Server) GetParentEquipment(ctx context.Context, in *PortRequest) (*ObjectResponse, error) {
	return handle(ctx, s, "GetParentEquipment", in, func(ctx context.Context) (*ObjectResponse, error) {
		parent, err := s.svc.ParentEquipment(ctx, in.Port)
		if err != nil {
			return nil, err
		}
		return &ObjectResponse{Object: parent}, nil
	})
}

func (s *Server) ListServices(ctx context.Context, _ *emptypb.Empty) (*ObjectsResponse, error) {
	objs, err := s.svc.ListServices(ctx)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return &ObjectsResponse{Objects: objs}, nil
}

func (s *Server) ListEquipment(ctx context.Context, _ *emptypb.Empty) (*ObjectsResponse, error) {
	objs, err := s.svc.ListEquipment(ctx)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return &ObjectsResponse{Objects: objs}, nil
}

func (s *Server) CreateTransportLink(ctx context.Context, in *model.TransportLinkRequest) (*CreateResponse, error) {
	return handle(ctx, s, "CreateTransportLink", in, func(ctx context.Context) (*CreateResponse, error) {
		id, err := s.svc.CreateSDHTransportLink(ctx, *in)
		if err != nil {
			return nil, err
		}
		return &CreateResponse{ID: id}, nil
	})
}

func (s *Server) CreateContainerLink(ctx context.Context, in *model.ContainerLinkRequest) (*CreateResponse, error) {
	return handle(ctx, s, "CreateContainerLink", in, func(ctx context.Context) (*CreateResponse, error) {
		id, err := s.svc.CreateSDHContainerLink(ctx, *in)
		if err != nil {
			return nil, err
		}
		return &CreateResponse{ID: id}, nil
	})
}

func (s *Server) CreateTributaryLink(ctx context.Context, in *model.TributaryLinkRequest) (*model.TributaryLinkResult, error) {
	return handle(ctx, s, "CreateTributaryLink", in, func(ctx context.Context) (*model.TributaryLinkResult, error) {
		res, err := s.svc.CreateSDHTributaryLink(ctx, *in)
		if err != nil {
			return nil, err
		}
		return &res, nil
	})
}

func (s *Server) DeleteTransportLink(ctx context.Context, in *DeleteRequest) (*emptypb.Empty, error) {
	return handle(ctx, s, "DeleteTransportLink", in, func(ctx context.Context) (*emptypb.Empty, error) {
		return &emptypb.Empty{}, s.svc.DeleteSDHTransportLink(ctx, in.Link, in.Force)
	})
}

func (s *Server) DeleteContainerLink(ctx context.Context, in *DeleteRequest) (*emptypb.Empty, error) {
	return handle(ctx, s, "DeleteContainerLink", in, func(ctx context.Context) (*emptypb.Empty, error) {
		return &emptypb.Empty{}, s.svc.DeleteSDHContainerLink(ctx, in.Link, in.Force)
	})
}

func (s *Server) DeleteTributaryLink(ctx context.Context, in *DeleteRequest) (*emptypb.Empty, error) {
	return handle(ctx, s, "DeleteTributaryLink", in, func(ctx context.Context) (*emptypb.Empty, error) {
		return &emptypb.Empty{}, s.svc.DeleteSDHTributaryLink(ctx, in.Link)
	})
}
