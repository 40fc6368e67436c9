package nbi

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/signalsfoundry/sdh-provisioner/core"
	"github.com/signalsfoundry/sdh-provisioner/internal/wizard"
	"github.com/signalsfoundry/sdh-provisioner/model"
)

var _ wizard.Backend = (*Client)(nil)

// Client calls a remote SdhService. Errors come back through
// FromStatusError, so callers match the same sentinels as in-process.
type Client struct {
	cc    grpc.ClientConnInterface
	close func() error
}

// Dial connects to target without transport security. opts are appended to
// the defaults and may override them.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	defaults := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithChainUnaryInterceptor(RequestIDUnaryClientInterceptor()),
	}
	conn, err := grpc.NewClient(target, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &Client{cc: conn, close: conn.Close}, nil
}

// NewClient wraps an existing connection. Close is then a no-op.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Close releases a connection opened by Dial.
func (c *Client) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	err := c.cc.Invoke(ctx, fullMethod(method), in, out, grpc.CallContentSubtype(codecName))
	return FromStatusError(err)
}

func (c *Client) IsSubclassOf(ctx context.Context, className, allegedParent string) (bool, error) {
	var out IsSubclassOfResponse
	err := c.invoke(ctx, "IsSubclassOf", &IsSubclassOfRequest{ClassName: className, AllegedParent: allegedParent}, &out)
	return out.Result, err
}

func (c *Client) SubClassesLight(ctx context.Context, parent string, includeAbstract, includeSelf bool) ([]model.ClassInfoLight, error) {
	var out SubClassesResponse
	in := &SubClassesRequest{Parent: parent, IncludeAbstract: includeAbstract, IncludeSelf: includeSelf}
	if err := c.invoke(ctx, "GetSubClassesLight", in, &out); err != nil {
		return nil, err
	}
	return out.Classes, nil
}

func (c *Client) FindSDHRoutesUsingTransportLinks(ctx context.Context, a, b core.ObjectRef) ([][]core.ObjectRef, error) {
	return c.findRoutes(ctx, a, b, core.TransportGraph)
}

func (c *Client) FindSDHRoutesUsingContainerLinks(ctx context.Context, a, b core.ObjectRef) ([][]core.ObjectRef, error) {
	return c.findRoutes(ctx, a, b, core.ContainerGraph)
}

func (c *Client) findRoutes(ctx context.Context, a, b core.ObjectRef, kind core.GraphKind) ([][]core.ObjectRef, error) {
	var out FindRoutesResponse
	if err := c.invoke(ctx, "FindRoutes", &FindRoutesRequest{A: a, B: b, Graph: kind.String()}, &out); err != nil {
		return nil, err
	}
	return out.Routes, nil
}

func (c *Client) GetSDHTransportLinkStructure(ctx context.Context, link core.ObjectRef) ([]core.SdhContainerLinkDefinition, error) {
	var out StructureResponse
	if err := c.invoke(ctx, "GetTransportLinkStructure", &LinkRequest{Link: link}, &out); err != nil {
		return nil, err
	}
	return out.Containers, nil
}

func (c *Client) GetSDHContainerLinkStructure(ctx context.Context, link core.ObjectRef) ([]core.SdhContainerLinkDefinition, error) {
	var out StructureResponse
	if err := c.invoke(ctx, "GetContainerLinkStructure", &LinkRequest{Link: link}, &out); err != nil {
		return nil, err
	}
	return out.Containers, nil
}

// AvailablePositions returns the allocation map of a transport or
// high-order container link as computed by the server.
func (c *Client) AvailablePositions(ctx context.Context, link core.ObjectRef) ([]core.AvailablePosition, error) {
	var out PositionsResponse
	if err := c.invoke(ctx, "GetAvailablePositions", &LinkRequest{Link: link}, &out); err != nil {
		return nil, err
	}
	return out.Positions, nil
}

func (c *Client) ParentEquipment(ctx context.Context, port core.ObjectRef) (core.ObjectRef, error) {
	var out ObjectResponse
	if err := c.invoke(ctx, "GetParentEquipment", &PortRequest{Port: port}, &out); err != nil {
		return core.ObjectRef{}, err
	}
	return out.Object, nil
}

func (c *Client) ListServices(ctx context.Context) ([]core.ObjectRef, error) {
	var out ObjectsResponse
	if err := c.invoke(ctx, "ListServices", &emptypb.Empty{}, &out); err != nil {
		return nil, err
	}
	return out.Objects, nil
}

func (c *Client) ListEquipment(ctx context.Context) ([]core.ObjectRef, error) {
	var out ObjectsResponse
	if err := c.invoke(ctx, "ListEquipment", &emptypb.Empty{}, &out); err != nil {
		return nil, err
	}
	return out.Objects, nil
}

func (c *Client) CreateSDHTransportLink(ctx context.Context, req model.TransportLinkRequest) (string, error) {
	var out CreateResponse
	if err := c.invoke(ctx, "CreateTransportLink", &req, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) CreateSDHContainerLink(ctx context.Context, req model.ContainerLinkRequest) (string, error) {
	var out CreateResponse
	if err := c.invoke(ctx, "CreateContainerLink", &req, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) CreateSDHTributaryLink(ctx context.Context, req model.TributaryLinkRequest) (model.TributaryLinkResult, error) {
	var out model.TributaryLinkResult
	if err := c.invoke(ctx, "CreateTributaryLink", &req, &out); err != nil {
		return model.TributaryLinkResult{}, err
	}
	return out, nil
}

func (c *Client) DeleteSDHTransportLink(ctx context.Context, link core.ObjectRef, force bool) error {
	return c.invoke(ctx, "DeleteTransportLink", &DeleteRequest{Link: link, Force: force}, &emptypb.Empty{})
}

func (c *Client) DeleteSDHContainerLink(ctx context.Context, link core.ObjectRef, force bool) error {
	return c.invoke(ctx, "DeleteContainerLink", &DeleteRequest{Link: link, Force: force}, &emptypb.Empty{})
}

func (c *Client) DeleteSDHTributaryLink(ctx context.Context, link core.ObjectRef) error {
	return c.invoke(ctx, "DeleteTributaryLink", &DeleteRequest{Link: link}, &emptypb.Empty{})
}
