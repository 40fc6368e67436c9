package nbi

import (
	"context"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/signalsfoundry/sdh-provisioner/core"
	"github.com/signalsfoundry/sdh-provisioner/internal/inventory"
	"github.com/signalsfoundry/sdh-provisioner/internal/logging"
	"github.com/signalsfoundry/sdh-provisioner/internal/sdh"
	"github.com/signalsfoundry/sdh-provisioner/internal/wizard"
	"github.com/signalsfoundry/sdh-provisioner/kb"
	"github.com/signalsfoundry/sdh-provisioner/model"
)

// testServer runs the SDH service on an in-memory listener. Two ADMs "a"
// and "b" have four optical ports each.
type testServer struct {
	client *Client
	svc    *sdh.Service
	seen   chan string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	state := inventory.NewState(kb.NewSDHKnowledgeBase(), nil)
	seed := &inventory.Seed{
		Services: []inventory.SeedObject{{Class: core.ClassGenericSDHService, ID: "svc-1", Name: "Backhaul"}},
	}
	for _, name := range []string{"a", "b"} {
		obj := inventory.SeedObject{Class: "ADM", ID: "adm-" + name, Name: "ADM-" + name}
		for p := 1; p <= 4; p++ {
			obj.Children = append(obj.Children, inventory.SeedObject{
				Class: "OpticalPort",
				ID:    fmt.Sprintf("adm-%s-p%d", name, p),
			})
		}
		seed.Objects = append(seed.Objects, obj)
	}
	_, err := state.ApplySeed(context.Background(), seed)
	require.NoError(t, err)

	ts := &testServer{
		svc:  sdh.NewService(state, nil),
		seen: make(chan string, 16),
	}
	capture := func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		select {
		case ts.seen <- logging.RequestIDFromContext(ctx):
		default:
		}
		return handler(ctx, req)
	}

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		RequestIDUnaryServerInterceptor(nil),
		TracingUnaryServerInterceptor(),
		capture,
	))
	RegisterSdhServiceServer(srv, NewServer(ts.svc, nil))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	client, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	ts.client = client
	return ts
}

func port(equipment string, n int) core.ObjectRef {
	return core.NewObjectRef("OpticalPort", fmt.Sprintf("adm-%s-p%d", equipment, n), "")
}

var (
	admA = core.NewObjectRef("ADM", "adm-a", "ADM-a")
	admB = core.NewObjectRef("ADM", "adm-b", "ADM-b")
)

func (ts *testServer) transportLink(t *testing.T, class string, n int) core.ObjectRef {
	t.Helper()
	name := fmt.Sprintf("%s-%d", class, n)
	id, err := ts.client.CreateSDHTransportLink(context.Background(), model.TransportLinkRequest{
		PortA: port("a", n), PortB: port("b", n), ClassName: class, Name: name,
	})
	require.NoError(t, err)
	return core.NewObjectRef(class, id, name)
}

func TestContainerWizardOverGRPC(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	stm4 := ts.transportLink(t, "STM4", 1)

	w, err := wizard.NewContainerLinkWizard(ctx, ts.client, admA, admB)
	require.NoError(t, err)

	info := w.Current().(*wizard.GeneralInfoStep)
	info.SetName("vc4-remote")
	require.NoError(t, info.SetClass("VC4"))
	require.NoError(t, w.Next(ctx))

	route := w.Current().(*wizard.ChooseRouteStep)
	require.Len(t, route.Routes(), 1)
	require.NoError(t, w.Next(ctx))

	positions := w.Current().(*wizard.ChoosePositionsStep)
	require.NoError(t, positions.AutoSelect())
	require.NoError(t, w.Next(ctx))

	res, ok := w.Result()
	require.True(t, ok)
	assert.Equal(t, "VC4", res.Link.ClassName)

	structure, err := ts.client.GetSDHTransportLinkStructure(ctx, stm4)
	require.NoError(t, err)
	require.Len(t, structure, 1)
	assert.Equal(t, res.Link.ID, structure[0].Container.ID)

	available, err := ts.client.AvailablePositions(ctx, stm4)
	require.NoError(t, err)
	require.Len(t, available, 4)
	assert.False(t, available[0].Free())
	assert.True(t, available[1].Free())
}

func TestTributaryWizardOverGRPC(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	ts.transportLink(t, "STM1", 1)

	w, err := wizard.NewTributaryLinkWizard(ctx, ts.client, admA, admB)
	require.NoError(t, err)

	info := w.Current().(*wizard.GeneralInfoStep)
	info.SetName("trib-1")
	require.NoError(t, info.SetClass("VC4TributaryLink"))
	require.NoError(t, w.Next(ctx))
	require.NoError(t, w.Next(ctx))
	require.NoError(t, w.Current().(*wizard.ChoosePositionsStep).AutoSelect())
	require.NoError(t, w.Next(ctx))

	w.Current().(*wizard.SelectEndpointsStep).SetEndpoints(port("a", 2), port("b", 2))
	require.NoError(t, w.Next(ctx))

	svcStep := w.Current().(*wizard.SelectServiceStep)
	require.Len(t, svcStep.Services(), 1)
	require.NoError(t, svcStep.SelectService(0))
	require.NoError(t, w.Next(ctx))

	res, ok := w.Result()
	require.True(t, ok)
	require.NotNil(t, res.Container)
	assert.Equal(t, "VC4", res.Container.ClassName)
	assert.Equal(t, "VC4TributaryLink", res.Link.ClassName)
}

func TestErrorsKeepTheirSentinels(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	stm1 := ts.transportLink(t, "STM1", 1)

	req := model.ContainerLinkRequest{
		EquipmentA: admA,
		EquipmentB: admB,
		ClassName:  "VC4",
		Name:       "first",
		Positions:  []core.SdhPosition{{LinkClass: stm1.ClassName, LinkID: stm1.ID, Position: 1}},
	}
	_, err := ts.client.CreateSDHContainerLink(ctx, req)
	require.NoError(t, err)

	req.Name = "second"
	_, err = ts.client.CreateSDHContainerLink(ctx, req)
	assert.ErrorIs(t, err, core.ErrPositionInUse)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	req.Positions[0].Position = 2
	_, err = ts.client.CreateSDHContainerLink(ctx, req)
	assert.ErrorIs(t, err, core.ErrInvalidPosition)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = ts.client.ParentEquipment(ctx, port("a", 9))
	assert.ErrorIs(t, err, sdh.ErrNotFound)
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = ts.client.CreateSDHTransportLink(ctx, model.TransportLinkRequest{
		PortA: port("a", 1), PortB: port("b", 2), ClassName: "STM1", Name: "dup",
	})
	assert.ErrorIs(t, err, sdh.ErrPortInUse)
}

func TestRequestValidation(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	_, err := ts.client.CreateSDHTransportLink(ctx, model.TransportLinkRequest{})
	assert.ErrorIs(t, err, sdh.ErrInvalidRequest)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Contains(t, err.Error(), "PortA")

	_, err = ts.client.CreateSDHContainerLink(ctx, model.ContainerLinkRequest{
		EquipmentA: admA, EquipmentB: admB, ClassName: "VC4", Name: "no-positions",
	})
	assert.ErrorIs(t, err, sdh.ErrInvalidRequest)
}

func TestDeleteOverGRPC(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	stm1 := ts.transportLink(t, "STM1", 1)

	_, err := ts.client.CreateSDHContainerLink(ctx, model.ContainerLinkRequest{
		EquipmentA: admA,
		EquipmentB: admB,
		ClassName:  "VC4",
		Name:       "vc4",
		Positions:  []core.SdhPosition{{LinkClass: stm1.ClassName, LinkID: stm1.ID, Position: 1}},
	})
	require.NoError(t, err)

	err = ts.client.DeleteSDHTransportLink(ctx, stm1, false)
	assert.ErrorIs(t, err, sdh.ErrLinkInUse)

	require.NoError(t, ts.client.DeleteSDHTransportLink(ctx, stm1, true))
	_, err = ts.client.GetSDHTransportLinkStructure(ctx, stm1)
	assert.ErrorIs(t, err, sdh.ErrNotFound)
	assert.Zero(t, ts.svc.State().Counts().ContainerLinks)
}

func TestMetadataQueries(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	ok, err := ts.client.IsSubclassOf(ctx, "STM16", core.ClassGenericSDHTransportLink)
	require.NoError(t, err)
	assert.True(t, ok)

	classes, err := ts.client.SubClassesLight(ctx, core.ClassGenericSDHContainerLink, false, false)
	require.NoError(t, err)
	assert.NotEmpty(t, classes)

	_, err = ts.client.IsSubclassOf(ctx, "Toaster", core.ClassGenericSDHTransportLink)
	require.ErrorIs(t, err, kb.ErrClassNotFound)
	assert.Equal(t, codes.NotFound, status.Code(err))
	_, err = ts.client.SubClassesLight(ctx, "Toaster", false, false)
	require.ErrorIs(t, err, kb.ErrClassNotFound)

	parent, err := ts.client.ParentEquipment(ctx, port("b", 3))
	require.NoError(t, err)
	assert.Equal(t, admB.Key(), parent.Key())

	equipment, err := ts.client.ListEquipment(ctx)
	require.NoError(t, err)
	assert.Len(t, equipment, 2)
}

func TestRequestIDReachesServer(t *testing.T) {
	ts := newTestServer(t)
	ctx := logging.ContextWithRequestID(context.Background(), "req-42")

	_, err := ts.client.ListServices(ctx)
	require.NoError(t, err)
	assert.Equal(t, "req-42", <-ts.seen)

	_, err = ts.client.ListServices(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, <-ts.seen, "client generates an id when none is set")
}
