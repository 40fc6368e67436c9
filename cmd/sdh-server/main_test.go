package main

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/signalsfoundry/sdh-provisioner/core"
	"github.com/signalsfoundry/sdh-provisioner/internal/config"
	"github.com/signalsfoundry/sdh-provisioner/internal/logging"
	"github.com/signalsfoundry/sdh-provisioner/internal/nbi"
)

const testSeed = `
objects:
  - class: ADM
    id: adm-a
    name: ADM-A
    children:
      - {class: OpticalPort, id: adm-a-p1, name: A-1}
      - {class: OpticalPort, id: adm-a-p2, name: A-2}
  - class: ADM
    id: adm-b
    name: ADM-B
    children:
      - {class: OpticalPort, id: adm-b-p1, name: B-1}
      - {class: OpticalPort, id: adm-b-p2, name: B-2}
services:
  - {class: GenericSDHService, id: svc-1, name: Backhaul}
transport_links:
  - id: stm-ab
    name: A-B
    class: STM4
    port_a: OpticalPort:adm-a-p1
    port_b: OpticalPort:adm-b-p1
`

// startServer runs the server on a loopback port and returns a client and
// a function that stops the server and waits for run to return.
func startServer(t *testing.T, cfg config.Config) (*nbi.Client, func()) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	cfg.Server.GRPCAddr = lis.Addr().String()
	cfg.Server.MetricsAddr = ""

	ctx, cancel := context.WithCancel(context.Background())
	log := logging.New(logging.Config{Level: "warn", Format: "text"})

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, cfg, log, lis)
	}()

	client, err := nbi.Dial(cfg.Server.GRPCAddr)
	if err != nil {
		cancel()
		t.Fatalf("nbi.Dial: %v", err)
	}

	return client, func() {
		_ = client.Close()
		cancel()
		select {
		case err := <-errCh:
			if err != nil {
				t.Fatalf("server returned error: %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Fatalf("server did not stop")
		}
	}
}

func TestSDHServerStartupSmoke(t *testing.T) {
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "seed.yaml")
	if err := os.WriteFile(seedPath, []byte(testSeed), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	cfg := config.Default()
	cfg.Store.Path = filepath.Join(dir, "inventory.db")
	cfg.Inventory.SeedFile = seedPath

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, stop := startServer(t, cfg)
	equipment, err := client.ListEquipment(ctx)
	if err != nil {
		t.Fatalf("ListEquipment: %v", err)
	}
	if len(equipment) < 2 {
		t.Fatalf("ListEquipment returned %d objects, want at least the two ADMs", len(equipment))
	}

	a := core.NewObjectRef("ADM", "adm-a", "")
	b := core.NewObjectRef("ADM", "adm-b", "")
	routes, err := client.FindSDHRoutesUsingTransportLinks(ctx, a, b)
	if err != nil {
		t.Fatalf("FindSDHRoutesUsingTransportLinks: %v", err)
	}
	if len(routes) != 1 {
		t.Fatalf("got %d routes, want 1", len(routes))
	}
	stop()

	// Same store, no seed: the transport link must come back from SQLite.
	cfg.Inventory.SeedFile = ""
	client, stop = startServer(t, cfg)
	defer stop()

	routes, err = client.FindSDHRoutesUsingTransportLinks(ctx, a, b)
	if err != nil {
		t.Fatalf("FindSDHRoutesUsingTransportLinks after restart: %v", err)
	}
	if len(routes) != 1 {
		t.Fatalf("got %d routes after restart, want 1", len(routes))
	}
	positions, err := client.AvailablePositions(ctx, core.NewObjectRef("STM4", "stm-ab", ""))
	if err != nil {
		t.Fatalf("AvailablePositions: %v", err)
	}
	if len(positions) != 4 {
		t.Fatalf("got %d positions on an STM4, want 4", len(positions))
	}
}

func TestSDHServerRejectsBadSeed(t *testing.T) {
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "seed.yaml")
	if err := os.WriteFile(seedPath, []byte("objects:\n  - class: ADM\n"), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	cfg := config.Default()
	cfg.Inventory.SeedFile = seedPath
	cfg.Server.MetricsAddr = ""

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	defer lis.Close()

	log := logging.New(logging.Config{Level: "error", Format: "text"})
	if err := run(context.Background(), cfg, log, lis); err == nil {
		t.Fatalf("run accepted a seed object without id and name")
	}
}

func TestLoadConfigFlags(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "sdh-server.yaml")
	if err := os.WriteFile(cfgPath, []byte("server:\n  grpc_addr: \"127.0.0.1:6000\"\ninventory:\n  max_route_hops: 4\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadConfig([]string{"-config", cfgPath, "-metrics-addr", "", "-store", "/tmp/x.db"})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Server.GRPCAddr != "127.0.0.1:6000" {
		t.Errorf("GRPCAddr = %q, want the file value", cfg.Server.GRPCAddr)
	}
	if cfg.Server.MetricsAddr != "" {
		t.Errorf("MetricsAddr = %q, want it disabled by the flag", cfg.Server.MetricsAddr)
	}
	if cfg.Store.Path != "/tmp/x.db" {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
	if cfg.Inventory.MaxRouteHops != 4 {
		t.Errorf("MaxRouteHops = %d, want 4", cfg.Inventory.MaxRouteHops)
	}

	if _, err := loadConfig([]string{"-grpc-addr", "not an address"}); err == nil {
		t.Fatalf("loadConfig accepted an invalid gRPC address")
	}
}
