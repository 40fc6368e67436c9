package inventory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/signalsfoundry/sdh-provisioner/core"
)

const seedYAML = `
objects:
  - class: ADM
    id: adm-a
    name: ADM A
    children:
      - class: Board
        id: board-a1
        name: Board 1
        children:
          - class: OpticalPort
            id: port-a1
            name: A/1/1
services:
  - class: GenericSDHService
    id: svc-1
    name: Customer 1
transport_links:
  - id: tl-1
    name: A-B
    class: STM16
    port_a: OpticalPort:port-a1
    port_b: OpticalPort:port-b1
`

func TestApplySeedIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.yaml")
	if err := os.WriteFile(path, []byte(seedYAML), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	seed, err := LoadSeedFile(path)
	if err != nil {
		t.Fatalf("LoadSeedFile error: %v", err)
	}
	if len(seed.TransportLinks) != 1 || seed.TransportLinks[0].PortA != "OpticalPort:port-a1" {
		t.Fatalf("unexpected transport links %+v", seed.TransportLinks)
	}

	s := newStateForTest(t)
	created, err := s.ApplySeed(context.Background(), seed)
	if err != nil || created != 4 {
		t.Fatalf("ApplySeed = %d, %v; want 4 objects", created, err)
	}
	created, err = s.ApplySeed(context.Background(), seed)
	if err != nil || created != 0 {
		t.Fatalf("second ApplySeed = %d, %v; want 0", created, err)
	}

	_ = s.View(func(tx *Txn) error {
		parent, ok, err := tx.FirstParentOfClass(core.NewObjectRef("OpticalPort", "port-a1", ""), core.ClassGenericCommunicationsElement)
		if err != nil || !ok || parent.ID != "adm-a" {
			t.Fatalf("seeded port parent = %v,%v,%v", parent, ok, err)
		}
		return nil
	})
}

func TestParseSeedRejectsBadInput(t *testing.T) {
	if _, err := ParseSeed([]byte("objects:\n  - class: ADM\n    name: no id\n")); !errors.Is(err, ErrObjectInvalid) {
		t.Fatalf("err=%v, want ErrObjectInvalid", err)
	}
	if _, err := ParseSeed([]byte("equipment: []\n")); err == nil {
		t.Fatalf("expected unknown key to be rejected")
	}
	if _, err := ParseSeed([]byte("transport_links:\n  - name: x\n    class: STM1\n    port_a: bad\n    port_b: OpticalPort:p\n")); !errors.Is(err, ErrObjectInvalid) {
		t.Fatalf("err=%v, want ErrObjectInvalid", err)
	}
	seed, err := ParseSeed(nil)
	if err != nil || len(seed.Objects) != 0 {
		t.Fatalf("empty seed = %+v, %v", seed, err)
	}
}
