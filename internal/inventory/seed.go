package inventory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/sdh-provisioner/core"
	"github.com/signalsfoundry/sdh-provisioner/internal/logging"
	"github.com/signalsfoundry/sdh-provisioner/model"
)

// Seed is an inventory bootstrap file: a containment tree of equipment,
// boards and ports, the services, and optionally transport links that
// already exist in the field.
type Seed struct {
	Objects        []SeedObject        `yaml:"objects"`
	Services       []SeedObject        `yaml:"services"`
	TransportLinks []SeedTransportLink `yaml:"transport_links"`
}

// SeedObject is one object plus the objects it contains.
type SeedObject struct {
	Class      string            `yaml:"class"`
	ID         string            `yaml:"id"`
	Name       string            `yaml:"name"`
	Attributes map[string]string `yaml:"attributes,omitempty"`
	Children   []SeedObject      `yaml:"children,omitempty"`
}

// SeedTransportLink describes an STM link between two seeded ports. Ports
// use the "Class:id" form.
type SeedTransportLink struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Class string `yaml:"class"`
	PortA string `yaml:"port_a"`
	PortB string `yaml:"port_b"`
}

// LoadSeedFile reads and parses a seed file.
func LoadSeedFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	seed, err := ParseSeed(data)
	if err != nil {
		return nil, fmt.Errorf("seed file %s: %w", path, err)
	}
	return seed, nil
}

// ParseSeed decodes a YAML seed document, rejecting unknown keys.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	if err := seed.validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

func (s *Seed) validate() error {
	var check func(o SeedObject, path string) error
	check = func(o SeedObject, path string) error {
		if o.Class == "" || o.ID == "" || o.Name == "" {
			return fmt.Errorf("%w: seed object %s needs class, id and name", ErrObjectInvalid, path)
		}
		for i, c := range o.Children {
			if err := check(c, fmt.Sprintf("%s/%d", path, i)); err != nil {
				return err
			}
		}
		return nil
	}
	for i, o := range s.Objects {
		if err := check(o, fmt.Sprintf("objects/%d", i)); err != nil {
			return err
		}
	}
	for i, o := range s.Services {
		if err := check(o, fmt.Sprintf("services/%d", i)); err != nil {
			return err
		}
	}
	for i, l := range s.TransportLinks {
		if l.Class == "" || l.Name == "" {
			return fmt.Errorf("%w: transport_links/%d needs class and name", ErrObjectInvalid, i)
		}
		if _, err := core.ParseObjectRef(l.PortA); err != nil {
			return fmt.Errorf("%w: transport_links/%d: %w", ErrObjectInvalid, i, err)
		}
		if _, err := core.ParseObjectRef(l.PortB); err != nil {
			return fmt.Errorf("%w: transport_links/%d: %w", ErrObjectInvalid, i, err)
		}
	}
	return nil
}

// ApplySeed creates the seeded objects and services that do not exist
// yet, in one update. It returns how many objects were created. Transport
// links are left to the SDH service.
func (s *State) ApplySeed(ctx context.Context, seed *Seed) (int, error) {
	if seed == nil {
		return 0, nil
	}
	created := 0
	err := s.Update(ctx, func(tx *Txn) error {
		var add func(o SeedObject, parent core.ObjectRef) error
		add = func(o SeedObject, parent core.ObjectRef) error {
			obj := model.BusinessObject{
				ClassName:  o.Class,
				ID:         o.ID,
				Name:       o.Name,
				Parent:     parent,
				Attributes: o.Attributes,
			}
			if _, err := tx.Resolve(obj.Ref()); err != nil {
				if _, err := tx.CreateObject(obj); err != nil {
					return fmt.Errorf("seed %s: %w", obj.Ref().Key(), err)
				}
				created++
			}
			for _, c := range o.Children {
				if err := add(c, obj.Ref()); err != nil {
					return err
				}
			}
			return nil
		}
		for _, o := range seed.Objects {
			if err := add(o, core.ObjectRef{}); err != nil {
				return err
			}
		}
		for _, o := range seed.Services {
			if err := add(o, core.ObjectRef{}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log.Info(ctx, "inventory seed applied",
		logging.Int("created_objects", created),
		logging.Int("transport_links", len(seed.TransportLinks)),
	)
	return created, nil
}
