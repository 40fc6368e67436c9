package nbi

import (
	"errors"
	"strings"
	"testing"

	"github.com/signalsfoundry/sdh-provisioner/core"
	"github.com/signalsfoundry/sdh-provisioner/internal/sdh"
	"github.com/signalsfoundry/sdh-provisioner/model"
)

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	a := core.NewObjectRef("ADM", "a", "")
	b := core.NewObjectRef("ADM", "b", "")

	tests := []struct {
		name    string
		req     any
		wantErr string
	}{
		{
			name: "valid routes request",
			req:  &FindRoutesRequest{A: a, B: b, Graph: "container"},
		},
		{
			name:    "unknown graph",
			req:     &FindRoutesRequest{A: a, B: b, Graph: "optical"},
			wantErr: "Graph must be one of",
		},
		{
			name:    "missing endpoint id",
			req:     &FindRoutesRequest{A: a, B: core.ObjectRef{ClassName: "ADM"}, Graph: "transport"},
			wantErr: "B.ID is required",
		},
		{
			name: "position zero",
			req: &model.ContainerLinkRequest{
				EquipmentA: a, EquipmentB: b, ClassName: "VC4", Name: "x",
				Positions: []core.SdhPosition{{LinkClass: "STM1", LinkID: "l1", Position: 0}},
			},
			wantErr: "Position must be at least 1",
		},
		{
			name: "service is optional",
			req: &model.TributaryLinkRequest{
				PortA: a, PortB: b, ClassName: "VC12TributaryLink", Name: "t",
				Positions: []core.SdhPosition{{LinkClass: "VC4", LinkID: "c1", Position: 5}},
			},
		},
		{
			name:    "nil",
			req:     nil,
			wantErr: "empty request",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateRequest(tc.req)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidateRequest() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, sdh.ErrInvalidRequest) {
				t.Fatalf("ValidateRequest() = %v, want ErrInvalidRequest", err)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("ValidateRequest() = %q, want it to mention %q", err, tc.wantErr)
			}
		})
	}
}
