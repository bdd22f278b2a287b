package registry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/iliyamo/parking-reservation/internal/model"
)

// VehicleClient talks to the vehicle registry.  Read-only: the orchestrator
// only fetches vehicles when assembling reservation details.
type VehicleClient struct {
	client
}

// NewVehicleClient returns a VehicleClient for the registry at base.
func NewVehicleClient(base string, timeout time.Duration) *VehicleClient {
	return &VehicleClient{client: newClient("vehicle registry", base, timeout)}
}

// Get fetches a vehicle by ID.
func (c *VehicleClient) Get(ctx context.Context, id uint64) (*model.Vehicle, error) {
	var v model.Vehicle
	path := fmt.Sprintf("/vehicles/%d", id)
	if err := c.do(ctx, http.MethodGet, path, "vehicle", id, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
