package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/iliyamo/parking-reservation/internal/model"
)

// SpotClient talks to the spot registry.  The orchestrator uses exactly two
// of its endpoints: fetching a spot and mutating its status.  The registry
// owns the records; this client never caches them.
type SpotClient struct {
	client
}

// NewSpotClient returns a SpotClient for the registry at base.
func NewSpotClient(base string, timeout time.Duration) *SpotClient {
	return &SpotClient{client: newClient("spot registry", base, timeout)}
}

// Get fetches a parking spot by ID.
func (c *SpotClient) Get(ctx context.Context, id uint64) (*model.ParkingSpot, error) {
	var spot model.ParkingSpot
	path := fmt.Sprintf("/spots/%d", id)
	if err := c.do(ctx, http.MethodGet, path, "parking spot", id, &spot); err != nil {
		return nil, err
	}
	return &spot, nil
}

// SetStatus asks the registry to move the spot to the given status and
// returns the updated record.  The orchestrator only ever sends RESERVED
// and FREE; OCCUPIED belongs to other collaborators.
func (c *SpotClient) SetStatus(ctx context.Context, id uint64, status string) (*model.ParkingSpot, error) {
	var spot model.ParkingSpot
	path := fmt.Sprintf("/spots/%d/status?status=%s", id, url.QueryEscape(status))
	if err := c.do(ctx, http.MethodPatch, path, "parking spot", id, &spot); err != nil {
		return nil, err
	}
	return &spot, nil
}
