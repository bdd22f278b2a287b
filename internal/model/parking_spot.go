package model

// Parking spot statuses as defined by the spot registry.  The orchestrator
// only ever writes RESERVED (when a reservation is created) and FREE (when
// one is completed or cancelled); OCCUPIED is set by other collaborators.
const (
	SpotFree     = "FREE"
	SpotOccupied = "OCCUPIED"
	SpotReserved = "RESERVED"
)

// ParkingSpot mirrors the spot registry's wire representation.  The record
// is owned by the registry; this type exists only to decode responses.
type ParkingSpot struct {
	ID     uint64 `json:"id"`
	Number string `json:"number"`
	Floor  int    `json:"floor"`
	Status string `json:"status"`
}
