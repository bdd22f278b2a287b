package model

// Vehicle mirrors the vehicle registry's wire representation.  It is
// read-only from the orchestrator's point of view and only decoded when
// assembling reservation details.
type Vehicle struct {
	ID          uint64 `json:"id"`
	PlateNumber string `json:"plateNumber"`
	Model       string `json:"model"`
	Color       string `json:"color"`
	OwnerID     uint64 `json:"ownerId"`
}
