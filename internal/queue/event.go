// Package queue defines the reservation lifecycle events exchanged over the
// message broker and the background consumer that records them.
package queue

// Event types published by the orchestrator.
const (
	EventReservationCreated   = "reservation.created"
	EventReservationCompleted = "reservation.completed"
	EventReservationCancelled = "reservation.cancelled"
)

// ReservationEvent is published after a lifecycle operation commits.  It
// carries enough information for downstream consumers to log, notify, or
// trigger analytics without querying the primary database.
type ReservationEvent struct {
	Type          string `json:"type"`
	ReservationID uint64 `json:"reservationId"`
	ParkingSpotID uint64 `json:"parkingSpotId"`
	VehicleID     uint64 `json:"vehicleId"`
	Status        string `json:"status"`
	StartTime     string `json:"startTime"`
	EndTime       string `json:"endTime"`
	OccurredAt    string `json:"occurredAt"`
}
