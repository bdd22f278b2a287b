package model

import "time"

// Reservation statuses.  A reservation starts ACTIVE and moves to exactly
// one of the terminal states through the complete or cancel operations.
const (
	ReservationActive    = "ACTIVE"
	ReservationCompleted = "COMPLETED"
	ReservationCancelled = "CANCELLED"
)

// Reservation binds a parking spot and a vehicle to a time window.  The
// spot and vehicle are referenced by ID only; their records live in the
// spot and vehicle registries and are never stored locally.
//
// Fields:
//  ID            – primary key identifier, assigned by the store.
//  ParkingSpotID – spot being reserved (owned by the spot registry).
//  VehicleID     – vehicle the reservation is for (owned by the vehicle registry).
//  StartTime     – start of the reservation window, caller supplied.
//  EndTime       – end of the reservation window, caller supplied.
//  Status        – ACTIVE, COMPLETED or CANCELLED.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Reservation struct {
	ID            uint64    `json:"id"`            // reservations.id
	ParkingSpotID uint64    `json:"parkingSpotId"` // reservations.parking_spot_id
	VehicleID     uint64    `json:"vehicleId"`     // reservations.vehicle_id
	StartTime     time.Time `json:"startTime"`     // reservations.start_time
	EndTime       time.Time `json:"endTime"`       // reservations.end_time
	Status        string    `json:"status"`        // reservations.status
	CreatedAt     time.Time `json:"createdAt"`     // reservations.created_at
	UpdatedAt     time.Time `json:"updatedAt"`     // reservations.updated_at
}

// Terminal reports whether the reservation has reached a terminal state.
// Terminal reservations are immutable to complete and cancel.
func (r *Reservation) Terminal() bool {
	return r.Status == ReservationCompleted || r.Status == ReservationCancelled
}

// ValidReservationStatus reports whether s is one of the three reservation
// statuses.  Used to reject unknown values before they reach the store.
func ValidReservationStatus(s string) bool {
	switch s {
	case ReservationActive, ReservationCompleted, ReservationCancelled:
		return true
	}
	return false
}

// ReservationDetails is the fan-in aggregate returned by the details view.
// It is assembled on every request from the local reservation plus live
// fetches against both registries and is never persisted.
type ReservationDetails struct {
	Reservation *Reservation `json:"reservation"`
	ParkingSpot *ParkingSpot `json:"parkingSpot"`
	Vehicle     *Vehicle     `json:"vehicle"`
}
