// Package service implements the reservation lifecycle orchestrator: the
// component that drives a reservation through its states while keeping the
// remotely owned parking-spot status consistent with it.  There is no
// shared database and no distributed transaction: consistency rests on a
// fixed ordering (remote status write before local commit), a per-spot
// lock around every reserve/free sequence, and a compensating status
// write when the local commit fails after the remote one succeeded.
package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/iliyamo/parking-reservation/internal/auth"
	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/queue"
)

// Store is the local reservation store.  Absent rows surface as
// *model.NotFoundError.
type Store interface {
	Create(ctx context.Context, res *model.Reservation) error
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
	Update(ctx context.Context, res *model.Reservation) error
	Delete(ctx context.Context, id uint64) error
	List(ctx context.Context) ([]model.Reservation, error)
	ListBySpot(ctx context.Context, spotID uint64) ([]model.Reservation, error)
	ListByVehicle(ctx context.Context, vehicleID uint64) ([]model.Reservation, error)
	ListByStatus(ctx context.Context, status string) ([]model.Reservation, error)
}

// SpotRegistry is the remote spot registry surface the orchestrator needs.
type SpotRegistry interface {
	Get(ctx context.Context, id uint64) (*model.ParkingSpot, error)
	SetStatus(ctx context.Context, id uint64, status string) (*model.ParkingSpot, error)
}

// VehicleRegistry is the remote vehicle registry surface (read-only).
type VehicleRegistry interface {
	Get(ctx context.Context, id uint64) (*model.Vehicle, error)
}

// Locker hands out per-parking-spot-id mutual exclusion.  Acquire blocks
// until the lock is held or ctx is done and returns a release function.
type Locker interface {
	Acquire(ctx context.Context, spotID uint64) (func(), error)
}

// PublishFunc delivers a lifecycle event to the broker.  Delivery failures
// are logged and ignored; they never fail the operation that produced the
// event.
type PublishFunc func(ctx context.Context, ev queue.ReservationEvent) error

// ReservationService coordinates local store writes with remote spot
// registry mutations.  All methods are safe for concurrent use.
type ReservationService struct {
	store    Store
	spots    SpotRegistry
	vehicles VehicleRegistry
	locks    Locker
	publish  PublishFunc // may be nil
}

// NewReservationService constructs the orchestrator.  All dependencies
// except publish must be non-nil.
func NewReservationService(store Store, spots SpotRegistry, vehicles VehicleRegistry, locks Locker, publish PublishFunc) *ReservationService {
	if store == nil || spots == nil || vehicles == nil || locks == nil {
		panic("nil dependency passed to NewReservationService")
	}
	return &ReservationService{
		store:    store,
		spots:    spots,
		vehicles: vehicles,
		locks:    locks,
		publish:  publish,
	}
}

// CreateInput carries the caller-supplied fields for a new reservation.
// Start and end are not validated against each other; the window is the
// caller's business.  Status is bound only so that callers sending one
// get a loud validation error: new reservations always start ACTIVE.
type CreateInput struct {
	ParkingSpotID uint64
	VehicleID     uint64
	StartTime     time.Time
	EndTime       time.Time
	Status        string
}

func (in CreateInput) validate() error {
	switch {
	case in.Status != "":
		return &model.ValidationError{Msg: "status cannot be set on create; reservations start ACTIVE"}
	case in.ParkingSpotID == 0:
		return &model.ValidationError{Msg: "parkingSpotId is required"}
	case in.VehicleID == 0:
		return &model.ValidationError{Msg: "vehicleId is required"}
	case in.StartTime.IsZero():
		return &model.ValidationError{Msg: "startTime is required"}
	case in.EndTime.IsZero():
		return &model.ValidationError{Msg: "endTime is required"}
	}
	return nil
}

// Create checks and reserves the spot remotely, then persists the
// reservation as ACTIVE.  The whole check/reserve/persist sequence runs
// under the per-spot lock, so two concurrent creates for the same spot
// cannot both pass the availability check.  The ordering is fixed: the
// remote mutation always precedes the local commit, so a remote failure
// leaves no local row behind.  If the local commit fails after the spot
// was reserved, the spot is reverted to FREE so no orphaned reservation
// is left on the registry side.
func (s *ReservationService) Create(ctx context.Context, in CreateInput) (*model.Reservation, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	release, err := s.locks.Acquire(ctx, in.ParkingSpotID)
	if err != nil {
		return nil, err
	}
	defer release()

	spot, err := s.spots.Get(ctx, in.ParkingSpotID)
	if err != nil {
		return nil, err
	}
	if spot.Status != model.SpotFree {
		return nil, &model.SpotUnavailableError{ID: in.ParkingSpotID, Status: spot.Status}
	}

	if _, err := s.spots.SetStatus(ctx, in.ParkingSpotID, model.SpotReserved); err != nil {
		return nil, err
	}

	res := &model.Reservation{
		ParkingSpotID: in.ParkingSpotID,
		VehicleID:     in.VehicleID,
		StartTime:     in.StartTime.UTC(),
		EndTime:       in.EndTime.UTC(),
		Status:        model.ReservationActive,
	}
	if err := s.store.Create(ctx, res); err != nil {
		s.compensate(ctx, in.ParkingSpotID, model.SpotFree)
		return nil, err
	}

	s.emit(ctx, queue.EventReservationCreated, res)
	return res, nil
}

// UpdateInput carries a full-replace payload for an existing reservation.
// Status is bound only so that callers still sending one get a loud
// validation error instead of a silent state-machine bypass.
type UpdateInput struct {
	ParkingSpotID uint64
	VehicleID     uint64
	StartTime     time.Time
	EndTime       time.Time
	Status        string
}

// Update overwrites the spot, vehicle and time-window fields of an
// existing reservation.  It performs no registry call and never touches
// the status: status changes go through Complete and Cancel only.
func (s *ReservationService) Update(ctx context.Context, id uint64, in UpdateInput) (*model.Reservation, error) {
	if in.Status != "" {
		return nil, &model.ValidationError{Msg: "status cannot be changed via update; use complete or cancel"}
	}
	if err := (CreateInput{
		ParkingSpotID: in.ParkingSpotID,
		VehicleID:     in.VehicleID,
		StartTime:     in.StartTime,
		EndTime:       in.EndTime,
	}).validate(); err != nil {
		return nil, err
	}

	res, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	res.ParkingSpotID = in.ParkingSpotID
	res.VehicleID = in.VehicleID
	res.StartTime = in.StartTime.UTC()
	res.EndTime = in.EndTime.UTC()
	if err := s.store.Update(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Complete frees the spot remotely and marks the reservation COMPLETED.
func (s *ReservationService) Complete(ctx context.Context, id uint64) (*model.Reservation, error) {
	return s.finish(ctx, id, model.ReservationCompleted, queue.EventReservationCompleted)
}

// Cancel frees the spot remotely and marks the reservation CANCELLED.
func (s *ReservationService) Cancel(ctx context.Context, id uint64) (*model.Reservation, error) {
	return s.finish(ctx, id, model.ReservationCancelled, queue.EventReservationCancelled)
}

// finish applies a terminal transition.  Completing or cancelling an
// already-terminal reservation is rejected with an
// InvalidTransitionError; the remote spot status is not re-written.
func (s *ReservationService) finish(ctx context.Context, id uint64, status, eventType string) (*model.Reservation, error) {
	res, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.Terminal() {
		return nil, &model.InvalidTransitionError{ID: id, From: res.Status, To: status}
	}

	release, err := s.locks.Acquire(ctx, res.ParkingSpotID)
	if err != nil {
		return nil, err
	}
	defer release()

	// Re-read under the lock: a concurrent transition can win the race
	// between the first read and the acquire, and the stale row would
	// pass the terminal check a second time.
	res, err = s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.Terminal() {
		return nil, &model.InvalidTransitionError{ID: id, From: res.Status, To: status}
	}

	if _, err := s.spots.SetStatus(ctx, res.ParkingSpotID, model.SpotFree); err != nil {
		return nil, err
	}

	res.Status = status
	if err := s.store.Update(ctx, res); err != nil {
		// The spot was freed but the terminal state did not commit; put the
		// spot back so it still matches the ACTIVE reservation.
		s.compensate(ctx, res.ParkingSpotID, model.SpotReserved)
		return nil, err
	}

	s.emit(ctx, eventType, res)
	return res, nil
}

// Delete removes the local reservation row only.  No registry call is
// made: deleting an ACTIVE reservation knowingly leaves the spot RESERVED
// on the registry side.
func (s *ReservationService) Delete(ctx context.Context, id uint64) error {
	return s.store.Delete(ctx, id)
}

// Details loads the reservation, then fetches the referenced spot and
// vehicle from their registries concurrently and assembles the aggregate.
// A missing reservation returns NotFoundError without any remote call;
// either remote failure fails the whole operation so no partial aggregate
// is returned.
func (s *ReservationService) Details(ctx context.Context, id uint64) (*model.ReservationDetails, error) {
	res, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		wg      sync.WaitGroup
		spot    *model.ParkingSpot
		vehicle *model.Vehicle
		spotErr error
		vehErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		spot, spotErr = s.spots.Get(ctx, res.ParkingSpotID)
	}()
	go func() {
		defer wg.Done()
		vehicle, vehErr = s.vehicles.Get(ctx, res.VehicleID)
	}()
	wg.Wait()

	if spotErr != nil {
		return nil, spotErr
	}
	if vehErr != nil {
		return nil, vehErr
	}
	return &model.ReservationDetails{
		Reservation: res,
		ParkingSpot: spot,
		Vehicle:     vehicle,
	}, nil
}

// GetByID returns a single reservation from the local store.
func (s *ReservationService) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	return s.store.GetByID(ctx, id)
}

// List returns all reservations.
func (s *ReservationService) List(ctx context.Context) ([]model.Reservation, error) {
	return s.store.List(ctx)
}

// ListBySpot returns reservations referencing a parking spot.
func (s *ReservationService) ListBySpot(ctx context.Context, spotID uint64) ([]model.Reservation, error) {
	return s.store.ListBySpot(ctx, spotID)
}

// ListByVehicle returns reservations referencing a vehicle.
func (s *ReservationService) ListByVehicle(ctx context.Context, vehicleID uint64) ([]model.Reservation, error) {
	return s.store.ListByVehicle(ctx, vehicleID)
}

// ListByStatus returns reservations in the given status.  Unknown status
// strings are rejected before hitting the store.
func (s *ReservationService) ListByStatus(ctx context.Context, status string) ([]model.Reservation, error) {
	if !model.ValidReservationStatus(status) {
		return nil, &model.ValidationError{Msg: "unknown reservation status: " + status}
	}
	return s.store.ListByStatus(ctx, status)
}

// compensate applies a best-effort revert of a spot status after a failed
// local commit.  It runs on a fresh deadline because the request context
// may already be cancelled, but keeps the caller's credential: the
// registry rejects unauthenticated writes, so a bare context would make
// every compensating write fail.  Failures are only logged; the original
// store error is what the caller gets back either way.
func (s *ReservationService) compensate(ctx context.Context, spotID uint64, status string) {
	cctx := auth.WithToken(context.Background(), auth.TokenFrom(ctx))
	cctx, cancel := context.WithTimeout(cctx, 5*time.Second)
	defer cancel()
	if _, err := s.spots.SetStatus(cctx, spotID, status); err != nil {
		log.Printf("orchestrator: compensating write failed, spot %d stuck out of sync (wanted %s): %v", spotID, status, err)
	}
}

// emit publishes a lifecycle event, logging and swallowing any failure.
func (s *ReservationService) emit(ctx context.Context, eventType string, res *model.Reservation) {
	if s.publish == nil {
		return
	}
	ev := queue.ReservationEvent{
		Type:          eventType,
		ReservationID: res.ID,
		ParkingSpotID: res.ParkingSpotID,
		VehicleID:     res.VehicleID,
		Status:        res.Status,
		StartTime:     res.StartTime.UTC().Format(time.RFC3339),
		EndTime:       res.EndTime.UTC().Format(time.RFC3339),
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.publish(ctx, ev); err != nil {
		log.Printf("orchestrator: publish %s failed: %v", eventType, err)
	}
}
