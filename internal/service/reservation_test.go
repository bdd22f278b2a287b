package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parking-reservation/internal/auth"
	"github.com/iliyamo/parking-reservation/internal/lock"
	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/queue"
)

// fakeStore is an in-memory Store used to observe exactly which local
// writes the orchestrator performs.
type fakeStore struct {
	mu     sync.Mutex
	rows   map[uint64]model.Reservation
	nextID uint64

	failCreate error
	failUpdate error
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[uint64]model.Reservation)}
}

func (f *fakeStore) Create(_ context.Context, res *model.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return f.failCreate
	}
	f.nextID++
	res.ID = f.nextID
	res.CreatedAt = time.Now().UTC()
	res.UpdatedAt = res.CreatedAt
	f.rows[res.ID] = *res
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id uint64) (*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, &model.NotFoundError{Entity: "reservation", ID: id}
	}
	return &row, nil
}

func (f *fakeStore) Update(_ context.Context, res *model.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate != nil {
		return f.failUpdate
	}
	if _, ok := f.rows[res.ID]; !ok {
		return &model.NotFoundError{Entity: "reservation", ID: res.ID}
	}
	res.UpdatedAt = time.Now().UTC()
	f.rows[res.ID] = *res
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return &model.NotFoundError{Entity: "reservation", ID: id}
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeStore) List(_ context.Context) ([]model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Reservation, 0, len(f.rows))
	for _, r := range f.rows {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeStore) ListBySpot(_ context.Context, spotID uint64) ([]model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Reservation, 0)
	for _, r := range f.rows {
		if r.ParkingSpotID == spotID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) ListByVehicle(_ context.Context, vehicleID uint64) ([]model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Reservation, 0)
	for _, r := range f.rows {
		if r.VehicleID == vehicleID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) ListByStatus(_ context.Context, status string) ([]model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Reservation, 0)
	for _, r := range f.rows {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

// fakeSpots simulates the spot registry and records every call, along
// with the credential it carried, so tests can assert ordering, call
// counts and token propagation.
type fakeSpots struct {
	mu      sync.Mutex
	spots   map[uint64]*model.ParkingSpot
	calls   []string
	tokens  []string
	failSet error
}

func newFakeSpots(ids ...uint64) *fakeSpots {
	f := &fakeSpots{spots: make(map[uint64]*model.ParkingSpot)}
	for _, id := range ids {
		f.spots[id] = &model.ParkingSpot{ID: id, Number: "A-101", Floor: 1, Status: model.SpotFree}
	}
	return f
}

func (f *fakeSpots) Get(ctx context.Context, id uint64) (*model.ParkingSpot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "get")
	f.tokens = append(f.tokens, auth.TokenFrom(ctx))
	s, ok := f.spots[id]
	if !ok {
		return nil, &model.NotFoundError{Entity: "parking spot", ID: id}
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSpots) SetStatus(ctx context.Context, id uint64, status string) (*model.ParkingSpot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "set:"+status)
	f.tokens = append(f.tokens, auth.TokenFrom(ctx))
	if f.failSet != nil {
		return nil, f.failSet
	}
	s, ok := f.spots[id]
	if !ok {
		return nil, &model.NotFoundError{Entity: "parking spot", ID: id}
	}
	s.Status = status
	cp := *s
	return &cp, nil
}

func (f *fakeSpots) status(id uint64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.spots[id].Status
}

func (f *fakeSpots) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeSpots) seenTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokens...)
}

type fakeVehicles struct {
	mu       sync.Mutex
	vehicles map[uint64]*model.Vehicle
	calls    int
	fail     error
}

func newFakeVehicles(ids ...uint64) *fakeVehicles {
	f := &fakeVehicles{vehicles: make(map[uint64]*model.Vehicle)}
	for _, id := range ids {
		f.vehicles[id] = &model.Vehicle{ID: id, PlateNumber: "X1", Model: "Corolla", Color: "red", OwnerID: 7}
	}
	return f
}

func (f *fakeVehicles) Get(_ context.Context, id uint64) (*model.Vehicle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		return nil, f.fail
	}
	v, ok := f.vehicles[id]
	if !ok {
		return nil, &model.NotFoundError{Entity: "vehicle", ID: id}
	}
	cp := *v
	return &cp, nil
}

func newTestService(store *fakeStore, spots *fakeSpots, vehicles *fakeVehicles, publish PublishFunc) *ReservationService {
	return NewReservationService(store, spots, vehicles, lock.New(nil), publish)
}

func validInput() CreateInput {
	return CreateInput{
		ParkingSpotID: 1,
		VehicleID:     1,
		StartTime:     time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		EndTime:       time.Date(2026, 9, 1, 17, 0, 0, 0, time.UTC),
	}
}

func TestCreateReservesSpotBeforePersisting(t *testing.T) {
	store := newFakeStore()
	spots := newFakeSpots(1)
	var events []queue.ReservationEvent
	svc := newTestService(store, spots, newFakeVehicles(1), func(_ context.Context, ev queue.ReservationEvent) error {
		events = append(events, ev)
		return nil
	})

	res, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	assert.Equal(t, uint64(1), res.ID)
	assert.Equal(t, model.ReservationActive, res.Status)
	assert.Equal(t, model.SpotReserved, spots.status(1))
	assert.Equal(t, []string{"get", "set:RESERVED"}, spots.calls)

	require.Len(t, events, 1)
	assert.Equal(t, queue.EventReservationCreated, events[0].Type)
	assert.Equal(t, res.ID, events[0].ReservationID)
}

func TestCreateValidatesBeforeAnyRemoteCall(t *testing.T) {
	spots := newFakeSpots(1)
	svc := newTestService(newFakeStore(), spots, newFakeVehicles(1), nil)

	cases := []CreateInput{
		{VehicleID: 1, StartTime: time.Now(), EndTime: time.Now()},
		{ParkingSpotID: 1, StartTime: time.Now(), EndTime: time.Now()},
		{ParkingSpotID: 1, VehicleID: 1, EndTime: time.Now()},
		{ParkingSpotID: 1, VehicleID: 1, StartTime: time.Now()},
	}
	for _, in := range cases {
		_, err := svc.Create(context.Background(), in)
		var ve *model.ValidationError
		assert.ErrorAs(t, err, &ve)
	}
	assert.Zero(t, spots.callCount())
}

func TestCreateRemoteFailureLeavesNoRow(t *testing.T) {
	store := newFakeStore()
	spots := newFakeSpots(1)
	spots.failSet = &model.RemoteUnavailableError{Service: "spot registry", Cause: errors.New("timeout")}
	svc := newTestService(store, spots, newFakeVehicles(1), nil)

	_, err := svc.Create(context.Background(), validInput())
	var re *model.RemoteUnavailableError
	require.ErrorAs(t, err, &re)
	assert.Zero(t, store.count())
}

func TestCreateUnknownSpotLeavesNoRow(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, newFakeSpots(), newFakeVehicles(1), nil)

	_, err := svc.Create(context.Background(), validInput())
	var nf *model.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "parking spot", nf.Entity)
	assert.Zero(t, store.count())
}

func TestCreateRejectsUnavailableSpot(t *testing.T) {
	store := newFakeStore()
	spots := newFakeSpots(1)
	spots.spots[1].Status = model.SpotReserved
	svc := newTestService(store, spots, newFakeVehicles(1), nil)

	_, err := svc.Create(context.Background(), validInput())
	var su *model.SpotUnavailableError
	require.ErrorAs(t, err, &su)
	assert.Equal(t, model.SpotReserved, su.Status)
	assert.Zero(t, store.count())
	// Availability was checked but no status write happened.
	assert.Equal(t, []string{"get"}, spots.calls)
}

func TestCreateCompensatesWhenLocalCommitFails(t *testing.T) {
	store := newFakeStore()
	store.failCreate = errors.New("disk full")
	spots := newFakeSpots(1)
	svc := newTestService(store, spots, newFakeVehicles(1), nil)

	_, err := svc.Create(context.Background(), validInput())
	require.EqualError(t, err, "disk full")

	// The reserve was issued, then reverted: the spot ends up FREE and no
	// orphaned reservation is left behind on the registry side.
	assert.Equal(t, []string{"get", "set:RESERVED", "set:FREE"}, spots.calls)
	assert.Equal(t, model.SpotFree, spots.status(1))
	assert.Zero(t, store.count())
}

func TestCreateRejectsExplicitStatus(t *testing.T) {
	spots := newFakeSpots(1)
	svc := newTestService(newFakeStore(), spots, newFakeVehicles(1), nil)

	in := validInput()
	in.Status = model.ReservationActive
	_, err := svc.Create(context.Background(), in)
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Zero(t, spots.callCount())
}

func TestCompensationCarriesCallerCredential(t *testing.T) {
	store := newFakeStore()
	store.failCreate = errors.New("disk full")
	spots := newFakeSpots(1)
	svc := newTestService(store, spots, newFakeVehicles(1), nil)

	ctx := auth.WithToken(context.Background(), "caller-token")
	_, err := svc.Create(ctx, validInput())
	require.EqualError(t, err, "disk full")

	// The compensating FREE write must authenticate as the same caller;
	// the registry rejects bare requests.
	require.Equal(t, []string{"get", "set:RESERVED", "set:FREE"}, spots.calls)
	assert.Equal(t, []string{"caller-token", "caller-token", "caller-token"}, spots.seenTokens())
}

func TestConcurrentCreatesSameSpotOnlyOneWins(t *testing.T) {
	store := newFakeStore()
	spots := newFakeSpots(1)
	svc := newTestService(store, spots, newFakeVehicles(1), nil)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), validInput())
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				created++
				return
			}
			var su *model.SpotUnavailableError
			if errors.As(err, &su) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, conflicts)
	assert.Equal(t, 1, store.count())
	assert.Equal(t, model.SpotReserved, spots.status(1))
}

func TestCompleteFreesSpotAndMarksCompleted(t *testing.T) {
	store := newFakeStore()
	spots := newFakeSpots(1)
	svc := newTestService(store, spots, newFakeVehicles(1), nil)

	res, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	done, err := svc.Complete(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCompleted, done.Status)
	assert.Equal(t, model.SpotFree, spots.status(1))

	stored, err := store.GetByID(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCompleted, stored.Status)
}

func TestCancelFreesSpotAndMarksCancelled(t *testing.T) {
	store := newFakeStore()
	spots := newFakeSpots(1)
	svc := newTestService(store, spots, newFakeVehicles(1), nil)

	res, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	gone, err := svc.Cancel(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, gone.Status)
	assert.Equal(t, model.SpotFree, spots.status(1))
}

func TestCompleteTwiceIsRejectedWithoutRemoteCall(t *testing.T) {
	store := newFakeStore()
	spots := newFakeSpots(1)
	svc := newTestService(store, spots, newFakeVehicles(1), nil)

	res, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	_, err = svc.Complete(context.Background(), res.ID)
	require.NoError(t, err)

	before := spots.callCount()
	_, err = svc.Complete(context.Background(), res.ID)
	var it *model.InvalidTransitionError
	require.ErrorAs(t, err, &it)
	assert.Equal(t, model.ReservationCompleted, it.From)
	// The terminal re-transition does not re-issue the FREE write.
	assert.Equal(t, before, spots.callCount())
	assert.Equal(t, model.SpotFree, spots.status(1))
}

// rendezvousStore holds the first two GetByID callers until both have
// arrived, forcing two concurrent terminal transitions to read the same
// ACTIVE row before either takes the spot lock.
type rendezvousStore struct {
	*fakeStore
	mu      sync.Mutex
	arrived int
	release chan struct{}
}

func (s *rendezvousStore) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	s.mu.Lock()
	s.arrived++
	if s.arrived == 2 {
		close(s.release)
	}
	s.mu.Unlock()
	<-s.release
	return s.fakeStore.GetByID(ctx, id)
}

func TestConcurrentTerminalTransitionsOnlyOneWins(t *testing.T) {
	store := newFakeStore()
	spots := newFakeSpots(1)
	rdv := &rendezvousStore{fakeStore: store, release: make(chan struct{})}
	svc := NewReservationService(rdv, spots, newFakeVehicles(1), lock.New(nil), nil)

	res, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	var (
		wg                     sync.WaitGroup
		completeErr, cancelErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, completeErr = svc.Complete(context.Background(), res.ID)
	}()
	go func() {
		defer wg.Done()
		_, cancelErr = svc.Cancel(context.Background(), res.ID)
	}()
	wg.Wait()

	// Both raced past the first read; exactly one may commit, the other
	// must see the terminal row on the re-read under the lock.
	var it *model.InvalidTransitionError
	if completeErr == nil {
		require.ErrorAs(t, cancelErr, &it)
	} else {
		require.NoError(t, cancelErr)
		require.ErrorAs(t, completeErr, &it)
	}
	assert.Equal(t, []string{"get", "set:RESERVED", "set:FREE"}, spots.calls,
		"the losing transition must not re-issue the FREE write")

	stored, err := store.GetByID(context.Background(), res.ID)
	require.NoError(t, err)
	assert.True(t, stored.Terminal())
}

func TestCancelAfterCompleteIsRejected(t *testing.T) {
	store := newFakeStore()
	spots := newFakeSpots(1)
	svc := newTestService(store, spots, newFakeVehicles(1), nil)

	res, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	_, err = svc.Complete(context.Background(), res.ID)
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), res.ID)
	var it *model.InvalidTransitionError
	assert.ErrorAs(t, err, &it)
}

func TestCompleteCompensatesWhenLocalCommitFails(t *testing.T) {
	store := newFakeStore()
	spots := newFakeSpots(1)
	svc := newTestService(store, spots, newFakeVehicles(1), nil)

	res, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	store.failUpdate = errors.New("connection lost")
	_, err = svc.Complete(context.Background(), res.ID)
	require.EqualError(t, err, "connection lost")

	// The FREE write went out, then was reverted so the spot still matches
	// the ACTIVE reservation.
	assert.Equal(t, model.SpotReserved, spots.status(1))
	stored, err := store.GetByID(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationActive, stored.Status)
}

func TestTerminalOperationsOnMissingReservation(t *testing.T) {
	store := newFakeStore()
	spots := newFakeSpots(1)
	svc := newTestService(store, spots, newFakeVehicles(1), nil)

	_, err := svc.Complete(context.Background(), 99)
	var nf *model.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "reservation", nf.Entity)

	_, err = svc.Cancel(context.Background(), 99)
	assert.ErrorAs(t, err, &nf)

	_, err = svc.Update(context.Background(), 99, UpdateInput{
		ParkingSpotID: 1, VehicleID: 1,
		StartTime: time.Now(), EndTime: time.Now(),
	})
	assert.ErrorAs(t, err, &nf)

	err = svc.Delete(context.Background(), 99)
	assert.ErrorAs(t, err, &nf)

	// None of the misses reached the registry or mutated the store.
	assert.Zero(t, spots.callCount())
	assert.Zero(t, store.count())
}

func TestUpdateRewritesFieldsWithoutRemoteCalls(t *testing.T) {
	store := newFakeStore()
	spots := newFakeSpots(1)
	svc := newTestService(store, spots, newFakeVehicles(1), nil)

	res, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	before := spots.callCount()
	newStart := time.Date(2026, 9, 2, 8, 0, 0, 0, time.UTC)
	newEnd := time.Date(2026, 9, 2, 18, 0, 0, 0, time.UTC)
	updated, err := svc.Update(context.Background(), res.ID, UpdateInput{
		ParkingSpotID: 2,
		VehicleID:     3,
		StartTime:     newStart,
		EndTime:       newEnd,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), updated.ParkingSpotID)
	assert.Equal(t, uint64(3), updated.VehicleID)
	assert.Equal(t, newStart, updated.StartTime)
	assert.Equal(t, newEnd, updated.EndTime)
	assert.Equal(t, model.ReservationActive, updated.Status)
	assert.Equal(t, before, spots.callCount())
}

func TestUpdateRejectsStatusChange(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, newFakeSpots(1), newFakeVehicles(1), nil)

	res, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), res.ID, UpdateInput{
		ParkingSpotID: 1,
		VehicleID:     1,
		StartTime:     res.StartTime,
		EndTime:       res.EndTime,
		Status:        model.ReservationCompleted,
	})
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)

	stored, err := store.GetByID(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationActive, stored.Status)
}

func TestDeleteIsLocalOnly(t *testing.T) {
	store := newFakeStore()
	spots := newFakeSpots(1)
	svc := newTestService(store, spots, newFakeVehicles(1), nil)

	res, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	before := spots.callCount()
	require.NoError(t, svc.Delete(context.Background(), res.ID))
	assert.Zero(t, store.count())
	// No registry call: deleting an ACTIVE reservation knowingly leaves
	// the spot RESERVED.
	assert.Equal(t, before, spots.callCount())
	assert.Equal(t, model.SpotReserved, spots.status(1))
}

func TestDetailsAggregatesLiveRegistryState(t *testing.T) {
	store := newFakeStore()
	spots := newFakeSpots(1)
	vehicles := newFakeVehicles(1)
	svc := newTestService(store, spots, vehicles, nil)

	res, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	det, err := svc.Details(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.ID, det.Reservation.ID)
	assert.Equal(t, "A-101", det.ParkingSpot.Number)
	assert.Equal(t, model.SpotReserved, det.ParkingSpot.Status)
	assert.Equal(t, "X1", det.Vehicle.PlateNumber)
}

func TestDetailsMissingReservationSkipsRemoteCalls(t *testing.T) {
	store := newFakeStore()
	spots := newFakeSpots(1)
	vehicles := newFakeVehicles(1)
	svc := newTestService(store, spots, vehicles, nil)

	_, err := svc.Details(context.Background(), 42)
	var nf *model.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Zero(t, spots.callCount())
	assert.Zero(t, vehicles.calls)
}

func TestDetailsFailsWholeOperationOnRemoteError(t *testing.T) {
	store := newFakeStore()
	spots := newFakeSpots(1)
	vehicles := newFakeVehicles(1)
	svc := newTestService(store, spots, vehicles, nil)

	res, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	vehicles.fail = &model.RemoteUnavailableError{Service: "vehicle registry", Cause: errors.New("timeout")}
	det, err := svc.Details(context.Background(), res.ID)
	var re *model.RemoteUnavailableError
	require.ErrorAs(t, err, &re)
	assert.Nil(t, det)
}

func TestListByStatusRejectsUnknownStatus(t *testing.T) {
	svc := newTestService(newFakeStore(), newFakeSpots(1), newFakeVehicles(1), nil)

	_, err := svc.ListByStatus(context.Background(), "PENDING")
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)

	items, err := svc.ListByStatus(context.Background(), model.ReservationActive)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, newFakeSpots(1), newFakeVehicles(1), func(context.Context, queue.ReservationEvent) error {
		return errors.New("broker down")
	})

	res, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, model.ReservationActive, res.Status)
}
