package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/parking-reservation/internal/model"
)

// ReservationRepo provides CRUD and filter queries for the reservations
// table.  The table is owned exclusively by this service; spots and
// vehicles are referenced by ID only.  Every write is a single-row
// statement and relies on the database's own atomicity for that row;
// no transaction spans a remote registry call.  All timestamps are
// stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, parking_spot_id, vehicle_id, start_time, end_time, status, created_at, updated_at`

// Create inserts a new reservation and populates the generated ID and
// timestamps on the provided record.  Status must already be set by the
// caller; the repository does not default it.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	const q = `INSERT INTO reservations (parking_spot_id, vehicle_id, start_time, end_time, status) VALUES (?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q, res.ParkingSpotID, res.VehicleID, res.StartTime.UTC(), res.EndTime.UTC(), res.Status)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	// Query back the full row to populate timestamps and defaults
	const sel = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, res.ID).Scan(
		&res.ID, &res.ParkingSpotID, &res.VehicleID, &res.StartTime, &res.EndTime,
		&res.Status, &res.CreatedAt, &res.UpdatedAt,
	)
}

// GetByID returns a single reservation.  When no row exists it returns a
// model.NotFoundError naming the reservation entity.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	var res model.Reservation
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&res.ID, &res.ParkingSpotID, &res.VehicleID, &res.StartTime, &res.EndTime,
		&res.Status, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &model.NotFoundError{Entity: "reservation", ID: id}
		}
		return nil, err
	}
	return &res, nil
}

// Update overwrites the mutable columns of an existing reservation.  The
// caller is expected to have loaded the row first, so a vanished row is
// reported as a NotFoundError rather than a silent no-op.
func (r *ReservationRepo) Update(ctx context.Context, res *model.Reservation) error {
	const q = `UPDATE reservations SET parking_spot_id = ?, vehicle_id = ?, start_time = ?, end_time = ?, status = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, q, res.ParkingSpotID, res.VehicleID, res.StartTime.UTC(), res.EndTime.UTC(), res.Status, res.ID)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		// Distinguish a missing row from an update that changed nothing.
		var exists bool
		if chkErr := r.db.QueryRowContext(ctx, `SELECT 1 FROM reservations WHERE id = ?`, res.ID).Scan(&exists); chkErr != nil {
			if errors.Is(chkErr, sql.ErrNoRows) {
				return &model.NotFoundError{Entity: "reservation", ID: res.ID}
			}
			return chkErr
		}
	}
	const sel = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, res.ID).Scan(
		&res.ID, &res.ParkingSpotID, &res.VehicleID, &res.StartTime, &res.EndTime,
		&res.Status, &res.CreatedAt, &res.UpdatedAt,
	)
}

// Delete removes a reservation row.  It performs no registry call; freeing
// the spot is the orchestrator's concern.  Returns a NotFoundError when the
// row does not exist.
func (r *ReservationRepo) Delete(ctx context.Context, id uint64) error {
	const q = `DELETE FROM reservations WHERE id = ?`
	result, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &model.NotFoundError{Entity: "reservation", ID: id}
	}
	return nil
}

// List returns all reservations ordered by creation time descending.
func (r *ReservationRepo) List(ctx context.Context) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations ORDER BY created_at DESC, id DESC`
	return r.query(ctx, q)
}

// ListBySpot returns all reservations referencing the given parking spot.
func (r *ReservationRepo) ListBySpot(ctx context.Context, spotID uint64) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE parking_spot_id = ? ORDER BY created_at DESC, id DESC`
	return r.query(ctx, q, spotID)
}

// ListByVehicle returns all reservations referencing the given vehicle.
func (r *ReservationRepo) ListByVehicle(ctx context.Context, vehicleID uint64) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE vehicle_id = ? ORDER BY created_at DESC, id DESC`
	return r.query(ctx, q, vehicleID)
}

// ListByStatus returns all reservations currently in the given status.
// Status validation happens in the orchestrator before this is called.
func (r *ReservationRepo) ListByStatus(ctx context.Context, status string) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE status = ? ORDER BY created_at DESC, id DESC`
	return r.query(ctx, q, status)
}

// query runs a SELECT returning full reservation rows and scans them into
// a slice.  An empty result yields an empty (non-nil) slice.
func (r *ReservationRepo) query(ctx context.Context, q string, args ...interface{}) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		var res model.Reservation
		if err := rows.Scan(
			&res.ID, &res.ParkingSpotID, &res.VehicleID, &res.StartTime, &res.EndTime,
			&res.Status, &res.CreatedAt, &res.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
