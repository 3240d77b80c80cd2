// README: Trip store backed by PostgreSQL; seat mutations are conditional updates.
package trip

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, t *Trip) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO trips (
			id, driver_id,
			origin_lat, origin_lng, destination_lat, destination_lng,
			departure_at, capacity, available_seats,
			status, status_version, shareable, created_at
		) VALUES (
			$1, $2,
			$3, $4, $5, $6,
			$7, $8, $9,
			$10, $11, $12, $13
		)`,
		string(t.ID),
		string(t.DriverID),
		t.Origin.Lat, t.Origin.Lng,
		t.Destination.Lat, t.Destination.Lng,
		t.DepartureAt,
		t.Capacity,
		t.AvailableSeats,
		string(t.Status),
		t.StatusVersion,
		t.Shareable,
		t.CreatedAt,
	)
	return err
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Trip, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, driver_id,
		       origin_lat, origin_lng, destination_lat, destination_lng,
		       departure_at, capacity, available_seats,
		       status, status_version, shareable,
		       created_at, started_at, completed_at, cancelled_at
		FROM trips
		WHERE id = $1`, string(id),
	)
	t, err := scanTrip(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadAssignments(ctx, []*Trip{t}); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *PGStore) ListByDriver(ctx context.Context, driverID types.ID) ([]*Trip, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, driver_id,
		       origin_lat, origin_lng, destination_lat, destination_lng,
		       departure_at, capacity, available_seats,
		       status, status_version, shareable,
		       created_at, started_at, completed_at, cancelled_at
		FROM trips
		WHERE driver_id = $1
		ORDER BY id`, string(driverID),
	)
	if err != nil {
		return nil, err
	}
	return s.collectTrips(ctx, rows)
}

func (s *PGStore) ListActive(ctx context.Context) ([]*Trip, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, driver_id,
		       origin_lat, origin_lng, destination_lat, destination_lng,
		       departure_at, capacity, available_seats,
		       status, status_version, shareable,
		       created_at, started_at, completed_at, cancelled_at
		FROM trips
		WHERE status = 'active'
		ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	return s.collectTrips(ctx, rows)
}

// InsertAssignment relies on the conditional UPDATE to guard both the seat
// count and the trip status: a zero row count means the claim lost and the
// transaction rolls back without touching anything.
func (s *PGStore) InsertAssignment(ctx context.Context, tripID types.ID, a *Assignment, allowed []Status) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	statuses := make([]string, len(allowed))
	for i, st := range allowed {
		statuses[i] = string(st)
	}
	tag, err := tx.Exec(ctx, `
		UPDATE trips
		SET available_seats = available_seats - $1
		WHERE id = $2 AND available_seats >= $1 AND status = ANY($3)`,
		a.Seats, string(tripID), statuses,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		exists, err := s.tripExists(ctx, tripID)
		if err != nil {
			return false, err
		}
		if !exists {
			return false, ErrNotFound
		}
		return false, nil
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO trip_assignments (
			id, trip_id, passenger_id,
			pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
			seats, status, is_shared, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		string(a.ID),
		string(a.TripID),
		string(a.PassengerID),
		a.Pickup.Lat, a.Pickup.Lng,
		a.Dropoff.Lat, a.Dropoff.Lng,
		a.Seats,
		string(a.Status),
		a.IsShared,
		a.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (s *PGStore) ReleaseAssignment(ctx context.Context, tripID, passengerID types.ID, to AssignmentStatus) (bool, int, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var seats int
	err = tx.QueryRow(ctx, `
		UPDATE trip_assignments
		SET status = $1
		WHERE id = (
			SELECT id FROM trip_assignments
			WHERE trip_id = $2 AND passenger_id = $3
			  AND status IN ('confirmed', 'picked_up')
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE
		)
		RETURNING seats`,
		string(to), string(tripID), string(passengerID),
	).Scan(&seats)
	if errors.Is(err, pgx.ErrNoRows) {
		exists, err := s.tripExists(ctx, tripID)
		if err != nil {
			return false, 0, err
		}
		if !exists {
			return false, 0, ErrNotFound
		}
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE trips SET available_seats = available_seats + $1 WHERE id = $2`,
		seats, string(tripID),
	)
	if err != nil {
		return false, 0, err
	}
	return true, seats, tx.Commit(ctx)
}

func (s *PGStore) UpdateAssignmentStatus(ctx context.Context, tripID, passengerID types.ID, from, to AssignmentStatus) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE trip_assignments
		SET status = $1
		WHERE id = (
			SELECT id FROM trip_assignments
			WHERE trip_id = $2 AND passenger_id = $3 AND status = $4
			ORDER BY created_at
			LIMIT 1
		)`,
		string(to), string(tripID), string(passengerID), string(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE trips
		SET status = $1,
		    status_version = status_version + 1,
		    started_at = CASE WHEN $1 = 'in_progress' THEN NOW() ELSE started_at END,
		    completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END,
		    cancelled_at = CASE WHEN $1 = 'cancelled' THEN NOW() ELSE cancelled_at END
		WHERE id = $2 AND status = $3 AND status_version = $4`,
		string(to),
		string(id),
		string(from),
		version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) SetShareable(ctx context.Context, id types.ID, shareable bool) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE trips
		SET shareable = $1
		WHERE id = $2 AND status IN ('active', 'in_progress')`,
		shareable, string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO trip_state_events (
			trip_id, from_status, to_status, actor_type, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.TripID),
		string(e.FromStatus),
		string(e.ToStatus),
		e.ActorType,
		idPtrToString(e.ActorID),
		e.CreatedAt,
	)
	return err
}

func (s *PGStore) tripExists(ctx context.Context, id types.ID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM trips WHERE id = $1)`, string(id),
	).Scan(&exists)
	return exists, err
}

func (s *PGStore) collectTrips(ctx context.Context, rows pgx.Rows) ([]*Trip, error) {
	defer rows.Close()
	var out []*Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadAssignments(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PGStore) loadAssignments(ctx context.Context, trips []*Trip) error {
	if len(trips) == 0 {
		return nil
	}
	byID := make(map[types.ID]*Trip, len(trips))
	ids := make([]string, len(trips))
	for i, t := range trips {
		byID[t.ID] = t
		ids[i] = string(t.ID)
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, trip_id, passenger_id,
		       pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
		       seats, status, is_shared, created_at
		FROM trip_assignments
		WHERE trip_id = ANY($1)
		ORDER BY created_at, id`, ids,
	)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(
			&a.ID, &a.TripID, &a.PassengerID,
			&a.Pickup.Lat, &a.Pickup.Lng, &a.Dropoff.Lat, &a.Dropoff.Lng,
			&a.Seats, &a.Status, &a.IsShared, &a.CreatedAt,
		); err != nil {
			return err
		}
		if t, ok := byID[a.TripID]; ok {
			t.Assignments = append(t.Assignments, a)
		}
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(row rowScanner) (*Trip, error) {
	var t Trip
	var startedAt, completedAt, cancelledAt sql.NullTime
	err := row.Scan(
		&t.ID, &t.DriverID,
		&t.Origin.Lat, &t.Origin.Lng, &t.Destination.Lat, &t.Destination.Lng,
		&t.DepartureAt, &t.Capacity, &t.AvailableSeats,
		&t.Status, &t.StatusVersion, &t.Shareable,
		&t.CreatedAt, &startedAt, &completedAt, &cancelledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.StartedAt = nullTimePtr(startedAt)
	t.CompletedAt = nullTimePtr(completedAt)
	t.CancelledAt = nullTimePtr(cancelledAt)
	return &t, nil
}

func idPtrToString(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func nullTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
