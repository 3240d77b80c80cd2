// README: Pool request store backed by PostgreSQL; status changes CAS on version.
package pool

import (
	"context"
	"database/sql"
	"errors"

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

const poolRequestColumns = `
	id, trip_id, requester_id, primary_rider_id, driver_id,
	pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
	seats, status, status_version, rejection_reason,
	created_at, updated_at`

func (s *PGStore) Create(ctx context.Context, p *PoolRequest) error {
	var primary *string
	if p.PrimaryRiderID != nil {
		v := string(*p.PrimaryRiderID)
		primary = &v
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO pool_requests (
			id, trip_id, requester_id, primary_rider_id, driver_id,
			pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
			seats, status, status_version, rejection_reason,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		string(p.ID),
		string(p.TripID),
		string(p.RequesterID),
		primary,
		string(p.DriverID),
		p.Pickup.Lat, p.Pickup.Lng,
		p.Dropoff.Lat, p.Dropoff.Lng,
		p.Seats,
		string(p.Status),
		p.StatusVersion,
		p.RejectionReason,
		p.CreatedAt,
		p.UpdatedAt,
	)
	return err
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*PoolRequest, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+poolRequestColumns+` FROM pool_requests WHERE id = $1`, string(id))
	return scanPoolRequest(row)
}

func (s *PGStore) ListByRequester(ctx context.Context, requesterID types.ID) ([]*PoolRequest, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+poolRequestColumns+` FROM pool_requests
		 WHERE requester_id = $1 ORDER BY created_at DESC, id`,
		string(requesterID))
	if err != nil {
		return nil, err
	}
	return collectPoolRequests(rows)
}

func (s *PGStore) ListByTrip(ctx context.Context, tripID types.ID, statuses []Status) ([]*PoolRequest, error) {
	if len(statuses) == 0 {
		rows, err := s.db.Query(ctx,
			`SELECT `+poolRequestColumns+` FROM pool_requests
			 WHERE trip_id = $1 ORDER BY created_at DESC, id`,
			string(tripID))
		if err != nil {
			return nil, err
		}
		return collectPoolRequests(rows)
	}
	st := make([]string, len(statuses))
	for i, v := range statuses {
		st[i] = string(v)
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+poolRequestColumns+` FROM pool_requests
		 WHERE trip_id = $1 AND status = ANY($2)
		 ORDER BY created_at DESC, id`,
		string(tripID), st)
	if err != nil {
		return nil, err
	}
	return collectPoolRequests(rows)
}

func (s *PGStore) ListAwaitingPrimary(ctx context.Context, riderID types.ID) ([]*PoolRequest, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+poolRequestColumns+` FROM pool_requests
		 WHERE primary_rider_id = $1 AND status = 'pending'
		 ORDER BY created_at DESC, id`,
		string(riderID))
	if err != nil {
		return nil, err
	}
	return collectPoolRequests(rows)
}

func (s *PGStore) ListAwaitingDriver(ctx context.Context, driverID types.ID) ([]*PoolRequest, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+poolRequestColumns+` FROM pool_requests
		 WHERE driver_id = $1
		   AND (status = 'primary_rider_accepted'
		        OR (status = 'pending' AND primary_rider_id IS NULL))
		 ORDER BY created_at DESC, id`,
		string(driverID))
	if err != nil {
		return nil, err
	}
	return collectPoolRequests(rows)
}

func (s *PGStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, reason string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE pool_requests
		SET status = $1,
		    status_version = status_version + 1,
		    rejection_reason = CASE WHEN $2 = '' THEN rejection_reason ELSE $2 END,
		    updated_at = NOW()
		WHERE id = $3 AND status = $4 AND status_version = $5`,
		string(to), reason, string(id), string(from), version,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		err := s.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM pool_requests WHERE id = $1)`, string(id),
		).Scan(&exists)
		if err != nil {
			return false, err
		}
		if !exists {
			return false, ErrNotFound
		}
		return false, nil
	}
	return true, nil
}

func collectPoolRequests(rows pgx.Rows) ([]*PoolRequest, error) {
	defer rows.Close()
	var out []*PoolRequest
	for rows.Next() {
		p, err := scanPoolRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPoolRequest(row rowScanner) (*PoolRequest, error) {
	var p PoolRequest
	var primary sql.NullString
	err := row.Scan(
		&p.ID, &p.TripID, &p.RequesterID, &primary, &p.DriverID,
		&p.Pickup.Lat, &p.Pickup.Lng, &p.Dropoff.Lat, &p.Dropoff.Lng,
		&p.Seats, &p.Status, &p.StatusVersion, &p.RejectionReason,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if primary.Valid {
		id := types.ID(primary.String)
		p.PrimaryRiderID = &id
	}
	return &p, nil
}
