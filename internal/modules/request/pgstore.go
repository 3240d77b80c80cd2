// README: Request store backed by PostgreSQL; status changes CAS on version.
package request

import (
	"context"
	"database/sql"
	"encoding/json"
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

const requestColumns = `
	id, rider_id,
	pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
	seats, status, status_version,
	matched_trip_id, price_cents, price_currency, candidates,
	created_at, matched_at, completed_at, cancelled_at`

func (s *PGStore) Create(ctx context.Context, r *Request) error {
	candidates, err := json.Marshal(r.Candidates)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO ride_requests (
			id, rider_id,
			pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
			seats, status, status_version, candidates, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		string(r.ID),
		string(r.RiderID),
		r.Pickup.Lat, r.Pickup.Lng,
		r.Dropoff.Lat, r.Dropoff.Lng,
		r.Seats,
		string(r.Status),
		r.StatusVersion,
		candidates,
		r.CreatedAt,
	)
	return err
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Request, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM ride_requests WHERE id = $1`, string(id))
	return scanRequest(row)
}

func (s *PGStore) ListByRider(ctx context.Context, riderID types.ID) ([]*Request, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+requestColumns+` FROM ride_requests WHERE rider_id = $1 ORDER BY created_at, id`,
		string(riderID))
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

func (s *PGStore) ListByMatchedTrip(ctx context.Context, tripID types.ID, statuses []Status) ([]*Request, error) {
	st := make([]string, len(statuses))
	for i, v := range statuses {
		st[i] = string(v)
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+requestColumns+` FROM ride_requests
		 WHERE matched_trip_id = $1 AND status = ANY($2)
		 ORDER BY created_at, id`,
		string(tripID), st)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

func (s *PGStore) HasOpenByRider(ctx context.Context, riderID types.ID) (bool, error) {
	var open bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM ride_requests
			WHERE rider_id = $1 AND status NOT IN ('completed', 'cancelled')
		)`, string(riderID),
	).Scan(&open)
	return open, err
}

func (s *PGStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, set StatusUpdate) (bool, error) {
	var tripID *string
	if set.MatchedTripID != nil {
		v := string(*set.MatchedTripID)
		tripID = &v
	}
	var priceCents *int64
	var priceCurrency *string
	if set.Price != nil {
		priceCents = &set.Price.Amount
		priceCurrency = &set.Price.Currency
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE ride_requests
		SET status = $1,
		    status_version = status_version + 1,
		    matched_trip_id = COALESCE($2, matched_trip_id),
		    price_cents = COALESCE($3, price_cents),
		    price_currency = COALESCE($4, price_currency),
		    matched_at = CASE WHEN $1 = 'matched' THEN NOW() ELSE matched_at END,
		    completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END,
		    cancelled_at = CASE WHEN $1 = 'cancelled' THEN NOW() ELSE cancelled_at END
		WHERE id = $5 AND status = $6 AND status_version = $7`,
		string(to), tripID, priceCents, priceCurrency,
		string(id), string(from), version,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		exists, err := s.requestExists(ctx, id)
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

func (s *PGStore) SetCandidates(ctx context.Context, id types.ID, from, to Status, version int, candidates []CandidateRef) (bool, error) {
	body, err := json.Marshal(candidates)
	if err != nil {
		return false, err
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE ride_requests
		SET status = $1,
		    status_version = status_version + 1,
		    candidates = $2
		WHERE id = $3 AND status = $4 AND status_version = $5`,
		string(to), body, string(id), string(from), version,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		exists, err := s.requestExists(ctx, id)
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

func (s *PGStore) requestExists(ctx context.Context, id types.ID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ride_requests WHERE id = $1)`, string(id),
	).Scan(&exists)
	return exists, err
}

func collectRequests(rows pgx.Rows) ([]*Request, error) {
	defer rows.Close()
	var out []*Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*Request, error) {
	var r Request
	var matchedTripID, priceCurrency sql.NullString
	var priceCents sql.NullInt64
	var candidates []byte
	var matchedAt, completedAt, cancelledAt sql.NullTime
	err := row.Scan(
		&r.ID, &r.RiderID,
		&r.Pickup.Lat, &r.Pickup.Lng, &r.Dropoff.Lat, &r.Dropoff.Lng,
		&r.Seats, &r.Status, &r.StatusVersion,
		&matchedTripID, &priceCents, &priceCurrency, &candidates,
		&r.CreatedAt, &matchedAt, &completedAt, &cancelledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if matchedTripID.Valid {
		id := types.ID(matchedTripID.String)
		r.MatchedTripID = &id
	}
	if priceCents.Valid && priceCurrency.Valid {
		r.Price = &types.Money{Amount: priceCents.Int64, Currency: priceCurrency.String}
	}
	if len(candidates) > 0 {
		if err := json.Unmarshal(candidates, &r.Candidates); err != nil {
			return nil, err
		}
	}
	r.MatchedAt = nullTimePtr(matchedAt)
	r.CompletedAt = nullTimePtr(completedAt)
	r.CancelledAt = nullTimePtr(cancelledAt)
	return &r, nil
}

func nullTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
