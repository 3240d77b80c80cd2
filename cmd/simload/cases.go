// README: Scenario cases for simload; env checks, the full pooling flow, seat contention, and perf probes.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/infra"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	runID      string
	driverUID  string
	primaryUID string
	poolUID    string
	driverTok  string
	primaryTok string
	poolTok    string

	tripID    string
	requestID string
	poolBidID string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name  string
	Focus string
	Run   func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	runID := "sim-" + uuid.NewString()[:8]
	return &Runner{
		cfg:        cfg,
		httpc:      &http.Client{Timeout: 10 * time.Second},
		runID:      runID,
		driverUID:  runID + "-driver",
		primaryUID: runID + "-rider-a",
		poolUID:    runID + "-rider-b",
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}

	return results
}

func (r *Runner) cases() []TestCase {
	base := r.cfg.BaseURL
	return []TestCase{
		{
			Name:  "Env: Postgres connect",
			Focus: "DB reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Env: Redis connect",
			Focus: "Redis reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "FAIL", Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Schema: tables exist",
			Focus: "migrations applied",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				tables, err := extractTables(r.cfg.MigrationsDir)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, t := range tables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
					if !exists {
						return Result{Status: "FAIL", Note: "missing table: " + t}
					}
				}
				return Result{Status: "PASS", Note: fmt.Sprintf("tables=%d", len(tables))}
			},
		},
		{
			Name:  "API: health check",
			Focus: "server reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				return r.expectStatus(ctx, http.MethodGet, base+"/health", "", nil, http.StatusOK)
			},
		},
		{
			Name:  "Auth: mint caller tokens",
			Focus: "token signing",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.cfg.JWTSecret == "" {
					return Result{Status: "FAIL", Note: "jwt secret not configured"}
				}
				var err error
				if r.driverTok, err = infra.SignToken(r.cfg.JWTSecret, r.driverUID, "driver", time.Hour); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if r.primaryTok, err = infra.SignToken(r.cfg.JWTSecret, r.primaryUID, "rider", time.Hour); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if r.poolTok, err = infra.SignToken(r.cfg.JWTSecret, r.poolUID, "rider", time.Hour); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Auth: missing token -> 401",
			Focus: "auth gate",
			Run: func(ctx context.Context, r *Runner) Result {
				return r.expectStatus(ctx, http.MethodGet, base+"/api/requests", "", nil, http.StatusUnauthorized)
			},
		},

		// Trip flow
		{
			Name:  "Trip: driver publishes shareable trip",
			Focus: "trip create",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.driverTok == "" {
					return Result{Status: "FAIL", Note: "no driver token"}
				}
				start := time.Now()
				id, err := r.createTrip(ctx, r.driverTok, 3, true)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				r.tripID = id
				return Result{Status: "PASS", Latency: time.Since(start), Note: "trip=" + id}
			},
		},
		{
			Name:  "Trip: rider publish forbidden -> 403",
			Focus: "role gate",
			Run: func(ctx context.Context, r *Runner) Result {
				return r.expectStatus(ctx, http.MethodPost, base+"/api/trips", r.primaryTok, tripBody(3, true), http.StatusForbidden)
			},
		},
		{
			Name:  "Trip: zero capacity -> 400",
			Focus: "validation",
			Run: func(ctx context.Context, r *Runner) Result {
				return r.expectStatus(ctx, http.MethodPost, base+"/api/trips", r.driverTok, tripBody(0, false), http.StatusBadRequest)
			},
		},
		{
			Name:  "Search: rider sees the trip",
			Focus: "matching index",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.tripID == "" {
					return Result{Status: "FAIL", Note: "no trip from earlier step"}
				}
				body := map[string]any{
					"pickup_lat":  25.034,
					"pickup_lng":  121.566,
					"dropoff_lat": 25.149,
					"dropoff_lng": 121.599,
					"radius_km":   5.0,
				}
				status, data, latency, err := r.call(ctx, http.MethodPost, base+"/api/trips/search", r.primaryTok, body)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if status != http.StatusOK {
					return Result{Status: "FAIL", Latency: latency, Note: apiError(status, data).Error()}
				}
				var out struct {
					Candidates []struct {
						TripID string `json:"trip_id"`
					} `json:"candidates"`
				}
				if err := json.Unmarshal(data, &out); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, c := range out.Candidates {
					if c.TripID == r.tripID {
						return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("candidates=%d", len(out.Candidates))}
					}
				}
				return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("trip not in %d candidates", len(out.Candidates))}
			},
		},

		// Request flow
		{
			Name:  "Request: rider submits request",
			Focus: "request create",
			Run: func(ctx context.Context, r *Runner) Result {
				start := time.Now()
				id, err := r.createRequest(ctx, r.primaryTok, 2)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				r.requestID = id
				return Result{Status: "PASS", Latency: time.Since(start), Note: "request=" + id}
			},
		},
		{
			Name:  "Request: duplicate open request -> 409",
			Focus: "single open request",
			Run: func(ctx context.Context, r *Runner) Result {
				return r.expectStatus(ctx, http.MethodPost, base+"/api/requests", r.primaryTok, requestBody(2), http.StatusConflict)
			},
		},
		{
			Name:  "Match: rider locks in the trip",
			Focus: "seat booking",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.requestID == "" || r.tripID == "" {
					return Result{Status: "FAIL", Note: "no request or trip from earlier step"}
				}
				status, data, latency, err := r.call(ctx, http.MethodPost,
					base+"/api/requests/"+r.requestID+"/accept-match", r.primaryTok,
					map[string]any{"trip_id": r.tripID})
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if status != http.StatusOK {
					return Result{Status: "FAIL", Latency: latency, Note: apiError(status, data).Error()}
				}
				var out struct {
					Status string `json:"status"`
				}
				if err := json.Unmarshal(data, &out); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if out.Status != "matched" {
					return Result{Status: "FAIL", Latency: latency, Note: "status=" + out.Status}
				}
				return Result{Status: "PASS", Latency: latency}
			},
		},
		{
			Name:  "Trip: seats held after match",
			Focus: "inventory",
			Run: func(ctx context.Context, r *Runner) Result {
				return r.expectSeats(ctx, 1)
			},
		},

		// Pool flow
		{
			Name:  "Pool: second rider bids",
			Focus: "pool create",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.tripID == "" {
					return Result{Status: "FAIL", Note: "no trip from earlier step"}
				}
				status, data, latency, err := r.call(ctx, http.MethodPost,
					base+"/api/trips/"+r.tripID+"/pool-requests", r.poolTok, requestBody(1))
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if status != http.StatusCreated {
					return Result{Status: "FAIL", Latency: latency, Note: apiError(status, data).Error()}
				}
				var out struct {
					ID string `json:"pool_request_id"`
				}
				if err := json.Unmarshal(data, &out); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				r.poolBidID = out.ID
				return Result{Status: "PASS", Latency: latency, Note: "bid=" + out.ID}
			},
		},
		{
			Name:  "Pool: bidder cannot give primary verdict -> 403",
			Focus: "authorization",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.poolBidID == "" {
					return Result{Status: "FAIL", Note: "no pool bid from earlier step"}
				}
				return r.expectStatus(ctx, http.MethodPost,
					base+"/api/pool-requests/"+r.poolBidID+"/primary-rider-action", r.poolTok,
					map[string]any{"action": "accept"}, http.StatusForbidden)
			},
		},
		{
			Name:  "Pool: primary rider accepts",
			Focus: "negotiation stage 1",
			Run: func(ctx context.Context, r *Runner) Result {
				return r.poolAction(ctx, "primary-rider-action", r.primaryTok, "primary_rider_accepted")
			},
		},
		{
			Name:  "Pool: driver confirms",
			Focus: "negotiation stage 2",
			Run: func(ctx context.Context, r *Runner) Result {
				return r.poolAction(ctx, "driver-action", r.driverTok, "accepted")
			},
		},
		{
			Name:  "Trip: pooled seats committed",
			Focus: "inventory",
			Run: func(ctx context.Context, r *Runner) Result {
				return r.expectSeats(ctx, 0)
			},
		},

		// Lifecycle
		{
			Name:  "Trip: driver starts",
			Focus: "lifecycle",
			Run: func(ctx context.Context, r *Runner) Result {
				return r.expectStatus(ctx, http.MethodPost, base+"/api/trips/"+r.tripID+"/start", r.driverTok, nil, http.StatusOK)
			},
		},
		{
			Name:  "Trip: rider picked up",
			Focus: "passenger progress",
			Run: func(ctx context.Context, r *Runner) Result {
				return r.expectStatus(ctx, http.MethodPost,
					base+"/api/trips/"+r.tripID+"/passenger-status", r.driverTok,
					map[string]any{"passenger_id": r.primaryUID, "status": "picked_up"}, http.StatusOK)
			},
		},
		{
			Name:  "Trip: driver completes",
			Focus: "lifecycle",
			Run: func(ctx context.Context, r *Runner) Result {
				return r.expectStatus(ctx, http.MethodPost, base+"/api/trips/"+r.tripID+"/complete", r.driverTok, nil, http.StatusOK)
			},
		},
		{
			Name:  "Trip: completed cannot restart -> 409",
			Focus: "state machine",
			Run: func(ctx context.Context, r *Runner) Result {
				return r.expectStatus(ctx, http.MethodPost, base+"/api/trips/"+r.tripID+"/start", r.driverTok, nil, http.StatusConflict)
			},
		},

		// Concurrency
		{
			Name:  "Concurrency: single winner for last seat",
			Focus: "seat CAS under contention",
			Run: func(ctx context.Context, r *Runner) Result {
				return concurrentSeatBooking(ctx, r)
			},
		},

		manualCase("Notify: events on the bus", "bind a queue to the rideshare.notifications exchange and watch trip/pool routing keys"),
		manualCase("Error: DB down -> 500", "stop Postgres and repeat the trip flow"),

		// Performance
		{
			Name:  "Perf: search throughput",
			Focus: "read path under load",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, http.MethodPost, base+"/api/trips/search", r.primaryTok, map[string]any{
					"pickup_lat":  25.034,
					"pickup_lng":  121.566,
					"dropoff_lat": 25.149,
					"dropoff_lng": 121.599,
					"radius_km":   5.0,
				})
			},
		},
		{
			Name:  "Perf: trip reads",
			Focus: "status polling under load",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.tripID == "" {
					return Result{Status: "FAIL", Note: "no trip from earlier step"}
				}
				return perfLoad(ctx, r, http.MethodGet, base+"/api/trips/"+r.tripID, r.primaryTok, nil)
			},
		},
	}
}

func manualCase(name, note string) TestCase {
	return TestCase{
		Name:  name,
		Focus: "Manual",
		Run: func(ctx context.Context, r *Runner) Result {
			return Result{Status: "SKIP", Note: note}
		},
	}
}

// call sends one JSON request and returns the status, raw body, and latency.
func (r *Runner) call(ctx context.Context, method, url, token string, body any) (int, []byte, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, 0, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, 0, err
	}
	return resp.StatusCode, data, time.Since(start), nil
}

func (r *Runner) expectStatus(ctx context.Context, method, url, token string, body any, want int) Result {
	status, data, latency, err := r.call(ctx, method, url, token, body)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	if status != want {
		return Result{Status: "FAIL", Latency: latency, Note: apiError(status, data).Error() + fmt.Sprintf(" want=%d", want)}
	}
	return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
}

func (r *Runner) expectSeats(ctx context.Context, want int) Result {
	if r.tripID == "" {
		return Result{Status: "FAIL", Note: "no trip from earlier step"}
	}
	status, data, latency, err := r.call(ctx, http.MethodGet, r.cfg.BaseURL+"/api/trips/"+r.tripID, r.driverTok, nil)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	if status != http.StatusOK {
		return Result{Status: "FAIL", Latency: latency, Note: apiError(status, data).Error()}
	}
	var out struct {
		AvailableSeats int `json:"available_seats"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	if out.AvailableSeats != want {
		return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("seats=%d want=%d", out.AvailableSeats, want)}
	}
	return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("seats=%d", out.AvailableSeats)}
}

func (r *Runner) poolAction(ctx context.Context, action, token, wantStatus string) Result {
	if r.poolBidID == "" {
		return Result{Status: "FAIL", Note: "no pool bid from earlier step"}
	}
	status, data, latency, err := r.call(ctx, http.MethodPost,
		r.cfg.BaseURL+"/api/pool-requests/"+r.poolBidID+"/"+action, token,
		map[string]any{"action": "accept"})
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	if status != http.StatusOK {
		return Result{Status: "FAIL", Latency: latency, Note: apiError(status, data).Error()}
	}
	var out struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	if out.Status != wantStatus {
		return Result{Status: "FAIL", Latency: latency, Note: "status=" + out.Status}
	}
	return Result{Status: "PASS", Latency: latency}
}

func tripBody(capacity int, shareable bool) map[string]any {
	return map[string]any{
		"origin_lat":      25.033,
		"origin_lng":      121.565,
		"destination_lat": 25.150,
		"destination_lng": 121.600,
		"departure_at":    time.Now().Add(2 * time.Hour).Format(time.RFC3339),
		"capacity":        capacity,
		"shareable":       shareable,
	}
}

func requestBody(seats int) map[string]any {
	return map[string]any{
		"pickup_lat":  25.034,
		"pickup_lng":  121.566,
		"dropoff_lat": 25.149,
		"dropoff_lng": 121.599,
		"seats":       seats,
	}
}

func (r *Runner) createTrip(ctx context.Context, token string, capacity int, shareable bool) (string, error) {
	status, data, _, err := r.call(ctx, http.MethodPost, r.cfg.BaseURL+"/api/trips", token, tripBody(capacity, shareable))
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return "", apiError(status, data)
	}
	var out struct {
		ID string `json:"trip_id"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (r *Runner) createRequest(ctx context.Context, token string, seats int) (string, error) {
	status, data, _, err := r.call(ctx, http.MethodPost, r.cfg.BaseURL+"/api/requests", token, requestBody(seats))
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return "", apiError(status, data)
	}
	var out struct {
		ID string `json:"request_id"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func apiError(status int, data []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(data, &e)
	if e.Error != "" {
		return fmt.Errorf("status=%d error=%q", status, e.Error)
	}
	return fmt.Errorf("status=%d", status)
}

// concurrentSeatBooking publishes a one-seat trip, lines up N riders with
// open requests, then fires their accept-match calls at once. Exactly one
// may win the seat.
func concurrentSeatBooking(ctx context.Context, r *Runner) Result {
	if r.driverTok == "" {
		return Result{Status: "FAIL", Note: "no driver token"}
	}
	tripID, err := r.createTrip(ctx, r.driverTok, 1, false)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}

	type contender struct {
		token     string
		requestID string
	}
	contenders := make([]contender, 0, r.cfg.Concurrency)
	for i := 0; i < r.cfg.Concurrency; i++ {
		tok, err := infra.SignToken(r.cfg.JWTSecret, fmt.Sprintf("%s-c%d", r.runID, i), "rider", time.Hour)
		if err != nil {
			return Result{Status: "FAIL", Note: err.Error()}
		}
		reqID, err := r.createRequest(ctx, tok, 1)
		if err != nil {
			return Result{Status: "FAIL", Note: err.Error()}
		}
		contenders = append(contenders, contender{token: tok, requestID: reqID})
	}

	wg := sync.WaitGroup{}
	succ := 0
	mu := sync.Mutex{}
	for _, c := range contenders {
		wg.Add(1)
		go func(c contender) {
			defer wg.Done()
			status, _, _, err := r.call(ctx, http.MethodPost,
				r.cfg.BaseURL+"/api/requests/"+c.requestID+"/accept-match", c.token,
				map[string]any{"trip_id": tripID})
			if err != nil {
				return
			}
			mu.Lock()
			if status >= 200 && status < 300 {
				succ++
			}
			mu.Unlock()
		}(c)
	}
	wg.Wait()

	if succ == 1 {
		return Result{Status: "PASS", Note: fmt.Sprintf("success=%d", succ)}
	}
	return Result{Status: "FAIL", Note: fmt.Sprintf("success=%d", succ)}
}

func perfLoad(ctx context.Context, r *Runner, method, url, token string, payload any) Result {
	end := time.Now().Add(r.cfg.Duration)
	var count int64
	var errCount int64
	var mu sync.Mutex
	wg := sync.WaitGroup{}

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) {
				status, _, _, err := r.call(ctx, method, url, token, payload)
				mu.Lock()
				if err != nil || status >= 500 {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: "FAIL", Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: "PASS", Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

func extractTables(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no migration files in %s", dir)
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	tables := make([]string, 0, len(files))
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		for _, m := range re.FindAllStringSubmatch(string(b), -1) {
			tables = append(tables, m[1])
		}
	}
	return tables, nil
}
