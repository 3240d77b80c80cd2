package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/dispatch"
	apihttp "github.com/shreyasss-12/Thank-You-Beyonc/internal/http"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/infra"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/modules/matching"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/modules/pool"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/modules/pricing"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/modules/request"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/modules/trip"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/notify"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

// Bearer tokens the stub verifier resolves to fixed identities.
const (
	driverTok  = "driver-token"
	driver2Tok = "driver2-token"
	riderATok  = "rider-a-token"
	riderBTok  = "rider-b-token"
	riderCTok  = "rider-c-token"
)

// kmLat is roughly one kilometre of latitude in degrees.
const kmLat = 0.008993

var (
	tripOrigin = types.Point{Lat: 25.033, Lng: 121.565}
	tripDest   = types.Point{Lat: 25.150, Lng: 121.600}
)

// tokenVerifier is a test double for infra.TokenVerifier keyed by raw token.
type tokenVerifier struct {
	ids map[string]infra.Identity
}

func (v *tokenVerifier) Verify(_ context.Context, token string) (infra.Identity, error) {
	id, ok := v.ids[token]
	if !ok {
		return infra.Identity{}, infra.ErrInvalidToken
	}
	return id, nil
}

type testServer struct {
	handler http.Handler
	trips   *trip.Service
	sink    *notify.MemorySink
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	trips := trip.NewService(trip.NewMemStore())
	requests := request.NewService(request.NewMemStore())
	sink := notify.NewMemorySink()
	pools := pool.NewService(pool.NewMemStore(), trips, trips, sink)
	prices := pricing.NewService(pricing.DefaultRate, nil)
	index := matching.NewMemoryIndex()
	matcher := matching.NewService(index, trips, prices, 0)
	co := dispatch.NewCoordinator(dispatch.Deps{
		Trips:    trips,
		Requests: requests,
		Pools:    pools,
		Matcher:  matcher,
		Pricing:  prices,
		Index:    index,
		Sink:     sink,
		LockWait: 250 * time.Millisecond,
	})

	verifier := &tokenVerifier{ids: map[string]infra.Identity{
		driverTok:  {UID: "driver_1", Role: "driver"},
		driver2Tok: {UID: "driver_2", Role: "driver"},
		riderATok:  {UID: "rider_a", Role: "rider"},
		riderBTok:  {UID: "rider_b", Role: "rider"},
		riderCTok:  {UID: "rider_c", Role: "rider"},
	}}

	srv := apihttp.NewServer(apihttp.ServerDeps{
		Coordinator: co,
		Trips:       trips,
		Requests:    requests,
		Pools:       pools,
		Verifier:    verifier,
	})
	return &testServer{handler: srv.Routes(), trips: trips, sink: sink}
}

func (ts *testServer) doRequest(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
}

// createTrip books a trip for driver_1 departing in two hours and returns
// its id.
func (ts *testServer) createTrip(t *testing.T, capacity int, shareable bool) string {
	t.Helper()
	w := ts.doRequest(t, http.MethodPost, "/api/trips", driverTok, map[string]any{
		"origin_lat":      tripOrigin.Lat,
		"origin_lng":      tripOrigin.Lng,
		"destination_lat": tripDest.Lat,
		"destination_lng": tripDest.Lng,
		"departure_at":    time.Now().Add(2 * time.Hour).Format(time.RFC3339),
		"capacity":        capacity,
		"shareable":       shareable,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create trip: status %d body %s", w.Code, w.Body.String())
	}
	var resp struct {
		TripID string `json:"trip_id"`
	}
	decodeBody(t, w, &resp)
	if resp.TripID == "" {
		t.Fatal("create trip: empty trip_id")
	}
	return resp.TripID
}

// createRequest opens a ride request near the fixture trip's route and
// returns its id.
func (ts *testServer) createRequest(t *testing.T, token string, seats int) string {
	t.Helper()
	w := ts.doRequest(t, http.MethodPost, "/api/requests", token, map[string]any{
		"pickup_lat":  tripOrigin.Lat + kmLat,
		"pickup_lng":  tripOrigin.Lng,
		"dropoff_lat": tripDest.Lat + kmLat,
		"dropoff_lng": tripDest.Lng,
		"seats":       seats,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create request: status %d body %s", w.Code, w.Body.String())
	}
	var resp struct {
		RequestID string `json:"request_id"`
	}
	decodeBody(t, w, &resp)
	if resp.RequestID == "" {
		t.Fatal("create request: empty request_id")
	}
	return resp.RequestID
}

// availableSeats reads the trip's open seat count over the API.
func (ts *testServer) availableSeats(t *testing.T, tripID string) int {
	t.Helper()
	w := ts.doRequest(t, http.MethodGet, "/api/trips/"+tripID, driverTok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get trip: status %d body %s", w.Code, w.Body.String())
	}
	var resp struct {
		AvailableSeats int `json:"available_seats"`
	}
	decodeBody(t, w, &resp)
	return resp.AvailableSeats
}
