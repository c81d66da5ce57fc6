package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumlife/focuscoach/internal/catalog"
	"github.com/quantumlife/focuscoach/internal/core"
	"github.com/quantumlife/focuscoach/internal/intervention"
	"github.com/quantumlife/focuscoach/internal/metrics"
	"github.com/quantumlife/focuscoach/internal/storage"
	"github.com/quantumlife/focuscoach/internal/testutil"
)

// testServer creates a test server backed by an in-memory database
func testServer(t *testing.T) *Server {
	t.Helper()

	reg := prometheus.NewRegistry()
	clock := testutil.NewClock(testutil.Epoch)
	svc, err := intervention.NewService(
		storage.NewProfileStore(testutil.TestDB(t)),
		catalog.MustBuiltin(),
		intervention.DefaultPolicyConfig(),
		intervention.WithClock(clock.Now),
		intervention.WithMetrics(metrics.MustNewMetrics(reg)),
	)
	require.NoError(t, err)

	srv := New(Config{Service: svc, Gatherer: reg, Version: "test"})
	t.Cleanup(srv.Hub().Close)
	return srv
}

func do(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, r)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
}

func decideBody(ctx map[string]interface{}) DecideRequest {
	return DecideRequest{Context: ctx}
}

func TestHealth(t *testing.T) {
	srv := testServer(t)

	rr := do(t, srv, "GET", "/healthz", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]interface{}
	decode(t, rr, &body)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.EqualValues(t, catalog.MustBuiltin().Len(), body["templates"])
}

func TestDecideAndFeedback(t *testing.T) {
	srv := testServer(t)

	rr := do(t, srv, "POST", "/v1/users/alice/decisions", decideBody(testutil.DistractedContext()))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var result core.DecisionResult
	decode(t, rr, &result)
	require.Equal(t, core.OutcomeIntervene, result.Outcome)
	require.NotNil(t, result.Intervention)
	assert.Equal(t, core.UserID("alice"), result.Intervention.UserID)
	assert.NotEmpty(t, result.Intervention.Steps)

	path := "/v1/users/alice/interventions/" + string(result.Intervention.ID) + "/feedback"
	fb := map[string]interface{}{"completion": true, "satisfaction": 0.8}

	rr = do(t, srv, "POST", path, fb)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var status FeedbackResponse
	decode(t, rr, &status)
	assert.Equal(t, core.FeedbackOK, status.Status)

	rr = do(t, srv, "POST", path, fb)
	require.Equal(t, http.StatusOK, rr.Code)
	decode(t, rr, &status)
	assert.Equal(t, core.FeedbackAlreadyRecorded, status.Status)

	rr = do(t, srv, "POST", "/v1/users/alice/interventions/nope/feedback", fb)
	require.Equal(t, http.StatusOK, rr.Code)
	decode(t, rr, &status)
	assert.Equal(t, core.FeedbackUnknownIntervention, status.Status)
}

func TestDecideWarnsOnBadSignals(t *testing.T) {
	srv := testServer(t)

	ctx := testutil.DistractedContext()
	ctx["mood"] = "great"
	rr := do(t, srv, "POST", "/v1/users/alice/decisions", decideBody(ctx))
	require.Equal(t, http.StatusOK, rr.Code)

	var result core.DecisionResult
	decode(t, rr, &result)
	assert.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "mood")
}

func TestDecideProtectsFlow(t *testing.T) {
	srv := testServer(t)

	rr := do(t, srv, "POST", "/v1/users/bob/decisions", decideBody(testutil.FlowContext()))
	require.Equal(t, http.StatusOK, rr.Code)

	var result core.DecisionResult
	decode(t, rr, &result)
	assert.Equal(t, core.OutcomeSkipped, result.Outcome)
	assert.Equal(t, core.ReasonFlow, result.Reason)
	assert.Nil(t, result.Intervention)
}

func TestBadRequests(t *testing.T) {
	srv := testServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"malformed decision", "POST", "/v1/users/alice/decisions", "{", http.StatusBadRequest},
		{"malformed feedback", "POST", "/v1/users/alice/interventions/x/feedback", "[]", http.StatusBadRequest},
		{"satisfaction out of range", "POST", "/v1/users/alice/interventions/x/feedback",
			map[string]interface{}{"completion": true, "satisfaction": 1.5}, http.StatusBadRequest},
		{"invalid trait", "PUT", "/v1/users/alice/traits",
			map[string]interface{}{"learning_style": "osmosis", "communication": "direct", "work_pattern": "flexible", "cognitive_load_threshold": 0.7},
			http.StatusBadRequest},
		{"unknown profile", "GET", "/v1/users/ghost/profile", nil, http.StatusNotFound},
		{"unknown user delete", "DELETE", "/v1/users/ghost", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())

			var body map[string]string
			decode(t, rr, &body)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestTraitsProfileAndDelete(t *testing.T) {
	srv := testServer(t)

	rr := do(t, srv, "PUT", "/v1/users/carol/traits", core.TraitPresets["INTJ"])
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var p core.UserProfile
	decode(t, rr, &p)
	assert.Equal(t, core.UserID("carol"), p.UserID)
	assert.Equal(t, core.LearningSystematic, p.Traits.LearningStyle)

	rr = do(t, srv, "GET", "/v1/users/carol/profile", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	decode(t, rr, &p)
	assert.Equal(t, core.CommDirect, p.Traits.Communication)

	rr = do(t, srv, "DELETE", "/v1/users/carol", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, srv, "GET", "/v1/users/carol/profile", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCandidates(t *testing.T) {
	srv := testServer(t)

	rr := do(t, srv, "POST", "/v1/users/dave/candidates", decideBody(testutil.DistractedContext()))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp CandidatesResponse
	decode(t, rr, &resp)
	require.NotEmpty(t, resp.Candidates)
	for i := 1; i < len(resp.Candidates); i++ {
		assert.GreaterOrEqual(t, resp.Candidates[i-1].Score, resp.Candidates[i].Score)
	}
	assert.InDelta(t, 0.6, resp.Assessed.CognitiveLoad, 1e-9)

	// Ranking is read-only
	rr = do(t, srv, "GET", "/v1/users/dave/profile", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCatalogEndpoints(t *testing.T) {
	srv := testServer(t)

	rr := do(t, srv, "GET", "/v1/catalog", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp CatalogResponse
	decode(t, rr, &resp)
	assert.Len(t, resp.Templates, catalog.MustBuiltin().Len())
	assert.NotEmpty(t, resp.Categories)

	noDefault := `
templates:
  - id: breathe
    category: stress
    load_band: {min: 0, max: 1}
    actions:
      - {text: Breathe slowly, duration: 1m, priority: 1}
`
	rr = do(t, srv, "PUT", "/v1/catalog", noDefault)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, rr.Body.String())

	valid := noDefault + `    default: true
`
	rr = do(t, srv, "PUT", "/v1/catalog", valid)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	decode(t, rr, &resp)
	require.Len(t, resp.Templates, 1)
	assert.Equal(t, time.Minute, resp.Templates[0].Actions[0].Duration)

	rr = do(t, srv, "POST", "/v1/users/erin/decisions", decideBody(testutil.DistractedContext()))
	require.Equal(t, http.StatusOK, rr.Code)
	var result core.DecisionResult
	decode(t, rr, &result)
	require.NotNil(t, result.Intervention)
	assert.Equal(t, core.TemplateID("breathe"), result.Intervention.TemplateID)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t)

	do(t, srv, "POST", "/v1/users/alice/decisions", decideBody(testutil.DistractedContext()))

	rr := do(t, srv, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "focuscoach_engine_decisions_total")
}

func TestStreamDeliversInterventions(t *testing.T) {
	srv := testServer(t)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/users/alice/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return srv.Hub().Subscribers("alice") == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Other users' decisions are not delivered
	do(t, srv, "POST", "/v1/users/bob/decisions", decideBody(testutil.DistractedContext()))
	rr := do(t, srv, "POST", "/v1/users/alice/decisions", decideBody(testutil.DistractedContext()))
	require.Equal(t, http.StatusOK, rr.Code)
	var result core.DecisionResult
	decode(t, rr, &result)
	require.NotNil(t, result.Intervention)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev struct {
		Type   string            `json:"type"`
		UserID core.UserID       `json:"user_id"`
		Data   core.Intervention `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, EventIntervention, ev.Type)
	assert.Equal(t, core.UserID("alice"), ev.UserID)
	assert.Equal(t, result.Intervention.ID, ev.Data.ID)

	conn.Close()
	require.Eventually(t, func() bool {
		return srv.Hub().Subscribers("alice") == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStreamHubCloseDisconnects(t *testing.T) {
	srv := testServer(t)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/users/alice/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return srv.Hub().Subscribers("alice") == 1
	}, 2*time.Second, 10*time.Millisecond)

	srv.Hub().Close()
	assert.Zero(t, srv.Hub().Subscribers("alice"))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)

	// Publishing after close is a no-op
	srv.Hub().Publish("alice", EventFeedback, nil)
}
