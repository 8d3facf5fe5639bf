package crm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dennisdiepolder/monti/agentdesk/internal/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

type captured struct {
	method string
	path   string
	query  string
	auth   string
	key    string
	body   []byte
}

func newTestServer(t *testing.T, status int, response string) (*Client, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.Path
		got.query = r.URL.RawQuery
		got.auth = r.Header.Get("Authorization")
		got.key = r.Header.Get("Idempotency-Key")
		got.body, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)

	return NewClient(srv.URL, staticToken("tok"), time.Second, zerolog.Nop()), got
}

func TestLogCall(t *testing.T) {
	c, got := newTestServer(t, http.StatusCreated, `{"id":1}`)
	at := time.Date(2026, 3, 11, 9, 30, 0, 0, time.UTC)

	err := c.LogCall(context.Background(), types.CallLog{
		LeadID: 42, Outcome: types.OutcomeCallback, Duration: 61, Notes: "n", CallbackDate: &at,
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/api/v1/calls/log", got.path)
	assert.Equal(t, "Bearer tok", got.auth)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(got.body, &body))
	assert.Equal(t, float64(42), body["lead_id"])
	assert.Equal(t, "CALLBACK", body["outcome"])
	assert.Equal(t, float64(61), body["duration"])
	assert.Equal(t, "2026-03-11T09:30:00Z", body["callback_date"])
	assert.NotContains(t, body, "cancellation_reason")
}

func TestLogCallNon2xxIsFailure(t *testing.T) {
	c, _ := newTestServer(t, http.StatusBadRequest, `{"detail":"lead is locked"}`)

	err := c.LogCall(context.Background(), types.CallLog{LeadID: 1, Outcome: types.OutcomeNoAnswer})
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Contains(t, se.Error(), "lead is locked")
}

func TestCreateOrderSendsIdempotencyKey(t *testing.T) {
	c, got := newTestServer(t, http.StatusCreated, `{"id":77,"reference":"CC-77"}`)

	created, err := c.CreateOrder(context.Background(), types.OrderRequest{LeadID: 3, Total: 210, IsUpsell: true}, "key-1")
	require.NoError(t, err)

	assert.Equal(t, 77, created.ID)
	assert.Equal(t, "CC-77", created.Reference)
	assert.Equal(t, "/api/v1/orders/call-center", got.path)
	assert.Equal(t, "key-1", got.key)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(got.body, &body))
	assert.Equal(t, true, body["is_upsell"])
	assert.Equal(t, float64(210), body["total"])
}

func TestScheduleCallback(t *testing.T) {
	c, got := newTestServer(t, http.StatusOK, `{}`)

	err := c.ScheduleCallback(context.Background(), 42, types.CallbackRequest{
		CallbackTime: "2026-03-11T09:30:00Z", Status: types.LeadStatusCallback,
	})
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/leads/42/schedule-callback", got.path)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(got.body, &body))
	assert.Equal(t, "2026-03-11T09:30:00Z", body["callback_time"])
	assert.Equal(t, "CALLBACK", body["status"])
}

func TestQueueReads(t *testing.T) {
	t.Run("bare array", func(t *testing.T) {
		c, got := newTestServer(t, http.StatusOK, `[{"id":1,"name":"A"},{"id":2,"name":"B"}]`)
		leads, err := c.FocusQueue(context.Background())
		require.NoError(t, err)
		assert.Len(t, leads, 2)
		assert.Equal(t, http.MethodGet, got.method)
		assert.Equal(t, "/api/v1/call-center/focus-queue", got.path)
	})

	t.Run("paginated envelope", func(t *testing.T) {
		c, got := newTestServer(t, http.StatusOK, `{"count":1,"results":[{"id":5,"callback_date":"2026-03-10T15:00:00Z"}]}`)
		leads, err := c.Callbacks(context.Background())
		require.NoError(t, err)
		require.Len(t, leads, 1)
		require.NotNil(t, leads[0].CallbackAt)
		assert.Equal(t, "/api/v1/call-center/callbacks", got.path)
	})

	t.Run("stats", func(t *testing.T) {
		c, got := newTestServer(t, http.StatusOK, `{"total_calls":12,"confirmed":5,"confirmation_rate":41.6}`)
		stats, err := c.Stats(context.Background(), "today")
		require.NoError(t, err)
		assert.Equal(t, 12, stats.TotalCalls)
		assert.Equal(t, "today", stats.Period)
		assert.Equal(t, "period=today", got.query)
	})
}

func TestGetLead(t *testing.T) {
	c, got := newTestServer(t, http.StatusOK, `{"id":9,"name":"Hind","phone":"0600000000"}`)
	lead, err := c.GetLead(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, "Hind", lead.Name)
	assert.Equal(t, "/api/v1/leads/9", got.path)
}

func TestTransportErrorIsWrapped(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", nil, 200*time.Millisecond, zerolog.Nop())
	err := c.LogCall(context.Background(), types.CallLog{LeadID: 1})
	require.Error(t, err)

	var se *StatusError
	assert.False(t, errors.As(err, &se))
}
