package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutoring_scheduler/internal/clock"
	"github.com/Freeeeeet/tutoring_scheduler/internal/config"
	"github.com/Freeeeeet/tutoring_scheduler/internal/controller/httpapi"
	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func memoryConfig() *config.Config {
	return &config.Config{
		Environment:            "test",
		StorageDriver:          config.StorageMemory,
		DisplayTimezone:        "UTC",
		MeetingTokenSecret:     "test-secret-test-secret-test-secret",
		MeetingTokenTTL:        2 * time.Hour,
		SweepSchedule:          "@every 1m",
		OutboxSchedule:         "@every 10s",
		SlotGenerationSchedule: "@daily",
		SlotGenerationWeeks:    4,
		AutoCompleteSessions:   true,
		RequestTTL:             7 * 24 * time.Hour,
		RequestExtension:       7 * 24 * time.Hour,
		RequestExtensionWindow: 24 * time.Hour,
		ProposalTTL:            24 * time.Hour,
		MaxNegotiationRounds:   3,
		SlotDuration:           time.Hour,
		SlotCancellationCutoff: time.Hour,
		StartingSoonWindow:     15 * time.Minute,
		SweepBatchSize:         200,
		OutboxBatchSize:        50,
		OutboxMaxAttempts:      8,
		OutboxRetryBackoff:     5 * time.Second,
		OutboxRetryMaxDelay:    10 * time.Minute,
		OutboxLeaseTTL:         time.Minute,
	}
}

type client struct {
	t      *testing.T
	server *httptest.Server
}

func (c client) call(a model.Actor, method, path string, body any, out any) int {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.server.URL+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set(httpapi.HeaderActorID, a.ID.String())
	req.Header.Set(httpapi.HeaderActorRole, string(a.Role))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestMemoryEngineEndToEnd(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(t0)

	a, err := New(ctx, memoryConfig(), clk, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.Pool())
	assert.Nil(t, a.Bot)

	server := httptest.NewServer(a.Handler)
	defer server.Close()
	c := client{t: t, server: server}

	student := model.Actor{ID: uuid.New(), Role: model.RoleStudent}
	tutor := model.Actor{ID: uuid.New(), Role: model.RoleTutor}
	payload := map[string]any{"kind": "TRIAL", "subject": "Химия", "grade_level": "8", "school_type": "Школа"}

	var accepted, stale model.Request
	require.Equal(t, http.StatusCreated, c.call(student, http.MethodPost, "/v1/requests", payload, &accepted))
	require.Equal(t, http.StatusCreated, c.call(student, http.MethodPost, "/v1/requests", payload, &stale))
	require.Equal(t, http.StatusOK, c.call(tutor, http.MethodPost, "/v1/requests/"+accepted.ID.String()+"/accept", nil, &accepted))
	require.NotNil(t, accepted.ChatID)

	t.Run("outbox delivers system messages into the chat", func(t *testing.T) {
		res, err := a.Scheduler.RunOutboxOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, res.Leased)
		assert.Equal(t, 3, res.Delivered)

		var messages []model.ChatMessage
		require.Equal(t, http.StatusOK, c.call(student, http.MethodGet, "/v1/chats/"+accepted.ChatID.String()+"/messages", nil, &messages))
		require.NotEmpty(t, messages)
		assert.Equal(t, model.MessageKindSystem, messages[0].Kind)
	})

	t.Run("sweep expires the untouched request", func(t *testing.T) {
		clk.Advance(7 * 24 * time.Hour)

		report, err := a.Scheduler.RunSweepOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.RequestsExpired)

		var got model.Request
		c.call(student, http.MethodGet, "/v1/requests/"+stale.ID.String(), nil, &got)
		assert.Equal(t, model.RequestStatusExpired, got.Status)

		c.call(student, http.MethodGet, "/v1/requests/"+accepted.ID.String(), nil, &got)
		assert.Equal(t, model.RequestStatusAccepted, got.Status)
	})
}

func TestNewRejectsBadSchedule(t *testing.T) {
	cfg := memoryConfig()
	cfg.SweepSchedule = "every minute please"

	_, err := New(context.Background(), cfg, clock.NewFake(t0), zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sweep")
}
