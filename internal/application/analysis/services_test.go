package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethica-ai/ethica-relay/internal/application"
	domain "github.com/ethica-ai/ethica-relay/internal/domain/analysis"
)

type analyzerFunc func(ctx context.Context, body []byte) ([]byte, error)

func (f analyzerFunc) Analyze(ctx context.Context, body []byte) ([]byte, error) { return f(ctx, body) }

type memRepo struct {
	mu      sync.Mutex
	records []*domain.Record
	saveErr error
}

func (m *memRepo) Save(_ context.Context, r *domain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records = append(m.records, r)
	return nil
}

func (m *memRepo) Get(_ context.Context, id domain.RecordID) (*domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memRepo) Paginate(_ context.Context, page, pageSize int) ([]*domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Record(nil), m.records...), nil
}

func (m *memRepo) Ping(context.Context) error { return nil }

type memObjects struct {
	keys []string
}

func (m *memObjects) PutJSON(_ context.Context, key string, _ []byte) (string, error) {
	m.keys = append(m.keys, key)
	return "http://objects/" + key, nil
}

var testNow = time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)

func newTestService(up domain.Analyzer) (*Service, *logtest.Hook) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return &Service{
		Upstream: up,
		Clock:    application.FixedClock(testNow),
		Log:      logger,
		NewID:    func() string { return "ETH-test0001" },
	}, hook
}

const scenarioBody = `{"action":"Deploy AI surveillance","context":"...","stakeholders":["Employees","Management"]}`

func TestRelay_LivePassThrough(t *testing.T) {
	upstream := []byte(`{"scenario_id":"ETH-live","custom":  [1, 2,3],"decision":{"approval_type":"APPROVED"}}`)
	var forwarded []byte
	svc, _ := newTestService(analyzerFunc(func(_ context.Context, body []byte) ([]byte, error) {
		forwarded = body
		return upstream, nil
	}))

	out := svc.Relay(context.Background(), RelayCommand{Body: []byte(scenarioBody)})

	assert.Equal(t, domain.SourceLive, out.Source)
	assert.Equal(t, upstream, out.Body, "upstream bytes must pass through unchanged")
	assert.Equal(t, scenarioBody, string(forwarded))
	require.NotNil(t, out.Result)
	assert.Equal(t, "ETH-live", out.ScenarioID())
	assert.Equal(t, domain.ApprovalApproved, out.Result.Decision.ApprovalType)
}

func TestRelay_LiveNonObjectJSON(t *testing.T) {
	svc, _ := newTestService(analyzerFunc(func(context.Context, []byte) ([]byte, error) {
		return []byte(`["not","an","object"]`), nil
	}))

	out := svc.Relay(context.Background(), RelayCommand{Body: []byte(`{}`)})
	assert.Equal(t, domain.SourceLive, out.Source)
	assert.Nil(t, out.Result)
	assert.Equal(t, `["not","an","object"]`, string(out.Body))
}

func TestRelay_Fallbacks(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		up     analyzerFunc
		reason domain.Reason
	}{
		{
			name: "network error",
			body: scenarioBody,
			up: func(context.Context, []byte) ([]byte, error) {
				return nil, fmt.Errorf("%w: connection refused", domain.ErrUpstreamUnavailable)
			},
			reason: domain.ReasonTransport,
		},
		{
			name: "non-2xx",
			body: scenarioBody,
			up: func(context.Context, []byte) ([]byte, error) {
				return nil, &domain.StatusError{Code: 500, Body: "boom"}
			},
			reason: domain.ReasonStatus,
		},
		{
			name: "malformed body",
			body: scenarioBody,
			up: func(context.Context, []byte) ([]byte, error) {
				return []byte(`{"scenario_id":`), nil
			},
			reason: domain.ReasonMalformed,
		},
		{
			name: "invalid inbound json is not forwarded",
			body: `{action: nope`,
			up: func(context.Context, []byte) ([]byte, error) {
				return nil, errors.New("must not be called")
			},
			reason: domain.ReasonRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, hook := newTestService(tc.up)

			out := svc.Relay(context.Background(), RelayCommand{Body: []byte(tc.body), Client: "web"})

			require.True(t, out.IsFallback())
			assert.Equal(t, tc.reason, out.Reason)
			require.NotNil(t, out.Result)

			var res domain.Result
			require.NoError(t, json.Unmarshal(out.Body, &res))
			assert.Equal(t, "ETH-test0001", res.ScenarioID)
			assert.Equal(t, "2026-10-19T08:30:00.000Z", res.Timestamp)
			assert.Equal(t, domain.ApprovalConditional, res.Decision.ApprovalType)
			assert.True(t, res.Decision.Approved)
			assert.Len(t, res.Decision.Actions, 2)
			assert.Len(t, res.Decision.Conditions, 2)

			entry := hook.LastEntry()
			require.NotNil(t, entry)
			assert.Equal(t, logrus.WarnLevel, entry.Level)
			assert.Equal(t, tc.reason, entry.Data["reason"])
			assert.Equal(t, "web", entry.Data["client"])
			assert.NotNil(t, entry.Data[logrus.ErrorKey])
		})
	}
}

func TestRelay_ReadErrorIsNotForwarded(t *testing.T) {
	svc, _ := newTestService(analyzerFunc(func(context.Context, []byte) ([]byte, error) {
		t.Fatal("upstream must not be called")
		return nil, nil
	}))

	out := svc.Relay(context.Background(), RelayCommand{
		Body:    []byte(`{"action":`),
		ReadErr: errors.New("http: request body too large"),
	})

	require.True(t, out.IsFallback())
	assert.Equal(t, domain.ReasonRequest, out.Reason)
	assert.ErrorIs(t, out.Err, domain.ErrInvalidRequest)
	assert.Contains(t, out.ErrMessage(), "too large")
}

func TestRelay_Archives(t *testing.T) {
	repo := &memRepo{}
	objects := &memObjects{}
	svc, _ := newTestService(analyzerFunc(func(context.Context, []byte) ([]byte, error) {
		return nil, fmt.Errorf("%w: timeout", domain.ErrUpstreamUnavailable)
	}))
	svc.Archive = repo
	svc.Objects = objects

	out := svc.Relay(context.Background(), RelayCommand{Body: []byte(scenarioBody), Client: "cli"})

	require.Len(t, repo.records, 1)
	rec := repo.records[0]
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, domain.SourceFallback, rec.Source)
	assert.Equal(t, domain.ReasonTransport, rec.Reason)
	assert.Equal(t, "ETH-test0001", rec.ScenarioID)
	assert.Equal(t, domain.ApprovalConditional, rec.ApprovalType)
	assert.Equal(t, "cli", rec.Client)
	assert.Equal(t, scenarioBody, rec.Request)
	assert.Equal(t, string(out.Body), rec.Result)
	assert.Equal(t, testNow, rec.CreatedAt)
	require.Len(t, objects.keys, 1)
	assert.Equal(t, "analyses/2026-10-19/"+string(rec.ID)+".json", objects.keys[0])
	assert.Equal(t, "http://objects/"+objects.keys[0], rec.ObjectURL)

	got, err := svc.GetRecord(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Same(t, rec, got)

	list, err := svc.ListRecords(context.Background(), 1, 20)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRelay_ArchiveSurvivesCallerLeavingAfterAnswer(t *testing.T) {
	repo := &memRepo{}
	ctx, cancel := context.WithCancel(context.Background())
	svc, _ := newTestService(analyzerFunc(func(context.Context, []byte) ([]byte, error) {
		cancel()
		return []byte(`{"scenario_id":"ETH-live"}`), nil
	}))
	svc.Archive = repo

	out := svc.Relay(ctx, RelayCommand{Body: []byte(scenarioBody)})

	assert.Equal(t, domain.SourceLive, out.Source)
	require.Len(t, repo.records, 1)
	assert.Equal(t, "ETH-live", repo.records[0].ScenarioID)
}

func TestRelay_CallerCanceled(t *testing.T) {
	repo := &memRepo{}
	svc, hook := newTestService(analyzerFunc(func(ctx context.Context, _ []byte) ([]byte, error) {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, ctx.Err())
	}))
	svc.Archive = repo

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	out := svc.Relay(ctx, RelayCommand{Body: []byte(scenarioBody), Client: "web"})

	require.True(t, out.IsFallback())
	assert.Equal(t, domain.ReasonCanceled, out.Reason)
	assert.ErrorIs(t, out.Err, domain.ErrCanceled)
	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
	assert.NotEmpty(t, out.Body)
	assert.Empty(t, repo.records)
	for _, e := range hook.AllEntries() {
		assert.NotEqual(t, logrus.WarnLevel, e.Level, e.Message)
	}
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)
}

func TestRelay_FallbackErrorIsValidUTF8(t *testing.T) {
	repo := &memRepo{}
	body := strings.Repeat("a", 31) + strings.Repeat("é", 300)
	svc, _ := newTestService(analyzerFunc(func(context.Context, []byte) ([]byte, error) {
		return nil, &domain.StatusError{Code: 502, Body: body}
	}))
	svc.Archive = repo

	svc.Relay(context.Background(), RelayCommand{Body: []byte(scenarioBody)})

	require.Len(t, repo.records, 1)
	assert.True(t, utf8.ValidString(repo.records[0].Error))
	assert.Equal(t, domain.ReasonStatus, repo.records[0].Reason)
}

func TestRelay_ArchiveFailureIsLoggedOnly(t *testing.T) {
	repo := &memRepo{saveErr: errors.New("disk full")}
	svc, hook := newTestService(analyzerFunc(func(context.Context, []byte) ([]byte, error) {
		return []byte(`{"ok":true}`), nil
	}))
	svc.Archive = repo

	out := svc.Relay(context.Background(), RelayCommand{Body: []byte(`{}`)})
	assert.Equal(t, domain.SourceLive, out.Source)
	assert.Equal(t, `{"ok":true}`, string(out.Body))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "archive relay outcome", entry.Message)
}

func TestRecords_WithoutArchive(t *testing.T) {
	svc, _ := newTestService(nil)

	list, err := svc.ListRecords(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = svc.GetRecord(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
