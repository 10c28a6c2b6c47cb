package mockupstream

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/ethica-ai/ethica-relay/internal/domain/analysis"
)

func newTestServer() *Server {
	logger, _ := logtest.NewNullLogger()
	return New(rand.New(rand.NewPCG(1, 2)), logger)
}

func TestAnalyze_KeywordBranches(t *testing.T) {
	idPattern := regexp.MustCompile(`^ETH-[1-9][0-9]{4}$`)
	tests := []struct {
		action     string
		approval   domain.ApprovalType
		lo, hi     float64
		actions    int
		conditions int
	}{
		{"Deploy AI surveillance system to monitor employee productivity", domain.ApprovalRejected, 0.35, 0.50, 0, 0},
		{"Continuously MONITOR staff chat", domain.ApprovalRejected, 0.35, 0.50, 0, 0},
		{"Deploy AI-powered diagnostic system for Healthcare", domain.ApprovalConditional, 0.70, 0.80, 2, 2},
		{"Implement personalized AI tutoring system for students", domain.ApprovalApproved, 0.75, 0.90, 3, 0},
	}

	s := newTestServer()
	for _, tc := range tests {
		t.Run(tc.action, func(t *testing.T) {
			for i := 0; i < 200; i++ {
				res := s.Analyze(tc.action)

				assert.Regexp(t, idPattern, res.ScenarioID)
				assert.Equal(t, tc.approval, res.Decision.ApprovalType)
				assert.Equal(t, tc.approval != domain.ApprovalRejected, res.Decision.Approved)
				assert.Equal(t, res.Decision.Approved, res.Execution.Approved)
				assert.Len(t, res.Decision.Actions, tc.actions)
				assert.Len(t, res.Decision.Conditions, tc.conditions)
				assert.NotNil(t, res.Decision.Conditions)

				impact := res.Strategic.ImpactScore
				assert.True(t, impact >= tc.lo && impact <= tc.hi, "impact %v", impact)
				assert.InDelta(t, 0.94, res.Strategic.Confidence, 0.04+1e-9)
				assert.InDelta(t, 0.955, res.Decision.Confidence, 0.035+1e-9)
				for path, v := range res.Scores() {
					assert.True(t, v >= 0 && v <= 1, "%s out of range: %v", path, v)
				}
			}
		})
	}
}

func TestAnalyze_SeededIsDeterministic(t *testing.T) {
	a := newTestServer().Analyze("teach")
	b := newTestServer().Analyze("teach")
	assert.Equal(t, a.ScenarioID, b.ScenarioID)
	assert.Equal(t, a.Strategic, b.Strategic)
}

func TestHandler(t *testing.T) {
	h := newTestServer().Handler()

	t.Run("root", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"message":"Ethica.AI API","version":"1.0.0","status":"operational","framework_available":false}`, w.Body.String())
	})

	t.Run("health", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.JSONEq(t, `{"status":"healthy","framework":"mock_mode"}`, w.Body.String())
	})

	t.Run("missing fields", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"name":"x"}`)))
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		var body struct {
			Detail []fieldError `json:"detail"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Len(t, body.Detail, 2)
	})

	t.Run("not json", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`nope`)))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestStart(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	shutdown, baseURL, err := Start("127.0.0.1:0", logger)
	if err != nil {
		t.Skipf("start mock upstream: %v", err)
	}
	defer shutdown(context.Background())

	payload := []byte(`{"action":"Deploy AI health triage assistant","context":"Healthcare provider","stakeholders":["Patients"]}`)
	resp, err := http.Post(baseURL+"/api/analyze", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res domain.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, domain.ApprovalConditional, res.Decision.ApprovalType)
	assert.NotEmpty(t, res.Timestamp)
}
