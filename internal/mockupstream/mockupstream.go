package mockupstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	domain "github.com/ethica-ai/ethica-relay/internal/domain/analysis"
)

const (
	DefaultAddr = "127.0.0.1:8000"
	version     = "1.0.0"

	// naive local time with microseconds, the shape Python's isoformat emits
	timestampLayout = "2006-01-02T15:04:05.000000"
)

// Request is the scenario body the analysis service accepts.
type Request struct {
	Action       *string  `json:"action"`
	Context      *string  `json:"context"`
	Stakeholders []string `json:"stakeholders"`
	Name         string   `json:"name"`
}

type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// Server imitates the analysis service running without its framework:
// results are picked from the action text with jittered scores.
type Server struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
	log logrus.FieldLogger
}

// New returns a mock service. A nil rng seeds one from the clock.
func New(rng *rand.Rand, log logrus.FieldLogger) *Server {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{rng: rng, now: time.Now, log: log}
}

// Handler exposes the service routes.
func (s *Server) Handler() http.Handler {
	mux := chi.NewRouter()
	mux.Use(cors.AllowAll().Handler)
	mux.Get("/", s.handleRoot)
	mux.Get("/health", s.handleHealth)
	mux.Post("/api/analyze", s.handleAnalyze)
	return mux
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":             "Ethica.AI API",
		"version":             version,
		"status":              "operational",
		"framework_available": false,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"framework": "mock_mode",
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []fieldError{{Loc: []string{"body"}, Msg: err.Error(), Type: "value_error.jsondecode"}},
		})
		return
	}
	var missing []fieldError
	if req.Action == nil {
		missing = append(missing, fieldError{Loc: []string{"body", "action"}, Msg: "field required", Type: "value_error.missing"})
	}
	if req.Context == nil {
		missing = append(missing, fieldError{Loc: []string{"body", "context"}, Msg: "field required", Type: "value_error.missing"})
	}
	if len(missing) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": missing})
		return
	}

	res := s.Analyze(*req.Action)
	s.log.WithFields(logrus.Fields{
		"scenario_id":   res.ScenarioID,
		"approval_type": res.Decision.ApprovalType,
	}).Debug("mock analysis")
	writeJSON(w, http.StatusOK, res)
}

// Analyze builds a canned result for action. Surveillance or monitoring is
// rejected, health scenarios are conditional, the rest approved.
func (s *Server) Analyze(action string) *domain.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	lower := strings.ToLower(action)
	var (
		impact   float64
		decision domain.Decision
	)
	switch {
	case strings.Contains(lower, "surveillance") || strings.Contains(lower, "monitor"):
		impact = s.uniform(0.35, 0.50)
		decision = domain.Decision{
			ApprovalType: domain.ApprovalRejected,
			Reasoning:    "Failed purpose validation. Significant concerns about privacy violation and autonomy.",
		}
	case strings.Contains(lower, "health"):
		impact = s.uniform(0.70, 0.80)
		decision = domain.Decision{
			Approved:     true,
			ApprovalType: domain.ApprovalConditional,
			Reasoning:    "Conditional approval granted. High potential for positive impact with proper oversight.",
			Actions: []string{
				"Implement transparent AI decision-making processes",
				"Establish regular bias audits",
			},
			Conditions: []string{
				"Require human oversight for critical decisions",
				"Implement comprehensive data privacy measures",
			},
		}
	default:
		impact = s.uniform(0.75, 0.90)
		decision = domain.Decision{
			Approved:     true,
			ApprovalType: domain.ApprovalApproved,
			Reasoning:    "Approved with high confidence. Strong alignment with ethical standards and positive societal impact.",
			Actions: []string{
				"Implement transparent AI decision-making processes",
				"Establish stakeholder feedback mechanisms",
				"Create continuous monitoring system",
			},
		}
	}
	decision.Confidence = s.uniform(0.92, 0.99)

	res := &domain.Result{
		ScenarioID:  fmt.Sprintf("ETH-%d", 10000+s.rng.IntN(90000)),
		Timestamp:   s.now().Format(timestampLayout),
		Strategic:   domain.Strategic{ImpactScore: impact, Confidence: s.uniform(0.90, 0.98)},
		Operational: domain.Operational{HarmonyScore: clamp(impact + s.uniform(-0.05, 0.05))},
		Tactical:    domain.Tactical{Sustainability: clamp(impact + s.uniform(-0.08, 0.08))},
		Execution:   domain.Execution{Readiness: clamp(impact + s.uniform(-0.10, 0.05)), Approved: decision.Approved},
		Decision:    decision,
	}
	res.Normalize()
	return res
}

func (s *Server) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

func clamp(v float64) float64 {
	return max(0, min(1, v))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Start serves a mock analysis service on addr (DefaultAddr when empty). It
// returns a shutdown function and the base URL, e.g. http://127.0.0.1:8000.
func Start(addr string, log logrus.FieldLogger) (func(context.Context) error, string, error) {
	if strings.TrimSpace(addr) == "" {
		addr = DefaultAddr
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           New(nil, log).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("mock upstream server error")
		}
	}()

	baseURL := "http://" + ln.Addr().String()
	log.WithField("url", baseURL).Info("mock upstream listening")
	return srv.Shutdown, baseURL, nil
}
