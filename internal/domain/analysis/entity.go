package analysis

// ApprovalType enum
type ApprovalType string

const (
	ApprovalApproved    ApprovalType = "APPROVED"
	ApprovalConditional ApprovalType = "CONDITIONAL"
	ApprovalRejected    ApprovalType = "REJECTED"
)

// Valid reports whether t is one of the three known approval types.
func (t ApprovalType) Valid() bool {
	switch t {
	case ApprovalApproved, ApprovalConditional, ApprovalRejected:
		return true
	}
	return false
}

type Strategic struct {
	ImpactScore float64 `json:"impact_score"`
	Confidence  float64 `json:"confidence"`
}

type Operational struct {
	HarmonyScore float64 `json:"harmony_score"`
}

type Tactical struct {
	Sustainability float64 `json:"sustainability"`
}

type Execution struct {
	Readiness float64 `json:"readiness"`
	Approved  bool    `json:"approved"`
}

// Decision is the final verdict block. Actions and Conditions are always
// encoded as arrays, never null.
type Decision struct {
	Approved     bool         `json:"approved"`
	ApprovalType ApprovalType `json:"approval_type"`
	Confidence   float64      `json:"confidence"`
	Reasoning    string       `json:"reasoning"`
	Actions      []string     `json:"actions"`
	Conditions   []string     `json:"conditions"`
}

// Result is the Analysis Result payload exchanged with the upstream service
// and returned to callers of the relay. Timestamp is kept as the ISO-8601 text
// the producer wrote; upstreams differ in offset and precision.
type Result struct {
	ScenarioID  string      `json:"scenario_id"`
	Timestamp   string      `json:"timestamp"`
	Strategic   Strategic   `json:"strategic"`
	Operational Operational `json:"operational"`
	Tactical    Tactical    `json:"tactical"`
	Execution   Execution   `json:"execution"`
	Decision    Decision    `json:"decision"`
}

// Normalize replaces nil slices with empty ones so the JSON shape stays stable.
func (r *Result) Normalize() {
	if r.Decision.Actions == nil {
		r.Decision.Actions = []string{}
	}
	if r.Decision.Conditions == nil {
		r.Decision.Conditions = []string{}
	}
}

// Scores returns every numeric score of the result keyed by its JSON path.
func (r *Result) Scores() map[string]float64 {
	return map[string]float64{
		"strategic.impact_score":    r.Strategic.ImpactScore,
		"strategic.confidence":      r.Strategic.Confidence,
		"operational.harmony_score": r.Operational.HarmonyScore,
		"tactical.sustainability":   r.Tactical.Sustainability,
		"execution.readiness":       r.Execution.Readiness,
		"decision.confidence":       r.Decision.Confidence,
	}
}

// Scenario is a user-submitted description to be evaluated. The relay never
// decodes into it; it is used by clients and the mock upstream.
type Scenario struct {
	Name         string   `json:"name,omitempty"`
	Action       string   `json:"action"`
	Context      string   `json:"context"`
	Stakeholders []string `json:"stakeholders"`
}
