package analysis

import (
	"math/rand/v2"
	"strings"
	"time"
)

const (
	scenarioIDPrefix = "ETH-"
	scenarioIDLen    = 8
	idAlphabet       = "0123456789abcdefghijklmnopqrstuvwxyz"

	// TimestampLayout matches JavaScript's Date.toISOString.
	TimestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// NewScenarioID returns "ETH-" followed by eight random lowercase base36 characters.
func NewScenarioID() string {
	var b strings.Builder
	b.Grow(len(scenarioIDPrefix) + scenarioIDLen)
	b.WriteString(scenarioIDPrefix)
	for i := 0; i < scenarioIDLen; i++ {
		b.WriteByte(idAlphabet[rand.IntN(len(idAlphabet))])
	}
	return b.String()
}

// FormatTimestamp renders t in UTC with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// FallbackResult is the fixed payload the relay serves when the upstream
// cannot produce a result. Only the id and timestamp vary.
func FallbackResult(id string, now time.Time) *Result {
	return &Result{
		ScenarioID:  id,
		Timestamp:   FormatTimestamp(now),
		Strategic:   Strategic{ImpactScore: 0.78, Confidence: 0.95},
		Operational: Operational{HarmonyScore: 0.72},
		Tactical:    Tactical{Sustainability: 0.75},
		Execution:   Execution{Readiness: 0.74, Approved: true},
		Decision: Decision{
			Approved:     true,
			ApprovalType: ApprovalConditional,
			Confidence:   0.98,
			Reasoning:    "Conditional approval granted. High potential for positive impact with proper oversight.",
			Actions: []string{
				"Implement transparent AI decision-making processes",
				"Establish regular bias audits",
			},
			Conditions: []string{
				"Require human oversight for critical decisions",
				"Implement comprehensive data privacy measures",
			},
		},
	}
}
