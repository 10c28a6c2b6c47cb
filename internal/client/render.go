package client

import (
	"fmt"
	"io"
	"math"
	"strings"

	domain "github.com/ethica-ai/ethica-relay/internal/domain/analysis"
)

const barWidth = 20

// FormatScore renders a 0..1 score as a whole percentage. Values outside the
// range are printed as they are.
func FormatScore(score float64) string {
	return fmt.Sprintf("%.0f%%", score*100)
}

// Band is the colour band of a score.
type Band string

const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
)

func ScoreBand(score float64) Band {
	switch {
	case score >= 0.8:
		return BandHigh
	case score >= 0.6:
		return BandMedium
	default:
		return BandLow
	}
}

// ApprovalLabel is the headline shown for a verdict.
func ApprovalLabel(t domain.ApprovalType) string {
	switch t {
	case domain.ApprovalApproved:
		return "[OK] APPROVED"
	case domain.ApprovalConditional:
		return "[!] CONDITIONAL"
	case domain.ApprovalRejected:
		return "[X] REJECTED"
	default:
		return "[?] " + string(t)
	}
}

// Bar draws a fixed-width progress bar. The score is clamped for drawing only.
func Bar(score float64) string {
	if math.IsNaN(score) {
		score = 0
	}
	filled := int(math.Round(max(0, min(1, score)) * barWidth))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled) + "]"
}

// Render writes a plain-text report.
func Render(w io.Writer, rep *Report) error {
	res := rep.Result
	var b strings.Builder

	fmt.Fprintf(&b, "%s  (confidence %s)\n", ApprovalLabel(res.Decision.ApprovalType), FormatScore(res.Decision.Confidence))
	fmt.Fprintf(&b, "scenario %s at %s", res.ScenarioID, res.Timestamp)
	if rep.Fallback {
		b.WriteString("  [local fallback]")
	}
	b.WriteString("\n\n")
	b.WriteString(res.Decision.Reasoning)
	b.WriteString("\n")

	if len(res.Decision.Actions) > 0 {
		b.WriteString("\nRecommended actions:\n")
		for _, a := range res.Decision.Actions {
			fmt.Fprintf(&b, "  - %s\n", a)
		}
	}
	if len(res.Decision.Conditions) > 0 {
		b.WriteString("\nConditions:\n")
		for _, c := range res.Decision.Conditions {
			fmt.Fprintf(&b, "  - %s\n", c)
		}
	}

	b.WriteString("\n")
	rows := []struct {
		label string
		score float64
	}{
		{"Impact", res.Strategic.ImpactScore},
		{"Confidence", res.Strategic.Confidence},
		{"Harmony", res.Operational.HarmonyScore},
		{"Sustainability", res.Tactical.Sustainability},
		{"Readiness", res.Execution.Readiness},
	}
	for _, r := range rows {
		fmt.Fprintf(&b, "%-15s %s %5s  %s\n", r.label, Bar(r.score), FormatScore(r.score), ScoreBand(r.score))
	}

	_, err := io.WriteString(w, b.String())
	return err
}
