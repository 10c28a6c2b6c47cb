package analysis

import "time"

// RecordID identifier type
type RecordID string

// Record is one archived relay call.
type Record struct {
	ID           RecordID     `json:"id"`
	ScenarioID   string       `json:"scenario_id"`
	Source       Source       `json:"source"`
	Reason       Reason       `json:"reason,omitempty"`
	Error        string       `json:"error,omitempty"`
	ApprovalType ApprovalType `json:"approval_type,omitempty"`
	Client       string       `json:"client,omitempty"`
	Request      string       `json:"request"` // raw inbound body
	Result       string       `json:"result"`  // JSON returned to the caller
	ObjectURL    string       `json:"object_url,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}
