package types

import "time"

// Severity is the level of an audit entry.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AuditEntry is the common shape for every persisted log event: rejected
// trades, ledger repairs, upstream degradations. All share one table so the
// audit trail reads chronologically.
type AuditEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	// Source names the component that produced the entry, e.g. "ledger_guard".
	Source   string   `json:"source"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	// Details carries optional structured context.
	Details map[string]string `json:"details,omitempty"`
}
