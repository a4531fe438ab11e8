package domain

// ConnectionRequest names two ports by blueprint-relative path.
type ConnectionRequest struct {
	Blueprint string `json:"blueprint" mapstructure:"blueprint"`
	From      string `json:"from" mapstructure:"from"`
	To        string `json:"to" mapstructure:"to"`
	Expand    bool   `json:"expand,omitempty" mapstructure:"expand"`
}

// CheckResult is the verdict on a proposed connection.
type CheckResult struct {
	Allowed bool `json:"allowed"`
	// Reason is a short machine-readable code such as "fan-in" or "cycle".
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// PortInfo describes a live port for inspection tools.
type PortInfo struct {
	Path          string     `json:"path"`
	Direction     string     `json:"direction"`
	Type          string     `json:"type"`
	ConnectedType string     `json:"connected_type,omitempty"`
	Generic       string     `json:"generic,omitempty"`
	Source        bool       `json:"source"`
	StreamDepth   int        `json:"stream_depth"`
	Connections   []string   `json:"connections,omitempty"`
	Children      []PortInfo `json:"children,omitempty"`
}

// Severity grades a lint issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one finding of document validation.
type Issue struct {
	Severity Severity `json:"severity"`
	Path     string   `json:"path,omitempty"`
	Message  string   `json:"message"`
	Hint     string   `json:"hint,omitempty"`
}

// Change is published to subscribers whenever a stored document or the
// operator library changes.
type Change struct {
	DocumentID string        `json:"document_id,omitempty"`
	Diff       *DocumentDiff `json:"diff,omitempty"`
	Library    *LibraryDiff  `json:"library,omitempty"`
}
