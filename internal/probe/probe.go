package probe

import "fmt"

// Status represents the outcome of a probe execution.
type Status string

const (
	StatusOK       Status = "ok"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
	StatusUnknown  Status = "unknown"
)

// Severity is the ordered form of Status. Its numeric value is the plugin
// exit code expected by Nagios-compatible supervisors.
type Severity int

const (
	SeverityOK Severity = iota
	SeverityWarning
	SeverityCritical
	SeverityUnknown
)

// ParseSeverity converts an integer from a configuration or an agent reply
// into a Severity, rejecting anything outside OK..UNKNOWN.
func ParseSeverity(n int64) (Severity, error) {
	if n < int64(SeverityOK) || n > int64(SeverityUnknown) {
		return SeverityUnknown, fmt.Errorf("severity %d out of range 0-3", n)
	}
	return Severity(n), nil
}

// Status returns the status string for s.
func (s Severity) Status() Status {
	switch s {
	case SeverityOK:
		return StatusOK
	case SeverityWarning:
		return StatusWarning
	case SeverityCritical:
		return StatusCritical
	default:
		return StatusUnknown
	}
}

// ExitCode returns the process exit code for s.
func (s Severity) ExitCode() int {
	if s < SeverityOK || s > SeverityUnknown {
		return int(SeverityUnknown)
	}
	return int(s)
}

func (s Severity) String() string {
	switch s {
	case SeverityOK:
		return "OK"
	case SeverityWarning:
		return "WARNING"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Result is the standard output format for probes.
type Result struct {
	Status  Status         `json:"status"`
	Message string         `json:"message"`
	Metrics map[string]any `json:"metrics,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// Description is the self-description format for probes.
type Description struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Version     string    `json:"version"`
	Subcommand  string    `json:"subcommand,omitempty"`
	Arguments   Arguments `json:"arguments"`
}

// Arguments describes required and optional probe arguments.
type Arguments struct {
	Required map[string]ArgumentSpec `json:"required,omitempty"`
	Optional map[string]ArgumentSpec `json:"optional,omitempty"`
}

// ArgumentSpec describes a single argument.
type ArgumentSpec struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Default     any      `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}
