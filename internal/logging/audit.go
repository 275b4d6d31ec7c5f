// Audit logging: structured JSON-line events recording what the engine
// executed and why. One file per day next to the category logs.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType defines the type of audit event
type AuditEventType string

const (
	// Sandbox run lifecycle -> one event per transition
	AuditRunStart    AuditEventType = "run_start"
	AuditRunComplete AuditEventType = "run_complete"
	AuditRunTimeout  AuditEventType = "run_timeout"
	AuditRunStartup  AuditEventType = "run_startup_failure"

	// Safety screening
	AuditSafetyCheck AuditEventType = "safety_check"
	AuditSafetyBlock AuditEventType = "safety_block"
	AuditSafetyAllow AuditEventType = "safety_allow"

	// Tool surface (MCP/CLI calls)
	AuditToolInvoke   AuditEventType = "tool_invoke"
	AuditToolComplete AuditEventType = "tool_complete"
	AuditToolError    AuditEventType = "tool_error"

	// Synthesis pipeline
	AuditGenerate AuditEventType = "generate"

	// Performance
	AuditPerfMetric AuditEventType = "perf_metric"
	AuditPerfSlow   AuditEventType = "perf_slow"

	// Error events
	AuditErrorGeneric  AuditEventType = "error_generic"
	AuditErrorCritical AuditEventType = "error_critical"
)

// AuditEvent is one structured audit log entry.
type AuditEvent struct {
	Timestamp  int64                  `json:"ts"` // Unix milliseconds
	EventType  AuditEventType         `json:"event"`
	Category   string                 `json:"cat,omitempty"`
	RunID      string                 `json:"run,omitempty"`
	RequestID  string                 `json:"req,omitempty"`
	Target     string                 `json:"target,omitempty"`
	Action     string                 `json:"action,omitempty"`
	Success    bool                   `json:"success"`
	DurationMs int64                  `json:"dur_ms,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Message    string                 `json:"msg"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

var (
	auditFile   *os.File
	auditMu     sync.Mutex
	auditLogger = &AuditLogger{}
)

// AuditLogger writes audit events, optionally scoped to a run or request.
type AuditLogger struct {
	runID     string
	requestID string
	category  Category
}

// InitAudit initializes the audit logging system
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil
	}

	date := time.Now().Format("2006-01-02")
	auditPath := filepath.Join(logsDir, fmt.Sprintf("%s_audit.log", date))

	file, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file

	header := fmt.Sprintf("# Audit log started at %s\n", time.Now().Format(time.RFC3339))
	auditFile.WriteString(header)

	return nil
}

// CloseAudit closes the audit log file
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit returns the global audit logger
func Audit() *AuditLogger {
	return auditLogger
}

// AuditWithRun creates an audit logger scoped to a sandbox run
func AuditWithRun(runID string) *AuditLogger {
	return &AuditLogger{runID: runID}
}

// AuditWithRequest creates an audit logger scoped to a tool request
func AuditWithRequest(requestID string, category Category) *AuditLogger {
	return &AuditLogger{requestID: requestID, category: category}
}

// Log writes an audit event
func (a *AuditLogger) Log(event AuditEvent) {
	if !IsDebugMode() || auditFile == nil {
		return
	}

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.RunID == "" && a.runID != "" {
		event.RunID = a.runID
	}
	if event.RequestID == "" && a.requestID != "" {
		event.RequestID = a.requestID
	}
	if event.Category == "" && a.category != "" {
		event.Category = string(a.category)
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	data, err := json.Marshal(event)
	if err == nil {
		auditFile.WriteString(string(data) + "\n")
	}
}

// =============================================================================
// CONVENIENCE METHODS FOR COMMON EVENTS
// =============================================================================

// RunStart logs the start of a sandbox run
func (a *AuditLogger) RunStart(runID, module string, timeoutMs int64) {
	a.Log(AuditEvent{
		EventType: AuditRunStart,
		RunID:     runID,
		Target:    module,
		Success:   true,
		Fields:    map[string]interface{}{"timeout_ms": timeoutMs},
		Message:   fmt.Sprintf("Run started: %s (module %s)", runID, module),
	})
}

// RunComplete logs a completed sandbox run
func (a *AuditLogger) RunComplete(runID, status string, durationMs int64) {
	eventType := AuditRunComplete
	if status == "timed_out" {
		eventType = AuditRunTimeout
	}
	a.Log(AuditEvent{
		EventType:  eventType,
		RunID:      runID,
		Success:    status == "completed",
		DurationMs: durationMs,
		Fields:     map[string]interface{}{"status": status},
		Message:    fmt.Sprintf("Run %s: %s (%dms)", runID, status, durationMs),
	})
}

// RunStartupFailure logs a run that never produced results
func (a *AuditLogger) RunStartupFailure(runID, kind, detail string) {
	a.Log(AuditEvent{
		EventType: AuditRunStartup,
		RunID:     runID,
		Success:   false,
		Error:     detail,
		Fields:    map[string]interface{}{"kind": kind},
		Message:   fmt.Sprintf("Run %s failed to start: %s", runID, kind),
	})
}

// SafetyCheck logs a preflight safety decision
func (a *AuditLogger) SafetyCheck(target string, allowed bool, reason string) {
	eventType := AuditSafetyAllow
	if !allowed {
		eventType = AuditSafetyBlock
	}
	a.Log(AuditEvent{
		EventType: eventType,
		Target:    target,
		Success:   allowed,
		Fields:    map[string]interface{}{"reason": reason},
		Message:   fmt.Sprintf("Safety %s: %s (%s)", eventType, target, reason),
	})
}

// ToolExec logs a tool-surface call
func (a *AuditLogger) ToolExec(toolName string, durationMs int64, success bool, errMsg string) {
	eventType := AuditToolComplete
	if !success {
		eventType = AuditToolError
	}
	a.Log(AuditEvent{
		EventType:  eventType,
		Target:     toolName,
		Success:    success,
		DurationMs: durationMs,
		Error:      errMsg,
		Message:    fmt.Sprintf("Tool %s (%dms, success=%v)", toolName, durationMs, success),
	})
}

// Generate logs a synthesis pass
func (a *AuditLogger) Generate(module string, callables, specs, skipped int) {
	a.Log(AuditEvent{
		EventType: AuditGenerate,
		Target:    module,
		Success:   true,
		Fields: map[string]interface{}{
			"callables": callables,
			"specs":     specs,
			"skipped":   skipped,
		},
		Message: fmt.Sprintf("Generated %d specs for %s (%d callables, %d skipped)", specs, module, callables, skipped),
	})
}

// PerfMetric logs a performance metric
func (a *AuditLogger) PerfMetric(operation string, durationMs int64, threshold int64) {
	eventType := AuditPerfMetric
	success := true
	if threshold > 0 && durationMs > threshold {
		eventType = AuditPerfSlow
		success = false
	}
	fields := map[string]interface{}{}
	if threshold > 0 {
		fields["threshold_ms"] = threshold
	}
	a.Log(AuditEvent{
		EventType:  eventType,
		Action:     operation,
		DurationMs: durationMs,
		Success:    success,
		Fields:     fields,
		Message:    fmt.Sprintf("Perf: %s took %dms (threshold=%dms)", operation, durationMs, threshold),
	})
}

// Error logs an error event
func (a *AuditLogger) Error(category string, err error, critical bool) {
	eventType := AuditErrorGeneric
	if critical {
		eventType = AuditErrorCritical
	}
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	a.Log(AuditEvent{
		EventType: eventType,
		Category:  category,
		Success:   false,
		Error:     errMsg,
		Message:   fmt.Sprintf("Error in %s: %s (critical=%v)", category, errMsg, critical),
	})
}
