package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// resetState clears package globals between tests.
func resetState() {
	CloseAll()
	CloseAudit()
	loggers = make(map[Category]*Logger)
	logsDir = ""
	workspace = ""
	config = loggingConfig{}
	auditLogger = &AuditLogger{}
}

// TestAllCategoriesLog tests that all categories create log files when debug mode is on
func TestAllCategoriesLog(t *testing.T) {
	tempDir := t.TempDir()

	t.Setenv("GAUNTLET_DEBUG", "1")
	t.Setenv("GAUNTLET_LOG_LEVEL", "debug")
	t.Setenv("GAUNTLET_LOG_CATEGORIES", "")
	t.Setenv("GAUNTLET_LOG_JSON", "")

	resetState()
	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}

	if !IsDebugMode() {
		t.Error("Expected debug mode to be enabled")
	}

	categories := []Category{
		CategoryBoot,
		CategoryAnatomy,
		CategorySynth,
		CategoryRender,
		CategoryArena,
		CategoryVerdict,
		CategoryServer,
		CategoryReview,
		CategoryBuild,
	}

	for _, cat := range categories {
		if !IsCategoryEnabled(cat) {
			t.Errorf("Category %s should be enabled", cat)
		}

		logger := Get(cat)
		logger.Info("Test info message for %s", cat)
		logger.Debug("Test debug message for %s", cat)
		logger.Warn("Test warn message for %s", cat)
		logger.Error("Test error message for %s", cat)
	}

	// Also test convenience functions
	Boot("Convenience boot log")
	Anatomy("Convenience anatomy log")
	Synth("Convenience synth log")
	Render("Convenience render log")
	Arena("Convenience arena log")
	Verdict("Convenience verdict log")
	Server("Convenience server log")
	Review("Convenience review log")
	Build("Convenience build log")

	CloseAll()

	logsPath := filepath.Join(tempDir, ".gauntlet", "logs")
	entries, err := os.ReadDir(logsPath)
	if err != nil {
		t.Fatalf("Failed to read logs dir: %v", err)
	}

	for _, cat := range categories {
		found := false
		for _, entry := range entries {
			if strings.Contains(entry.Name(), string(cat)+".log") {
				found = true
				content, err := os.ReadFile(filepath.Join(logsPath, entry.Name()))
				if err != nil {
					t.Errorf("Failed to read log file for %s: %v", cat, err)
					continue
				}
				if len(content) == 0 {
					t.Errorf("Log file for %s is empty", cat)
				}
				break
			}
		}
		if !found {
			t.Errorf("No log file found for category: %s", cat)
		}
	}
}

// TestDebugModeDisabled tests that no logs are created without GAUNTLET_DEBUG
func TestDebugModeDisabled(t *testing.T) {
	tempDir := t.TempDir()

	t.Setenv("GAUNTLET_DEBUG", "")
	t.Setenv("GAUNTLET_LOG_LEVEL", "debug")

	resetState()
	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}

	if IsDebugMode() {
		t.Error("Expected debug mode to be DISABLED")
	}

	for _, cat := range []Category{CategoryBoot, CategoryArena, CategorySynth} {
		if IsCategoryEnabled(cat) {
			t.Errorf("Category %s should be DISABLED without GAUNTLET_DEBUG", cat)
		}
	}

	// All no-ops
	Boot("This should NOT be logged")
	Arena("This should NOT be logged")

	logger := Get(CategoryBoot)
	logger.Info("This should NOT be logged")
	logger.Error("This should NOT be logged")

	CloseAll()

	logsPath := filepath.Join(tempDir, ".gauntlet", "logs")
	if _, err := os.Stat(logsPath); err == nil {
		entries, _ := os.ReadDir(logsPath)
		if len(entries) > 0 {
			t.Errorf("Expected NO log files without debug mode, found %d", len(entries))
		}
	}
}

// TestCategoryFilter tests the GAUNTLET_LOG_CATEGORIES allowlist
func TestCategoryFilter(t *testing.T) {
	tempDir := t.TempDir()

	t.Setenv("GAUNTLET_DEBUG", "1")
	t.Setenv("GAUNTLET_LOG_LEVEL", "debug")
	t.Setenv("GAUNTLET_LOG_CATEGORIES", "arena, synth")

	resetState()
	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Failed to initialize: %v", err)
	}

	if !IsCategoryEnabled(CategoryArena) {
		t.Error("arena should be enabled")
	}
	if !IsCategoryEnabled(CategorySynth) {
		t.Error("synth should be enabled")
	}
	if IsCategoryEnabled(CategoryRender) {
		t.Error("render should be DISABLED by the category filter")
	}
	if IsCategoryEnabled(CategoryServer) {
		t.Error("server should be DISABLED by the category filter")
	}

	Arena("This SHOULD be logged")
	Synth("This SHOULD be logged")
	Render("This should NOT be logged")

	CloseAll()

	logsPath := filepath.Join(tempDir, ".gauntlet", "logs")
	entries, _ := os.ReadDir(logsPath)

	var hasArena, hasSynth, hasRender bool
	for _, e := range entries {
		name := e.Name()
		if strings.Contains(name, "arena") {
			hasArena = true
		}
		if strings.Contains(name, "synth") {
			hasSynth = true
		}
		if strings.Contains(name, "render") {
			hasRender = true
		}
	}

	if !hasArena {
		t.Error("Expected arena log file")
	}
	if !hasSynth {
		t.Error("Expected synth log file")
	}
	if hasRender {
		t.Error("Should NOT have render log file (filtered)")
	}
}

// TestTimerLogging tests the timing helper
func TestTimerLogging(t *testing.T) {
	tempDir := t.TempDir()

	t.Setenv("GAUNTLET_DEBUG", "1")
	t.Setenv("GAUNTLET_LOG_LEVEL", "debug")
	t.Setenv("GAUNTLET_LOG_CATEGORIES", "")

	resetState()
	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Failed to initialize: %v", err)
	}

	timer := StartTimer(CategoryArena, "TestOperation")
	time.Sleep(time.Millisecond)
	elapsed := timer.Stop()

	if elapsed <= 0 {
		t.Error("Timer should have recorded non-zero duration")
	}

	CloseAll()
}

// TestAuditTrail tests the audit event writing path
func TestAuditTrail(t *testing.T) {
	tempDir := t.TempDir()

	t.Setenv("GAUNTLET_DEBUG", "1")
	t.Setenv("GAUNTLET_LOG_LEVEL", "debug")
	t.Setenv("GAUNTLET_LOG_CATEGORIES", "")

	resetState()
	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Failed to initialize: %v", err)
	}
	if err := InitAudit(); err != nil {
		t.Fatalf("Failed to initialize audit: %v", err)
	}

	audit := AuditWithRun("run-123")
	audit.RunStart("run-123", "calc", 30000)
	audit.SafetyCheck("calc", true, "no violations")
	audit.RunComplete("run-123", "completed", 42)
	Audit().ToolExec("generate_tests", 17, true, "")

	CloseAudit()
	CloseAll()

	logsPath := filepath.Join(tempDir, ".gauntlet", "logs")
	entries, err := os.ReadDir(logsPath)
	if err != nil {
		t.Fatalf("Failed to read logs dir: %v", err)
	}

	var auditContent []byte
	for _, e := range entries {
		if strings.Contains(e.Name(), "audit") {
			auditContent, err = os.ReadFile(filepath.Join(logsPath, e.Name()))
			if err != nil {
				t.Fatalf("Failed to read audit log: %v", err)
			}
		}
	}

	if len(auditContent) == 0 {
		t.Fatal("Expected audit log content")
	}
	for _, want := range []string{"run_start", "safety_allow", "run_complete", "tool_complete"} {
		if !strings.Contains(string(auditContent), want) {
			t.Errorf("Audit log missing %q event", want)
		}
	}
}
