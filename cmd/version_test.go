package cmd

import (
	"io"
	"os"
	"strings"
	"testing"
)

func TestVersionCmd(t *testing.T) {
	originalVersion := Version
	originalBuildTime := BuildTime
	originalGitCommit := GitCommit
	defer func() {
		Version = originalVersion
		BuildTime = originalBuildTime
		GitCommit = originalGitCommit
	}()

	tests := []struct {
		name            string
		apiKey          string
		version         string
		buildTime       string
		gitCommit       string
		expectedStrings []string
	}{
		{
			name:      "release build with API key",
			apiKey:    "test-key-1234567890",
			version:   "1.0.0",
			buildTime: "2026-01-01T00:00:00Z",
			gitCommit: "abc123",
			expectedStrings: []string{
				"recallkit 1.0.0",
				"Build Time: 2026-01-01T00:00:00Z",
				"Git Commit: abc123",
				"GEMINI_API_KEY: configured",
			},
		},
		{
			name:      "development build without API key",
			version:   "development",
			buildTime: "unknown",
			gitCommit: "unknown",
			expectedStrings: []string{
				"recallkit development",
				"Build Time: unknown",
				"Git Commit: unknown",
				"GEMINI_API_KEY: not set",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GEMINI_API_KEY", tt.apiKey)
			Version = tt.version
			BuildTime = tt.buildTime
			GitCommit = tt.gitCommit

			output := captureStdout(t, func() {
				versionCmd.Run(versionCmd, nil)
			})

			for _, want := range tt.expectedStrings {
				if !strings.Contains(output, want) {
					t.Errorf("output missing %q:\n%s", want, output)
				}
			}
		})
	}
}

func TestVersionCmd_NeverPrintsKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "super-secret-api-key")

	output := captureStdout(t, func() {
		versionCmd.Run(versionCmd, nil)
	})

	if strings.Contains(output, "super-secret-api-key") {
		t.Errorf("API key leaked in version output:\n%s", output)
	}
}

// captureStdout runs fn with os.Stdout redirected to a pipe and returns
// everything written.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("creating pipe: %v", err)
	}
	os.Stdout = w
	defer func() { os.Stdout = oldStdout }()

	fn()

	if err := w.Close(); err != nil {
		t.Fatalf("closing pipe writer: %v", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading captured output: %v", err)
	}
	return string(data)
}
