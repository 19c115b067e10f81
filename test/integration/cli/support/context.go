package support

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"github.com/MeKo-Tech/lanedetect/internal/server"
)

// TestContext holds the state for integration tests.
type TestContext struct {
	// Command execution state
	LastCommand  string
	LastOutput   string
	LastStderr   string
	LastError    error
	LastExitCode int
	LastDuration time.Duration

	// Test environment
	TempDir string

	// Server state
	HTTPTestServer *httptest.Server
	LaneServer     *server.Server

	// HTTP response state
	LastHTTPStatusCode int
	LastHTTPResponse   string
	LastHTTPHeaders    http.Header

	// Last WebSocket reply
	LastWSResponse *server.WebSocketLaneResponse

	// Values captured from earlier steps, substituted as {name}
	Vars map[string]string
}

// NewTestContext creates a new test context with its own scratch directory.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "lanedetect-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &TestContext{TempDir: tempDir, Vars: map[string]string{}}, nil
}

// StopServer shuts down the httptest server, if any.
func (testCtx *TestContext) StopServer() error {
	if testCtx.HTTPTestServer != nil {
		testCtx.HTTPTestServer.Close()
		testCtx.HTTPTestServer = nil
	}
	if testCtx.LaneServer != nil {
		err := testCtx.LaneServer.Close()
		testCtx.LaneServer = nil
		return err
	}
	return nil
}

// Cleanup stops the server and removes the scratch directory.
func (testCtx *TestContext) Cleanup() error {
	var errs []error
	if err := testCtx.StopServer(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop server: %w", err))
	}
	if err := os.RemoveAll(testCtx.TempDir); err != nil {
		errs = append(errs, fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err))
	}
	return errors.Join(errs...)
}

// substitute expands {tmp} to the scenario's scratch directory and {name}
// to captured values.
func (testCtx *TestContext) substitute(s string) string {
	s = strings.ReplaceAll(s, "{tmp}", testCtx.TempDir)
	for k, v := range testCtx.Vars {
		s = strings.ReplaceAll(s, "{"+k+"}", v)
	}
	return s
}
