package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"mediaflow/internal/ai"
	"mediaflow/internal/config"
	"mediaflow/internal/deps"
	"mediaflow/internal/services"
)

// CheckAI verifies that the AI endpoint is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt.
func CheckAI(ctx context.Context, cfg config.AI) Result {
	const name = "AI endpoint"
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	describer := ai.NewDescriber(cfg)
	if err := describer.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeAIError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("API reachable (model %s)", describer.Model())}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the media tools for the given config. Both the
// daemon and the CLI status command use this.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	if cfg == nil {
		return nil
	}
	return deps.CheckTools(cfg.Tools)
}

// summarizeAIError produces a human-readable summary for AI health check failures.
func summarizeAIError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (AI API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (AI API unreachable)"
	}
	if errors.Is(err, services.ErrConfiguration) {
		return "credentials rejected"
	}
	return err.Error()
}
