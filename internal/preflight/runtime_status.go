package preflight

import (
	"context"
	"fmt"
	"strings"

	"mediaflow/internal/config"
)

// CheckAIFromConfig evaluates AI status from config and connectivity.
// A missing key is reported as disabled, not failed, because only the AI
// activities need it.
func CheckAIFromConfig(ctx context.Context, cfg *config.Config) Result {
	const name = "AI endpoint"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.AI.APIKey) == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled (AI activities will fail)"}
	}
	return CheckAI(ctx, cfg.AI)
}

// StorageDetail renders a display-friendly summary of the artifact backend.
func StorageDetail(cfg *config.Config) Result {
	const name = "Artifact storage"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	switch cfg.Storage.Backend {
	case config.StorageGCS:
		target := "gs://" + cfg.Storage.Bucket
		if cfg.Storage.Prefix != "" {
			target += "/" + strings.Trim(cfg.Storage.Prefix, "/")
		}
		return Result{Name: name, Passed: cfg.Storage.Bucket != "", Detail: fmt.Sprintf("GCS %s (signed URLs, %ds)", target, cfg.Storage.SignedURLTTL)}
	default:
		check := CheckDirectoryAccess(name, cfg.Storage.LocalDir)
		base := cfg.Storage.PublicBaseURL
		if base == "" {
			base = "http://" + cfg.Paths.APIBind + "/artifacts"
		}
		return Result{Name: name, Passed: check.Passed, Detail: check.Detail + " served at " + base}
	}
}
