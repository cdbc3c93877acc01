package preflight

import (
	"context"
	"fmt"
	"strings"

	"castsync/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}

	if strings.TrimSpace(cfg.MediaServer.URL) != "" {
		results = append(results, CheckMediaServer(ctx, cfg.MediaServer.URL, cfg.MediaServer.APIKey))
	}
	results = append(results, CheckTMDB(ctx, cfg.TMDB.BaseURL, cfg.TMDB.APIKey))
	if cfg.Regional.Enabled {
		results = append(results, CheckRegional(ctx, cfg.Regional.BaseURL, cfg.Regional.APIKey))
	}
	if cfg.Translation.Enabled {
		results = append(results, CheckLLM(ctx, "Translation LLM", cfg.GetLLM()))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// Summarize joins failed checks into one line for error messages.
func Summarize(results []Result) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	return strings.Join(parts, "; ")
}
