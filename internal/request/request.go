package request

import (
	"encoding/json"
	"net/url"
	"slices"
	"strings"

	"mediaflow/internal/services"
)

// Request is a job submission.
type Request struct {
	File       string                     `json:"file"`
	Activities []string                   `json:"activities"`
	Params     map[string]json.RawMessage `json:"params,omitempty"`
	Callback   string                     `json:"callback,omitempty"`
}

// Normalize trims fields and drops duplicate activity names, keeping first
// occurrence order. It returns a copy; r is not modified.
func (r Request) Normalize() Request {
	out := Request{
		File:     strings.TrimSpace(r.File),
		Callback: strings.TrimSpace(r.Callback),
	}
	seen := make(map[string]struct{}, len(r.Activities))
	for _, name := range r.Activities {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out.Activities = append(out.Activities, name)
	}
	if len(r.Params) > 0 {
		out.Params = make(map[string]json.RawMessage, len(r.Params))
		for key, raw := range r.Params {
			out.Params[key] = slices.Clone(raw)
		}
	}
	return out
}

// Clone returns a deep copy of r.
func (r Request) Clone() Request {
	out := Request{File: r.File, Callback: r.Callback, Activities: slices.Clone(r.Activities)}
	if r.Params != nil {
		out.Params = make(map[string]json.RawMessage, len(r.Params))
		for key, raw := range r.Params {
			out.Params[key] = slices.Clone(raw)
		}
	}
	return out
}

// Validate checks the request shape. Activity names are checked against the
// registry by the orchestrator.
func (r Request) Validate() error {
	if r.File == "" {
		return services.Invalid("file", "must be set")
	}
	if len(r.Activities) == 0 {
		return services.Invalid("activities", "at least one activity is required")
	}
	for key := range r.Params {
		if !slices.Contains(r.Activities, key) {
			return services.Invalid("params."+key, "parameters given for an activity that was not requested")
		}
	}
	if r.Callback != "" {
		parsed, err := url.Parse(r.Callback)
		if err != nil {
			return services.Invalid("callback", "%v", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return services.Invalid("callback", "scheme must be http or https")
		}
		if parsed.Host == "" {
			return services.Invalid("callback", "host is required")
		}
	}
	return nil
}

// IsRemote reports whether File must be downloaded rather than copied.
func (r Request) IsRemote() bool {
	lower := strings.ToLower(r.File)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
