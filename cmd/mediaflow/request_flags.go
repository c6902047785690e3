package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"mediaflow/internal/request"
)

// requestFlags builds a request.Request from submit/run flags.
type requestFlags struct {
	activities []string
	params     []string
	paramsFile string
	callback   string
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&f.activities, "activity", "a", nil, "Activity to run (repeatable or comma-separated)")
	cmd.Flags().StringArrayVarP(&f.params, "param", "p", nil, "Activity parameters as activity=JSON (repeatable)")
	cmd.Flags().StringVar(&f.paramsFile, "params-file", "", "JSON file mapping activity names to parameter objects")
	cmd.Flags().StringVar(&f.callback, "callback", "", "URL notified as each activity completes")
}

// build assembles the request for file. Local paths are made absolute so the
// daemon resolves them independently of the CLI's working directory.
func (f *requestFlags) build(file string) (request.Request, error) {
	file = strings.TrimSpace(file)
	if file != "" && !strings.Contains(file, "://") {
		abs, err := filepath.Abs(file)
		if err != nil {
			return request.Request{}, fmt.Errorf("resolve %q: %w", file, err)
		}
		file = abs
	}

	req := request.Request{
		File:       file,
		Activities: f.activities,
		Callback:   strings.TrimSpace(f.callback),
	}

	params := make(map[string]json.RawMessage)
	if f.paramsFile != "" {
		data, err := os.ReadFile(f.paramsFile)
		if err != nil {
			return request.Request{}, fmt.Errorf("read params file: %w", err)
		}
		if err := json.Unmarshal(data, &params); err != nil {
			return request.Request{}, fmt.Errorf("decode params file %s: %w", f.paramsFile, err)
		}
	}
	for _, value := range f.params {
		name, raw, ok := strings.Cut(value, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return request.Request{}, fmt.Errorf("invalid --param %q: expected activity=JSON", value)
		}
		if !json.Valid([]byte(raw)) {
			return request.Request{}, fmt.Errorf("invalid --param %q: value is not valid JSON", value)
		}
		params[name] = json.RawMessage(raw)
	}
	if len(params) > 0 {
		req.Params = params
	}
	return req, nil
}
