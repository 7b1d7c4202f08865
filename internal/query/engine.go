// Package query evaluates jq expressions against analysis snapshots.
package query

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/itchyny/gojq"
	"gopkg.in/yaml.v3"

	"firestige.xyz/wirechart/internal/analysis"
)

// Engine executes jq queries against snapshot data.
type Engine struct{}

// NewEngine creates a new query engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Result contains the values a query produced.
type Result struct {
	Values   []any    `json:"values"`
	Errors   []string `json:"errors,omitempty"` // runtime errors, one per distinct message
	RawCount int      `json:"raw_count"`        // count before deduplication
}

// Options tune a query run.
type Options struct {
	Deduplicate bool
	MaxResults  int // 0 = unlimited
}

// Compile parses and compiles expression.
func (e *Engine) Compile(expression string) (*gojq.Code, error) {
	query, err := gojq.Parse(expression)
	if err != nil {
		var parseErr *gojq.ParseError
		if errors.As(err, &parseErr) {
			return nil, fmt.Errorf("invalid jq expression at position %d: %w", parseErr.Offset, err)
		}
		return nil, fmt.Errorf("invalid jq expression: %w", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq expression: %w", err)
	}
	return code, nil
}

// ValidateExpression checks expression without running it.
func (e *Engine) ValidateExpression(expression string) error {
	_, err := e.Compile(expression)
	return err
}

// Query decodes data in format (json or yaml) and runs expression over it.
func (e *Engine) Query(ctx context.Context, data []byte, format, expression string, opts Options) (*Result, error) {
	input, err := Decode(data, format)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, input, expression, opts)
}

// QuerySnapshot runs expression over the JSON form of s.
func (e *Engine) QuerySnapshot(ctx context.Context, s *analysis.Snapshot, expression string, opts Options) (*Result, error) {
	var buf bytes.Buffer
	if err := s.Encode(&buf, analysis.FormatJSON); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return e.Query(ctx, buf.Bytes(), analysis.FormatJSON, expression, opts)
}

// QueryFile reads a snapshot file, picking the format from its extension.
func (e *Engine) QueryFile(ctx context.Context, path, expression string, opts Options) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return e.Query(ctx, data, FormatOf(path), expression, opts)
}

// Run executes expression against an already decoded value.
func (e *Engine) Run(ctx context.Context, input any, expression string, opts Options) (*Result, error) {
	code, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}

	result := &Result{Values: make([]any, 0)}
	seen := make(map[string]bool)
	seenErrors := make(map[string]bool)

	iter := code.RunWithContext(ctx, input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			msg := formatJQError(err)
			if !seenErrors[msg] {
				result.Errors = append(result.Errors, msg)
				seenErrors[msg] = true
			}
			continue
		}
		if v == nil {
			continue
		}

		result.RawCount++
		if opts.Deduplicate {
			key := valueKey(v)
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		result.Values = append(result.Values, v)

		if opts.MaxResults > 0 && len(result.Values) >= opts.MaxResults {
			break
		}
	}
	return result, nil
}

// FormatOf maps a file extension to a snapshot format. Unknown extensions
// are treated as JSON.
func FormatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return analysis.FormatYAML
	default:
		return analysis.FormatJSON
	}
}

// Decode parses data into the generic values gojq operates on.
func Decode(data []byte, format string) (any, error) {
	var input any
	switch format {
	case analysis.FormatJSON, "":
		if err := json.Unmarshal(data, &input); err != nil {
			return nil, fmt.Errorf("invalid JSON data: %w", err)
		}
		return input, nil
	case analysis.FormatYAML:
		if err := yaml.Unmarshal(data, &input); err != nil {
			return nil, fmt.Errorf("invalid YAML data: %w", err)
		}
		return normalize(input), nil
	default:
		return nil, fmt.Errorf("unsupported snapshot format: %s", format)
	}
}

// normalize rewrites YAML maps with non-string keys into string keyed maps.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			val[k] = normalize(item)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case []any:
		for i, item := range val {
			val[i] = normalize(item)
		}
		return val
	default:
		return v
	}
}

// formatJQError decorates common runtime errors with a hint.
func formatJQError(err error) string {
	var haltErr *gojq.HaltError
	if errors.As(err, &haltErr) {
		if haltErr.Value() == nil {
			return "query halted"
		}
		return fmt.Sprintf("query halted with: %v", haltErr.Value())
	}

	msg := err.Error()
	var hint string
	switch {
	case strings.Contains(msg, "cannot iterate over: null"):
		hint = " (the path may not exist in this snapshot)"
	case strings.Contains(msg, "cannot index") && strings.Contains(msg, "with"):
		hint = " (field not found or wrong type)"
	}
	return msg + hint
}

func valueKey(v any) string {
	switch val := v.(type) {
	case string:
		return "s:" + val
	case bool:
		return fmt.Sprintf("b:%v", val)
	case int, float64:
		return fmt.Sprintf("n:%v", val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("?:%v", val)
		}
		return "j:" + string(b)
	}
}
