package analysis

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"firestige.xyz/wirechart/internal/capture"
	"firestige.xyz/wirechart/internal/topology"
)

// Snapshot formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Snapshot is the serializable outcome of one run: the topology graph,
// routing service participants, the statistics table and capture summaries.
type Snapshot struct {
	NodesEdges     map[string]map[string][]topology.Edge `json:"nodes_edges" yaml:"nodes_edges"`
	RSGUIDPrefixes []string                              `json:"rs_guid_prefix" yaml:"rs_guid_prefix"`
	Statistics     []Row                                 `json:"statistics" yaml:"statistics"`
	Capture        capture.Summary                       `json:"capture" yaml:"capture"`
	Ingest         *capture.Report                       `json:"ingest,omitempty" yaml:"ingest,omitempty"`
}

// NewSnapshot assembles a snapshot. report may be nil.
func NewSnapshot(res *Result, c *capture.Capture, report *capture.Report, includeBuiltin bool) *Snapshot {
	prefixes := make([]string, 0, len(res.RSGUIDPrefixes))
	for _, p := range res.RSGUIDPrefixes {
		prefixes = append(prefixes, p.String())
	}
	return &Snapshot{
		NodesEdges:     res.Graph.ToDict(),
		RSGUIDPrefixes: prefixes,
		Statistics:     res.Statistics,
		Capture:        c.Summary(includeBuiltin),
		Ingest:         report,
	}
}

// Encode writes s to w in format.
func (s *Snapshot) Encode(w io.Writer, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported snapshot format: %s", format)
	}
}

// WriteFile writes s to dir/<base>.<format> and returns the path.
func (s *Snapshot) WriteFile(dir, base, format string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(dir, base+"."+format)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}
	if err := s.Encode(f, format); err != nil {
		f.Close()
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}
