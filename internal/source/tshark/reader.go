// Package tshark runs the tshark protocol decoder over a capture file and
// returns its field output as records.
package tshark

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"firestige.xyz/wirechart/internal/capture"
	"firestige.xyz/wirechart/internal/config"
	"firestige.xyz/wirechart/internal/core"
	"firestige.xyz/wirechart/internal/log"
)

const maxLineSize = 4 << 20

// Reader invokes tshark. It implements capture.RecordReader.
type Reader struct {
	binary  string
	twoPass bool
	timeout time.Duration
}

var _ capture.RecordReader = (*Reader)(nil)

// NewReader creates a reader from the decoder configuration.
func NewReader(cfg config.DecoderConfig) *Reader {
	binary := cfg.Binary
	if binary == "" {
		binary = "tshark"
	}
	return &Reader{binary: binary, twoPass: cfg.TwoPass, timeout: cfg.Timeout}
}

// Args builds the tshark command line for source.
func (r *Reader) Args(source string, fields []string, opts capture.ReadOptions) []string {
	args := make([]string, 0, 8+2*len(fields))
	if r.twoPass {
		// the second pass resolves topic names announced later in the file
		args = append(args, "-2")
	}
	args = append(args, "-r", source, "-T", "fields")
	for _, f := range fields {
		args = append(args, "-e", f)
	}
	if filter := DisplayFilter(opts); filter != "" {
		args = append(args, "-Y", filter)
	}
	if opts.MaxFrames > 0 {
		args = append(args, "-c", strconv.Itoa(opts.MaxFrames))
	}
	return args
}

// DisplayFilter joins the configured filter and the frame range with &&.
func DisplayFilter(opts capture.ReadOptions) string {
	var parts []string
	if opts.DisplayFilter != "" {
		parts = append(parts, "("+opts.DisplayFilter+")")
	}
	if opts.StartFrame > 0 {
		parts = append(parts, fmt.Sprintf("(frame.number >= %d)", opts.StartFrame))
	}
	if opts.FinishFrame > 0 {
		parts = append(parts, fmt.Sprintf("(frame.number <= %d)", opts.FinishFrame))
	}
	return strings.Join(parts, " && ")
}

// ReadRecords runs tshark over source and returns one field map per frame.
func (r *Reader) ReadRecords(ctx context.Context, source string, fields []string, opts capture.ReadOptions) ([]map[string]string, error) {
	if _, err := os.Stat(source); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrCaptureFile, err)
	}
	path, err := exec.LookPath(r.binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrDecoderNotFound, r.binary)
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	args := r.Args(source, fields, opts)
	logger := log.GetLogger()
	logger.Debugf("Running command: %s %s", path, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, path, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", r.binary, err)
	}

	var (
		records []map[string]string
		errBuf  bytes.Buffer
		g       errgroup.Group
	)
	g.Go(func() error {
		var err error
		records, err = ParseRecords(stdout, fields)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(&errBuf, stderr)
		return err
	})
	readErr := g.Wait()

	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", r.binary, err, strings.TrimSpace(errBuf.String()))
	}
	if readErr != nil {
		return nil, fmt.Errorf("read %s output: %w", r.binary, readErr)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no RTPS frames found in %s", core.ErrNoRecords, source)
	}

	logger.Infof("%s returned %d frames", r.binary, len(records))
	return records, nil
}

// ParseRecords splits tab separated decoder output into field maps. Missing
// trailing values are empty strings.
func ParseRecords(rd io.Reader, fields []string) ([]map[string]string, error) {
	var records []map[string]string
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		records = append(records, ParseLine(line, fields))
	}
	return records, sc.Err()
}

// ParseLine maps one output line onto fields.
func ParseLine(line string, fields []string) map[string]string {
	values := strings.Split(line, "\t")
	rec := make(map[string]string, len(fields))
	for i, f := range fields {
		if i < len(values) {
			rec[f] = values[i]
		} else {
			rec[f] = ""
		}
	}
	return rec
}

// Version returns the first line of the decoder's version banner.
func (r *Reader) Version(ctx context.Context) (string, error) {
	path, err := exec.LookPath(r.binary)
	if err != nil {
		return "", fmt.Errorf("%w: %s", core.ErrDecoderNotFound, r.binary)
	}
	out, err := exec.CommandContext(ctx, path, "--version").CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%s --version: %w: %s", r.binary, err, strings.TrimSpace(string(out)))
		}
		return "", err
	}
	first, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(first), nil
}
