package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/hupe1980/ivfgo/ivf"
)

// record is one line of a vector file.
type record struct {
	ID       string         `json:"id"`
	Vector   []float32      `json:"vector"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// readRecords decodes a JSON lines stream. Blank lines are skipped.
func readRecords(r io.Reader) ([]record, error) {
	var out []record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var rec record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec.Vector) == 0 {
			return nil, fmt.Errorf("line %d: missing vector", line)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("no records")
	}
	return out, nil
}

func readRecordsFile(path string) ([]record, error) {
	if path == "-" {
		return readRecords(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readRecords(f)
}

// parseVector parses "0.1,0.2,0.3".
func parseVector(s string) ([]float32, error) {
	parts := strings.Split(s, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("component %d: %w", i, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}

// parseFilter turns key=value pairs into a filter. Values that parse as
// numbers or booleans are typed accordingly.
func parseFilter(pairs []string) (ivf.Filter, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	f := make(ivf.Filter, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid filter %q, want key=value", p)
		}
		switch {
		case v == "true" || v == "false":
			f[k] = v == "true"
		default:
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				f[k] = n
			} else {
				f[k] = v
			}
		}
	}
	return f, nil
}
