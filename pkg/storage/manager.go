package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/itchyny/gojq"

	"igcrawler/pkg/config"
	"igcrawler/pkg/logger"
	"igcrawler/pkg/models"
)

// LinesFile is the file JSON-lines output is appended to
const LinesFile = "records.jsonl"

// filterVariables are bound for every filter run
var filterVariables = []string{"$kind", "$name"}

// Manager writes emitted records to the output directory or stdout. It is a
// crawler.Sink and is safe for concurrent jobs.
type Manager struct {
	outputDir string
	lines     bool
	overwrite bool
	filter    *gojq.Code
	stdout    io.Writer
	logger    logger.Logger

	mu        sync.Mutex
	linesFile *os.File
	written   int
}

// Option configures a Manager
type Option func(*Manager)

// WithStdout redirects output to w instead of the output directory
func WithStdout(w io.Writer) Option {
	return func(m *Manager) { m.stdout = w }
}

// NewManager creates a storage manager from the output configuration
func NewManager(cfg config.OutputConfig, log logger.Logger, opts ...Option) (*Manager, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	m := &Manager{
		outputDir: cfg.Directory,
		lines:     strings.EqualFold(cfg.Format, "jsonl"),
		overwrite: cfg.OverwriteExisting,
		logger:    log,
	}
	if cfg.Stdout {
		m.stdout = os.Stdout
	}
	for _, opt := range opts {
		opt(m)
	}

	if cfg.Filter != "" {
		code, err := compileFilter(cfg.Filter)
		if err != nil {
			return nil, err
		}
		m.filter = code
	}

	if m.stdout == nil {
		if err := os.MkdirAll(m.outputDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return m, nil
}

func compileFilter(src string) (*gojq.Code, error) {
	query, err := gojq.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", src, err)
	}
	code, err := gojq.Compile(query, gojq.WithVariables(filterVariables))
	if err != nil {
		return nil, fmt.Errorf("failed to compile filter: %w", err)
	}
	return code, nil
}

// Emit writes one record
func (m *Manager) Emit(ctx context.Context, rec models.Record) error {
	values, err := m.project(ctx, rec)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.stdout != nil:
		err = m.writeStream(m.stdout, values)
	case m.lines:
		err = m.appendLines(values)
	default:
		err = m.writeFile(rec, values)
	}
	if err != nil {
		return err
	}
	m.written++
	return nil
}

// project runs the filter over rec. Without a filter rec itself is the only
// output value.
func (m *Manager) project(ctx context.Context, rec models.Record) ([]interface{}, error) {
	if m.filter == nil {
		return []interface{}{rec}, nil
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s record: %w", rec.Kind(), err)
	}
	var input interface{}
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("failed to decode %s record: %w", rec.Kind(), err)
	}

	var out []interface{}
	iter := m.filter.RunWithContext(ctx, input, string(rec.Kind()), rec.Name())
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return nil, fmt.Errorf("filter failed on %s %q: %w", rec.Kind(), rec.Name(), err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (m *Manager) writeStream(w io.Writer, values []interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, v := range values {
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	return nil
}

func (m *Manager) appendLines(values []interface{}) error {
	if m.linesFile == nil {
		flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
		if m.overwrite {
			flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
		}
		f, err := os.OpenFile(filepath.Join(m.outputDir, LinesFile), flags, 0644)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", LinesFile, err)
		}
		m.linesFile = f
	}
	return m.writeStream(m.linesFile, values)
}

// writeFile writes one JSON document per record. Several filter outputs
// become a JSON array.
func (m *Manager) writeFile(rec models.Record, values []interface{}) error {
	var doc interface{} = values
	if len(values) == 1 {
		doc = values[0]
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode %s record: %w", rec.Kind(), err)
	}

	path := m.pathFor(rec)
	if err := atomicWrite(path, buf.Bytes()); err != nil {
		return err
	}

	m.logger.WithFields(map[string]interface{}{
		"kind": string(rec.Kind()),
		"path": path,
	}).Debug("Record saved")
	return nil
}

// pathFor names the file of rec. Without overwrite an existing file is kept
// and a numbered sibling is used instead.
func (m *Manager) pathFor(rec models.Record) string {
	base := string(rec.Kind()) + "_" + safeName(rec.Name())
	if p, ok := rec.(*models.ProfileResult); ok && p.Partial {
		base += "_partial"
	}

	path := filepath.Join(m.outputDir, base+".json")
	if m.overwrite {
		return path
	}
	for i := 1; fileExists(path); i++ {
		path = filepath.Join(m.outputDir, fmt.Sprintf("%s_%d.json", base, i))
	}
	return path
}

// Close flushes and closes the JSON-lines file, if any
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.linesFile == nil {
		return nil
	}
	err := m.linesFile.Close()
	m.linesFile = nil
	return err
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// Written returns the number of records written
func (m *Manager) Written() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written
}

func atomicWrite(path string, data []byte) error {
	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func safeName(name string) string {
	name = strings.TrimPrefix(name, "#")
	if name == "" {
		return "unnamed"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, name)
}
