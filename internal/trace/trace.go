// Package trace records a play session's Responses and Actions to a
// rotating JSONL file for host-side debugging and replay. It is a
// write-only debug log: the engine itself holds no logger and takes no
// dependency on this package (spec §9/§11), so nothing here participates
// in engine state or resumability.
package trace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MaxRotatedFiles caps how many trace files a directory accumulates
// before the oldest are removed.
const MaxRotatedFiles = 3

// DefaultDir is used when a Recorder is constructed with an empty path.
const DefaultDir = "traces"

// Event kinds logged by the CLI host. These are free-form strings rather
// than an enum so a host can record ad hoc diagnostic events without
// extending this package.
const (
	EventResponse  = "response"
	EventAction    = "action"
	EventLifecycle = "lifecycle"
	EventWarning   = "warning"
)

// Event is one line of a trace file.
type Event struct {
	Timestamp time.Time   `json:"ts"`
	Type      string      `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// Recorder manages a rotating set of JSONL trace files under one
// directory. The zero value is not usable; construct with NewRecorder.
type Recorder struct {
	mu       sync.Mutex
	file     *os.File
	encoder  *json.Encoder
	basePath string
}

// NewRecorder creates a Recorder writing under basePath, creating the
// directory if necessary. An empty basePath uses DefaultDir.
func NewRecorder(basePath string) (*Recorder, error) {
	if basePath == "" {
		basePath = DefaultDir
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create trace dir: %w", err)
	}
	return &Recorder{basePath: basePath}, nil
}

// Start begins a new recording session, rotating old files first, and
// returns the freshly minted session ID that subsequent Log calls should
// use. Each session gets its own file, named trace_<id>.jsonl after its ID,
// so the file for a session can be found by ID and handed to the `trace`
// subcommand.
func (r *Recorder) Start() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		_ = r.file.Close()
		r.file = nil
		r.encoder = nil
	}

	if err := r.rotate(); err != nil {
		return "", fmt.Errorf("rotate traces: %w", err)
	}

	sessionID := uuid.NewString()
	filename := fmt.Sprintf("trace_%s.jsonl", sessionID)
	path := filepath.Join(r.basePath, filename)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create trace file: %w", err)
	}

	r.file = f
	r.encoder = json.NewEncoder(f)
	return sessionID, nil
}

// Log appends one event to the current trace file. It is a no-op if Start
// has not been called (or has failed) — a recorder is a debugging aid,
// never load-bearing for engine correctness, so a write failure or a
// missing file must never interrupt a play session.
func (r *Recorder) Log(eventType, sessionID string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.encoder == nil {
		return
	}
	evt := Event{
		Timestamp: time.Now(),
		Type:      eventType,
		SessionID: sessionID,
		Data:      data,
	}
	_ = r.encoder.Encode(evt)
}

// rotate deletes the oldest trace files so that, after the new file this
// Start call is about to create, at most MaxRotatedFiles remain.
func (r *Recorder) rotate() error {
	entries, err := os.ReadDir(r.basePath)
	if err != nil {
		return err
	}

	type fileInfo struct {
		name string
		mod  time.Time
	}
	var traces []fileInfo
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".jsonl" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		traces = append(traces, fileInfo{e.Name(), info.ModTime()})
	}

	sort.Slice(traces, func(i, j int) bool { return traces[i].mod.After(traces[j].mod) })

	keep := MaxRotatedFiles - 1
	if keep < 0 {
		keep = 0
	}
	for i := keep; i < len(traces); i++ {
		_ = os.Remove(filepath.Join(r.basePath, traces[i].name))
	}
	return nil
}

// Close finishes the current recording session, if any.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	r.encoder = nil
	return err
}

// ReadAll loads every Event from a single trace file, in file order, for
// the `trace` subcommand's replay.
func ReadAll(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []Event
	dec := json.NewDecoder(f)
	for dec.More() {
		var evt Event
		if err := dec.Decode(&evt); err != nil {
			return events, fmt.Errorf("decode trace event: %w", err)
		}
		events = append(events, evt)
	}
	return events, nil
}
