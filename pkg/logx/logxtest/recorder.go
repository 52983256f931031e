// Package logxtest captures logx records for assertions in tests.
package logxtest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"sync"

	logx "httpcron/pkg/logx"
)

// Record is one decoded log line.
type Record map[string]any

func (r Record) Level() string   { s, _ := r["level"].(string); return s }
func (r Record) Message() string { s, _ := r["message"].(string); return s }
func (r Record) Str(k string) string {
	s, _ := r[k].(string)
	return s
}

// Recorder is an io.Writer that keeps every JSON line written to it.
type Recorder struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func New() *Recorder { return &Recorder{} }

func (r *Recorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Write(p)
}

// Logger returns a logger that writes every level into the recorder.
func (r *Recorder) Logger() logx.Logger {
	return logx.NewWriter(r, logx.LevelTrace)
}

// Records decodes everything written so far. Undecodable lines are skipped.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	data := append([]byte(nil), r.buf.Bytes()...)
	r.mu.Unlock()

	var out []Record
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// ByLevel returns records with the given level name ("error", "debug", ...).
func (r *Recorder) ByLevel(level string) []Record {
	var out []Record
	for _, rec := range r.Records() {
		if rec.Level() == level {
			out = append(out, rec)
		}
	}
	return out
}
