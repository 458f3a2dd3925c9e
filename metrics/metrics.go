package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"
)

// Recorder receives named scalars keyed by a step or timestep index
type Recorder interface {
	Record(name string, value float64, step int)
}

// Point is one recorded scalar
type Point struct {
	Name  string    `json:"name"`
	Value float64   `json:"value"`
	Step  int       `json:"step"`
	Time  time.Time `json:"time"`
}

// Memory keeps every point in process
type Memory struct {
	mu     sync.Mutex
	points map[string][]Point
}

// NewMemory creates an empty in-memory recorder
func NewMemory() *Memory {
	return &Memory{points: make(map[string][]Point)}
}

// Record stores the point
func (m *Memory) Record(name string, value float64, step int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points[name] = append(m.points[name], Point{Name: name, Value: value, Step: step, Time: time.Now()})
}

// Series returns the points recorded under name in insertion order
func (m *Memory) Series(name string) []Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Point, len(m.points[name]))
	copy(out, m.points[name])
	return out
}

// Last returns the most recent value recorded under name
func (m *Memory) Last(name string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.points[name]
	if len(s) == 0 {
		return 0, false
	}
	return s[len(s)-1].Value, true
}

// Names lists every tag seen so far
func (m *Memory) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.points))
	for n := range m.points {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Console prints every point, one line each
type Console struct {
	w io.Writer
}

// NewConsole prints to w, or stdout when w is nil
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{w: w}
}

// Record prints the point
func (c *Console) Record(name string, value float64, step int) {
	fmt.Fprintf(c.w, "%s @ %d: %.4f\n", name, step, value)
}

// JSONL appends one JSON object per point to a writer. The first write
// error is kept and reported by Err and Close.
type JSONL struct {
	mu  sync.Mutex
	enc *json.Encoder
	c   io.Closer
	err error
}

// NewJSONL writes points to w
func NewJSONL(w io.Writer) *JSONL {
	j := &JSONL{enc: json.NewEncoder(w)}
	if c, ok := w.(io.Closer); ok {
		j.c = c
	}
	return j
}

// OpenJSONL appends points to the file at path
func OpenJSONL(path string) (*JSONL, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open metrics file: %w", err)
	}
	return NewJSONL(f), nil
}

// Record encodes the point
func (j *JSONL) Record(name string, value float64, step int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return
	}
	j.err = j.enc.Encode(Point{Name: name, Value: value, Step: step, Time: time.Now()})
}

// Err returns the first write error
func (j *JSONL) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Close closes the underlying writer when it is closable
func (j *JSONL) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.c != nil {
		if err := j.c.Close(); err != nil && j.err == nil {
			j.err = err
		}
	}
	return j.err
}

// Multi fans every point out to several recorders
type Multi []Recorder

// Record forwards the point
func (m Multi) Record(name string, value float64, step int) {
	for _, r := range m {
		r.Record(name, value, step)
	}
}

// Discard drops every point
type Discard struct{}

// Record does nothing
func (Discard) Record(string, float64, int) {}
