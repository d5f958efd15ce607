// Package logring holds the bounded on-screen activity log.
//
// The ring is one contiguous text blob of "[HH:MM:SS] message\n" lines. Two budgets
// apply at every append: total bytes and line count. Oldest lines are evicted first.
// A single line larger than the whole byte budget is truncated and replaces the
// buffer.
package logring

import (
	"bytes"
	"strings"
	"sync"

	"ftpdisplay-go/x/strx"
)

// Budget bounds the ring. The byte budget is Lines*LineBytes.
type Budget struct {
	Lines     int
	LineBytes int
}

// DefaultBudget is 50 lines of 100 bytes.
func DefaultBudget() Budget { return Budget{Lines: 50, LineBytes: 100} }

// Bytes returns the total byte budget.
func (b Budget) Bytes() int { return b.Lines * b.LineBytes }

func (b Budget) normalised() Budget {
	d := DefaultBudget()
	if b.Lines <= 0 {
		b.Lines = d.Lines
	}
	if b.LineBytes <= 0 {
		b.LineBytes = d.LineBytes
	}
	return b
}

// Entry is one log line before serialisation.
type Entry struct {
	Stamp string // HH:MM:SS
	Color string // optional rrggbb recolour tag
	Text  string
}

// Line serialises e, newline terminated. Embedded line breaks are flattened so
// one Entry is always exactly one line.
func (e Entry) Line() string {
	text := flatten(e.Text)
	if e.Color != "" {
		text = Colorize(e.Color, text)
	}
	return "[" + e.Stamp + "] " + text + "\n"
}

// Colorize wraps text in the surface's inline recolour markup: "#rrggbb text#".
func Colorize(color, text string) string {
	return "#" + color + " " + text + "#"
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func flatten(s string) string {
	if strings.IndexAny(s, "\r\n") < 0 {
		return s
	}
	return lineBreaks.Replace(s)
}

// Result reports what an append did to the ring.
type Result struct {
	Evicted   int  // lines dropped to make room
	Truncated bool // the new line alone exceeded the byte budget
}

// Ring is safe for concurrent use. Its mutex is the "buffer lock": it guards the
// ring only and is never held while callers touch the render surface.
type Ring struct {
	mu     sync.Mutex
	budget Budget
	buf    []byte
	lines  int
}

// New returns an empty ring with the given budget (zero fields take defaults).
func New(b Budget) *Ring {
	b = b.normalised()
	return &Ring{
		budget: b,
		buf:    make([]byte, 0, b.Bytes()),
	}
}

func (r *Ring) Budget() Budget { return r.budget }

// Append adds e and returns the eviction summary plus the full text after the append.
func (r *Ring) Append(e Entry) (Result, string) {
	line := e.Line()

	r.mu.Lock()
	defer r.mu.Unlock()

	var res Result
	max := r.budget.Bytes()

	for len(r.buf)+len(line) > max && r.lines > 0 {
		r.evictOldest()
		res.Evicted++
	}
	for r.lines >= r.budget.Lines {
		r.evictOldest()
		res.Evicted++
	}

	if len(r.buf)+len(line) <= max {
		r.buf = append(r.buf, line...)
		r.lines++
		return res, string(r.buf)
	}

	// Pathological single line: keep as much as fits, still newline terminated.
	res.Truncated = true
	body := strx.TruncateBytes(line[:len(line)-1], max-1)
	r.buf = append(r.buf[:0], body...)
	r.buf = append(r.buf, '\n')
	r.lines = 1
	return res, string(r.buf)
}

// evictOldest drops the first line, shifting the rest left. Caller holds mu.
func (r *Ring) evictOldest() {
	i := bytes.IndexByte(r.buf, '\n')
	if i < 0 {
		r.buf = r.buf[:0]
		r.lines = 0
		return
	}
	n := copy(r.buf, r.buf[i+1:])
	r.buf = r.buf[:n]
	r.lines--
}

// Clear empties the ring.
func (r *Ring) Clear() {
	r.mu.Lock()
	r.buf = r.buf[:0]
	r.lines = 0
	r.mu.Unlock()
}

// Text returns a copy of the serialised ring.
func (r *Ring) Text() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return string(r.buf)
}

func (r *Ring) Lines() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lines
}

func (r *Ring) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}
