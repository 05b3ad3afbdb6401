package secrets

import (
	"io"
	"strings"
	"sync"
)

const mask = "***"

// Masker rewrites registered secret values to *** in anything written
// through it. The runner wraps step output and the logger's writer with
// one shared Masker so a script echoing its credential cannot leak it
// into saved logs.
type Masker struct {
	mu     sync.RWMutex
	values []string
}

func NewMasker() *Masker {
	return &Masker{}
}

// Add registers a value to be masked. Short values are ignored: masking
// one-character strings would shred the whole log.
func (m *Masker) Add(value string) {
	if len(value) < 4 {
		return
	}
	m.mu.Lock()
	m.values = append(m.values, value)
	m.mu.Unlock()
}

// Redact returns s with every registered value replaced.
func (m *Masker) Redact(s string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, v := range m.values {
		s = strings.ReplaceAll(s, v, mask)
	}
	return s
}

// Writer returns a writer that redacts before forwarding to w.
func (m *Masker) Writer(w io.Writer) io.Writer {
	return &maskWriter{masker: m, dst: w}
}

type maskWriter struct {
	masker *Masker
	dst    io.Writer
}

// Write redacts per call. A secret split across two writes slips through;
// step output is line-buffered upstream which keeps values intact in
// practice.
func (w *maskWriter) Write(p []byte) (int, error) {
	red := w.masker.Redact(string(p))
	if _, err := w.dst.Write([]byte(red)); err != nil {
		return 0, err
	}
	return len(p), nil
}
