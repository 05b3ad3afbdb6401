package journal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Entry is one tamper-evident record of an executed step. Entries form a
// hash chain: each one commits to its predecessor's hash, and the chain
// is signed, so editing a saved log or a journal line is detectable.
type Entry struct {
	Index     int    `json:"index"`
	Timestamp string `json:"timestamp"`
	RunID     string `json:"runId"`
	Step      string `json:"step"`
	Phase     string `json:"phase"`
	LogPath   string `json:"logPath"`
	LogHash   string `json:"logHash"`
	PrevHash  string `json:"prevHash"`
	Hash      string `json:"hash"`
	Signature string `json:"signature"`
	PubKey    string `json:"pubKey"`
}

// canonicalData returns the JSON bytes the entry hash covers. Hash,
// Signature and PubKey are intentionally excluded.
func (e *Entry) canonicalData() ([]byte, error) {
	view := struct {
		Index     int    `json:"index"`
		Timestamp string `json:"timestamp"`
		RunID     string `json:"runId"`
		Step      string `json:"step"`
		Phase     string `json:"phase"`
		LogPath   string `json:"logPath"`
		LogHash   string `json:"logHash"`
		PrevHash  string `json:"prevHash"`
	}{e.Index, e.Timestamp, e.RunID, e.Step, e.Phase, e.LogPath, e.LogHash, e.PrevHash}
	return json.Marshal(view)
}

// ComputeHash calculates SHA256 over canonicalData.
func (e *Entry) ComputeHash() (string, error) {
	data, err := e.canonicalData()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// NewEntry constructs an entry and computes its hash (no signature yet).
func NewEntry(index int, runID, step, phase, logPath, logHash, prevHash string) (*Entry, error) {
	e := &Entry{
		Index:     index,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RunID:     runID,
		Step:      step,
		Phase:     phase,
		LogPath:   logPath,
		LogHash:   logHash,
		PrevHash:  prevHash,
	}
	h, err := e.ComputeHash()
	if err != nil {
		return nil, fmt.Errorf("compute entry hash: %w", err)
	}
	e.Hash = h
	return e, nil
}
