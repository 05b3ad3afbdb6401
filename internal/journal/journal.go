package journal

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Journal is an append-only, hash-chained record of executed steps,
// persisted as JSON lines.
type Journal struct {
	mu      sync.Mutex
	entries []*Entry
	path    string
}

// Open loads an existing journal file or starts an empty one.
func Open(path string) (*Journal, error) {
	j := &Journal{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return j, nil
	}
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("decode journal entry: %w", err)
		}
		j.entries = append(j.entries, &e)
	}
	return j, nil
}

// Append signs the entry, links it to the chain, persists it and keeps
// it in memory.
func (j *Journal) Append(e *Entry, priv ed25519.PrivateKey, pub ed25519.PublicKey) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	// Recompute so the canonical fields and hash always match.
	h, err := e.ComputeHash()
	if err != nil {
		return fmt.Errorf("recompute entry hash: %w", err)
	}
	e.Hash = h

	if len(j.entries) > 0 {
		last := j.entries[len(j.entries)-1]
		if e.PrevHash != last.Hash {
			return fmt.Errorf("prevHash mismatch: expected %s, got %s", last.Hash, e.PrevHash)
		}
	}

	if len(priv) == 0 {
		return fmt.Errorf("private key is empty, cannot sign entry")
	}
	sig := ed25519.Sign(priv, []byte(e.Hash))
	e.Signature = hex.EncodeToString(sig)
	e.PubKey = hex.EncodeToString(pub)

	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(e); err != nil {
		return fmt.Errorf("write journal file: %w", err)
	}

	j.entries = append(j.entries, e)
	return nil
}

// Entries returns a copy of the chain. Mutating the returned entries
// cannot corrupt the journal.
func (j *Journal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Entry, len(j.entries))
	for i, e := range j.entries {
		out[i] = *e
	}
	return out
}

// NextIndex returns the index the next entry should carry.
func (j *Journal) NextIndex() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}

// LastHash returns the newest entry's hash, or "" for an empty journal.
func (j *Journal) LastHash() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.entries) == 0 {
		return ""
	}
	return j.entries[len(j.entries)-1].Hash
}
