package journal

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"snapci/pkg/utils"
)

// Verify re-computes every entry hash, checks chain links, signatures,
// and, when the referenced log file still exists, the saved log hash.
func (j *Journal) Verify() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for i, e := range j.entries {
		h, err := e.ComputeHash()
		if err != nil {
			return fmt.Errorf("compute hash for index %d: %w", e.Index, err)
		}
		if h != e.Hash {
			return fmt.Errorf("hash mismatch at index %d", e.Index)
		}

		if i > 0 && e.PrevHash != j.entries[i-1].Hash {
			return fmt.Errorf("prevHash mismatch at index %d", e.Index)
		}
		if e.Index != i {
			return fmt.Errorf("index mismatch: expected %d, got %d", i, e.Index)
		}

		if e.Signature != "" {
			if err := verifySignature(e); err != nil {
				return fmt.Errorf("signature check at index %d: %w", e.Index, err)
			}
		}

		// Log files may have been pruned; only compare when present.
		if e.LogPath != "" {
			if logHash, err := utils.HashFile(e.LogPath); err == nil && logHash != e.LogHash {
				return fmt.Errorf("log hash mismatch at index %d: %s was modified", e.Index, e.LogPath)
			}
		}
	}
	return nil
}

func verifySignature(e *Entry) error {
	pub, err := hex.DecodeString(e.PubKey)
	if err != nil {
		return fmt.Errorf("decode pubkey: %w", err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("invalid public key size")
	}
	sig, err := hex.DecodeString(e.Signature)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), []byte(e.Hash), sig) {
		return fmt.Errorf("invalid signature")
	}
	return nil
}
