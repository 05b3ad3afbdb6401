package journal

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"snapci/pkg/utils"
)

func createTempLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "step.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp log: %v", err)
	}
	return path
}

func TestEntryHash(t *testing.T) {
	logPath := createTempLog(t, "hello journal")
	logHash, err := utils.HashFile(logPath)
	if err != nil {
		t.Fatalf("failed to hash log: %v", err)
	}

	e, err := NewEntry(0, "run-1", "agent", "execute", logPath, logHash, "")
	if err != nil {
		t.Fatalf("failed to create entry: %v", err)
	}

	h, err := e.ComputeHash()
	if err != nil {
		t.Fatalf("failed to recompute hash: %v", err)
	}
	if h != e.Hash {
		t.Errorf("hash mismatch: got %s, want %s", e.Hash, h)
	}
}

func TestAppendAndVerify(t *testing.T) {
	jnl, err := Open(filepath.Join(t.TempDir(), "journal.jsonl"))
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	pub, priv, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("failed to generate keypair: %v", err)
	}

	log1 := createTempLog(t, "step1 output")
	h1, _ := utils.HashFile(log1)
	e1, _ := NewEntry(0, "run-1", "setup", "provision", log1, h1, "")
	if err := jnl.Append(e1, priv, pub); err != nil {
		t.Fatalf("failed to append entry1: %v", err)
	}

	log2 := createTempLog(t, "step2 output")
	h2, _ := utils.HashFile(log2)
	e2, _ := NewEntry(1, "run-1", "agent", "execute", log2, h2, e1.Hash)
	if err := jnl.Append(e2, priv, pub); err != nil {
		t.Fatalf("failed to append entry2: %v", err)
	}

	if err := jnl.Verify(); err != nil {
		t.Errorf("chain verification failed: %v", err)
	}
}

func TestTamperingDetection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	jnl, _ := Open(path)
	pub, priv, _ := GenerateKeyPair()

	logPath := createTempLog(t, "secure log")
	h, _ := utils.HashFile(logPath)
	e, _ := NewEntry(0, "run-x", "agent", "execute", logPath, h, "")
	if err := jnl.Append(e, priv, pub); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	// Swap the recorded log hash in the persisted file for another one.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	doctored := bytes.Replace(data, []byte(h), []byte(utils.HashString("doctored")), 1)
	if err := os.WriteFile(path, doctored, 0o644); err != nil {
		t.Fatalf("rewrite journal: %v", err)
	}

	jnl2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen journal: %v", err)
	}
	if err := jnl2.Verify(); err == nil {
		t.Errorf("expected verification failure, got success")
	}
}

func TestEntriesReturnsCopies(t *testing.T) {
	jnl, _ := Open(filepath.Join(t.TempDir(), "journal.jsonl"))
	pub, priv, _ := GenerateKeyPair()

	logPath := createTempLog(t, "copied log")
	h, _ := utils.HashFile(logPath)
	e, _ := NewEntry(0, "run-x", "agent", "execute", logPath, h, "")
	if err := jnl.Append(e, priv, pub); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	jnl.Entries()[0].LogHash = "fakehash"
	if err := jnl.Verify(); err != nil {
		t.Errorf("mutating a returned entry corrupted the chain: %v", err)
	}
}

func TestLogFileTamperingDetection(t *testing.T) {
	jnl, _ := Open(filepath.Join(t.TempDir(), "journal.jsonl"))
	pub, priv, _ := GenerateKeyPair()

	logPath := createTempLog(t, "original output")
	h, _ := utils.HashFile(logPath)
	e, _ := NewEntry(0, "run-x", "agent", "execute", logPath, h, "")
	if err := jnl.Append(e, priv, pub); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := jnl.Verify(); err != nil {
		t.Fatalf("verify failed unexpectedly: %v", err)
	}

	if err := os.WriteFile(logPath, []byte("doctored"), 0o644); err != nil {
		t.Fatalf("rewrite log: %v", err)
	}
	if err := jnl.Verify(); err == nil {
		t.Errorf("expected log tampering detection, but chain verified")
	}
}

func TestPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	jnl, _ := Open(path)
	pub, priv, _ := GenerateKeyPair()

	logPath := createTempLog(t, "persisted log")
	h, _ := utils.HashFile(logPath)
	e, _ := NewEntry(0, "run-y", "agent", "execute", logPath, h, "")
	if err := jnl.Append(e, priv, pub); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	jnl2, err := Open(path)
	if err != nil {
		t.Fatalf("failed to reopen journal: %v", err)
	}
	if err := jnl2.Verify(); err != nil {
		t.Errorf("reloaded journal verification failed: %v", err)
	}
	if jnl2.NextIndex() != 1 {
		t.Errorf("expected 1 entry after reload, got %d", jnl2.NextIndex())
	}
}

func TestAppendRejectsBrokenChain(t *testing.T) {
	jnl, _ := Open(filepath.Join(t.TempDir(), "journal.jsonl"))
	pub, priv, _ := GenerateKeyPair()

	logPath := createTempLog(t, "first")
	h, _ := utils.HashFile(logPath)
	e1, _ := NewEntry(0, "run-z", "a", "execute", logPath, h, "")
	if err := jnl.Append(e1, priv, pub); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	e2, _ := NewEntry(1, "run-z", "b", "execute", logPath, h, "wrong-prev-hash")
	if err := jnl.Append(e2, priv, pub); err == nil {
		t.Errorf("expected prevHash mismatch error")
	}
}
