package storage

import (
	"os"
	"strings"
	"testing"
)

func TestSaveLog(t *testing.T) {
	ls := NewLogStorage(t.TempDir())

	path, err := ls.SaveLog("run-1", "agent", "hello output")
	if err != nil {
		t.Fatalf("save log: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if string(data) != "hello output" {
		t.Errorf("unexpected log content: %q", data)
	}
}

func TestSaveLogSanitizesNames(t *testing.T) {
	ls := NewLogStorage(t.TempDir())

	path, err := ls.SaveLog("run/1", "setup python (1)", "x")
	if err != nil {
		t.Fatalf("save log: %v", err)
	}
	if strings.ContainsAny(path[len(ls.BaseDir):], "()") {
		t.Errorf("unsanitized path: %s", path)
	}
}

func TestSaveLogUniqueFiles(t *testing.T) {
	ls := NewLogStorage(t.TempDir())

	p1, err := ls.SaveLog("run-1", "agent", "first")
	if err != nil {
		t.Fatalf("save log: %v", err)
	}
	p2, err := ls.SaveLog("run-1", "agent", "second")
	if err != nil {
		t.Fatalf("save log: %v", err)
	}
	if p1 == p2 {
		t.Errorf("expected distinct log files, got %s twice", p1)
	}
}
