package main

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"snapci/internal/core"
)

// handleDispatch is the manual trigger surface: no request parameters,
// 202 with a run id on success.
func (s *server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	wf, _, err := s.findWorkflow(name)
	if errors.Is(err, os.ErrNotExist) {
		http.Error(w, "workflow not found: "+name, http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	id := uuid.NewString()
	if err := s.store.CreateRun(r.Context(), id, wf.Name, string(core.StatusQueued)); err != nil {
		http.Error(w, "cannot create run: "+err.Error(), http.StatusInternalServerError)
		return
	}
	s.logger.Info("dispatched", "workflow", wf.Name, "run", id)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"runId":  id,
		"status": string(core.StatusQueued),
	})
}

func (s *server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns(r.Context(), 50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs)
}

func (s *server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	steps, err := s.store.ListSteps(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"run": run, "steps": steps})
}

func (s *server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	bundles, err := s.backend.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, bundles)
}

func (s *server) handleDownloadArtifact(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	bundle := chi.URLParam(r, "bundle")
	name := chi.URLParam(r, "*")

	// chi leaves dot segments in the wildcard as-is; only names that stay
	// inside the bundle are servable.
	if !filepath.IsLocal(filepath.FromSlash(name)) {
		http.Error(w, "invalid file name", http.StatusBadRequest)
		return
	}

	rc, err := s.backend.Open(r.Context(), runID, bundle, name)
	if err != nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", "attachment; filename="+filepath.Base(name))
	_, _ = io.Copy(w, rc)
}

// findWorkflow scans the workflows directory for a document whose name
// matches. Scanning per dispatch keeps edits live without a restart.
// Two files declaring the same name make the dispatch ambiguous and are
// rejected.
func (s *server) findWorkflow(name string) (*core.Workflow, string, error) {
	entries, err := os.ReadDir(s.cfg.WorkflowsDir)
	if err != nil {
		return nil, "", err
	}
	var (
		found     *core.Workflow
		foundPath string
	)
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(s.cfg.WorkflowsDir, e.Name())
		wf, err := core.LoadWorkflow(path)
		if err != nil {
			s.logger.Warn("skipping invalid workflow", "path", path, "err", err)
			continue
		}
		if wf.Name == name {
			if found != nil {
				return nil, "", errors.Errorf("workflow %q declared by both %s and %s", name, foundPath, path)
			}
			found = wf
			foundPath = path
		}
	}
	if found == nil {
		return nil, "", os.ErrNotExist
	}
	return found, foundPath, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
