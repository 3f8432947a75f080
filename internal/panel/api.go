package panel

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rendis/bonsai/internal/diagram"
	"github.com/rendis/bonsai/internal/editor"
	"github.com/rendis/bonsai/internal/journal"
	"github.com/rendis/bonsai/internal/validation"
	"github.com/rendis/bonsai/pkg/schema"
)

const maxBody = 1 << 20

type stateResponse struct {
	SessionID string       `json:"session_id"`
	Version   uint64       `json:"version"`
	Pending   bool         `json:"pending"`
	State     editor.State `json:"state"`
}

func (s *Server) snapshot() stateResponse {
	sess := s.deps.Session
	return stateResponse{
		SessionID: sess.ID(),
		Version:   sess.Version(),
		Pending:   sess.Pending(),
		State:     sess.State(),
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

// handleEvent applies one editor event. A rejected event answers with the
// error and the unchanged snapshot.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	ev, err := editor.ParseEvent(raw)
	if err != nil {
		writeBonsaiError(w, err)
		return
	}
	if _, err := s.deps.Session.Dispatch(r.Context(), ev); err != nil {
		bErr := schema.AsBonsaiError(err, schema.ErrCodeInvalidEvent)
		writeJSON(w, statusFor(bErr.Code), map[string]any{
			"error": bErr,
			"state": s.snapshot(),
		})
		return
	}
	writeJSON(w, http.StatusOK, s.snapshot())
}

// handleSources replaces the external source values.
func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	v, err := validation.Default()
	if err != nil {
		writeBonsaiError(w, err)
		return
	}
	if err := v.ValidateSources(raw); err != nil {
		writeBonsaiError(w, err)
		return
	}
	var sources map[string]any
	if err := json.Unmarshal(raw, &sources); err != nil {
		writeBonsaiError(w, schema.NewError(schema.ErrCodeValidation, "malformed sources").WithCause(err))
		return
	}
	s.deps.Session.SetSourceData(r.Context(), sources)
	writeJSON(w, http.StatusAccepted, map[string]any{"sources": len(sources)})
}

// handleRun forces an evaluation of the current snapshot.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	res := s.deps.Session.EvaluateNow(r.Context(), editor.TriggerManual)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleOutputs(w http.ResponseWriter, r *http.Request) {
	res := s.deps.Session.LastResult()
	if res == nil {
		writeJSON(w, http.StatusOK, map[string]any{"outputs": map[string]any{}, "evaluated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"outputs":      res.Outputs,
		"errors":       res.Errors,
		"failed_nodes": res.FailedNodes(),
		"visited":      res.Visited,
		"evaluated":    true,
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, http.StatusNotImplemented, "run journal is disabled")
		return
	}
	runs, err := s.deps.History.ListRuns(r.Context(), s.deps.Session.ID(), queryInt(r, "limit", journal.DefaultListLimit))
	if err != nil {
		writeBonsaiError(w, err)
		return
	}
	if runs == nil {
		runs = []*journal.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, http.StatusNotImplemented, "run journal is disabled")
		return
	}
	run, err := s.deps.History.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		writeBonsaiError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleDiagram renders the current graph with the last result overlaid.
func (s *Server) handleDiagram(w http.ResponseWriter, r *http.Request) {
	sess := s.deps.Session
	model := diagram.Build(r.URL.Query().Get("title"), sess.State().Graph, sess.LastResult())
	body, contentType, err := diagram.Render(r.Context(), r.URL.Query().Get("format"), model)
	if err != nil {
		writeBonsaiError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	result := validation.ValidateGraph(s.deps.Session.State().Graph, s.deps.Dialects)
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":    result.Valid(),
		"errors":   result.Errors,
		"warnings": result.Warnings,
	})
}
