// Package panel serves the live preview: the current editor snapshot, the
// outputs of the last evaluation, run history, diagrams and an SSE stream.
package panel

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/rendis/bonsai/internal/editor"
	"github.com/rendis/bonsai/internal/journal"
	"github.com/rendis/bonsai/internal/logging"
	"github.com/rendis/bonsai/internal/streaming"
	"github.com/rendis/bonsai/internal/validation"
)

//go:embed templates
var content embed.FS

// RunHistory is the read side of the run journal. Satisfied by *journal.Journal.
type RunHistory interface {
	ListRuns(ctx context.Context, sessionID string, limit int) ([]*journal.Run, error)
	GetRun(ctx context.Context, id string) (*journal.Run, error)
}

var _ RunHistory = (*journal.Journal)(nil)

// Deps holds the dependencies for the panel server. History and Dialects
// are optional.
type Deps struct {
	Session  *editor.Session
	Hub      streaming.EventHub
	History  RunHistory
	Dialects validation.DialectLookup
	Logger   *slog.Logger
}

// Server serves the preview panel.
type Server struct {
	deps  Deps
	index *template.Template
}

// NewServer creates a Server with its page template parsed.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	funcMap := template.FuncMap{
		"json":        toJSON,
		"timeAgo":     timeAgo,
		"statusBadge": statusBadge,
		"truncate":    truncate,
	}
	index := template.Must(template.New("index.html").Funcs(funcMap).ParseFS(content, "templates/index.html"))
	return &Server{deps: deps, index: index}
}

// Handler returns the HTTP handler for the panel routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)

	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("POST /api/events", s.handleEvent)
	mux.HandleFunc("POST /api/sources", s.handleSources)
	mux.HandleFunc("POST /api/run", s.handleRun)
	mux.HandleFunc("GET /api/outputs", s.handleOutputs)
	mux.HandleFunc("GET /api/runs", s.handleRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /api/diagram", s.handleDiagram)
	mux.HandleFunc("GET /api/validate", s.handleValidate)

	mux.HandleFunc("GET /sse", s.handleSSE)

	return mux
}

type indexData struct {
	SessionID string
	Version   uint64
	State     editor.State
	Outputs   map[string]any
	Failed    []string
	Errors    []string
	Runs      []*journal.Run
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := s.deps.Session
	data := indexData{
		SessionID: sess.ID(),
		Version:   sess.Version(),
		State:     sess.State(),
	}
	if res := sess.LastResult(); res != nil {
		data.Outputs = res.Outputs
		data.Failed = res.FailedNodes()
		for _, e := range res.Errors {
			data.Errors = append(data.Errors, e.Error())
		}
	}
	if s.deps.History != nil {
		runs, err := s.deps.History.ListRuns(r.Context(), sess.ID(), 10)
		if err != nil {
			s.deps.Logger.WarnContext(r.Context(), "list runs for index failed", slog.String("error", err.Error()))
		}
		data.Runs = runs
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.index.Execute(w, data); err != nil {
		s.deps.Logger.Error("template render error", slog.String("error", err.Error()))
		http.Error(w, fmt.Sprintf("render index: %v", err), http.StatusInternalServerError)
	}
}
