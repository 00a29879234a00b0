package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/sqlgrammar/internal/report"
	"github.com/leapstack-labs/sqlgrammar/pkg/complete"
	"github.com/leapstack-labs/sqlgrammar/pkg/dialect"
	"github.com/leapstack-labs/sqlgrammar/pkg/highlight"
	"github.com/leapstack-labs/sqlgrammar/pkg/parser"
)

const maxBodyBytes = 1 << 20

// Request is the body of the parse, complete and highlight endpoints.
type Request struct {
	Dialect  string   `json:"dialect"`
	Source   string   `json:"source"`
	Offset   *int     `json:"offset,omitempty"`
	Branches []string `json:"branches,omitempty"`
	Tree     bool     `json:"tree,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type httpError struct {
	status int
	err    error
}

func (e *httpError) Error() string { return e.err.Error() }

func badRequest(format string, args ...any) error {
	return &httpError{status: http.StatusBadRequest, err: fmt.Errorf(format, args...)}
}

func (s *Server) routes(r chi.Router) {
	r.Get("/healthz", s.handleHealth)
	r.Get("/dialects", s.handleDialects)
	r.Get("/dialects/{name}", s.handleDialect)
	r.Post("/parse", s.handleParse)
	r.Post("/complete", s.handleComplete)
	r.Post("/highlight", s.handleHighlight)
	r.Get("/events", s.handleEvents)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "generation": s.Generation()})
}

func (s *Server) handleDialects(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, report.Dialects(s.Registry()))
}

func (s *Server) handleDialect(w http.ResponseWriter, r *http.Request) {
	d, err := s.dialect(chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report.Dialect(d))
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	req, d, err := s.decode(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	doc, err := s.parse(r, d, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	rep, err := report.Document(r.Context(), doc, req.Tree)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	req, d, err := s.decode(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	offset := len(req.Source)
	if req.Offset != nil {
		offset = *req.Offset
	}
	if offset < 0 || offset > len(req.Source) {
		s.writeError(w, badRequest("offset %d out of range [0, %d]", offset, len(req.Source)))
		return
	}
	doc, err := s.parse(r, d, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	res, err := complete.New(s.Registry(), complete.WithLogger(s.logger)).CompleteDocument(r.Context(), doc, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHighlight(w http.ResponseWriter, r *http.Request) {
	req, d, err := s.decode(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	doc, err := s.parse(r, d, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	spans, err := highlight.Spans(r.Context(), doc)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report.Spans(spans))
}

// handleEvents streams registry reloads as server-sent events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, errors.New("streaming unsupported"))
		return
	}
	ch := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(event string, gen uint64) {
		_, _ = fmt.Fprintf(w, "event: %s\ndata: {\"generation\":%d}\n\n", event, gen)
		flusher.Flush()
	}
	send("ready", s.Generation())
	for {
		select {
		case <-r.Context().Done():
			return
		case gen := <-ch:
			send("reload", gen)
		}
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request) (*Request, *dialect.Dialect, error) {
	var req Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, nil, badRequest("invalid request body: %v", err)
	}
	name := req.Dialect
	if name == "" {
		name = s.cfg.Dialect
	}
	d, err := s.dialect(name)
	if err != nil {
		return nil, nil, err
	}
	return &req, d, nil
}

func (s *Server) dialect(name string) (*dialect.Dialect, error) {
	d, err := s.Registry().Get(name)
	if err != nil {
		return nil, &httpError{status: http.StatusNotFound, err: err}
	}
	return d, nil
}

func (s *Server) parse(r *http.Request, d *dialect.Dialect, req *Request) (*parser.Document, error) {
	branches := append(append([]string(nil), s.cfg.Branches...), req.Branches...)
	p := parser.New(d,
		parser.WithRegistry(s.Registry()),
		parser.WithBranches(branches...),
		parser.WithLogger(s.logger))
	return p.Parse(r.Context(), req.Source)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		s.logger.Debug("write response", slog.Any("error", err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var he *httpError
	if errors.As(err, &he) {
		status = he.status
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", slog.Any("error", err))
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}
