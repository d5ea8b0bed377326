package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/roach88/gqlhost"
)

type healthResponse struct {
	Status string `json:"status"`
}

// operationRequest is the body of /v1/graphql and /execute. Query is only
// read by /v1/graphql.
type operationRequest struct {
	Query         string          `json:"query,omitempty"`
	OperationName string          `json:"operationName,omitempty"`
	Variables     json.RawMessage `json:"variables,omitempty"`
}

type parseRequest struct {
	Query string `json:"query"`
}

type parseResponse struct {
	ID string `json:"id"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	select {
	case <-s.svc.Done():
		s.writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "stopped"})
	default:
		s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	var req operationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	q, err := s.svc.ParseQuery(r.Context(), req.Query)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	defer q.Release()

	s.execute(w, r, q, req.OperationName, variablesText(req.Variables))
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	q, err := s.svc.ParseQuery(r.Context(), req.Query)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.queries[id] = q
	s.mu.Unlock()

	s.writeJSON(w, http.StatusCreated, parseResponse{ID: id})
}

func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	q, ok := s.queries[id]
	delete(s.queries, id)
	s.mu.Unlock()

	if !ok {
		s.writeError(w, http.StatusNotFound, "query not found")
		return
	}
	if err := q.Release(); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	q, ok := s.lookup(chi.URLParam(r, "id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "query not found")
		return
	}
	defer q.Release()

	var req operationRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	s.execute(w, r, q, req.OperationName, variablesText(req.Variables))
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	q, ok := s.lookup(chi.URLParam(r, "id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "query not found")
		return
	}
	defer q.Release()

	next := make(chan string, 16)
	complete := make(chan struct{}, 1)
	params := r.URL.Query()
	sub, err := q.Subscribe(r.Context(), params.Get("operationName"), params.Get("variables"), next, complete)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	defer func() {
		if err := sub.Release(); err != nil {
			s.logger.Warn("release subscription", "error", err)
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Streams outlive the server's write timeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Debug("set write deadline for SSE", "error", err)
	}

	sseStreamsActive.Inc()
	defer sseStreamsActive.Dec()

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	for {
		select {
		case payload := <-next:
			if err := writeSSEData(w, payload); err != nil {
				return
			}
		case <-complete:
			// Payloads forwarded before completion may still be buffered.
			if err := drainSSE(w, next); err != nil {
				return
			}
			_ = writeSSEEvent(w, "done", "stream complete")
			if canFlush {
				flusher.Flush()
			}
			return
		case <-r.Context().Done():
			return
		}
		if canFlush {
			flusher.Flush()
		}
	}
}

// execute writes the first payload of an operation. A subscription
// operation waits for its first event.
func (s *Server) execute(w http.ResponseWriter, r *http.Request, q *gqlhost.ParsedQuery, operationName, variables string) {
	payload, ok, err := firstPayload(r.Context(), q, operationName, variables)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(payload)); err != nil {
		s.logger.Debug("write payload", "error", err)
	}
}

// firstPayload subscribes, waits for one payload or completion and
// releases the subscription.
func firstPayload(ctx context.Context, q *gqlhost.ParsedQuery, operationName, variables string) (string, bool, error) {
	next := make(chan string, 1)
	complete := make(chan struct{}, 1)
	sub, err := q.Subscribe(ctx, operationName, variables, next, complete)
	if err != nil {
		return "", false, err
	}
	defer sub.Release()

	select {
	case p := <-next:
		return p, true, nil
	case <-complete:
		select {
		case p := <-next:
			return p, true, nil
		default:
			return "", false, nil
		}
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

// lookup returns a retained kept query. The caller releases it.
func (s *Server) lookup(id string) (*gqlhost.ParsedQuery, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queries[id]
	if !ok {
		return nil, false
	}
	return q.Retain(), true
}

func variablesText(raw json.RawMessage) string {
	text := strings.TrimSpace(string(raw))
	if text == "null" {
		return ""
	}
	return text
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var ee *gqlhost.EngineError
	switch {
	case errors.As(err, &ee):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: ee.Message, Code: string(ee.Code)})
	case gqlhost.IsConversionError(err):
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Code: "CONVERSION_FAILED"})
	case gqlhost.IsChannelError(err), gqlhost.IsLockError(err), errors.Is(err, gqlhost.ErrReleased):
		s.logger.Warn("service unavailable", "error", err)
		s.writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		s.logger.Error("request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}

// writeSSEData writes one payload as an SSE data event. Each line of a
// multi-line payload gets its own "data:" prefix.
func writeSSEData(w http.ResponseWriter, payload string) error {
	for seg := range strings.SplitSeq(payload, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", seg); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(w, "\n")
	return err
}

func drainSSE(w http.ResponseWriter, next <-chan string) error {
	for {
		select {
		case payload := <-next:
			if err := writeSSEData(w, payload); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, data); err != nil {
		return err
	}
	return nil
}
