package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"recast/internal/auth"
	"recast/internal/engine"
	recasterr "recast/internal/errors"
	"recast/internal/history"
	"recast/internal/operation"
	"recast/internal/semantic"
	"recast/internal/version"
)

// maxBodyBytes caps operation request bodies.
const maxBodyBytes = 1 << 20

// ErrorBody is the JSON shape for transport-level failures: bad
// methods, bad bodies, and authentication rejections. Operation
// failures travel inside the response envelope instead.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Documents int    `json:"documents"`
	Stale     bool   `json:"stale"`
}

// HistoryResponse lists journal entries, newest first.
type HistoryResponse struct {
	Entries []history.Entry `json:"entries"`
	Total   int             `json:"total"`
}

// handleHealth handles GET /health (no auth required)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	resp := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Uptime:  time.Since(s.startedAt).Round(time.Second).String(),
		Stale:   s.engine.Stale(),
	}
	if m := s.engine.Model(); m != nil {
		resp.Documents = m.Snapshot().Len()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSymbol resolves a symbol. GET takes query parameters, POST a
// JSON selector.
func (s *Server) handleSymbol(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.selectorFrom(w, r)
	if !ok {
		return
	}
	s.writeResult(w, s.engine.Symbol(r.Context(), sel))
}

// handleRefs lists a symbol's references.
func (s *Server) handleRefs(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.selectorFrom(w, r)
	if !ok {
		return
	}
	s.writeResult(w, s.engine.Refs(r.Context(), sel))
}

// handleStatus reports the workspace summary.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	s.writeResult(w, s.engine.Status(r.Context()))
}

// handleHistory lists journal entries with optional op and outcome
// filters.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	journal := s.engine.Journal()
	if journal == nil {
		writeError(w, http.StatusServiceUnavailable, "HISTORY_DISABLED", "operation history is disabled for this workspace")
		return
	}

	q := r.URL.Query()
	limit := 50
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "PARAM_INVALID", "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := journal.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	entries = filterEntries(entries, q.Get("op"), q.Get("outcome"))

	writeJSON(w, http.StatusOK, HistoryResponse{Entries: entries, Total: len(entries)})
}

// filterEntries narrows journal entries by operation kind and outcome
// ("succeeded" or "failed").
func filterEntries(entries []history.Entry, op, outcome string) []history.Entry {
	if op == "" && outcome == "" {
		return entries
	}
	out := entries[:0]
	for _, e := range entries {
		if op != "" && e.Operation != op {
			continue
		}
		switch outcome {
		case "succeeded":
			if !e.Succeeded {
				continue
			}
		case "failed":
			if e.Succeeded {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var p engine.RenameParams
	if !s.decodeTransform(w, r, &p, &p.Preview) {
		return
	}
	s.writeResult(w, s.engine.Rename(r.Context(), p))
}

func (s *Server) handleInline(w http.ResponseWriter, r *http.Request) {
	var p engine.InlineParams
	if !s.decodeTransform(w, r, &p, &p.Preview) {
		return
	}
	s.writeResult(w, s.engine.Inline(r.Context(), p))
}

func (s *Server) handleEncapsulate(w http.ResponseWriter, r *http.Request) {
	var p engine.EncapsulateParams
	if !s.decodeTransform(w, r, &p, &p.Preview) {
		return
	}
	s.writeResult(w, s.engine.Encapsulate(r.Context(), p))
}

func (s *Server) handleSignature(w http.ResponseWriter, r *http.Request) {
	var p engine.SignatureParams
	if !s.decodeTransform(w, r, &p, &p.Preview) {
		return
	}
	s.writeResult(w, s.engine.ChangeSignature(r.Context(), p))
}

func (s *Server) handleMoveType(w http.ResponseWriter, r *http.Request) {
	var p engine.MoveTypeParams
	if !s.decodeTransform(w, r, &p, &p.Preview) {
		return
	}
	s.writeResult(w, s.engine.MoveType(r.Context(), p))
}

func (s *Server) handleStubs(w http.ResponseWriter, r *http.Request) {
	var p engine.StubsParams
	if !s.decodeTransform(w, r, &p, &p.Preview) {
		return
	}
	s.writeResult(w, s.engine.Stubs(r.Context(), p))
}

func (s *Server) handleDirectives(w http.ResponseWriter, r *http.Request) {
	var p engine.DirectivesParams
	if !s.decodeTransform(w, r, &p, &p.Preview) {
		return
	}
	s.writeResult(w, s.engine.Directives(r.Context(), p))
}

func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	var p engine.FormatParams
	if !s.decodeTransform(w, r, &p, &p.Preview) {
		return
	}
	s.writeResult(w, s.engine.Format(r.Context(), p))
}

// handleExport writes a SCIP index for the current snapshot.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var p struct {
		Out string `json:"out,omitempty"`
	}
	if !decodeBody(w, r, &p) {
		return
	}
	if !s.requireScope(w, r, auth.ScopeWrite) {
		return
	}
	s.writeResult(w, s.engine.Export(r.Context(), p.Out))
}

// handleShutdown stops the daemon. Admin scope only.
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.requireScope(w, r, auth.ScopeAdmin) {
		return
	}

	s.logger.Info("Shutdown requested", map[string]interface{}{
		"requestID": GetRequestID(r.Context()),
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "shutting-down"})
	s.requestShutdown()
}

// handleRoot handles requests to the root path
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":    "recast HTTP API",
		"version": version.Version,
		"endpoints": []string{
			"GET /health - Liveness check",
			"GET /status - Workspace summary",
			"GET|POST /symbol - Resolve a symbol",
			"GET|POST /refs - List references",
			"GET /history - List past operations",
			"POST /rename - Rename a declaration",
			"POST /inline - Inline a local variable",
			"POST /encapsulate - Turn a field into a property",
			"POST /signature - Change a method signature",
			"POST /movetype - Move a type to another file",
			"POST /stubs - Generate interface member stubs",
			"POST /directives - Clean up using directives",
			"POST /format - Normalize whitespace",
			"POST /export - Write a SCIP index",
			"POST /shutdown - Stop the daemon (admin)",
		},
	})
}

// selectorFrom reads a symbol selector from query parameters on GET or
// a JSON body on POST.
func (s *Server) selectorFrom(w http.ResponseWriter, r *http.Request) (semantic.Selector, bool) {
	var sel semantic.Selector
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		sel.Name = q.Get("name")
		sel.Kind = semantic.SymbolKind(q.Get("kind"))
		sel.Path = q.Get("path")
		if v := q.Get("line"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "PARAM_INVALID", "line must be an integer")
				return sel, false
			}
			sel.Line = n
		}
	case http.MethodPost:
		if !decodeBody(w, r, &sel) {
			return sel, false
		}
	default:
		methodNotAllowed(w)
		return sel, false
	}
	return sel, true
}

// decodeTransform decodes a transformation body and enforces the write
// scope unless the request only previews.
func (s *Server) decodeTransform(w http.ResponseWriter, r *http.Request, params interface{}, preview *bool) bool {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return false
	}
	if !decodeBody(w, r, params) {
		return false
	}
	if !*preview && !s.requireScope(w, r, auth.ScopeWrite) {
		return false
	}
	return true
}

// requireScope checks the authenticated scopes from the middleware.
// Requests on exempt paths carry no result and pass.
func (s *Server) requireScope(w http.ResponseWriter, r *http.Request, required auth.Scope) bool {
	result := GetAuthResult(r.Context())
	if result == nil {
		return true
	}
	if !result.Allows(required) {
		writeError(w, http.StatusForbidden, auth.ErrCodeInsufficientScope,
			"this operation requires the "+string(required)+" scope")
		return false
	}
	return true
}

// writeResult sends an operation result as the response envelope, with
// the HTTP status derived from the error code.
func (s *Server) writeResult(w http.ResponseWriter, res *operation.Result) {
	writeJSON(w, statusForResult(res), s.engine.Respond(res))
}

// statusForResult maps operation error codes to HTTP status codes.
func statusForResult(res *operation.Result) int {
	if res.OK {
		return http.StatusOK
	}
	if rerr := recasterr.AsRecastError(res.Err); rerr != nil {
		switch rerr.Code {
		case recasterr.ParamInvalid, recasterr.PathInvalid:
			return http.StatusBadRequest
		case recasterr.SymbolNotFound:
			return http.StatusNotFound
		case recasterr.SymbolAmbiguous:
			return http.StatusConflict
		case recasterr.UnsafeTransform, recasterr.AnalysisFailed:
			return http.StatusUnprocessableEntity
		case recasterr.Cancelled:
			return http.StatusRequestTimeout
		}
	}
	return http.StatusInternalServerError
}

// decodeBody decodes a JSON request body into params. An empty body
// leaves the zero values, so the engine's own validation reports the
// missing parameters.
func decodeBody(w http.ResponseWriter, r *http.Request, params interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(params); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "PARAM_INVALID", "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a transport-level error response
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorBody{Error: message, Code: code})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
}
