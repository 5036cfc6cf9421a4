// Package storageclient implements the thin HTTP façade the readings
// storage engine is invoked through: filter plugins and the north-bound
// sending service post JSON bodies, the engine's own error taxonomy maps to
// HTTP status codes, and every response is JSON.
package storageclient

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/foglamp-io/storage-sqlite/ferrors"
	"github.com/foglamp-io/storage-sqlite/notify"
	"github.com/foglamp-io/storage-sqlite/readings"
)

const maxBodySize = 64 << 20 // 64MiB, generous for a multi-row append batch

// Server wires the readings.Store to a net/http.ServeMux.
type Server struct {
	store *readings.Store
	hub   *notify.Hub
	auth  *AdminAuth
	log   *slog.Logger
	mux   *http.ServeMux
}

// NewServer builds a Server. hub and auth may be nil: without a hub the
// websocket subscription endpoint is not registered, and without auth the
// admin endpoints (purge) require no credential.
func NewServer(store *readings.Store, hub *notify.Hub, auth *AdminAuth, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{store: store, hub: hub, auth: auth, log: log, mux: http.NewServeMux()}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/storage/reading", s.handleAppend)
	s.mux.HandleFunc("/storage/reading/query", s.handleRetrieve)
	s.mux.HandleFunc("/storage/reading/fetch", s.handleFetch)
	s.mux.HandleFunc("/storage/reading/purge", s.requireAdmin(s.handlePurge))
	s.mux.HandleFunc("/storage/table/", s.requireAdmin(s.handleTableDelete))
	if s.hub != nil {
		s.mux.HandleFunc("/storage/reading/notify", s.hub.ServeWebSocket)
	}
}

func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.auth != nil && !s.auth.Check(r.Header.Get("Authorization")) {
			jsonError(w, http.StatusUnauthorized, "unauthorized", "invalid or missing admin API key")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST required")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "read_error", err.Error())
		return
	}
	inserted, skipped, err := s.store.Append(r.Context(), body)
	if err != nil {
		s.writeEngineError(w, "appendReadings", err)
		return
	}
	writeJSON(w, map[string]any{"count": inserted, "skipped": skipped})
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "read_error", err.Error())
		return
	}
	set, err := s.store.Retrieve(r.Context(), body)
	if err != nil {
		s.writeEngineError(w, "retrieve", err)
		return
	}
	writeJSON(w, map[string]any{"count": set.Count, "rows": set.Rows})
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	startID, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "bad_request", "id query parameter must be an integer")
		return
	}
	blockSize, err := strconv.Atoi(r.URL.Query().Get("count"))
	if err != nil || blockSize <= 0 {
		jsonError(w, http.StatusBadRequest, "bad_request", "count query parameter must be a positive integer")
		return
	}
	set, err := s.store.Fetch(r.Context(), startID, blockSize)
	if err != nil {
		s.writeEngineError(w, "fetch", err)
		return
	}
	writeJSON(w, map[string]any{"count": set.Count, "rows": set.Rows})
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sentID, _ := strconv.ParseInt(q.Get("sent"), 10, 64)
	var flags readings.PurgeFlags
	if q.Get("flags") == "1" {
		flags = readings.RetainUnsent
	}

	var (
		result *readings.PurgeResult
		err    error
	)
	if age := q.Get("age"); age != "" {
		ageHours, perr := strconv.ParseInt(age, 10, 64)
		if perr != nil {
			jsonError(w, http.StatusBadRequest, "bad_request", "age must be an integer")
			return
		}
		result, err = s.store.PurgeByAge(r.Context(), ageHours, flags, sentID)
	} else if size := q.Get("size"); size != "" {
		target, perr := strconv.ParseInt(size, 10, 64)
		if perr != nil {
			jsonError(w, http.StatusBadRequest, "bad_request", "size must be an integer")
			return
		}
		result, err = s.store.PurgeBySize(r.Context(), target, flags, sentID)
	} else {
		jsonError(w, http.StatusBadRequest, "bad_request", "either age or size query parameter is required")
		return
	}
	if err != nil {
		s.writeEngineError(w, "purge", err)
		return
	}
	writeJSON(w, map[string]any{
		"removed":        result.Removed,
		"unsentPurged":   result.UnsentPurged,
		"unsentRetained": result.UnsentRetained,
		"readings":       result.ReadingsRemaining,
	})
}

func (s *Server) handleTableDelete(w http.ResponseWriter, r *http.Request) {
	table := r.URL.Path[len("/storage/table/"):]
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "read_error", err.Error())
		return
	}
	affected, err := s.store.DeleteWhere(r.Context(), table, body)
	if err != nil {
		s.writeEngineError(w, "deleteRows", err)
		return
	}
	writeJSON(w, map[string]any{"count": affected})
}

func (s *Server) writeEngineError(w http.ResponseWriter, op string, err error) {
	var ferr *ferrors.Error
	kind := ferrors.Internal
	if errors.As(err, &ferr) {
		kind = ferr.Kind
	}
	status := http.StatusInternalServerError
	switch kind {
	case ferrors.ParseError, ferrors.ShapeError, ferrors.DateError:
		status = http.StatusBadRequest
	case ferrors.BusyExhausted:
		status = http.StatusServiceUnavailable
	}
	s.log.Error("storage operation failed", "op", op, "kind", kind.String(), "err", err)
	jsonError(w, status, kind.String(), err.Error())
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "err", err)
	}
}

func jsonError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]any{
		"error":   errorType,
		"message": message,
	}); err != nil {
		slog.Error("failed to encode error response", "err", err)
	}
}
