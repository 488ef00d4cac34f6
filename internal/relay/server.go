// Package relay exposes the browser session as an HTTP API: REST routes
// for the common operations, a GraphQL endpoint over the full surface, and
// the realtime websocket feed.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/eneris/battlemap/internal/battlemap"
	. "github.com/eneris/battlemap/internal/logging"
	"github.com/eneris/battlemap/internal/store"
)

// controller is the slice of the session the relay serves. battlemap.Session
// satisfies it; tests substitute a fake.
type controller interface {
	Init(ctx context.Context, creds *battlemap.Credentials) error
	Exit()
	CheckHealth() bool
	Screenshot(path string) error
	GetAPIData(ctx context.Context, endpoint string, payload map[string]interface{}, method string) (interface{}, error)
	GetBattles(ctx context.Context, factions []int, resolution int) ([]battlemap.Battle, error)
	GetBattleDetail(ctx context.Context, id int64) (*battlemap.BattleDetail, error)
	GetBases(ctx context.Context, search battlemap.MapSearch) ([]battlemap.Base, error)
	GetCores(ctx context.Context, search battlemap.MapSearch) (interface{}, error)
	GetMines(ctx context.Context, search battlemap.MapSearch) (interface{}, error)
	GetBaseDetail(ctx context.Context, id int64) (*battlemap.BaseDetail, error)
	GetPlayerDetail(ctx context.Context, id int64) (*battlemap.PlayerDetail, error)
	GetClusterDetail(ctx context.Context, id int64, clusterType string) (interface{}, error)
	GetCoreDetail(ctx context.Context, id int64) (interface{}, error)
	GetMineDetail(ctx context.Context, id int64) (interface{}, error)
	GetSearchQuery(ctx context.Context, term string, faction int) ([]battlemap.SearchResult, error)
	GetIDFromQuery(ctx context.Context, query string) (int64, error)
	GetPlayerBase(ctx context.Context, playerID int64) (*battlemap.BaseDetail, error)
	GetPlayerBaseUniqueID(ctx context.Context, playerID int64) (string, error)
	SendMessage(ctx context.Context, message string, global bool) error
}

// Server is the relay HTTP server.
type Server struct {
	session controller
	mirror  *store.Store
	hub     http.Handler

	httpServer *http.Server
	schema     *schemaHolder
}

// NewServer wires the routes. mirror and hub may be nil when the
// corresponding subsystems are disabled.
func NewServer(listen string, session controller, mirror *store.Store, hub http.Handler) (*Server, error) {
	s := &Server{session: session, mirror: mirror, hub: hub}

	schema, err := s.buildSchema()
	if err != nil {
		return nil, err
	}
	s.schema = schema

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /getScreen", s.handleGetScreen)
	mux.HandleFunc("POST /getRequest", s.handleGetRequest)
	mux.HandleFunc("GET /getBase/{id}", s.handleGetBase)
	mux.HandleFunc("GET /getBattles", s.handleGetBattles)
	mux.HandleFunc("GET /reauth", s.handleReauth)
	mux.HandleFunc("/graphql", s.handleGraphQL)
	if hub != nil {
		mux.Handle("GET /ws", hub)
	}

	s.httpServer = &http.Server{
		Addr:         listen,
		Handler:      s.withRequestID(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}
	return s, nil
}

// Start listens and serves until Shutdown. It blocks.
func (s *Server) Start() error {
	L_info("relay: listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	L_info("relay: shutting down")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the routed handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// withRequestID tags every request and logs its outcome.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		next.ServeHTTP(w, r)
		L_debug("relay: request", "id", id, "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		L_warn("relay: response encode failed: %v", err)
	}
}

// writeError maps session failures onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var apiErr *battlemap.Error
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatus()
	}
	writeJSON(w, status, map[string]interface{}{"error": err.Error()})
}
