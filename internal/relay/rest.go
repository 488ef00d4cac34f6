package relay

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/eneris/battlemap/internal/battlemap"
	. "github.com/eneris/battlemap/internal/logging"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"sessionAlive": s.session.CheckHealth(),
	}
	if s.mirror != nil {
		if bases, players, err := s.mirror.Counts(); err == nil {
			body["mirrorBases"] = bases
			body["mirrorPlayers"] = players
		}
	}

	status := http.StatusOK
	if body["sessionAlive"] != true {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, body)
}

func (s *Server) handleGetScreen(w http.ResponseWriter, r *http.Request) {
	path := filepath.Join(os.TempDir(), "battlemap-screen-"+uuid.NewString()+".png")
	defer os.Remove(path)

	if err := s.session.Screenshot(path); err != nil {
		writeError(w, err)
		return
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(raw)
}

// relayRequest is the /getRequest body: a raw operation passthrough with an
// optional gojq filter applied to the response.
type relayRequest struct {
	Operation string                 `json:"operation"`
	Query     map[string]interface{} `json:"query"`
	Method    string                 `json:"method"`
	Filter    string                 `json:"filter"`
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	var req relayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "invalid request body"})
		return
	}
	if req.Operation == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "operation is required"})
		return
	}
	if !strings.HasPrefix(req.Operation, "/") {
		req.Operation = "/" + req.Operation
	}

	resp, err := s.session.GetAPIData(r.Context(), req.Operation, req.Query, req.Method)
	if err != nil {
		writeError(w, err)
		return
	}

	if req.Filter != "" {
		filtered, err := applyFilter(req.Filter, resp)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
			return
		}
		resp = filtered
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": resp})
}

func (s *Server) handleGetBase(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "invalid base id"})
		return
	}

	detail, err := s.session.GetBaseDetail(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": detail})
}

func (s *Server) handleGetBattles(w http.ResponseWriter, r *http.Request) {
	var factions []int
	if raw := r.URL.Query().Get("factions"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "invalid factions"})
				return
			}
			factions = append(factions, n)
		}
	}
	resolution, _ := strconv.Atoi(r.URL.Query().Get("resolution"))

	battles, err := s.session.GetBattles(r.Context(), factions, resolution)
	if err != nil {
		writeError(w, err)
		return
	}
	if battles == nil {
		battles = []battlemap.Battle{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": battles})
}

func (s *Server) handleReauth(w http.ResponseWriter, r *http.Request) {
	L_info("relay: reauth requested")
	if err := s.session.Init(r.Context(), nil); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": "ok"})
}
