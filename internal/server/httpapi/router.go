// Package httpapi is the thin HTTP surface: health, the WebSocket endpoint
// and the static console pages.
package httpapi

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"time"

	"github.com/chinbo/chinbo-server/internal/server/broker"
	"github.com/chinbo/chinbo-server/internal/server/models"
	"github.com/gorilla/mux"
)

// Broker is what the router needs from *broker.Hub.
type Broker interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
	Stats() broker.Stats
}

// SnapshotSource is satisfied by *registry.Registry.
type SnapshotSource interface {
	BuildSnapshot() models.Snapshot
}

type healthResponse struct {
	Status    string       `json:"status"`
	Time      string       `json:"time"`
	PcsOnline int          `json:"pcsOnline"`
	Offices   int          `json:"offices"`
	Conns     broker.Stats `json:"connections"`
}

// NewRouter wires every route. staticDir holds operator.html, master.html
// and their assets.
func NewRouter(b Broker, snapshots SnapshotSource, staticDir string) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", healthHandler(b, snapshots)).Methods(http.MethodGet)
	r.HandleFunc("/ws", b.ServeWS)
	r.HandleFunc("/operator/{office}/{pcId}", pageHandler(staticDir, "operator.html")).Methods(http.MethodGet)
	r.HandleFunc("/master", pageHandler(staticDir, "master.html")).Methods(http.MethodGet)
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))

	return r
}

func healthHandler(b Broker, snapshots SnapshotSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := snapshots.BuildSnapshot()
		resp := healthResponse{
			Status:    "ok",
			Time:      time.Now().Format(time.RFC3339),
			PcsOnline: snap.PcsOnline,
			Offices:   len(snap.Offices),
			Conns:     b.Stats(),
		}

		jsonResp, err := json.Marshal(resp)
		if err != nil {
			http.Error(w, "Error generating JSON response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(jsonResp)
	}
}

// pageHandler serves one console page. The page reads office and pcId
// from its own URL.
func pageHandler(staticDir, page string) http.HandlerFunc {
	path := filepath.Join(staticDir, page)
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, path)
	}
}
