package telemetry

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/RudolfRTC/CCS-Charger/internal/engine"
)

// Server is the HTTP surface for telemetry: a JSON snapshot endpoint and
// a WebSocket push endpoint, mounted on one mux.
type Server struct {
	eng *engine.Engine
	hub *Hub
	mux *http.ServeMux
}

// NewServer builds a telemetry HTTP server over eng.
func NewServer(eng *engine.Engine) *Server {
	s := &Server{eng: eng, hub: NewHub(eng), mux: http.NewServeMux()}
	s.mux.HandleFunc("/snapshot", s.handleSnapshot)
	s.mux.Handle("/ws", s.hub)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	payload := snapshotPayload{Supervisor: s.eng.Snapshot(), Vcu: s.eng.VcuSnapshot()}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.WithError(err).Error("telemetry: failed to encode snapshot response")
		http.Error(w, "encode failure", http.StatusInternalServerError)
	}
}

// Run starts the broadcast hub in the background and serves HTTP on addr
// until stop is closed.
func (s *Server) Run(addr string, stop <-chan struct{}) error {
	go s.hub.Run(stop)
	server := &http.Server{Addr: addr, Handler: s}
	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()
	select {
	case <-stop:
		return server.Close()
	case err := <-errCh:
		return err
	}
}
