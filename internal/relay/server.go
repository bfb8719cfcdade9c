// Package relay is the boundary service algorithm containers call instead
// of the coordinator. It forwards requests under the caller's own
// credential and, for task creation, seals each organization's input to
// that organization's public key before anything leaves the node, so the
// container never handles other organizations' keys or sees where its
// plaintext goes.
//
// The relay never validates credentials; that is the coordinator's job on
// receipt. It also keeps no state: every key lookup goes to the coordinator
// so key rotation takes effect immediately.
package relay

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/consortia/consortia/internal/sealbox"
)

// Server holds the relay's collaborators. It is constructed once in main
// and passed into every handler; there is no package-level state.
type Server struct {
	coordinatorURL string
	client         *http.Client
	keys           KeyClient
	sealer         sealbox.Sealer
	logger         *slog.Logger
}

// Options configures a Server.
type Options struct {
	// CoordinatorURL is the base URL of the coordinator, without a
	// trailing slash.
	CoordinatorURL string
	// Timeout bounds every outbound call to the coordinator and the key
	// endpoint. A timeout surfaces as a lookup or relay error, never a hang.
	Timeout time.Duration
	Keys    KeyClient
	Sealer  sealbox.Sealer
	Logger  *slog.Logger
}

// NewServer constructs a Server.
func NewServer(opts Options) *Server {
	client := &http.Client{Timeout: opts.Timeout}
	s := &Server{
		coordinatorURL: strings.TrimRight(opts.CoordinatorURL, "/"),
		client:         client,
		keys:           opts.Keys,
		sealer:         opts.Sealer,
		logger:         opts.Logger,
	}
	if s.keys == nil {
		s.keys = &HTTPKeyClient{BaseURL: s.coordinatorURL, Client: client}
	}
	if s.sealer == nil {
		s.sealer = sealbox.AgeSealer{}
	}
	return s
}

// Router builds the relay's HTTP surface: the task-creation forward, the
// result forward, and a catch-all that relays everything else verbatim.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Post("/task", s.createTask)
	r.Get("/result/{id}", s.fetchResult)
	r.HandleFunc("/*", s.forward)
	return r
}
