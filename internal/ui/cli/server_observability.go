package cli

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"importcheck/internal/core/app"
	domainerrors "importcheck/internal/core/errors"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// runStatus tracks the latest watch-mode result for the health endpoint.
type runStatus struct {
	mu       sync.RWMutex
	runID    string
	root     string
	at       time.Time
	files    int
	issues   int
	finished bool
}

type healthReport struct {
	Status    string    `json:"status"`
	RunID     string    `json:"run_id,omitempty"`
	Root      string    `json:"root,omitempty"`
	LastRunAt time.Time `json:"last_run_at,omitempty"`
	Files     int       `json:"files"`
	Issues    int       `json:"issues"`
}

func (s *runStatus) update(result *app.RunResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runID = result.RunID
	s.root = result.Root
	s.at = result.StartedAt
	s.files = result.FilesAnalyzed()
	s.issues = len(result.Issues)
	s.finished = true
}

func (s *runStatus) snapshot() healthReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status := "starting"
	if s.finished {
		status = "up"
	}
	return healthReport{
		Status:    status,
		RunID:     s.runID,
		Root:      s.root,
		LastRunAt: s.at,
		Files:     s.files,
		Issues:    s.issues,
	}
}

type ObservabilityServer struct {
	addr   string
	status *runStatus
	logger *slog.Logger
	server *http.Server
}

func NewObservabilityServer(addr string, status *runStatus, logger *slog.Logger) *ObservabilityServer {
	return &ObservabilityServer{addr: addr, status: status, logger: logger}
}

func (s *ObservabilityServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		report := s.status.snapshot()
		w.Header().Set("Content-Type", "application/json")
		if report.Status != "up" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(report)
	})
	return mux
}

// Start binds addr synchronously so a busy port fails the command, then
// serves in the background.
func (s *ObservabilityServer) Start(ctx context.Context) error {
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", s.addr)
	if err != nil {
		return domainerrors.AddContext(
			domainerrors.Wrap(err, domainerrors.CodeInternal, "listen for metrics"),
			"addr", s.addr)
	}
	s.server = &http.Server{Handler: s.handler(), ReadHeaderTimeout: 5 * time.Second}
	s.logger.Info("observability server starting", "addr", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("observability server failed", "error", err)
		}
	}()
	return nil
}

func (s *ObservabilityServer) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
