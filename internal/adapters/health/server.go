package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"auction-settlement-service/internal/domain/shared"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Check probes one dependency
type Check func(ctx context.Context) error

// ReportSource exposes the outcome of the latest settlement cycle
type ReportSource interface {
	LastReport() *shared.CycleReport
}

// Server serves liveness and settlement status for operators
type Server struct {
	httpServer *http.Server
	checks     map[string]Check
	reports    ReportSource
	port       string
	logger     zerolog.Logger
}

type ServerParams struct {
	Port    string
	Checks  map[string]Check
	Reports ReportSource
	Logger  zerolog.Logger
}

func NewServer(params ServerParams) *Server {
	s := &Server{
		checks:  params.Checks,
		reports: params.Reports,
		port:    params.Port,
		logger:  params.Logger.With().Str("component", "health_server").Logger(),
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", params.Port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the instrumented mux
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	return otelhttp.NewHandler(mux, "health")
}

// Start blocks serving until Stop is called
func (s *Server) Start() error {
	s.logger.Info().Str("port", s.port).Msg("Starting health server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start health server: %w", err)
	}
	return nil
}

// Stop gracefully stops the health server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping health server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown health server: %w", err)
	}

	s.logger.Info().Msg("Health server stopped")
	return nil
}

type healthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Checks  map[string]string `json:"checks,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Service: "auction-settlement", Checks: map[string]string{}}
	code := http.StatusOK

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			s.logger.Warn().Err(err).Str("check", name).Msg("Health check failed")
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	writeJSON(w, code, resp)
}

type resultView struct {
	AuctionID     string `json:"auction_id"`
	Outcome       string `json:"outcome"`
	Status        string `json:"status,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	Error         string `json:"error,omitempty"`
}

type statusResponse struct {
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Leader     bool           `json:"leader"`
	Scanned    int            `json:"scanned"`
	Recovered  int            `json:"recovered"`
	Outcomes   map[string]int `json:"outcomes"`
	Results    []resultView   `json:"results"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var report *shared.CycleReport
	if s.reports != nil {
		report = s.reports.LastReport()
	}
	if report == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "no cycle yet"})
		return
	}

	resp := statusResponse{
		StartedAt:  &report.StartedAt,
		FinishedAt: &report.FinishedAt,
		Leader:     report.Leader,
		Scanned:    report.Scanned,
		Recovered:  report.Recovered,
		Outcomes:   map[string]int{},
		Results:    make([]resultView, 0, len(report.Results)),
	}
	for _, res := range report.Results {
		resp.Outcomes[string(res.Outcome)]++
		view := resultView{AuctionID: res.AuctionID.String(), Outcome: string(res.Outcome), Status: res.Status}
		if res.TransactionID != nil {
			view.TransactionID = *res.TransactionID
		}
		if res.Err != nil {
			view.Error = res.Err.Error()
		}
		resp.Results = append(resp.Results, view)
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
