// Package analysis runs the CITS, topography and STS analyses against open
// sessions. Every run is traced, counted in the metrics and written to the
// history store.
package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/chrissnell/spmanalyzer/internal/history"
	"github.com/chrissnell/spmanalyzer/internal/metrics"
	"github.com/chrissnell/spmanalyzer/internal/session"
	"github.com/chrissnell/spmanalyzer/pkg/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrInvalidRequest is returned for request values rejected before any
// analysis runs.
var ErrInvalidRequest = errors.New("invalid request")

// Operation names used in metrics, traces and history.
const (
	OpLineProfile   = "line_profile"
	OpCurves        = "curves"
	OpProfileStats  = "profile_statistics"
	OpAlignment     = "alignment"
	OpBiasSlice     = "bias_slice"
	OpPointSpectrum = "point_spectrum"
	OpTopography    = "topography"
	OpTopoProfile   = "topo_profile"
	OpTopoFFT       = "topo_fft"
	OpSTS           = "sts"
)

const tracerName = "github.com/chrissnell/spmanalyzer/internal/analysis"

// Service executes analyses for the sessions held in a registry.
type Service struct {
	sessions *session.Registry
	history  history.Store
	cfg      config.AnalysisData
	logger   *zap.SugaredLogger
	tracer   trace.Tracer
}

// NewService returns a Service. A nil store disables history and a nil logger
// discards log output.
func NewService(sessions *session.Registry, store history.Store, cfg config.AnalysisData, logger *zap.SugaredLogger) *Service {
	if store == nil {
		store = history.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.MaxInterpolatePoints == 0 {
		cfg.MaxInterpolatePoints = config.DefaultMaxInterpolatePoints
	}
	return &Service{
		sessions: sessions,
		history:  store,
		cfg:      cfg,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
	}
}

// SetTracerProvider sends the service's spans to tp. Call it before serving
// requests.
func (s *Service) SetTracerProvider(tp trace.TracerProvider) {
	s.tracer = tp.Tracer(tracerName)
}

// Sessions returns the registry the service works against.
func (s *Service) Sessions() *session.Registry {
	return s.sessions
}

// Config returns the analysis defaults in effect.
func (s *Service) Config() config.AnalysisData {
	return s.cfg
}

// History returns up to n recorded analyses, newest first.
func (s *Service) History(ctx context.Context, n int) ([]history.Entry, error) {
	return s.history.Recent(ctx, n)
}

// run wraps fn in a span, records its duration and outcome, and stores a
// history entry. History failures are logged and never fail the analysis.
func (s *Service) run(ctx context.Context, op, sessionID, file string, params any, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "analysis."+op,
		trace.WithAttributes(
			attribute.String("session_id", sessionID),
			attribute.String("file", file),
		))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	metrics.ObserveAnalysis(op, start, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, op+" failed")
		s.logger.Debugf("%s on %s/%s failed after %v: %v", op, sessionID, file, elapsed, err)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	entry := history.NewEntry(sessionID, file, op, params, elapsed, err)
	if recErr := s.history.Record(ctx, entry); recErr != nil {
		s.logger.Warnf("could not record %s in history: %v", op, recErr)
	}
	return err
}

func (s *Service) session(id string) (*session.Session, error) {
	return s.sessions.Get(id)
}
