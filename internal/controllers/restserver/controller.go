package restserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chrissnell/spmanalyzer/internal/analysis"
	"github.com/chrissnell/spmanalyzer/internal/log"
	"github.com/chrissnell/spmanalyzer/internal/metrics"
	"github.com/chrissnell/spmanalyzer/pkg/config"
	"github.com/felixge/httpsnoop"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Controller represents the REST server controller
type Controller struct {
	ctx          context.Context
	wg           *sync.WaitGroup
	serverConfig config.ServerData
	Server       http.Server
	service      *analysis.Service
	logger       *zap.SugaredLogger
	handlers     *Handlers
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, sc config.ServerData, service *analysis.Service, logger *zap.SugaredLogger) (*Controller, error) {
	if service == nil {
		return nil, fmt.Errorf("REST server needs an analysis service")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	ctrl := &Controller{
		ctx:          ctx,
		wg:           wg,
		serverConfig: sc,
		service:      service,
		logger:       logger,
	}

	if ctrl.serverConfig.ListenAddr == "" {
		logger.Info("server.listen-addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		ctrl.serverConfig.ListenAddr = config.DefaultListenAddr
	}
	if ctrl.serverConfig.Port == 0 {
		logger.Infof("server.port not provided; defaulting to %d", config.DefaultPort)
		ctrl.serverConfig.Port = config.DefaultPort
	}

	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = ctrl.serverConfig.Addr()
	ctrl.Server.Handler = ctrl.Handler()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	log.Info("Starting REST server controller...")
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		c.logger.Infof("REST server listening on %s", c.Server.Addr)
		var err error
		if c.serverConfig.TLS() {
			err = c.Server.ListenAndServeTLS(c.serverConfig.Cert, c.serverConfig.Key)
		} else {
			err = c.Server.ListenAndServe()
		}
		if err != http.ErrServerClosed {
			log.Errorf("REST server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		log.Info("Shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.Server.Shutdown(shutdownCtx); err != nil {
			log.Errorf("REST server shutdown: %v", err)
		}
	}()

	return nil
}

// Handler returns the complete HTTP handler: router plus recovery, CORS and
// compression.
func (c *Controller) Handler() http.Handler {
	var h http.Handler = c.setupRouter()
	h = handlers.CompressHandler(h)
	h = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Accept"}),
	)(h)
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(c.logger.Desugar())),
		handlers.PrintRecoveryStack(true),
	)(h)
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(c.loggingMiddleware)

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/sessions", c.handlers.OpenSession).Methods("POST")
	api.HandleFunc("/sessions", c.handlers.ListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", c.handlers.GetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", c.handlers.CloseSession).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/files", c.handlers.ListFiles).Methods("GET")
	api.HandleFunc("/sessions/{id}/files/{file}", c.handlers.UnloadFile).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/memory", c.handlers.GetMemory).Methods("GET")

	cits := api.PathPrefix("/sessions/{id}/cits/{file}").Subrouter()
	cits.HandleFunc("/profile.png", c.handlers.GetProfilePNG).Methods("GET")
	cits.HandleFunc("/profile", c.handlers.GetProfile).Methods("GET")
	cits.HandleFunc("/curves.png", c.handlers.GetCurvesPNG).Methods("GET")
	cits.HandleFunc("/curves", c.handlers.GetCurves).Methods("GET")
	cits.HandleFunc("/stats", c.handlers.GetProfileStats).Methods("GET")
	cits.HandleFunc("/alignment", c.handlers.GetAlignment).Methods("GET")
	cits.HandleFunc("/slice/{bias}.png", c.handlers.GetSlicePNG).Methods("GET")
	cits.HandleFunc("/slice/{bias}", c.handlers.GetSlice).Methods("GET")
	cits.HandleFunc("/spectrum", c.handlers.GetSpectrum).Methods("GET")

	api.HandleFunc("/sessions/{id}/topo/{file}", c.handlers.GetTopography).Methods("GET")
	api.HandleFunc("/sessions/{id}/topo/{file}/profile", c.handlers.GetTopoProfile).Methods("GET")
	api.HandleFunc("/sessions/{id}/topo/{file}/fft", c.handlers.GetTopoFFT).Methods("GET")

	api.HandleFunc("/sessions/{id}/sts/{file}", c.handlers.GetSTS).Methods("GET")

	api.HandleFunc("/history", c.handlers.GetHistory).Methods("GET")
	api.HandleFunc("/logs", c.handlers.GetLogs).Methods("GET")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Static viewer
	router.PathPrefix("/").Handler(http.FileServer(http.FS(GetAssets())))

	return router
}

type errorKey struct{}

// errorSlot carries the error of a failed request back to the logging
// middleware.
type errorSlot struct {
	err error
}

// loggingMiddleware records every routed request in the HTTP log buffer and
// the request metrics.
func (c *Controller) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slot := &errorSlot{}
		r = r.WithContext(context.WithValue(r.Context(), errorKey{}, slot))

		m := httpsnoop.CaptureMetrics(next, w, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.ObserveHTTP(route, r.Method, m.Code, m.Duration)

		// Don't log requests to /api/logs to avoid cluttering the log viewer
		if strings.HasPrefix(r.URL.Path, "/api/logs") {
			return
		}
		log.LogHTTPRequest(log.HTTPRequest{
			Method:     r.Method,
			Path:       r.URL.RequestURI(),
			Route:      route,
			Status:     m.Code,
			Duration:   m.Duration,
			Size:       int(m.Written),
			RemoteAddr: r.RemoteAddr,
			UserAgent:  r.UserAgent(),
			Err:        slot.err,
		})
		c.logger.Debugf("%s %s %d %v", r.Method, r.URL.RequestURI(), m.Code, m.Duration)
	})
}

// noteError stores err for the logging middleware.
func noteError(r *http.Request, err error) {
	if slot, ok := r.Context().Value(errorKey{}).(*errorSlot); ok {
		slot.err = err
	}
}
