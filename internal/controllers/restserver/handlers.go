package restserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"

	"github.com/chrissnell/spmanalyzer/internal/analysis"
	"github.com/chrissnell/spmanalyzer/internal/charts"
	"github.com/chrissnell/spmanalyzer/internal/log"
	"github.com/chrissnell/spmanalyzer/internal/render"
	"github.com/chrissnell/spmanalyzer/internal/session"
	"github.com/chrissnell/spmanalyzer/pkg/cits"
	"github.com/chrissnell/spmanalyzer/pkg/geometry"
	"github.com/chrissnell/spmanalyzer/pkg/responseformat"
	"github.com/chrissnell/spmanalyzer/pkg/sts"
	"github.com/chrissnell/spmanalyzer/pkg/topo"
	"github.com/gorilla/mux"
)

const (
	defaultHistoryLimit = 50
	defaultLogLimit     = 100
)

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	service    *analysis.Service
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		service:    ctrl.service,
		formatter:  responseformat.NewFormatter(),
	}
}

// statusFor maps an error to the HTTP status reported to the client.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrUnknownSession),
		errors.Is(err, session.ErrNotFound),
		errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, session.ErrForbiddenPath):
		return http.StatusForbidden
	case errors.Is(err, cits.ErrEmptyCube),
		errors.Is(err, topo.ErrEmptyImage),
		errors.Is(err, render.ErrNoData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, analysis.ErrInvalidRequest),
		errors.Is(err, cits.ErrInvalidParameter),
		errors.Is(err, cits.ErrInvalidSamplingMethod),
		errors.Is(err, cits.ErrIndexOutOfRange),
		errors.Is(err, geometry.ErrInvalidDimension),
		errors.Is(err, topo.ErrInvalidParameter),
		errors.Is(err, sts.ErrIndexOutOfRange),
		errors.Is(err, session.ErrWrongKind):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respond writes data in the negotiated format.
func (h *Handlers) respond(w http.ResponseWriter, req *http.Request, status int, data any) {
	if err := h.formatter.WriteStatus(w, req, status, data); err != nil {
		log.Errorf("error encoding response for %s: %v", req.URL.Path, err)
	}
}

// fail writes err with its mapped status.
func (h *Handlers) fail(w http.ResponseWriter, req *http.Request, err error) {
	status := statusFor(err)
	noteError(req, err)
	if status >= http.StatusInternalServerError {
		log.Errorf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	if wErr := h.formatter.WriteError(w, req, status, err); wErr != nil {
		log.Errorf("error encoding error response for %s: %v", req.URL.Path, wErr)
	}
}

// result writes either the analysis result or, for ?chart=1, a chart built
// from it. Chart requests degrade to a placeholder figure instead of failing,
// except when the session or file does not exist.
func (h *Handlers) result(w http.ResponseWriter, req *http.Request, title string, data any, err error, chart func() charts.Figure) {
	if chart != nil && boolParam(req, "chart") {
		if err != nil {
			if statusFor(err) == http.StatusNotFound {
				h.fail(w, req, err)
				return
			}
			noteError(req, err)
			h.respond(w, req, http.StatusOK, charts.Empty(title, err.Error()))
			return
		}
		h.respond(w, req, http.StatusOK, chart())
		return
	}
	if err != nil {
		h.fail(w, req, err)
		return
	}
	h.respond(w, req, http.StatusOK, data)
}

// png renders into memory first so a drawing failure can still be reported
// as a JSON error.
func (h *Handlers) png(w http.ResponseWriter, req *http.Request, err error, draw func(io.Writer) error) {
	if err != nil {
		h.fail(w, req, err)
		return
	}
	var buf bytes.Buffer
	if err := draw(&buf); err != nil {
		h.fail(w, req, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := buf.WriteTo(w); err != nil {
		log.Errorf("error writing PNG for %s: %v", req.URL.Path, err)
	}
}

func (h *Handlers) lookup(req *http.Request) (*session.Session, error) {
	return h.service.Sessions().Get(mux.Vars(req)["id"])
}

type openSessionRequest struct {
	TxtPath string `json:"txt_path"`
}

// OpenSession opens the experiment named in the request body
func (h *Handlers) OpenSession(w http.ResponseWriter, req *http.Request) {
	var body openSessionRequest
	if err := json.NewDecoder(io.LimitReader(req.Body, 1<<16)).Decode(&body); err != nil {
		h.fail(w, req, fmt.Errorf("%w: request body: %v", analysis.ErrInvalidRequest, err))
		return
	}
	if body.TxtPath == "" {
		h.fail(w, req, fmt.Errorf("%w: txt_path is required", analysis.ErrInvalidRequest))
		return
	}

	s, err := h.service.Sessions().Open(body.TxtPath)
	if err != nil {
		h.fail(w, req, err)
		return
	}
	log.Infof("opened session %s for %s", s.ID, s.Path())
	h.respond(w, req, http.StatusCreated, s.Summary())
}

// ListSessions returns a summary of every open session
func (h *Handlers) ListSessions(w http.ResponseWriter, req *http.Request) {
	open := h.service.Sessions().List()
	out := make([]session.Summary, 0, len(open))
	for _, s := range open {
		out = append(out, s.Summary())
	}
	h.respond(w, req, http.StatusOK, out)
}

// GetSession returns one session summary
func (h *Handlers) GetSession(w http.ResponseWriter, req *http.Request) {
	s, err := h.lookup(req)
	if err != nil {
		h.fail(w, req, err)
		return
	}
	h.respond(w, req, http.StatusOK, s.Summary())
}

// CloseSession unloads and forgets a session
func (h *Handlers) CloseSession(w http.ResponseWriter, req *http.Request) {
	if err := h.service.Sessions().Close(mux.Vars(req)["id"]); err != nil {
		h.fail(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListFiles lists the data files of a session, optionally filtered by
// ?signal= or ?direction=
func (h *Handlers) ListFiles(w http.ResponseWriter, req *http.Request) {
	s, err := h.lookup(req)
	if err != nil {
		h.fail(w, req, err)
		return
	}
	q := req.URL.Query()
	var files []session.FileInfo
	switch {
	case q.Get("signal") != "":
		files = s.FindBySignalType(q.Get("signal"))
	case q.Get("direction") != "":
		files = s.FindByDirection(q.Get("direction"))
	default:
		files = s.Available()
	}
	if files == nil {
		files = []session.FileInfo{}
	}
	h.respond(w, req, http.StatusOK, files)
}

// UnloadFile drops a loaded file from the session cache
func (h *Handlers) UnloadFile(w http.ResponseWriter, req *http.Request) {
	s, err := h.lookup(req)
	if err != nil {
		h.fail(w, req, err)
		return
	}
	key := mux.Vars(req)["file"]
	if _, err := s.Kind(key); err != nil {
		h.fail(w, req, err)
		return
	}
	h.respond(w, req, http.StatusOK, map[string]any{"file": key, "unloaded": s.Unload(key)})
}

// GetMemory reports the memory held by a session's loaded files
func (h *Handlers) GetMemory(w http.ResponseWriter, req *http.Request) {
	s, err := h.lookup(req)
	if err != nil {
		h.fail(w, req, err)
		return
	}
	h.respond(w, req, http.StatusOK, s.MemoryInfo())
}

// GetHistory returns the most recent analyses
func (h *Handlers) GetHistory(w http.ResponseWriter, req *http.Request) {
	limit, err := intParam(req, "limit", defaultHistoryLimit)
	if err != nil {
		h.fail(w, req, err)
		return
	}
	entries, err := h.service.History(req.Context(), limit)
	if err != nil {
		h.fail(w, req, err)
		return
	}
	h.respond(w, req, http.StatusOK, entries)
}

// GetLogs returns recent HTTP request log entries, or application log
// entries with ?type=app
func (h *Handlers) GetLogs(w http.ResponseWriter, req *http.Request) {
	limit, err := intParam(req, "limit", defaultLogLimit)
	if err != nil {
		h.fail(w, req, err)
		return
	}
	buffer := log.GetHTTPLogBuffer()
	switch req.URL.Query().Get("type") {
	case "", "http":
	case "app":
		buffer = log.GetAppLogBuffer()
	default:
		h.fail(w, req, fmt.Errorf("%w: log type %q", analysis.ErrInvalidRequest, req.URL.Query().Get("type")))
		return
	}
	h.respond(w, req, http.StatusOK, buffer.Recent(limit))
}
