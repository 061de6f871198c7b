package restserver

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/chrissnell/spmanalyzer/internal/analysis"
	"github.com/chrissnell/spmanalyzer/pkg/geometry"
	"github.com/gorilla/mux"
)

func paramError(name, value string, err error) error {
	return fmt.Errorf("%w: parameter %s=%q: %v", analysis.ErrInvalidRequest, name, value, err)
}

// floatParam parses a float query parameter, returning def when absent.
func floatParam(req *http.Request, name string, def float64) (float64, error) {
	raw := req.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, paramError(name, raw, err)
	}
	return v, nil
}

// intParam parses an integer query parameter, returning def when absent.
func intParam(req *http.Request, name string, def int) (int, error) {
	raw := req.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, paramError(name, raw, err)
	}
	return v, nil
}

// requiredFloat parses a float query parameter that must be present.
func requiredFloat(req *http.Request, name string) (float64, error) {
	if req.URL.Query().Get(name) == "" {
		return 0, fmt.Errorf("%w: parameter %s is required", analysis.ErrInvalidRequest, name)
	}
	return floatParam(req, name, 0)
}

// boolParam accepts 1, true, yes and on.
func boolParam(req *http.Request, name string) bool {
	switch strings.ToLower(req.URL.Query().Get(name)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// lineParams reads the x1, y1, x2, y2 pixel coordinates of a line.
func lineParams(req *http.Request) (geometry.Point2D, geometry.Point2D, error) {
	var v [4]float64
	for i, name := range []string{"x1", "y1", "x2", "y2"} {
		f, err := requiredFloat(req, name)
		if err != nil {
			return geometry.Point2D{}, geometry.Point2D{}, err
		}
		v[i] = f
	}
	return geometry.Pt(v[0], v[1]), geometry.Pt(v[2], v[3]), nil
}

// profileRequest builds a CITS line request from the route and query.
func profileRequest(req *http.Request) (analysis.ProfileRequest, error) {
	vars := mux.Vars(req)
	pr := analysis.ProfileRequest{
		SessionID: vars["id"],
		File:      vars["file"],
		Method:    req.URL.Query().Get("method"),
	}
	var err error
	if pr.Start, pr.End, err = lineParams(req); err != nil {
		return pr, err
	}
	if pr.Points, err = intParam(req, "points", 0); err != nil {
		return pr, err
	}
	if pr.Across, err = floatParam(req, "across", 0); err != nil {
		return pr, err
	}
	return pr, nil
}

func curvesRequest(req *http.Request) (analysis.CurvesRequest, error) {
	pr, err := profileRequest(req)
	if err != nil {
		return analysis.CurvesRequest{}, err
	}
	cr := analysis.CurvesRequest{ProfileRequest: pr, Select: req.URL.Query().Get("select")}
	if cr.MaxCurves, err = intParam(req, "max", 0); err != nil {
		return cr, err
	}
	return cr, nil
}

// sliceRequest reads {bias} as a bias index, or as a bias value with
// ?by=value.
func sliceRequest(req *http.Request) (analysis.SliceRequest, error) {
	vars := mux.Vars(req)
	sr := analysis.SliceRequest{SessionID: vars["id"], File: vars["file"]}
	raw := vars["bias"]
	switch by := req.URL.Query().Get("by"); by {
	case "", "index":
		idx, err := strconv.Atoi(raw)
		if err != nil {
			return sr, paramError("bias", raw, err)
		}
		sr.Index = idx
	case "value":
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return sr, paramError("bias", raw, err)
		}
		sr.Bias, sr.ByValue = v, true
	default:
		return sr, paramError("by", by, fmt.Errorf("expected index or value"))
	}
	return sr, nil
}

// topoRequest reads the flatten and tilt options shared by topography routes.
func topoRequest(req *http.Request) (analysis.TopoRequest, error) {
	vars := mux.Vars(req)
	q := req.URL.Query()
	tr := analysis.TopoRequest{
		SessionID: vars["id"],
		File:      vars["file"],
		Flatten:   q.Get("flatten"),
		Tilt:      q.Get("tilt"),
		Fine:      boolParam(req, "fine"),
	}
	var err error
	if tr.Order, err = intParam(req, "order", 0); err != nil {
		return tr, err
	}
	return tr, nil
}
