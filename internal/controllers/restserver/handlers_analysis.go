package restserver

import (
	"io"
	"net/http"

	"github.com/chrissnell/spmanalyzer/internal/analysis"
	"github.com/chrissnell/spmanalyzer/internal/charts"
	"github.com/chrissnell/spmanalyzer/internal/render"
	"github.com/chrissnell/spmanalyzer/pkg/cits"
	"github.com/chrissnell/spmanalyzer/pkg/topo"
	"github.com/gorilla/mux"
)

// GetProfile extracts a CITS line profile. ?chart=1 returns the evolution
// heatmap instead.
func (h *Handlers) GetProfile(w http.ResponseWriter, req *http.Request) {
	var p *cits.LineProfile
	pr, err := profileRequest(req)
	if err == nil {
		p, err = h.service.LineProfile(req.Context(), pr)
	}
	h.result(w, req, "STS Evolution", p, err, func() charts.Figure {
		return charts.STSEvolution(p, req.URL.Query().Get("colorscale"))
	})
}

// GetProfilePNG renders the evolution heatmap of a line profile
func (h *Handlers) GetProfilePNG(w http.ResponseWriter, req *http.Request) {
	var p *cits.LineProfile
	pr, err := profileRequest(req)
	if err == nil {
		p, err = h.service.LineProfile(req.Context(), pr)
	}
	h.png(w, req, err, func(out io.Writer) error {
		return render.Evolution(out, p, render.DefaultOptions)
	})
}

// GetCurves selects representative spectra along a line. ?chart=1 returns
// the overlay, normalised with ?normalize=1.
func (h *Handlers) GetCurves(w http.ResponseWriter, req *http.Request) {
	var res *analysis.CurvesResult
	cr, err := curvesRequest(req)
	if err == nil {
		res, err = h.service.Curves(req.Context(), cr)
	}
	h.result(w, req, "STS Overlay", res, err, func() charts.Figure {
		return charts.STSOverlay(res.Selection, res.Profile.BiasAxis, boolParam(req, "normalize"))
	})
}

// GetCurvesPNG renders the selected curves as an overlay plot
func (h *Handlers) GetCurvesPNG(w http.ResponseWriter, req *http.Request) {
	var res *analysis.CurvesResult
	cr, err := curvesRequest(req)
	if err == nil {
		res, err = h.service.Curves(req.Context(), cr)
	}
	h.png(w, req, err, func(out io.Writer) error {
		return render.Overlay(out, res.Selection, res.Profile.BiasAxis, render.DefaultOptions)
	})
}

// GetProfileStats summarises the spectra along a line
func (h *Handlers) GetProfileStats(w http.ResponseWriter, req *http.Request) {
	var st *cits.Statistics
	pr, err := profileRequest(req)
	if err == nil {
		st, err = h.service.ProfileStatistics(req.Context(), pr)
	}
	h.result(w, req, "", st, err, nil)
}

// GetAlignment computes energy alignment shifts along a line
func (h *Handlers) GetAlignment(w http.ResponseWriter, req *http.Request) {
	var a *cits.Alignment
	pr, err := profileRequest(req)
	if err == nil {
		ar := analysis.AlignRequest{ProfileRequest: pr, Align: req.URL.Query().Get("align")}
		if ar.Reference, err = intParam(req, "reference", -1); err == nil {
			a, err = h.service.Alignment(req.Context(), ar)
		}
	}
	h.result(w, req, "", a, err, nil)
}

// GetSlice returns one bias plane of a cube. ?chart=1 returns a map.
func (h *Handlers) GetSlice(w http.ResponseWriter, req *http.Request) {
	var res *analysis.SliceResult
	sr, err := sliceRequest(req)
	if err == nil {
		res, err = h.service.BiasSlice(req.Context(), sr)
	}
	h.result(w, req, "Bias Slice", res, err, func() charts.Figure {
		return charts.BiasSliceMap(res.BiasSlice, res.XRangeNM, res.YRangeNM)
	})
}

// GetSlicePNG renders one bias plane of a cube
func (h *Handlers) GetSlicePNG(w http.ResponseWriter, req *http.Request) {
	var res *analysis.SliceResult
	sr, err := sliceRequest(req)
	if err == nil {
		res, err = h.service.BiasSlice(req.Context(), sr)
	}
	h.png(w, req, err, func(out io.Writer) error {
		return render.BiasSlice(out, res.BiasSlice, res.XRangeNM, res.YRangeNM, render.DefaultOptions)
	})
}

// GetSpectrum returns the spectrum at pixel ?x&y
func (h *Handlers) GetSpectrum(w http.ResponseWriter, req *http.Request) {
	var res *analysis.SpectrumResult
	x, err := intParam(req, "x", 0)
	if err != nil {
		h.result(w, req, "Point Spectrum", nil, err, nil)
		return
	}
	y, err := intParam(req, "y", 0)
	if err == nil {
		vars := mux.Vars(req)
		res, err = h.service.PointSpectrum(req.Context(), vars["id"], vars["file"], x, y)
	}
	h.result(w, req, "Point Spectrum", res, err, func() charts.Figure {
		return charts.PointSpectrum(res.PointSpectrum, res.BiasAxis)
	})
}

// GetTopography returns a processed topography image with its statistics
func (h *Handlers) GetTopography(w http.ResponseWriter, req *http.Request) {
	var res *analysis.TopoResult
	tr, err := topoRequest(req)
	if err == nil {
		res, err = h.service.Topography(req.Context(), tr)
	}
	h.result(w, req, "Topography", res, err, func() charts.Figure {
		return charts.Topography(res.Image, mux.Vars(req)["file"])
	})
}

// GetTopoProfile returns a height profile through a topography image
func (h *Handlers) GetTopoProfile(w http.ResponseWriter, req *http.Request) {
	var res *topo.Profile
	tr, err := topoRequest(req)
	if err == nil {
		pr := analysis.TopoProfileRequest{TopoRequest: tr, Method: req.URL.Query().Get("method")}
		if pr.Start, pr.End, err = lineParams(req); err == nil {
			if pr.Across, err = floatParam(req, "across", 0); err == nil {
				res, err = h.service.TopoProfile(req.Context(), pr)
			}
		}
	}
	h.result(w, req, "Height Profile", res, err, func() charts.Figure {
		return charts.LineProfile(res)
	})
}

// GetTopoFFT returns the power spectrum of a topography image
func (h *Handlers) GetTopoFFT(w http.ResponseWriter, req *http.Request) {
	var res *analysis.FFTResult
	tr, err := topoRequest(req)
	if err == nil {
		res, err = h.service.PowerSpectrum(req.Context(), analysis.FFTRequest{TopoRequest: tr, Window: req.URL.Query().Get("window")})
	}
	h.result(w, req, "", res, err, nil)
}

// GetSTS analyses a point spectrum. ?point= selects the point; omitted, the
// average spectrum is used.
func (h *Handlers) GetSTS(w http.ResponseWriter, req *http.Request) {
	var res *analysis.STSResult
	vars := mux.Vars(req)
	sr := analysis.STSRequest{
		SessionID: vars["id"],
		File:      vars["file"],
		GapMethod: req.URL.Query().Get("gap"),
		Fit:       boolParam(req, "fit"),
	}
	var err error
	if sr.Point, err = intParam(req, "point", -1); err == nil {
		if sr.Threshold, err = floatParam(req, "threshold", 0); err == nil {
			if sr.MinDistance, err = intParam(req, "min_distance", 0); err == nil {
				if sr.Smooth, err = intParam(req, "smooth", 0); err == nil {
					res, err = h.service.STS(req.Context(), sr)
				}
			}
		}
	}
	h.result(w, req, "", res, err, nil)
}
