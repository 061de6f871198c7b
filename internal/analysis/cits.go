package analysis

import (
	"context"
	"fmt"
	"math"

	"github.com/chrissnell/spmanalyzer/pkg/cits"
	"github.com/chrissnell/spmanalyzer/pkg/geometry"
)

// ProfileRequest selects a line through a CITS cube.
type ProfileRequest struct {
	SessionID string           `json:"session_id"`
	File      string           `json:"file"`
	Start     geometry.Point2D `json:"start"`
	End       geometry.Point2D `json:"end"`
	// Method is bresenham or interpolate; empty uses the configured default.
	Method string `json:"method,omitempty"`
	// Points is the interpolated sample count; zero picks one from the
	// line length.
	Points int `json:"points,omitempty"`
	// Across, when positive, samples a cross-section instead: a segment
	// of Across pixels through the midpoint of Start-End, perpendicular to it.
	Across float64 `json:"across,omitempty"`
}

// CurvesRequest selects representative spectra along a line.
type CurvesRequest struct {
	ProfileRequest
	MaxCurves int    `json:"max_curves,omitempty"`
	Select    string `json:"select,omitempty"`
}

// CurvesResult is a line profile with the spectra picked from it.
type CurvesResult struct {
	Profile   *cits.LineProfile    `json:"profile"`
	Selection *cits.CurveSelection `json:"selection"`
}

// AlignRequest computes energy alignment along a line.
type AlignRequest struct {
	ProfileRequest
	Align string `json:"align,omitempty"`
	// Reference is the position shifts are measured against; negative
	// selects the middle of the line.
	Reference int `json:"reference"`
}

// SliceRequest selects one bias plane of a cube, either by index or by the
// bias value nearest to Bias when ByValue is set.
type SliceRequest struct {
	SessionID string  `json:"session_id"`
	File      string  `json:"file"`
	Index     int     `json:"index"`
	Bias      float64 `json:"bias,omitempty"`
	ByValue   bool    `json:"by_value,omitempty"`
}

// SliceResult is a bias slice with the physical extent of its cube.
type SliceResult struct {
	*cits.BiasSlice
	XRangeNM float64 `json:"x_range_nm"`
	YRangeNM float64 `json:"y_range_nm"`
}

// SpectrumResult is a point spectrum with the bias axis it was sampled on.
type SpectrumResult struct {
	*cits.PointSpectrum
	BiasAxis []float64 `json:"bias_axis"`
}

// sampling builds the sampling policy for req from the request and the
// configured defaults. Requested interpolation counts below the configured
// minimum are raised to it and counts above the maximum are rejected.
func (s *Service) sampling(req ProfileRequest) (cits.Sampling, error) {
	tag := req.Method
	if tag == "" {
		tag = s.cfg.DefaultSampling
	}
	points := req.Points
	if points > 0 && points < s.cfg.MinInterpolatePoints {
		points = s.cfg.MinInterpolatePoints
	}
	if points > s.cfg.MaxInterpolatePoints {
		return nil, fmt.Errorf("%w: %d interpolation points exceeds the limit of %d",
			cits.ErrInvalidParameter, points, s.cfg.MaxInterpolatePoints)
	}
	return cits.ParseSampling(tag, points)
}

func (s *Service) cube(sessionID, file string) (*cits.DataCube, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Cube(file)
}

func (s *Service) extract(req ProfileRequest) (*cits.LineProfile, error) {
	sampling, err := s.sampling(req)
	if err != nil {
		return nil, err
	}
	start, end, err := crossSection(req.Start, req.End, req.Across)
	if err != nil {
		return nil, err
	}
	cube, err := s.cube(req.SessionID, req.File)
	if err != nil {
		return nil, err
	}
	return cits.ExtractLineProfile(cube, start, end, sampling)
}

// LineProfile extracts the spectra along the requested line.
func (s *Service) LineProfile(ctx context.Context, req ProfileRequest) (*cits.LineProfile, error) {
	var p *cits.LineProfile
	err := s.run(ctx, OpLineProfile, req.SessionID, req.File, req, func(context.Context) error {
		var err error
		p, err = s.extract(req)
		return err
	})
	return p, err
}

// Curves extracts a line profile and selects at most MaxCurves spectra from
// it, defaulting to the configured maximum.
func (s *Service) Curves(ctx context.Context, req CurvesRequest) (*CurvesResult, error) {
	if req.MaxCurves == 0 {
		req.MaxCurves = s.cfg.DefaultMaxCurves
	}
	var res *CurvesResult
	err := s.run(ctx, OpCurves, req.SessionID, req.File, req, func(context.Context) error {
		method, err := cits.ParseCurveMethod(req.Select)
		if err != nil {
			return err
		}
		p, err := s.extract(req.ProfileRequest)
		if err != nil {
			return err
		}
		sel, err := p.SelectCurves(req.MaxCurves, method)
		if err != nil {
			return err
		}
		res = &CurvesResult{Profile: p, Selection: sel}
		return nil
	})
	return res, err
}

// ProfileStatistics summarises the spectra along a line.
func (s *Service) ProfileStatistics(ctx context.Context, req ProfileRequest) (*cits.Statistics, error) {
	var st *cits.Statistics
	err := s.run(ctx, OpProfileStats, req.SessionID, req.File, req, func(context.Context) error {
		p, err := s.extract(req)
		if err != nil {
			return err
		}
		st, err = cits.ProfileStatistics(p)
		return err
	})
	return st, err
}

// Alignment computes per-position energy shifts along a line.
func (s *Service) Alignment(ctx context.Context, req AlignRequest) (*cits.Alignment, error) {
	var a *cits.Alignment
	err := s.run(ctx, OpAlignment, req.SessionID, req.File, req, func(context.Context) error {
		p, err := s.extract(req.ProfileRequest)
		if err != nil {
			return err
		}
		a, err = cits.AlignEnergy(p, cits.AlignMethod(req.Align), req.Reference)
		return err
	})
	return a, err
}

// BiasSlice returns one bias plane of a cube.
func (s *Service) BiasSlice(ctx context.Context, req SliceRequest) (*SliceResult, error) {
	var res *SliceResult
	err := s.run(ctx, OpBiasSlice, req.SessionID, req.File, req, func(context.Context) error {
		cube, err := s.cube(req.SessionID, req.File)
		if err != nil {
			return err
		}
		idx := req.Index
		if req.ByValue {
			if idx, err = cube.NearestBiasIndex(req.Bias); err != nil {
				return err
			}
		}
		slice, err := cits.GetBiasSlice(cube, idx)
		if err != nil {
			return err
		}
		res = &SliceResult{BiasSlice: slice, XRangeNM: cube.XRangeNM, YRangeNM: cube.YRangeNM}
		return nil
	})
	return res, err
}

// PointSpectrum returns the spectrum recorded at one pixel.
func (s *Service) PointSpectrum(ctx context.Context, sessionID, file string, x, y int) (*SpectrumResult, error) {
	params := map[string]int{"x": x, "y": y}
	var res *SpectrumResult
	err := s.run(ctx, OpPointSpectrum, sessionID, file, params, func(context.Context) error {
		cube, err := s.cube(sessionID, file)
		if err != nil {
			return err
		}
		ps, err := cits.GetPointSpectrum(cube, x, y)
		if err != nil {
			return err
		}
		res = &SpectrumResult{PointSpectrum: ps, BiasAxis: cube.BiasAxis}
		return nil
	})
	return res, err
}

// crossSection returns the segment of length across pixels centred on the
// midpoint of start-end and perpendicular to it. Zero returns the line
// unchanged.
func crossSection(start, end geometry.Point2D, across float64) (geometry.Point2D, geometry.Point2D, error) {
	if across == 0 {
		return start, end, nil
	}
	if !(across > 0) || math.IsInf(across, 1) {
		return start, end, invalid("cross-section length must be a positive pixel count, got %g", across)
	}
	mid := geometry.Pt((start.X+end.X)/2, (start.Y+end.Y)/2)
	a, b := geometry.Perpendicular(mid, start, end, across)
	return a, b, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidRequest}, args...)...)
}
