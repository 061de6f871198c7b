package analysis

import (
	"context"

	"github.com/chrissnell/spmanalyzer/pkg/geometry"
	"github.com/chrissnell/spmanalyzer/pkg/topo"
)

// TopoRequest selects a topography image and an optional background
// correction applied before analysis.
type TopoRequest struct {
	SessionID string `json:"session_id"`
	File      string `json:"file"`
	Flatten   string `json:"flatten,omitempty"`
	// Order is the polynomial degree for linewise_polyfit and
	// polynomial_2d. Zero selects 1 and 2 respectively.
	Order int    `json:"order,omitempty"`
	Tilt  string `json:"tilt,omitempty"`
	Fine  bool   `json:"fine,omitempty"`
}

// TopoResult is a processed image with its height statistics.
type TopoResult struct {
	Image     *topo.Image    `json:"image"`
	Stats     topo.Stats     `json:"stats"`
	Roughness topo.Roughness `json:"roughness"`
}

// TopoProfileRequest is a height profile through a processed image.
type TopoProfileRequest struct {
	TopoRequest
	Start  geometry.Point2D `json:"start"`
	End    geometry.Point2D `json:"end"`
	Method string           `json:"method,omitempty"`
	// Across, when positive, takes the profile perpendicular to Start-End
	// as in ProfileRequest.
	Across float64 `json:"across,omitempty"`
}

// FFTRequest is a power spectrum of a processed image.
type FFTRequest struct {
	TopoRequest
	Window string `json:"window,omitempty"`
}

// FFTResult holds the 2D power spectrum and its radial average.
type FFTResult struct {
	Spectrum *topo.Spectrum `json:"spectrum"`
	Radial   *topo.Radial   `json:"radial,omitempty"`
}

// image loads the requested image and applies flattening then tilt. The
// cached image is never modified.
func (s *Service) image(req TopoRequest) (*topo.Image, error) {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return nil, err
	}
	img, err := sess.Topography(req.File)
	if err != nil {
		return nil, err
	}
	if req.Flatten != "" && req.Flatten != "none" {
		order := req.Order
		if order == 0 {
			order = 1
			if topo.FlattenMethod(req.Flatten) == topo.FlattenPoly2D {
				order = 2
			}
		}
		if img, err = topo.Flatten(img, topo.FlattenMethod(req.Flatten), order); err != nil {
			return nil, err
		}
	}
	if req.Tilt != "" {
		if img, err = topo.Tilt(img, topo.TiltDirection(req.Tilt), req.Fine); err != nil {
			return nil, err
		}
	}
	return img, nil
}

// Topography returns the processed image with statistics and roughness.
func (s *Service) Topography(ctx context.Context, req TopoRequest) (*TopoResult, error) {
	var res *TopoResult
	err := s.run(ctx, OpTopography, req.SessionID, req.File, req, func(context.Context) error {
		img, err := s.image(req)
		if err != nil {
			return err
		}
		res = &TopoResult{
			Image:     img,
			Stats:     topo.ImageStats(img),
			Roughness: topo.SurfaceRoughness(img),
		}
		return nil
	})
	return res, err
}

// TopoProfile samples heights along a line of the processed image.
func (s *Service) TopoProfile(ctx context.Context, req TopoProfileRequest) (*topo.Profile, error) {
	var p *topo.Profile
	err := s.run(ctx, OpTopoProfile, req.SessionID, req.File, req, func(context.Context) error {
		start, end, err := crossSection(req.Start, req.End, req.Across)
		if err != nil {
			return err
		}
		img, err := s.image(req.TopoRequest)
		if err != nil {
			return err
		}
		method := req.Method
		if method == "" {
			method = s.cfg.DefaultSampling
		}
		p, err = topo.LineProfile(img, start, end, topo.ProfileMethod(method))
		return err
	})
	return p, err
}

// PowerSpectrum computes the windowed 2D power spectrum of the processed
// image. The radial average is omitted for images smaller than 2x2.
func (s *Service) PowerSpectrum(ctx context.Context, req FFTRequest) (*FFTResult, error) {
	var res *FFTResult
	err := s.run(ctx, OpTopoFFT, req.SessionID, req.File, req, func(context.Context) error {
		img, err := s.image(req.TopoRequest)
		if err != nil {
			return err
		}
		window := topo.Window(req.Window)
		if window == "" {
			window = topo.WindowHann
		}
		spec, err := topo.PowerSpectrum(img, window)
		if err != nil {
			return err
		}
		res = &FFTResult{Spectrum: spec}
		if cols, rows := img.Size(); cols >= 2 && rows >= 2 {
			if res.Radial, err = spec.RadialAverage(); err != nil {
				return err
			}
		}
		return nil
	})
	return res, err
}
