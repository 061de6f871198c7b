package analysis

import (
	"context"

	"github.com/chrissnell/spmanalyzer/pkg/sts"
)

// Defaults for peak detection on point spectra.
const (
	DefaultPeakThreshold   = 0.1
	DefaultPeakMinDistance = 5
)

// STSRequest selects one point of an STS table, or the average of all
// points when Point is negative.
type STSRequest struct {
	SessionID   string  `json:"session_id"`
	File        string  `json:"file"`
	Point       int     `json:"point"`
	Threshold   float64 `json:"threshold,omitempty"`
	MinDistance int     `json:"min_distance,omitempty"`
	GapMethod   string  `json:"gap_method,omitempty"`
	Fit         bool    `json:"fit,omitempty"`
	// Smooth is an odd median filter kernel applied to the conductance
	// before feature detection. Zero disables smoothing.
	Smooth int `json:"smooth,omitempty"`
}

// STSResult is the analysis of a single spectrum.
type STSResult struct {
	Point         int                `json:"point"`
	Conductance   *sts.Conductance   `json:"conductance"`
	Smoothed      []float64          `json:"smoothed,omitempty"`
	Peaks         *sts.Peaks         `json:"peaks"`
	Gap           *sts.Gap           `json:"gap"`
	Asymmetry     float64            `json:"asymmetry"`
	SpectralWidth float64            `json:"spectral_width"`
	Fit           *sts.LorentzianFit `json:"fit,omitempty"`
	FitError      string             `json:"fit_error,omitempty"`
}

// STS analyses a point spectrum: conductance, peaks, gap, asymmetry and, on
// request, a Lorentzian fit of the conductance. A failed fit is reported in
// the result rather than failing the request.
func (s *Service) STS(ctx context.Context, req STSRequest) (*STSResult, error) {
	if req.Threshold == 0 {
		req.Threshold = DefaultPeakThreshold
	}
	if req.MinDistance == 0 {
		req.MinDistance = DefaultPeakMinDistance
	}
	if req.GapMethod == "" {
		req.GapMethod = string(sts.GapMinimum)
	}

	var res *STSResult
	err := s.run(ctx, OpSTS, req.SessionID, req.File, req, func(context.Context) error {
		if req.Threshold < 0 || req.Threshold > 1 {
			return invalid("peak threshold %g not in [0, 1]", req.Threshold)
		}
		if req.MinDistance < 0 {
			return invalid("peak distance %d", req.MinDistance)
		}
		sess, err := s.session(req.SessionID)
		if err != nil {
			return err
		}
		data, err := sess.STS(req.File)
		if err != nil {
			return err
		}

		spectrum := data.Average()
		if req.Point >= 0 {
			if spectrum, err = data.Point(req.Point); err != nil {
				return err
			}
		}

		cond, err := sts.AnalyzeConductance(spectrum, data.BiasAxis)
		if err != nil {
			return err
		}
		didv := cond.DIDV
		var smoothed []float64
		if req.Smooth > 0 {
			if smoothed, err = sts.MedianFilter(didv, req.Smooth); err != nil {
				return invalid("%v", err)
			}
			didv = smoothed
		}

		peaks, err := sts.FindPeaks(didv, data.BiasAxis, req.Threshold, req.MinDistance)
		if err != nil {
			return err
		}
		gap, err := sts.AnalyzeGap(didv, data.BiasAxis, sts.GapMethod(req.GapMethod))
		if err != nil {
			return invalid("%v", err)
		}
		res = &STSResult{
			Point:         req.Point,
			Conductance:   cond,
			Smoothed:      smoothed,
			Peaks:         peaks,
			Gap:           gap,
			Asymmetry:     sts.Asymmetry(didv, data.BiasAxis),
			SpectralWidth: sts.SpectralWidth(didv, data.BiasAxis),
		}
		if req.Fit {
			fit, fitErr := sts.FitLorentzian(didv, data.BiasAxis)
			if fitErr != nil {
				res.FitError = fitErr.Error()
			} else {
				res.Fit = fit
			}
		}
		return nil
	})
	return res, err
}
