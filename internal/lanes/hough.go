package lanes

import (
	"math"
	"sort"

	"github.com/MeKo-Tech/lanedetect/internal/mempool"
)

// HoughOptions configures the line vote. SuppressionRadius is the half size
// of the accumulator window a peak must dominate; zero keeps every bin that
// reaches Threshold.
type HoughOptions struct {
	RhoStep           float64 `mapstructure:"rho_step" yaml:"rho_step" json:"rho_step"`
	ThetaStepDeg      float64 `mapstructure:"theta_step_deg" yaml:"theta_step_deg" json:"theta_step_deg"`
	Threshold         int     `mapstructure:"threshold" yaml:"threshold" json:"threshold"`
	SuppressionRadius int     `mapstructure:"suppression_radius" yaml:"suppression_radius" json:"suppression_radius"`
}

// DefaultHoughOptions returns 1 pixel by 1 degree bins with a 100 vote threshold.
func DefaultHoughOptions() HoughOptions {
	return HoughOptions{RhoStep: 1, ThetaStepDeg: 1, Threshold: 100, SuppressionRadius: 8}
}

// PolarLine is x·cos(θ) + y·sin(θ) = ρ with θ in radians in [0, π).
type PolarLine struct {
	Rho   float64 `json:"rho"`
	Theta float64 `json:"theta"`
	Votes int     `json:"votes"`
}

// HoughLines votes every non-zero pixel of edges into a (ρ, θ) accumulator and
// returns local maxima with at least Threshold votes, strongest first.
func HoughLines(edges *GrayImage, opts HoughOptions) []PolarLine {
	if opts.RhoStep <= 0 || opts.ThetaStepDeg <= 0 {
		return nil
	}
	numTheta := int(math.Round(180 / opts.ThetaStepDeg))
	if numTheta < 1 {
		numTheta = 1
	}
	thetaStep := math.Pi / float64(numTheta)
	rmax := int(math.Ceil(math.Hypot(float64(edges.Width), float64(edges.Height)) / opts.RhoStep))
	numRho := 2*rmax + 1

	cosT := make([]float64, numTheta)
	sinT := make([]float64, numTheta)
	for t := range numTheta {
		cosT[t] = math.Cos(float64(t) * thetaStep)
		sinT[t] = math.Sin(float64(t) * thetaStep)
	}

	acc := mempool.GetInt32(numRho * numTheta)
	defer mempool.PutInt32(acc)

	for y := range edges.Height {
		row := edges.Pix[y*edges.Width : (y+1)*edges.Width]
		for x, v := range row {
			if v == 0 {
				continue
			}
			fx, fy := float64(x), float64(y)
			for t := range numTheta {
				r := int(math.Round((fx*cosT[t]+fy*sinT[t])/opts.RhoStep)) + rmax
				acc[r*numTheta+t]++
			}
		}
	}

	var lines []PolarLine
	for r := range numRho {
		for t := range numTheta {
			idx := r*numTheta + t
			votes := acc[idx]
			if int(votes) < opts.Threshold || votes == 0 {
				continue
			}
			if !isPeak(acc, numRho, numTheta, r, t, opts.SuppressionRadius) {
				continue
			}
			lines = append(lines, PolarLine{
				Rho:   float64(r-rmax) * opts.RhoStep,
				Theta: float64(t) * thetaStep,
				Votes: int(votes),
			})
		}
	}

	sort.Slice(lines, func(i, j int) bool {
		a, b := lines[i], lines[j]
		if a.Votes != b.Votes {
			return a.Votes > b.Votes
		}
		if a.Theta != b.Theta {
			return a.Theta < b.Theta
		}
		return a.Rho < b.Rho
	})
	return lines
}

// isPeak reports whether bin (r, t) dominates its window. Equal neighbors
// earlier in row-major order win, so a plateau yields a single peak.
func isPeak(acc []int32, numRho, numTheta, r, t, radius int) bool {
	idx := r*numTheta + t
	v := acc[idx]
	for dr := -radius; dr <= radius; dr++ {
		nr := r + dr
		if nr < 0 || nr >= numRho {
			continue
		}
		for dt := -radius; dt <= radius; dt++ {
			nt := t + dt
			if nt < 0 || nt >= numTheta || (dr == 0 && dt == 0) {
				continue
			}
			nidx := nr*numTheta + nt
			nv := acc[nidx]
			if nv > v || (nv == v && nidx < idx) {
				return false
			}
		}
	}
	return true
}
