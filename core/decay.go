package core

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/signalsfoundry/geotrack/model"
)

// DecayMode selects what ApplyDecay does with a sequence whose confidence
// rises or whose uncertainty shrinks along the horizon.
type DecayMode int

const (
	// DecayReport leaves values untouched and returns observations.
	DecayReport DecayMode = iota
	// DecayClamp repairs values with a running min/max and still returns
	// observations describing each repair.
	DecayClamp
)

func (m DecayMode) String() string {
	if m == DecayClamp {
		return "clamp"
	}
	return "report"
}

// ParseDecayMode parses "report" or "clamp". An empty string means report.
func ParseDecayMode(s string) (DecayMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "report":
		return DecayReport, nil
	case "clamp":
		return DecayClamp, nil
	default:
		return DecayReport, fmt.Errorf("unknown decay mode %q", s)
	}
}

// Field names used in observations.
const (
	FieldConfidence  = "confidence"
	FieldUncertainty = "uncertainty_radius_m"
)

// Observation records a point where an upstream sequence breaks the decay
// contract: confidence must not increase and uncertainty must not decrease.
// Index refers to the input sequence.
type Observation struct {
	EntityID string  `json:"entity_id"`
	Index    int     `json:"index"`
	Field    string  `json:"field"`
	Previous float64 `json:"previous"`
	Value    float64 `json:"value"`
	Repaired bool    `json:"repaired"`
}

func (o Observation) String() string {
	verb := "rises"
	if o.Field == FieldUncertainty {
		verb = "shrinks"
	}
	return fmt.Sprintf("%s %s at index %d: %g -> %g", o.Field, verb, o.Index, o.Previous, o.Value)
}

// DecayOptions controls ApplyDecay. A Stride of 0 or 1 keeps every point.
type DecayOptions struct {
	Stride int
	Mode   DecayMode
}

// DecayResult is the annotated sequence ready for marker display.
type DecayResult struct {
	Positions    model.Trajectory
	Observations []Observation
}

// ApplyDecay validates an upstream prediction sequence, checks the decay
// contract, optionally repairs it, and resamples it by keeping every
// Stride-th point starting with the first.
//
// The input is never modified. Confidence outside [0, 1], a negative or
// non-finite uncertainty, an invalid position, or timestamps that do not
// strictly increase fail with ErrInvalidInput.
func ApplyDecay(seq model.Trajectory, opts DecayOptions) (DecayResult, error) {
	if opts.Stride < 0 {
		return DecayResult{}, fmt.Errorf("%w: negative stride %d", ErrInvalidInput, opts.Stride)
	}
	if err := validateTrajectory(seq); err != nil {
		return DecayResult{}, err
	}
	if len(seq) == 0 {
		return DecayResult{}, nil
	}

	work := make(model.Trajectory, len(seq))
	copy(work, seq)

	var obs []Observation
	minConf := work[0].Confidence
	maxUnc := work[0].UncertaintyRadiusM
	for i := 1; i < len(work); i++ {
		p := &work[i]
		if p.Confidence > minConf {
			obs = append(obs, Observation{
				EntityID: p.EntityID, Index: i, Field: FieldConfidence,
				Previous: minConf, Value: p.Confidence, Repaired: opts.Mode == DecayClamp,
			})
			if opts.Mode == DecayClamp {
				p.Confidence = minConf
			}
		}
		if p.UncertaintyRadiusM < maxUnc {
			obs = append(obs, Observation{
				EntityID: p.EntityID, Index: i, Field: FieldUncertainty,
				Previous: maxUnc, Value: p.UncertaintyRadiusM, Repaired: opts.Mode == DecayClamp,
			})
			if opts.Mode == DecayClamp {
				p.UncertaintyRadiusM = maxUnc
			}
		}
		// Compare against the running extreme, not the previous point.
		minConf = math.Min(minConf, p.Confidence)
		maxUnc = math.Max(maxUnc, p.UncertaintyRadiusM)
	}

	return DecayResult{Positions: resample(work, opts.Stride), Observations: obs}, nil
}

// CheckDecay returns the observations for seq without resampling or
// repairing it. It assumes seq is otherwise valid.
func CheckDecay(seq model.Trajectory) []Observation {
	res, err := ApplyDecay(seq, DecayOptions{Mode: DecayReport})
	if err != nil {
		return nil
	}
	return res.Observations
}

// Monotonic reports whether confidence never rises and uncertainty never
// shrinks along seq.
func Monotonic(seq model.Trajectory) bool {
	for i := 1; i < len(seq); i++ {
		if seq[i].Confidence > seq[i-1].Confidence {
			return false
		}
		if seq[i].UncertaintyRadiusM < seq[i-1].UncertaintyRadiusM {
			return false
		}
	}
	return true
}

// Nearest returns the prediction whose timestamp is closest to target. Ties
// go to the earlier index. It returns false for an empty sequence.
func Nearest(seq model.Trajectory, target time.Time) (model.PredictedPosition, bool) {
	if len(seq) == 0 {
		return model.PredictedPosition{}, false
	}
	best := 0
	bestGap := absDuration(seq[0].Timestamp.Sub(target))
	for i := 1; i < len(seq); i++ {
		if gap := absDuration(seq[i].Timestamp.Sub(target)); gap < bestGap {
			best, bestGap = i, gap
		}
	}
	return seq[best], true
}

func resample(seq model.Trajectory, stride int) model.Trajectory {
	if stride <= 1 {
		return seq
	}
	out := make(model.Trajectory, 0, (len(seq)+stride-1)/stride)
	for i := 0; i < len(seq); i += stride {
		out = append(out, seq[i])
	}
	return out
}

func validateTrajectory(seq model.Trajectory) error {
	for i, p := range seq {
		if math.IsNaN(p.Confidence) || p.Confidence < 0 || p.Confidence > 1 {
			return fmt.Errorf("%w: prediction %d: confidence %v outside [0, 1]", ErrInvalidInput, i, p.Confidence)
		}
		if math.IsNaN(p.UncertaintyRadiusM) || math.IsInf(p.UncertaintyRadiusM, 0) || p.UncertaintyRadiusM < 0 {
			return fmt.Errorf("%w: prediction %d: uncertainty radius %v must be a finite non-negative distance", ErrInvalidInput, i, p.UncertaintyRadiusM)
		}
		if err := validatePoint(fmt.Sprintf("prediction %d", i), p.Position); err != nil {
			return err
		}
		if i > 0 && !p.Timestamp.After(seq[i-1].Timestamp) {
			return fmt.Errorf("%w: prediction %d: timestamp %s does not follow %s", ErrInvalidInput, i, p.Timestamp.Format(time.RFC3339Nano), seq[i-1].Timestamp.Format(time.RFC3339Nano))
		}
	}
	return nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
