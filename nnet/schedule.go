package nnet

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// Schedule maps the global optimizer step to a learning rate.
// Implementations are pure: the same step always yields the same rate.
type Schedule interface {
	Rate(step float64) float64
	ToString() string
}

// ConfigSched is a schedule definition which can be marshalled into the config.
type ConfigSched interface {
	Marshal() SchedConfig
}

// Schedule configuration details
type SchedConfig struct {
	Type string
	Data json.RawMessage
}

// Unmarshal JSON data and construct new schedule
func (c SchedConfig) Unmarshal() (Schedule, error) {
	switch c.Type {
	case "", "fixed":
		cfg := new(Fixed)
		if len(c.Data) > 0 {
			if err := json.Unmarshal(c.Data, cfg); err != nil {
				return nil, errors.Wrap(err, "invalid fixed schedule")
			}
		}
		return *cfg, nil
	case "stepDecay":
		cfg := new(StepDecay)
		if err := json.Unmarshal(c.Data, cfg); err != nil {
			return nil, errors.Wrap(err, "invalid stepDecay schedule")
		}
		if len(cfg.Steps) == 0 {
			return nil, errors.New("stepDecay schedule: no steps defined")
		}
		return *cfg, nil
	case "warmupCosine":
		cfg := new(WarmupCosine)
		if err := json.Unmarshal(c.Data, cfg); err != nil {
			return nil, errors.Wrap(err, "invalid warmupCosine schedule")
		}
		return NewWarmupCosine(cfg.WarmupSteps, cfg.HoldSteps, cfg.TotalSteps, cfg.StartLR, cfg.TargetLR)
	default:
		return nil, errors.Errorf("invalid schedule type: %s", c.Type)
	}
}

func (c SchedConfig) String() string {
	s, err := c.Unmarshal()
	if err != nil {
		return "invalid: " + err.Error()
	}
	return s.ToString()
}

// Fixed schedule returns the same rate at every step.
type Fixed struct {
	LR float64
}

func (s Fixed) Marshal() SchedConfig {
	return SchedConfig{Type: "fixed", Data: marshal(s)}
}

func (s Fixed) Rate(step float64) float64 {
	return s.LR
}

func (s Fixed) ToString() string {
	return fmt.Sprintf("fixed %+v", s)
}

// StepDecay schedule is piecewise constant: the rate for a given step is the
// value of the last entry whose Step is not after it. Entries are in
// ascending step order and the first entry starts at step 0.
type StepDecay struct {
	Steps []RateStep
}

type RateStep struct {
	Step float64
	LR   float64
}

func (s StepDecay) Marshal() SchedConfig {
	return SchedConfig{Type: "stepDecay", Data: marshal(s)}
}

func (s StepDecay) Rate(step float64) float64 {
	for i := 1; i < len(s.Steps); i++ {
		if s.Steps[i].Step > step {
			return s.Steps[i-1].LR
		}
	}
	return s.Steps[len(s.Steps)-1].LR
}

func (s StepDecay) ToString() string {
	return fmt.Sprintf("stepDecay %+v", s)
}

// Phase of a warmup cosine schedule for a given step.
type SchedPhase int

const (
	PhaseWarmup SchedPhase = iota
	PhaseHold
	PhaseDecay
	PhaseDone
)

func (p SchedPhase) String() string {
	switch p {
	case PhaseWarmup:
		return "warmup"
	case PhaseHold:
		return "hold"
	case PhaseDecay:
		return "decay"
	default:
		return "done"
	}
}

// WarmupCosine schedule ramps the rate linearly from 0 to TargetLR over
// WarmupSteps, optionally holds it there for HoldSteps, then follows a half
// cosine curve down to 0 at TotalSteps. Steps past TotalSteps return 0.
//
// StartLR is stored for compatibility with configs that set it but does not
// enter the rate calculation: the warmup ramp always starts from 0.
type WarmupCosine struct {
	WarmupSteps int
	HoldSteps   int
	TotalSteps  int
	StartLR     float64
	TargetLR    float64
}

// Create a new warmup cosine schedule. Window sizes are checked up front so
// that Rate is total: no zero denominators can occur after construction.
func NewWarmupCosine(warmup, hold, total int, startLR, targetLR float64) (WarmupCosine, error) {
	s := WarmupCosine{WarmupSteps: warmup, HoldSteps: hold, TotalSteps: total, StartLR: startLR, TargetLR: targetLR}
	if warmup < 1 {
		return s, errors.Errorf("warmupCosine schedule: warmup steps must be >= 1, got %d", warmup)
	}
	if hold < 0 {
		return s, errors.Errorf("warmupCosine schedule: hold steps must be >= 0, got %d", hold)
	}
	if total <= warmup+hold {
		return s, errors.Errorf("warmupCosine schedule: total steps %d must be > warmup %d + hold %d", total, warmup, hold)
	}
	if targetLR <= 0 {
		return s, errors.Errorf("warmupCosine schedule: target rate must be > 0, got %g", targetLR)
	}
	return s, nil
}

func (s WarmupCosine) Marshal() SchedConfig {
	return SchedConfig{Type: "warmupCosine", Data: marshal(s)}
}

// Phase classifies a step. Warmup wins at the low boundary: any step below
// WarmupSteps is warmup even when a hold window is configured, and the end
// of schedule cutoff at TotalSteps overrides everything else.
func (s WarmupCosine) Phase(step float64) SchedPhase {
	switch {
	case step > float64(s.TotalSteps):
		return PhaseDone
	case step < float64(s.WarmupSteps):
		return PhaseWarmup
	case s.HoldSteps > 0 && step <= float64(s.WarmupSteps+s.HoldSteps):
		return PhaseHold
	default:
		return PhaseDecay
	}
}

func (s WarmupCosine) Rate(step float64) float64 {
	switch s.Phase(step) {
	case PhaseWarmup:
		return s.TargetLR * step / float64(s.WarmupSteps)
	case PhaseHold:
		return s.TargetLR
	case PhaseDecay:
		ramped := float64(s.WarmupSteps + s.HoldSteps)
		return 0.5 * s.TargetLR * (1 + math.Cos(math.Pi*(step-ramped)/(float64(s.TotalSteps)-ramped)))
	default:
		return 0
	}
}

func (s WarmupCosine) ToString() string {
	return fmt.Sprintf("warmupCosine %+v", s)
}

func marshal(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
