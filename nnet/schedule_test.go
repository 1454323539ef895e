package nnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWarmupCosineRates(t *testing.T) {
	s, err := NewWarmupCosine(10, 0, 100, 0, 0.01)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.Rate(0))
	assert.InDelta(t, 0.005, s.Rate(5), 1e-12)
	assert.InDelta(t, 0.01, s.Rate(10), 1e-12)
	assert.InDelta(t, 0.005, s.Rate(55), 1e-12)
	assert.InDelta(t, 0.0, s.Rate(100), 1e-12)
	assert.Equal(t, 0.0, s.Rate(150))
}

func TestWarmupCosineHold(t *testing.T) {
	s, err := NewWarmupCosine(10, 20, 100, 0, 0.01)
	require.NoError(t, err)
	// rate is exactly the target for the whole hold window
	for step := 10; step <= 30; step++ {
		assert.Equal(t, 0.01, s.Rate(float64(step)), "step %d", step)
	}
	assert.Less(t, s.Rate(31), 0.01)
}

func TestWarmupCosineBoundaries(t *testing.T) {
	s, err := NewWarmupCosine(10, 20, 100, 0, 0.01)
	require.NoError(t, err)
	// warmup wins below the low boundary even when a hold window is set
	assert.Equal(t, PhaseWarmup, s.Phase(9.5))
	assert.InDelta(t, 0.01*9.5/10, s.Rate(9.5), 1e-12)
	assert.Equal(t, PhaseHold, s.Phase(10))
	assert.Equal(t, PhaseHold, s.Phase(30))
	assert.Equal(t, PhaseDecay, s.Phase(30.5))
	// end of schedule cutoff dominates
	assert.Equal(t, PhaseDone, s.Phase(100.5))
	assert.Equal(t, 0.0, s.Rate(100.5))
}

func TestWarmupCosineMonotonic(t *testing.T) {
	s, err := NewWarmupCosine(17, 5, 211, 0, 0.05)
	require.NoError(t, err)
	prev := -1.0
	for step := 0; step < 17; step++ {
		rate := s.Rate(float64(step))
		assert.Greater(t, rate, prev, "warmup not increasing at step %d", step)
		assert.LessOrEqual(t, rate, 0.05)
		prev = rate
	}
	prev = s.Rate(22)
	for step := 23; step <= 211; step++ {
		rate := s.Rate(float64(step))
		assert.LessOrEqual(t, rate, prev, "decay not decreasing at step %d", step)
		assert.GreaterOrEqual(t, rate, 0.0)
		prev = rate
	}
}

func TestWarmupCosineNoHoldPhases(t *testing.T) {
	s, err := NewWarmupCosine(10, 0, 100, 0, 0.01)
	require.NoError(t, err)
	// with no hold window steps go straight from warmup to decay
	assert.Equal(t, PhaseWarmup, s.Phase(9))
	assert.Equal(t, PhaseDecay, s.Phase(10))
	assert.Equal(t, PhaseDecay, s.Phase(100))
	assert.Equal(t, PhaseDone, s.Phase(101))
}

func TestWarmupCosineValidation(t *testing.T) {
	_, err := NewWarmupCosine(0, 0, 100, 0, 0.01)
	assert.Error(t, err, "zero warmup")
	_, err = NewWarmupCosine(10, -1, 100, 0, 0.01)
	assert.Error(t, err, "negative hold")
	_, err = NewWarmupCosine(10, 90, 100, 0, 0.01)
	assert.Error(t, err, "no decay window")
	_, err = NewWarmupCosine(10, 0, 10, 0, 0.01)
	assert.Error(t, err, "total equal to warmup")
	_, err = NewWarmupCosine(10, 0, 100, 0, 0)
	assert.Error(t, err, "zero target rate")
}

func TestScheduleConfig(t *testing.T) {
	sched, err := NewWarmupCosine(100, 50, 1000, 0, 0.1)
	require.NoError(t, err)
	conf := Config{Eta: 0.5}.WithSchedule(sched)
	assert.Equal(t, "warmupCosine", conf.Sched.Type)
	s, err := conf.Schedule()
	require.NoError(t, err)
	assert.Equal(t, sched, s)

	// default is a fixed rate of eta
	s, err = Config{Eta: 0.5}.Schedule()
	require.NoError(t, err)
	assert.Equal(t, Fixed{LR: 0.5}, s)

	_, err = SchedConfig{Type: "bogus"}.Unmarshal()
	assert.Error(t, err)
	// invalid parameters are caught when the config is unmarshalled
	_, err = Config{}.WithSchedule(WarmupCosine{WarmupSteps: 10, TotalSteps: 5, TargetLR: 0.1}).Schedule()
	assert.Error(t, err)
}

func TestStepDecay(t *testing.T) {
	s := StepDecay{Steps: []RateStep{{0, 0.1}, {100, 0.01}, {200, 0.001}}}
	assert.Equal(t, 0.1, s.Rate(0))
	assert.Equal(t, 0.1, s.Rate(50))
	assert.Equal(t, 0.01, s.Rate(100))
	assert.Equal(t, 0.01, s.Rate(150))
	assert.Equal(t, 0.001, s.Rate(200))
	assert.Equal(t, 0.001, s.Rate(1e6))

	conf := Config{}.WithSchedule(s)
	s2, err := conf.Schedule()
	require.NoError(t, err)
	assert.Equal(t, Schedule(s), s2)
}
