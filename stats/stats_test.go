package stats

import (
	"math"
	"testing"
)

func TestAverage(t *testing.T) {
	s := new(Average)
	for _, x := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		s.Add(x)
	}
	if s.Count != 8 {
		t.Errorf("count = %g", s.Count)
	}
	if s.Mean != 5 {
		t.Errorf("mean = %g", s.Mean)
	}
	// sample stddev of the classic example set
	want := math.Sqrt(32.0 / 7.0)
	if math.Abs(s.StdDev-want) > 1e-12 {
		t.Errorf("stddev = %g expect %g", s.StdDev, want)
	}
}

func TestEMA(t *testing.T) {
	e := EMA(0)
	val := e.Add(10, 9)
	if val != 10 {
		t.Errorf("first value = %g", val)
	}
	e = EMA(val)
	val = e.Add(20, 9)
	want := 20*0.2 + 10*0.8
	if math.Abs(val-want) > 1e-12 {
		t.Errorf("ema = %g expect %g", val, want)
	}
}
