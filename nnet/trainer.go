package nnet

import (
	"fmt"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"
)

const emaN = 10

// Training statistics
type Stats struct {
	Epoch     int
	Values    []float64
	BestSince int
	Elapsed   time.Duration
}

func StatsHeaders(d map[string]Data) []string {
	h := []string{"loss"}
	for _, key := range DataTypes {
		if _, ok := d[key]; ok {
			h = append(h, key+" error")
			if key == "valid" {
				h = append(h, "valid avg")
			}
		}
	}
	return h
}

func (s Stats) Copy() Stats {
	stats := s
	stats.Values = append([]float64{}, s.Values...)
	return stats
}

func (s Stats) Format() []string {
	str := []string{fmt.Sprintf("%7.4f", s.Values[0])}
	for _, v := range s.Values[1:] {
		str = append(str, fmt.Sprintf("%6.2f%%", v*100))
	}
	return str
}

// Calc exponentional moving average
type EMA float64

func (e EMA) Add(val float64) float64 {
	if e == 0 {
		return val
	}
	k := 2.0 / (emaN + 1.0)
	return val*k + float64(e)*(1-k)
}

// Tester interface to evaluate the performance after each epoch, Test method returns true if training should stop.
type Tester interface {
	Test(net *Network, epoch int, loss float64, start time.Time) bool
}

// Tester which evaluates the loss and error for each of the data sets and updates the stats.
type TestBase struct {
	Net     *Network
	Data    map[string]*Dataset
	Pred    map[string][]int32
	Stats   []Stats
	Headers []string
	Samples int
}

// Create a new base class which implements the Tester interface.
func NewTestBase() *TestBase {
	return &TestBase{Stats: []Stats{}}
}

// Initialise the test dataset, network and other configuration.
func (t *TestBase) Init(conf Config, data map[string]Data, rng *rand.Rand) (*TestBase, error) {
	t.Data = make(map[string]*Dataset)
	t.Headers = StatsHeaders(data)
	t.Samples = min(conf.MaxSamples, data["train"].Len())
	t.Pred = nil
	if conf.DebugLevel >= 1 {
		fmt.Printf("init tester: samples=%d batch size=%d\n", t.Samples, conf.TestBatch)
	}
	for key, d := range data {
		if conf.DebugLevel >= 1 {
			fmt.Println("dataset =>", key)
		}
		t.Data[key] = NewDataset(d, conf.TestBatch, t.Samples, rng)
	}
	var err error
	t.Net, err = New(conf, t.Data["train"].Shape(), rng)
	return t, err
}

// Generate the predicted results when test is next run.
func (t *TestBase) Predict() *TestBase {
	t.Pred = make(map[string][]int32)
	for key, dset := range t.Data {
		t.Pred[key] = make([]int32, dset.Samples)
	}
	return t
}

// Reset stats prior to new run
func (t *TestBase) Reset() {
	t.Stats = t.Stats[:0]
}

// Test performance of the network, called from the Train function on completion of each epoch.
func (t *TestBase) Test(net *Network, epoch int, loss float64, start time.Time) bool {
	net.CopyTo(t.Net)
	if net.DebugLevel >= 1 {
		fmt.Printf("== TEST EPOCH %d ==\n", epoch)
	}
	s := Stats{Epoch: epoch, Values: []float64{loss}, BestSince: -1}
	for ix, key := range DataTypes {
		if dset, ok := t.Data[key]; ok {
			if dset.Samples < dset.Len() {
				dset.Shuffle()
			}
			var pred []int32
			if t.Pred != nil {
				pred = t.Pred[key]
			}
			errVal := t.Net.Error(dset, pred)
			s.Values = append(s.Values, errVal)
			if key == "valid" {
				// save average validation error
				avgVal := 0.0
				if epoch > 1 {
					avgVal = t.Stats[epoch-2].Values[ix+2]
				}
				avgVal = EMA(avgVal).Add(errVal)
				s.Values = append(s.Values, avgVal)
				// get number of epochs where average validation error has increased
				for ep := epoch - 1; ep >= 1; ep-- {
					prevErr := t.Stats[ep-1].Values[ix+2]
					if prevErr > avgVal {
						s.BestSince = epoch - ep - 1
						break
					}
				}
			}
		}
	}
	s.Elapsed = time.Since(start)
	t.Stats = append(t.Stats, s)
	return epoch >= net.MaxEpoch || loss <= net.MinLoss || (net.StopAfter > 0 && s.BestSince >= net.StopAfter)
}

type testLogger struct {
	*TestBase
}

// Create a new tester which logs stats to stdout.
func NewTestLogger(conf Config, data map[string]Data, rng *rand.Rand) (Tester, error) {
	base, err := NewTestBase().Init(conf, data, rng)
	if err != nil {
		return nil, err
	}
	return testLogger{TestBase: base}, nil
}

func (t testLogger) Test(net *Network, epoch int, loss float64, start time.Time) bool {
	done := t.TestBase.Test(net, epoch, loss, start)
	s := t.Stats[len(t.Stats)-1]
	if done || net.LogEvery == 0 || epoch%net.LogEvery == 0 {
		msg := fmt.Sprintf("epoch %3d:", epoch)
		for i, val := range s.Format() {
			msg += fmt.Sprintf("  %s =%s", t.Headers[i], val)
		}
		if s.BestSince >= 0 {
			msg += fmt.Sprintf(" [%d]", s.BestSince)
		}
		fmt.Println(msg)
	}
	if done {
		fmt.Printf("run time: %s\n", s.Elapsed.Round(10*time.Millisecond))
	}
	return done
}

// Train the network on the given training set by updating the weights
func Train(net *Network, dset *Dataset, test Tester) {
	done := false
	start := time.Now()
	for epoch := 1; epoch <= net.MaxEpoch && !done; epoch++ {
		loss := TrainEpoch(net, dset, epoch)
		done = test.Test(net, epoch, loss, start)
	}
}

// Perform one training epoch on dataset, returns the average loss per sample.
// The learning rate for each batch comes from the schedule evaluated at the
// global step, counted over all epochs of the run.
func TrainEpoch(net *Network, dset *Dataset, epoch int) float64 {
	if net.Shuffle {
		dset.Shuffle()
	}
	dset.NextEpoch()
	loss := 0.0
	for batch := 0; batch < dset.Batches; batch++ {
		if net.DebugLevel >= 2 || (net.DebugLevel == 1 && batch == 0) {
			fmt.Printf("== train batch %d ==\n", batch)
		}
		step := float64((epoch-1)*dset.Batches + batch)
		eta := net.Sched.Rate(step)
		weightDecay := eta * net.Lambda / float64(dset.Samples)
		x, _, yOneHot := dset.NextBatch()
		yPred := net.Fprop(x)
		if net.DebugLevel >= 2 {
			fmt.Printf("yPred:\n%v\n", mat.Formatted(yPred))
		}
		loss += net.OutLayer().Loss(yOneHot, yPred)
		// get difference at output
		rows, cols := yPred.Dims()
		grad := mat.NewDense(rows, cols, nil)
		grad.Sub(yPred, yOneHot)
		// back propagate gradient
		var g *mat.Dense = grad
		for i := len(net.Layers) - 1; i >= 0; i-- {
			g = net.Layers[i].Bprop(g)
		}
		// update weights
		for _, layer := range net.Layers {
			if l, ok := layer.(ParamLayer); ok {
				l.UpdateParams(eta, weightDecay)
			}
		}
	}
	return loss / float64(dset.Samples)
}

func min(a, b int) int {
	if a == 0 {
		return b
	}
	if a < b {
		return a
	}
	return b
}
