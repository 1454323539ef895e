package nnet

import (
	"math/rand"
	"testing"
)

func xorConf() Config {
	return Config{
		Eta:        0.5,
		MaxEpoch:   2000,
		LogEvery:   500,
		TrainBatch: 4,
	}.AddLayers(
		Linear{Nout: 8},
		Activation{Atype: "tanh"},
		Linear{Nout: 2},
		Softmax{},
	)
}

func xorData() Data {
	return NewData(2, []int{2}, []int32{0, 1, 1, 0}, []float64{0, 0, 0, 1, 1, 0, 1, 1})
}

func TestXor(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	conf := xorConf()
	dset := NewDataset(xorData(), conf.TrainBatch, 0, rng)
	net, err := New(conf, dset.Shape(), rng)
	if err != nil {
		t.Fatal(err)
	}
	net.InitWeights(rng)

	first := TrainEpoch(net, dset, 1)
	loss := first
	for epoch := 2; epoch <= conf.MaxEpoch; epoch++ {
		loss = TrainEpoch(net, dset, epoch)
	}
	t.Logf("loss %g => %g", first, loss)
	if loss >= first {
		t.Errorf("loss did not decrease: %g => %g", first, loss)
	}
	if errVal := net.Error(dset, nil); errVal != 0 {
		t.Errorf("training error %g after %d epochs", errVal, conf.MaxEpoch)
	}
}

func TestTrainLoop(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	conf := xorConf()
	conf.MaxEpoch = 10
	conf.LogEvery = 5
	data := map[string]Data{"train": xorData()}
	dset := NewDataset(data["train"], conf.TrainBatch, 0, rng)
	net, err := New(conf, dset.Shape(), rng)
	if err != nil {
		t.Fatal(err)
	}
	net.InitWeights(rng)
	tester, err := NewTestLogger(conf, data, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatal(err)
	}
	Train(net, dset, tester)
	stats := tester.(testLogger).Stats
	if len(stats) != 10 {
		t.Fatalf("have stats for %d epochs expect 10", len(stats))
	}
	if stats[9].Epoch != 10 {
		t.Errorf("last epoch is %d", stats[9].Epoch)
	}
}

// training with a schedule: the rate comes from the schedule, not eta
func TestTrainWithSchedule(t *testing.T) {
	sched, err := NewWarmupCosine(50, 0, 2000, 0, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(42))
	conf := xorConf().WithSchedule(sched)
	conf.Eta = 99 // ignored when a schedule is set
	dset := NewDataset(xorData(), conf.TrainBatch, 0, rng)
	net, err := New(conf, dset.Shape(), rng)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := net.Sched.(WarmupCosine); !ok {
		t.Fatalf("schedule not set: %T", net.Sched)
	}
	net.InitWeights(rng)
	first := TrainEpoch(net, dset, 1)
	loss := first
	for epoch := 2; epoch <= conf.MaxEpoch; epoch++ {
		loss = TrainEpoch(net, dset, epoch)
	}
	t.Logf("loss %g => %g", first, loss)
	if loss >= first {
		t.Errorf("loss did not decrease: %g => %g", first, loss)
	}
}
