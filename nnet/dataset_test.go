package nnet

import (
	"math/rand"
	"sort"
	"testing"
)

func sampleData(n int) Data {
	labels := make([]int32, n)
	inputs := make([]float64, n*2)
	for i := 0; i < n; i++ {
		labels[i] = int32(i % 3)
		inputs[i*2] = float64(i)
		inputs[i*2+1] = float64(i) / 10
	}
	return NewData(3, []int{2}, labels, inputs)
}

func TestDatasetBatches(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	d := NewDataset(sampleData(10), 3, 0, rng)
	if d.Batches != 4 || d.BatchSize != 3 || d.Samples != 10 {
		t.Fatalf("have batches=%d size=%d samples=%d", d.Batches, d.BatchSize, d.Samples)
	}
	d.NextEpoch()
	total := 0
	for batch := 0; batch < d.Batches; batch++ {
		x, y, y1H := d.NextBatch()
		rows, cols := x.Dims()
		if cols != 2 {
			t.Errorf("batch %d: input cols %d", batch, cols)
		}
		if rows != len(y) {
			t.Errorf("batch %d: rows %d labels %d", batch, rows, len(y))
		}
		for i, label := range y {
			if x.At(i, 0) != float64(total+i) {
				t.Errorf("batch %d row %d: input %g expect %d", batch, i, x.At(i, 0), total+i)
			}
			for c := 0; c < 3; c++ {
				want := 0.0
				if int32(c) == label {
					want = 1
				}
				if y1H.At(i, c) != want {
					t.Errorf("batch %d row %d: one hot class %d = %g", batch, i, c, y1H.At(i, c))
				}
			}
		}
		total += rows
	}
	if total != 10 {
		t.Errorf("got %d samples total", total)
	}
}

func TestDatasetPartialBatch(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	d := NewDataset(sampleData(10), 3, 0, rng)
	d.NextEpoch()
	var rows int
	for batch := 0; batch < d.Batches; batch++ {
		x, _, _ := d.NextBatch()
		rows, _ = x.Dims()
	}
	if rows != 1 {
		t.Errorf("last batch has %d rows expect 1", rows)
	}
}

func TestDatasetMaxSamples(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	d := NewDataset(sampleData(10), 3, 6, rng)
	if d.Samples != 6 || d.Batches != 2 {
		t.Errorf("have samples=%d batches=%d", d.Samples, d.Batches)
	}
}

func TestDatasetShuffle(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	d := NewDataset(sampleData(10), 10, 0, rng)
	d.Shuffle()
	d.NextEpoch()
	x, _, _ := d.NextBatch()
	vals := make([]float64, 10)
	for i := range vals {
		vals[i] = x.At(i, 0)
	}
	sorted := append([]float64{}, vals...)
	sort.Float64s(sorted)
	for i, v := range sorted {
		if v != float64(i) {
			t.Fatalf("shuffle dropped samples: %v", vals)
		}
	}
	same := true
	for i, v := range vals {
		if v != float64(i) {
			same = false
		}
	}
	if same {
		t.Error("shuffle did not permute the data")
	}
}

func TestDatasetRewind(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	d := NewDataset(sampleData(10), 4, 0, rng)
	d.NextEpoch()
	d.NextBatch()
	d.NextBatch()
	d.Rewind()
	x, _, _ := d.NextBatch()
	if x.At(0, 0) != 0 {
		t.Errorf("rewind: first sample is %g", x.At(0, 0))
	}
}
