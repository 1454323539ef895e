package nnet

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

const (
	batch = 5
	nIn   = 4
	eps   = 1e-5
)

func testNet(t *testing.T, rng *rand.Rand) *Network {
	conf := Config{Eta: 0.1}.AddLayers(
		Linear{Nout: 3},
		Activation{Atype: "tanh"},
		Linear{Nout: 2},
		Softmax{},
	)
	net, err := New(conf, []int{nIn}, rng)
	if err != nil {
		t.Fatal(err)
	}
	net.InitWeights(rng)
	return net
}

func testBatch(rng *rand.Rand) (x, y1H *mat.Dense) {
	x = mat.NewDense(batch, nIn, nil)
	y1H = mat.NewDense(batch, 2, nil)
	for r := 0; r < batch; r++ {
		for c := 0; c < nIn; c++ {
			x.Set(r, c, rng.Float64())
		}
		y1H.Set(r, rng.Intn(2), 1)
	}
	return
}

func loss(net *Network, x, y1H *mat.Dense) float64 {
	return net.OutLayer().Loss(y1H, net.Fprop(x))
}

// compare the backpropagated weight gradients against a central finite
// difference of the cross entropy loss
func TestGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	net := testNet(t, rng)
	x, y1H := testBatch(rng)

	yPred := net.Fprop(x)
	rows, cols := yPred.Dims()
	grad := mat.NewDense(rows, cols, nil)
	grad.Sub(yPred, y1H)
	g := grad
	for i := len(net.Layers) - 1; i >= 0; i-- {
		g = net.Layers[i].Bprop(g)
	}

	for ix, layer := range net.Layers {
		l, ok := layer.(*linear)
		if !ok {
			continue
		}
		w := l.w.RawMatrix().Data
		dw := l.dw.RawMatrix().Data
		for i := range w {
			save := w[i]
			w[i] = save + eps
			lplus := loss(net, x, y1H)
			w[i] = save - eps
			lminus := loss(net, x, y1H)
			w[i] = save
			numeric := (lplus - lminus) / (2 * eps)
			if diff := math.Abs(numeric - dw[i]); diff > 1e-6+1e-4*math.Abs(numeric) {
				t.Errorf("layer %d weight %d: analytic %g numeric %g", ix, i, dw[i], numeric)
			}
		}
		b := l.b.RawMatrix().Data
		db := l.db.RawMatrix().Data
		for i := range b {
			save := b[i]
			b[i] = save + eps
			lplus := loss(net, x, y1H)
			b[i] = save - eps
			lminus := loss(net, x, y1H)
			b[i] = save
			numeric := (lplus - lminus) / (2 * eps)
			if diff := math.Abs(numeric - db[i]); diff > 1e-6+1e-4*math.Abs(numeric) {
				t.Errorf("layer %d bias %d: analytic %g numeric %g", ix, i, db[i], numeric)
			}
		}
	}
}

func TestSoftmaxOutput(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	net := testNet(t, rng)
	x, _ := testBatch(rng)
	yPred := net.Fprop(x)
	rows, cols := yPred.Dims()
	for r := 0; r < rows; r++ {
		sum := 0.0
		for c := 0; c < cols; c++ {
			v := yPred.At(r, c)
			if v < 0 || v > 1 {
				t.Errorf("row %d: probability out of range %g", r, v)
			}
			sum += v
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("row %d: probabilities sum to %g", r, sum)
		}
	}
}

func TestLayerShapes(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	net := testNet(t, rng)
	x, _ := testBatch(rng)
	yPred := net.Fprop(x)
	rows, cols := yPred.Dims()
	if rows != batch || cols != 2 {
		t.Errorf("output dims %dx%d expect %dx2", rows, cols, batch)
	}
}
