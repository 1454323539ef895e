package nnet

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Layer interface type represents one layer of the neural net.
// Inputs and gradients are dense matrices with one row per sample.
type Layer interface {
	Init(inShape []int, rng *rand.Rand)
	OutShape(inShape []int) []int
	Fprop(in *mat.Dense) *mat.Dense
	Bprop(grad *mat.Dense) *mat.Dense
	ToString() string
}

// ParamLayer is a layer with weight and bias parameters
type ParamLayer interface {
	Layer
	InitParams(scale float64, normal bool, rng *rand.Rand)
	Params() (W, B *mat.Dense)
	SetParams(W, B *mat.Dense)
	UpdateParams(eta, weightDecay float64)
}

// OutputLayer is the final layer in the stack
type OutputLayer interface {
	Layer
	Loss(yOneHot, yPred *mat.Dense) float64
}

// Layer configuration details
type LayerConfig struct {
	Type string
	Data json.RawMessage
}

type ConfigLayer interface {
	Marshal() LayerConfig
}

// Unmarshal JSON data and construct new layer
func (l LayerConfig) Unmarshal() Layer {
	switch l.Type {
	case "linear":
		cfg := new(Linear)
		return cfg.unmarshal(l.Data)
	case "activation":
		cfg := new(Activation)
		return cfg.unmarshal(l.Data)
	case "softmax":
		return &softmax{}
	default:
		panic("invalid layer type: " + l.Type)
	}
}

func (l LayerConfig) String() string {
	return l.Unmarshal().ToString()
}

// Linear fully connected layer, implements ParamLayer interface.
type Linear struct {
	Nout int
}

func (c Linear) Marshal() LayerConfig {
	return LayerConfig{Type: "linear", Data: marshal(c)}
}

func (c Linear) ToString() string {
	return fmt.Sprintf("linear %+v", c)
}

func (c *Linear) unmarshal(data json.RawMessage) Layer {
	unmarshal(data, c)
	return &linear{Linear: *c}
}

type linear struct {
	Linear
	nin    int
	w, b   *mat.Dense
	dw, db *mat.Dense
	in     *mat.Dense
	out    *mat.Dense
}

func (l *linear) Init(inShape []int, rng *rand.Rand) {
	l.nin = Prod(inShape)
	l.w = mat.NewDense(l.nin, l.Nout, nil)
	l.b = mat.NewDense(1, l.Nout, nil)
	l.dw = mat.NewDense(l.nin, l.Nout, nil)
	l.db = mat.NewDense(1, l.Nout, nil)
}

func (l *linear) OutShape(inShape []int) []int {
	return []int{l.Nout}
}

func (l *linear) InitParams(scale float64, normal bool, rng *rand.Rand) {
	wdata := l.w.RawMatrix().Data
	for i := range wdata {
		if normal {
			wdata[i] = rng.NormFloat64() * scale
		} else {
			wdata[i] = (2*rng.Float64() - 1) * scale
		}
	}
	bdata := l.b.RawMatrix().Data
	for i := range bdata {
		bdata[i] = 0
	}
}

func (l *linear) Params() (W, B *mat.Dense) {
	return l.w, l.b
}

func (l *linear) SetParams(W, B *mat.Dense) {
	l.w.Copy(W)
	l.b.Copy(B)
}

func (l *linear) Fprop(in *mat.Dense) *mat.Dense {
	l.in = in
	rows, _ := in.Dims()
	if l.out == nil || !dimsEqual(l.out, rows, l.Nout) {
		l.out = mat.NewDense(rows, l.Nout, nil)
	}
	l.out.Mul(in, l.w)
	bias := l.b.RawMatrix().Data
	out := l.out.RawMatrix()
	for r := 0; r < rows; r++ {
		row := out.Data[r*out.Stride : r*out.Stride+l.Nout]
		for i, bv := range bias {
			row[i] += bv
		}
	}
	return l.out
}

func (l *linear) Bprop(grad *mat.Dense) *mat.Dense {
	l.dw.Mul(l.in.T(), grad)
	rows, _ := grad.Dims()
	db := l.db.RawMatrix().Data
	for i := range db {
		db[i] = 0
	}
	g := grad.RawMatrix()
	for r := 0; r < rows; r++ {
		row := g.Data[r*g.Stride : r*g.Stride+l.Nout]
		for i, gv := range row {
			db[i] += gv
		}
	}
	dIn := mat.NewDense(rows, l.nin, nil)
	dIn.Mul(grad, l.w.T())
	return dIn
}

// Gradients are summed over the batch so the step is scaled by 1/n here.
func (l *linear) UpdateParams(eta, weightDecay float64) {
	n, _ := l.in.Dims()
	step := eta / float64(n)
	w := l.w.RawMatrix().Data
	dw := l.dw.RawMatrix().Data
	for i := range w {
		w[i] -= step*dw[i] + weightDecay*w[i]
	}
	b := l.b.RawMatrix().Data
	db := l.db.RawMatrix().Data
	for i := range b {
		b[i] -= step * db[i]
	}
}

// Sigmoid, tanh or relu activation layer.
type Activation struct {
	Atype string
}

func (c Activation) Marshal() LayerConfig {
	return LayerConfig{Type: "activation", Data: marshal(c)}
}

func (c Activation) ToString() string {
	return fmt.Sprintf("activation %+v", c)
}

func (c *Activation) unmarshal(data json.RawMessage) Layer {
	unmarshal(data, c)
	a := &activation{Activation: *c}
	switch c.Atype {
	case "relu":
		a.fn = func(x float64) float64 { return math.Max(x, 0) }
		a.deriv = func(x float64) float64 {
			if x > 0 {
				return 1
			}
			return 0
		}
	case "tanh":
		a.fn = math.Tanh
		a.deriv = func(x float64) float64 { y := math.Tanh(x); return 1 - y*y }
	case "sigmoid":
		a.fn = func(x float64) float64 { return 1 / (1 + math.Exp(-x)) }
		a.deriv = func(x float64) float64 { y := 1 / (1 + math.Exp(-x)); return y * (1 - y) }
	default:
		panic("invalid activation type: " + c.Atype)
	}
	return a
}

type activation struct {
	Activation
	fn    func(float64) float64
	deriv func(float64) float64
	nfeat int
	in    *mat.Dense
	out   *mat.Dense
}

func (l *activation) Init(inShape []int, rng *rand.Rand) {
	l.nfeat = Prod(inShape)
}

func (l *activation) OutShape(inShape []int) []int {
	return inShape
}

func (l *activation) Fprop(in *mat.Dense) *mat.Dense {
	l.in = in
	rows, cols := in.Dims()
	if l.out == nil || !dimsEqual(l.out, rows, cols) {
		l.out = mat.NewDense(rows, cols, nil)
	}
	src := in.RawMatrix()
	dst := l.out.RawMatrix()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			dst.Data[r*dst.Stride+c] = l.fn(src.Data[r*src.Stride+c])
		}
	}
	return l.out
}

func (l *activation) Bprop(grad *mat.Dense) *mat.Dense {
	rows, cols := grad.Dims()
	dIn := mat.NewDense(rows, cols, nil)
	src := l.in.RawMatrix()
	g := grad.RawMatrix()
	d := dIn.RawMatrix()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			d.Data[r*d.Stride+c] = g.Data[r*g.Stride+c] * l.deriv(src.Data[r*src.Stride+c])
		}
	}
	return dIn
}

// Softmax output layer with cross entropy loss.
type Softmax struct{}

func (c Softmax) Marshal() LayerConfig {
	return LayerConfig{Type: "softmax"}
}

func (c Softmax) ToString() string {
	return "softmax"
}

type softmax struct {
	out *mat.Dense
}

func (l *softmax) Init(inShape []int, rng *rand.Rand) {}

func (l *softmax) OutShape(inShape []int) []int {
	return inShape
}

func (l *softmax) ToString() string {
	return "softmax"
}

func (l *softmax) Fprop(in *mat.Dense) *mat.Dense {
	rows, cols := in.Dims()
	if l.out == nil || !dimsEqual(l.out, rows, cols) {
		l.out = mat.NewDense(rows, cols, nil)
	}
	src := in.RawMatrix()
	dst := l.out.RawMatrix()
	for r := 0; r < rows; r++ {
		row := src.Data[r*src.Stride : r*src.Stride+cols]
		max := row[0]
		for _, v := range row[1:] {
			if v > max {
				max = v
			}
		}
		sum := 0.0
		out := dst.Data[r*dst.Stride : r*dst.Stride+cols]
		for i, v := range row {
			out[i] = math.Exp(v - max)
			sum += out[i]
		}
		for i := range out {
			out[i] /= sum
		}
	}
	return l.out
}

// The output gradient is computed as yPred - yOneHot by the trainer, which
// already folds in the softmax jacobian, so this is a pass through.
func (l *softmax) Bprop(grad *mat.Dense) *mat.Dense {
	return grad
}

// Cross entropy loss summed over the batch.
func (l *softmax) Loss(yOneHot, yPred *mat.Dense) float64 {
	rows, cols := yPred.Dims()
	y := yOneHot.RawMatrix()
	p := yPred.RawMatrix()
	loss := 0.0
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if yv := y.Data[r*y.Stride+c]; yv != 0 {
				loss -= yv * math.Log(math.Max(p.Data[r*p.Stride+c], 1e-12))
			}
		}
	}
	return loss
}

// Prod returns the product of the dims
func Prod(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

func dimsEqual(m *mat.Dense, rows, cols int) bool {
	r, c := m.Dims()
	return r == rows && c == cols
}

func unmarshal(data json.RawMessage, v interface{}) {
	if err := json.Unmarshal(data, v); err != nil {
		panic(err)
	}
}
