// Package preset has named model definitions with pretrained weight handling.
// A preset bundles a network architecture with its training settings so that a
// model can be instantiated by name, optionally overriding the output class
// count when fine-tuning on a new dataset.
package preset

import (
	"encoding/gob"
	"fmt"
	"os"
	"path"
	"sort"

	"github.com/chunduriv/vision/nnet"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

type options struct {
	classes int
}

type Option func(*options)

// Classes overrides the number of output classes, replacing the output layer
// width so the backbone can be reused on a new labelling.
func Classes(n int) Option {
	return func(o *options) { o.classes = n }
}

type builder func(nclasses int) nnet.Config

var presets = map[string]builder{
	"xor":         xorNet,
	"mnist_mlp":   mnistMLP,
	"mnist_mlp2":  mnistMLP2,
	"cifar10_mlp": cifarMLP,
}

var defaultClasses = map[string]int{
	"xor":         2,
	"mnist_mlp":   10,
	"mnist_mlp2":  10,
	"cifar10_mlp": 10,
}

// Names lists the available presets in sorted order.
func Names() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build instantiates the named preset config.
func Build(name string, opts ...Option) (nnet.Config, error) {
	build, ok := presets[name]
	if !ok {
		return nnet.Config{}, errors.Errorf("unknown preset: %s", name)
	}
	o := options{classes: defaultClasses[name]}
	for _, opt := range opts {
		opt(&o)
	}
	return build(o.classes), nil
}

func xorNet(nclasses int) nnet.Config {
	conf := nnet.Config{
		DataSet:    "xor",
		Eta:        0.5,
		MaxEpoch:   1000,
		LogEvery:   100,
		TrainBatch: 4,
	}
	return conf.AddLayers(
		nnet.Linear{Nout: 8},
		nnet.Activation{Atype: "tanh"},
		nnet.Linear{Nout: nclasses},
		nnet.Softmax{},
	)
}

func mnistMLP(nclasses int) nnet.Config {
	conf := nnet.Config{
		DataSet:    "mnist",
		Eta:        0.1,
		Lambda:     3.0,
		MaxEpoch:   20,
		TrainBatch: 10,
		TestBatch:  100,
		Shuffle:    true,
		Normalise:  true,
	}
	return conf.AddLayers(
		nnet.Linear{Nout: 100},
		nnet.Activation{Atype: "relu"},
		nnet.Linear{Nout: nclasses},
		nnet.Softmax{},
	)
}

func mnistMLP2(nclasses int) nnet.Config {
	conf := nnet.Config{
		DataSet:    "mnist",
		Eta:        0.1,
		Lambda:     3.0,
		MaxEpoch:   40,
		TrainBatch: 100,
		TestBatch:  250,
		Shuffle:    true,
		Distort:    true,
		Normalise:  true,
		StopAfter:  4,
	}
	sched, err := nnet.NewWarmupCosine(1000, 0, 20000, 0, 0.1)
	if err != nil {
		panic(err)
	}
	return conf.WithSchedule(sched).AddLayers(
		nnet.Linear{Nout: 400},
		nnet.Activation{Atype: "relu"},
		nnet.Linear{Nout: 150},
		nnet.Activation{Atype: "relu"},
		nnet.Linear{Nout: nclasses},
		nnet.Softmax{},
	)
}

func cifarMLP(nclasses int) nnet.Config {
	conf := nnet.Config{
		DataSet:    "cifar10",
		Eta:        0.05,
		Lambda:     5.0,
		MaxEpoch:   50,
		TrainBatch: 125,
		TestBatch:  250,
		Shuffle:    true,
		Distort:    true,
		Normalise:  true,
		StopAfter:  6,
	}
	sched, err := nnet.NewWarmupCosine(2000, 2000, 20000, 0, 0.05)
	if err != nil {
		panic(err)
	}
	return conf.WithSchedule(sched).AddLayers(
		nnet.Linear{Nout: 1000},
		nnet.Activation{Atype: "relu"},
		nnet.Linear{Nout: 300},
		nnet.Activation{Atype: "relu"},
		nnet.Linear{Nout: nclasses},
		nnet.Softmax{},
	)
}

type layerParams struct {
	Layer        int
	WRows, WCols int
	W, B         []float64
}

// SaveWeights writes the network parameters in gob format under the data dir.
func SaveWeights(net *nnet.Network, name string) error {
	var params []layerParams
	for i, layer := range net.Layers {
		if l, ok := layer.(nnet.ParamLayer); ok {
			W, B := l.Params()
			rows, cols := W.Dims()
			p := layerParams{Layer: i, WRows: rows, WCols: cols}
			p.W = append(p.W, W.RawMatrix().Data...)
			p.B = append(p.B, B.RawMatrix().Data...)
			params = append(params, p)
		}
	}
	filePath := path.Join(nnet.DataDir, name+".wts")
	f, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "create weights file %s", name)
	}
	defer f.Close()
	fmt.Println("saving weights to", name+".wts")
	return gob.NewEncoder(f).Encode(params)
}

// LoadWeights restores previously saved parameters into the network.
// Every parameter layer must match the saved shapes exactly.
func LoadWeights(net *nnet.Network, name string) error {
	return loadWeights(net, name, false)
}

// LoadBackbone restores saved parameters into matching layers and skips any
// whose shape differs, which is the fine-tuning path: a preset built with a
// new class count keeps its pretrained backbone and reinitialises the output.
// Returns the number of layers skipped.
func LoadBackbone(net *nnet.Network, name string) (int, error) {
	skipped, err := countMismatch(net, name)
	if err != nil {
		return 0, err
	}
	return skipped, loadWeights(net, name, true)
}

func loadWeights(net *nnet.Network, name string, skipMismatch bool) error {
	params, err := readWeights(name)
	if err != nil {
		return err
	}
	for _, p := range params {
		if p.Layer >= len(net.Layers) {
			return errors.Errorf("weights %s: layer %d out of range", name, p.Layer)
		}
		l, ok := net.Layers[p.Layer].(nnet.ParamLayer)
		if !ok {
			return errors.Errorf("weights %s: layer %d has no parameters", name, p.Layer)
		}
		W, _ := l.Params()
		rows, cols := W.Dims()
		if rows != p.WRows || cols != p.WCols {
			if skipMismatch {
				continue
			}
			return errors.Errorf("weights %s: layer %d shape mismatch: have %dx%d want %dx%d",
				name, p.Layer, p.WRows, p.WCols, rows, cols)
		}
		l.SetParams(mat.NewDense(p.WRows, p.WCols, p.W), mat.NewDense(1, len(p.B), p.B))
	}
	return nil
}

func countMismatch(net *nnet.Network, name string) (int, error) {
	params, err := readWeights(name)
	if err != nil {
		return 0, err
	}
	skipped := 0
	for _, p := range params {
		if p.Layer >= len(net.Layers) {
			continue
		}
		if l, ok := net.Layers[p.Layer].(nnet.ParamLayer); ok {
			W, _ := l.Params()
			rows, cols := W.Dims()
			if rows != p.WRows || cols != p.WCols {
				skipped++
			}
		}
	}
	return skipped, nil
}

func readWeights(name string) ([]layerParams, error) {
	filePath := path.Join(nnet.DataDir, name+".wts")
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "open weights file %s", name)
	}
	defer f.Close()
	var params []layerParams
	if err := gob.NewDecoder(f).Decode(&params); err != nil {
		return nil, errors.Wrapf(err, "decode weights file %s", name)
	}
	return params, nil
}

// Prediction is one ranked entry from a model output vector.
type Prediction struct {
	Class string
	Index int
	Prob  float64
}

// DecodePredictions maps a probability vector to the top k ranked class
// labels, most probable first.
func DecodePredictions(probs []float64, classes []string, k int) []Prediction {
	pred := make([]Prediction, len(probs))
	for i, p := range probs {
		pred[i] = Prediction{Index: i, Prob: p}
		if i < len(classes) {
			pred[i].Class = classes[i]
		}
	}
	sort.SliceStable(pred, func(i, j int) bool { return pred[i].Prob > pred[j].Prob })
	if k > 0 && k < len(pred) {
		pred = pred[:k]
	}
	return pred
}
