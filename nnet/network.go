// Package nnet contains routines for constructing, training and testing neural networks.
package nnet

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Network type represents a multilayer neural network model.
type Network struct {
	Config
	Layers  []Layer
	Sched   Schedule
	inShape []int
}

// New function creates a new network with the given layers.
func New(conf Config, inShape []int, rng *rand.Rand) (*Network, error) {
	n := &Network{Config: conf, inShape: []int{Prod(inShape)}}
	shape := n.inShape
	for _, l := range conf.Layers {
		layer := l.Unmarshal()
		layer.Init(shape, rng)
		n.Layers = append(n.Layers, layer)
		shape = layer.OutShape(shape)
	}
	var err error
	if n.Sched, err = conf.Schedule(); err != nil {
		return nil, err
	}
	return n, nil
}

// Initialise network weights using a linear or normal distribution.
// Weights for each layer are scaled by 1/sqrt(nin)
func (n *Network) InitWeights(rng *rand.Rand) {
	shape := n.inShape
	for _, layer := range n.Layers {
		if l, ok := layer.(ParamLayer); ok {
			nin := Prod(shape)
			l.InitParams(1/math.Sqrt(float64(nin)), n.NormalWeights, rng)
		}
		shape = layer.OutShape(shape)
	}
}

// Copy weights and bias arrays to destination net
func (n *Network) CopyTo(net *Network) {
	for i, layer := range n.Layers {
		if l, ok := layer.(ParamLayer); ok {
			W, B := l.Params()
			net.Layers[i].(ParamLayer).SetParams(W, B)
		}
	}
}

// Accessor for output layer
func (n *Network) OutLayer() OutputLayer {
	return n.Layers[len(n.Layers)-1].(OutputLayer)
}

// Feed forward the input to get the predicted output
func (n *Network) Fprop(input *mat.Dense) *mat.Dense {
	pred := input
	for i, layer := range n.Layers {
		if n.DebugLevel >= 3 {
			fmt.Printf("layer %d input\n%v\n", i, mat.Formatted(pred))
		}
		pred = layer.Fprop(pred)
	}
	return pred
}

// Predict output probabilities for the input batch, fills classes with the
// index of the most probable class per sample if it is not nil.
func (n *Network) Predict(input *mat.Dense, classes []int32) *mat.Dense {
	yPred := n.Fprop(input)
	if classes != nil {
		rows, cols := yPred.Dims()
		for r := 0; r < rows && r < len(classes); r++ {
			best := 0
			for c := 1; c < cols; c++ {
				if yPred.At(r, c) > yPred.At(r, best) {
					best = c
				}
			}
			classes[r] = int32(best)
		}
	}
	return yPred
}

// Calculate the error from the predicted versus actual values
// if pred slice is not nil then also return the predicted output classes.
func (n *Network) Error(dset *Dataset, pred []int32) float64 {
	errors := 0
	dset.Rewind()
	classes := make([]int32, dset.BatchSize)
	for batch := 0; batch < dset.Batches; batch++ {
		x, y, _ := dset.NextBatch()
		rows, _ := x.Dims()
		n.Predict(x, classes[:rows])
		for i := 0; i < rows; i++ {
			if classes[i] != y[i] {
				errors++
			}
		}
		if pred != nil {
			copy(pred[batch*dset.BatchSize:], classes[:rows])
		}
		if n.DebugLevel >= 2 || (n.DebugLevel >= 1 && batch == 0) {
			fmt.Printf("batch %d errors=%d\n", batch, errors)
		}
	}
	return float64(errors) / float64(dset.Samples)
}

// Print network description
func (n *Network) String() string {
	s := make([]string, len(n.Layers))
	shape := n.inShape
	for i, layer := range n.Layers {
		s[i] = fmt.Sprintf("%2d: %-25s %v", i, layer.ToString(), shape)
		shape = layer.OutShape(shape)
	}
	return fmt.Sprintf("%s\n== Network ==\n%s", n.Config, strings.Join(s, "\n"))
}

// Create random number generator with given seed, or random seed if seed <= 0
func SetSeed(seed int64) *rand.Rand {
	if seed <= 0 {
		seed = time.Now().UTC().UnixNano()
	}
	fmt.Println("random seed =", seed)
	return rand.New(rand.NewSource(seed))
}

// Exit in case of error
func CheckErr(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
