// Command train runs a training session for the given model from the console.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/chunduriv/vision/img"
	"github.com/chunduriv/vision/nnet"
	"gonum.org/v1/gonum/mat"
)

func predict(net *nnet.Network, dset *nnet.Dataset) {
	dset.Rewind()
	x, y, _ := dset.NextBatch()
	rows, _ := x.Dims()
	classes := make([]int32, rows)
	yPred := net.Predict(x, classes)
	fmt.Printf("predict:\n%.3f\n", mat.Formatted(yPred, mat.Excerpt(3)))
	fmt.Println("classes:", classes)
	fmt.Println("labels: ", y)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: train [opts] <model>")
		os.Exit(1)
	}
	model := os.Args[len(os.Args)-1]
	fmt.Println("load model:", model)
	conf, err := nnet.LoadConfig(model + ".net")
	nnet.CheckErr(err)

	// override config settings from command line
	flag.Float64Var(&conf.Eta, "eta", conf.Eta, "learning rate")
	flag.Float64Var(&conf.Lambda, "lambda", conf.Lambda, "weight decay parameter")
	flag.Int64Var(&conf.RandSeed, "seed", conf.RandSeed, "random number seed")
	flag.IntVar(&conf.MaxEpoch, "epochs", conf.MaxEpoch, "max epochs")
	flag.IntVar(&conf.MaxSamples, "samples", conf.MaxSamples, "max samples")
	flag.IntVar(&conf.TrainBatch, "batch", conf.TrainBatch, "train batch size")
	flag.IntVar(&conf.TestBatch, "testbatch", conf.TestBatch, "test batch size")
	flag.IntVar(&conf.DebugLevel, "debug", conf.DebugLevel, "debug logging level")
	flag.Parse()

	// load training and test data
	data, err := nnet.LoadData(conf.DataSet)
	nnet.CheckErr(err)
	rng := nnet.SetSeed(conf.RandSeed)
	for key, d := range data {
		if set, ok := d.(*img.Data); ok {
			set.Augment(conf.Distort && key == "train", conf.Normalise, rng)
		}
	}
	trainData := nnet.NewDataset(data["train"], conf.TrainBatch, conf.MaxSamples, rng)

	// initialise weights
	trainNet, err := nnet.New(conf, trainData.Shape(), rng)
	nnet.CheckErr(err)
	fmt.Println(trainNet)
	trainNet.InitWeights(rng)
	if conf.DebugLevel >= 1 {
		fmt.Println("== Before ==")
		predict(trainNet, trainData)
	}

	// train the network
	tester, err := nnet.NewTestLogger(conf, data, nnet.SetSeed(conf.RandSeed))
	nnet.CheckErr(err)
	nnet.Train(trainNet, trainData, tester)

	if conf.DebugLevel >= 1 {
		fmt.Println("== After ==")
		predict(trainNet, trainData)
	}
}
