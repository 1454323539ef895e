// Command predict classifies samples from the test set using saved weights
// and prints the top ranked classes for each.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/chunduriv/vision/nnet"
	"github.com/chunduriv/vision/preset"
	"gonum.org/v1/gonum/mat"
)

func main() {
	topk := flag.Int("top", 3, "number of ranked classes to print")
	count := flag.Int("n", 10, "number of samples to classify")
	dset := flag.String("dset", "test", "dataset to sample from")
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Println("usage: predict [opts] <model>")
		os.Exit(1)
	}
	model := flag.Arg(0)
	conf, err := nnet.LoadConfig(model + ".net")
	nnet.CheckErr(err)

	data, err := nnet.LoadData(conf.DataSet)
	nnet.CheckErr(err)
	d, ok := data[*dset]
	if !ok {
		fmt.Printf("no %s dataset for %s\n", *dset, conf.DataSet)
		os.Exit(1)
	}

	rng := nnet.SetSeed(conf.RandSeed)
	net, err := nnet.New(conf, d.Shape(), rng)
	nnet.CheckErr(err)
	err = preset.LoadWeights(net, model)
	nnet.CheckErr(err)

	n := *count
	if n > d.Len() {
		n = d.Len()
	}
	batch := nnet.NewDataset(d, n, n, rng)
	x, y, _ := batch.NextBatch()
	rows, _ := x.Dims()
	yPred := net.Predict(x, nil)
	classes := d.Classes()
	for i := 0; i < rows; i++ {
		probs := mat.Row(nil, i, yPred)
		fmt.Printf("sample %d: label=%s\n", i, classes[y[i]])
		for _, p := range preset.DecodePredictions(probs, classes, *topk) {
			fmt.Printf("  %-10s %6.2f%%\n", p.Class, p.Prob*100)
		}
	}
}
