// Command xor writes the two input xor toy dataset and its default model
// config. Useful as a quick end to end check of the training loop.
package main

import (
	"github.com/chunduriv/vision/nnet"
	"github.com/chunduriv/vision/preset"
)

func main() {
	inputs := []float64{0, 0, 0, 1, 1, 0, 1, 1}
	labels := []int32{0, 1, 1, 0}
	data := nnet.NewData(2, []int{2}, labels, inputs)
	err := nnet.SaveDataFile(data, "xor_train")
	nnet.CheckErr(err)

	conf, err := preset.Build("xor")
	nnet.CheckErr(err)
	err = conf.SaveDefault("xor")
	nnet.CheckErr(err)
}
