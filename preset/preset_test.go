package preset

import (
	"math/rand"
	"testing"

	"github.com/chunduriv/vision/nnet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNames(t *testing.T) {
	names := Names()
	assert.Contains(t, names, "xor")
	assert.Contains(t, names, "mnist_mlp")
	assert.True(t, sortedStrings(names))
}

func sortedStrings(s []string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] < s[i-1] {
			return false
		}
	}
	return true
}

func TestBuild(t *testing.T) {
	conf, err := Build("mnist_mlp")
	require.NoError(t, err)
	assert.Equal(t, "mnist", conf.DataSet)
	assert.Equal(t, 4, len(conf.Layers))

	_, err = Build("bogus")
	assert.Error(t, err)
}

func TestClassesOverride(t *testing.T) {
	conf, err := Build("mnist_mlp", Classes(5))
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(1))
	net, err := nnet.New(conf, []int{28, 28, 1}, rng)
	require.NoError(t, err)
	x, _ := lastParams(t, net)
	_, cols := x.Dims()
	assert.Equal(t, 5, cols)
}

func TestSaveLoadWeights(t *testing.T) {
	nnet.DataDir = t.TempDir()
	conf, err := Build("xor")
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(1))
	net, err := nnet.New(conf, []int{2}, rng)
	require.NoError(t, err)
	net.InitWeights(rng)
	require.NoError(t, SaveWeights(net, "xor"))

	net2, err := nnet.New(conf, []int{2}, rng)
	require.NoError(t, err)
	require.NoError(t, LoadWeights(net2, "xor"))
	w1, b1 := lastParams(t, net)
	w2, b2 := lastParams(t, net2)
	assert.Equal(t, w1.RawMatrix().Data, w2.RawMatrix().Data)
	assert.Equal(t, b1.RawMatrix().Data, b2.RawMatrix().Data)

	// strict load into a different output width should fail
	conf5, err := Build("xor", Classes(5))
	require.NoError(t, err)
	net5, err := nnet.New(conf5, []int{2}, rng)
	require.NoError(t, err)
	assert.Error(t, LoadWeights(net5, "xor"))

	// backbone load keeps the matching layers and skips the output
	skipped, err := LoadBackbone(net5, "xor")
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
}

// weight and bias matrices of the last parameter layer
func lastParams(t *testing.T, net *nnet.Network) (w, b *mat.Dense) {
	t.Helper()
	for _, layer := range net.Layers {
		if l, ok := layer.(nnet.ParamLayer); ok {
			w, b = l.Params()
		}
	}
	require.NotNil(t, w)
	return w, b
}

func TestDecodePredictions(t *testing.T) {
	probs := []float64{0.1, 0.6, 0.05, 0.25}
	classes := []string{"cat", "dog", "bird", "fish"}
	pred := DecodePredictions(probs, classes, 3)
	require.Equal(t, 3, len(pred))
	assert.Equal(t, Prediction{Class: "dog", Index: 1, Prob: 0.6}, pred[0])
	assert.Equal(t, Prediction{Class: "fish", Index: 3, Prob: 0.25}, pred[1])
	assert.Equal(t, Prediction{Class: "cat", Index: 0, Prob: 0.1}, pred[2])

	// k of zero or more than the class count returns everything
	pred = DecodePredictions(probs, classes, 0)
	assert.Equal(t, 4, len(pred))
	pred = DecodePredictions(probs, classes, 10)
	assert.Equal(t, 4, len(pred))
}
