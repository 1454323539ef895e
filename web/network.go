// Package web has a web based interface for network training and visualisation.
package web

import (
	"encoding/gob"
	"fmt"
	"html/template"
	"math/rand"
	"os"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/chunduriv/vision/img"
	"github.com/chunduriv/vision/nnet"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
)

// Network and associated training / test data and configuration
type Network struct {
	*NetworkData
	*nnet.Network
	Data      map[string]nnet.Data
	Labels    map[string][]int32
	test      *nnet.TestBase
	conn      *websocket.Conn
	trainData *nnet.Dataset
	rng       *rand.Rand
	testRng   *rand.Rand
	updated   bool
	running   bool
	stop      bool
	sync.Mutex
}

// Embedded structs used to persist state to file
type NetworkData struct {
	Model   string
	Conf    nnet.Config
	Epoch   int
	Stats   []nnet.Stats
	Pred    map[string][]int32
	Params  []LayerData
	History []HistoryData
}

type LayerData struct {
	Layer        int
	WRows, WCols int
	Weights      []float64
	Biases       []float64
}

type HistoryData struct {
	Stats nnet.Stats
	Conf  nnet.Config
}

// Create a new network and load config from data given model name
func NewNetwork(model string) (*Network, error) {
	n := &Network{test: nnet.NewTestBase()}
	log.Info().Str("model", model).Msg("load model")
	var err error
	n.NetworkData, err = LoadNetwork(model, false)
	if err != nil {
		return nil, err
	}
	if err := n.Init(n.Conf); err != nil {
		return nil, err
	}
	if err := n.Import(); err != nil {
		return nil, err
	}
	return n, nil
}

// Initialise the network
func (n *Network) Init(conf nnet.Config) error {
	log.Info().Str("dataSet", conf.DataSet).Msg("init network")
	var err error
	if n.Data, err = nnet.LoadData(conf.DataSet); err != nil {
		return err
	}
	n.rng = nnet.SetSeed(conf.RandSeed)
	n.testRng = nnet.SetSeed(conf.RandSeed)
	for key, d := range n.Data {
		if set, ok := d.(*img.Data); ok {
			set.Augment(conf.Distort && key == "train", conf.Normalise, n.rng)
		}
	}
	n.trainData = nnet.NewDataset(n.Data["train"], conf.TrainBatch, conf.MaxSamples, n.rng)
	if n.Network, err = nnet.New(conf, n.trainData.Shape(), n.rng); err != nil {
		return err
	}
	if n.DebugLevel >= 1 {
		fmt.Println(n.Network)
	}
	if _, err = n.test.Init(conf, n.Data, n.testRng); err != nil {
		return err
	}
	n.test.Predict()
	n.Labels = make(map[string][]int32)
	for key, dset := range n.test.Data {
		n.Labels[key] = make([]int32, dset.Samples)
		dset.Label(seq(dset.Samples), n.Labels[key])
	}
	return nil
}

// Initialise for new training run
func (n *Network) Start(conf nnet.Config, lock bool) error {
	if lock {
		n.Lock()
		defer n.Unlock()
	}
	if err := n.Init(conf); err != nil {
		return err
	}
	n.test.Reset()
	log.Info().Msg("init weights")
	n.InitWeights(n.rng)
	n.Epoch = 0
	n.updated = false
	return nil
}

// Perform training run in the background
func (n *Network) Train(restart bool) error {
	log.Info().Str("model", n.Model).Bool("restart", restart).Msg("train")
	if restart {
		if n.Epoch != 0 || n.updated {
			if err := n.Start(n.Conf, false); err != nil {
				return err
			}
		}
		n.Epoch = 1
	} else if n.Epoch > 0 {
		n.Epoch++
	}
	if n.Epoch == 0 || n.Epoch > n.MaxEpoch {
		return nil
	}
	n.running = true
	n.stop = false
	go func() {
		epoch := n.Epoch
		done := false
		quit := false
		start := time.Now()
		for !done && !quit {
			loss := nnet.TrainEpoch(n.Network, n.trainData, epoch)
			done = n.test.Test(n.Network, epoch, loss, start)
			epoch, quit = n.nextEpoch(epoch, done)
		}
		n.Lock()
		n.running = false
		n.stop = false
		n.Unlock()
		log.Info().Bool("quit", quit).Msg("train: end")
	}()
	return nil
}

func (n *Network) nextEpoch(epoch int, done bool) (int, bool) {
	quit := false
	n.Lock()
	n.Epoch = epoch
	// check for interrupt
	if n.stop {
		n.stop = false
		n.running = false
		quit = true
	}
	// update predictions for each image
	for key, pred := range n.test.Pred {
		if arr, ok := n.Pred[key]; !ok || len(arr) != len(pred) {
			n.Pred[key] = make([]int32, len(pred))
		}
		copy(n.Pred[key], pred)
	}
	// update history
	if done && !quit && len(n.test.Stats) > 0 {
		n.History = append(n.History, HistoryData{
			Stats: n.test.Stats[len(n.test.Stats)-1].Copy(),
			Conf:  n.Config,
		})
	}
	n.Unlock()
	// notify via websocket
	if n.conn != nil {
		msg := []byte(strconv.Itoa(epoch))
		if err := n.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Error().Err(err).Msg("nextEpoch: error writing to websocket")
		}
	}
	// save state to disk
	n.Lock()
	n.Export()
	err := SaveNetwork(n.NetworkData, false)
	n.Unlock()
	if err != nil {
		log.Error().Err(err).Msg("nextEpoch: error saving network")
	}
	return epoch + 1, quit
}

func (n *Network) heading() template.HTML {
	s := fmt.Sprintf(`%s: epoch <span id="epoch">%d</span> of %d`, n.Model, n.Epoch, n.MaxEpoch)
	return template.HTML(s)
}

// Export current state prior to saving to file
func (n *Network) Export() {
	n.Stats = n.test.Stats
	n.Params = []LayerData{}
	if n.test.Net == nil || n.test.Net.Layers == nil {
		return
	}
	for i, layer := range n.test.Net.Layers {
		if l, ok := layer.(nnet.ParamLayer); ok {
			W, B := l.Params()
			rows, cols := W.Dims()
			d := LayerData{Layer: i, WRows: rows, WCols: cols}
			d.Weights = append(d.Weights, W.RawMatrix().Data...)
			d.Biases = append(d.Biases, B.RawMatrix().Data...)
			n.Params = append(n.Params, d)
		}
	}
}

// Import current state after loading from file
func (n *Network) Import() error {
	n.test.Stats = n.Stats
	if n.Epoch == 0 {
		log.Info().Msg("init weights")
		n.InitWeights(n.rng)
		return nil
	}
	if len(n.Params) == 0 {
		return nil
	}
	log.Info().Msg("import weights")
	nlayers := len(n.Network.Layers)
	for _, p := range n.Params {
		if p.Layer >= nlayers {
			return errors.Errorf("layer %d import error: network has %d layers total", p.Layer, nlayers)
		}
		layer, ok := n.Network.Layers[p.Layer].(nnet.ParamLayer)
		if !ok {
			return errors.Errorf("layer %d import error: not a ParamLayer", p.Layer)
		}
		W, _ := layer.Params()
		rows, cols := W.Dims()
		if rows != p.WRows || cols != p.WCols {
			return errors.Errorf("layer %d import error: shape mismatch - have %dx%d - expect %dx%d",
				p.Layer, p.WRows, p.WCols, rows, cols)
		}
		layer.SetParams(mat.NewDense(p.WRows, p.WCols, p.Weights), mat.NewDense(1, len(p.Biases), p.Biases))
	}
	n.Network.CopyTo(n.test.Net)
	return nil
}

// Encode data in gob format and save to file under nnet.DataDir
func SaveNetwork(data *NetworkData, reset bool) error {
	model := data.Model
	filePath := path.Join(nnet.DataDir, model+".state")
	if reset {
		if err := data.Conf.Save(model + ".net"); err != nil {
			return err
		}
		os.Remove(filePath)
		return nil
	}
	f, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(*data)
}

// Read back gob encoded data file, if not found or reset is set then load default config.
func LoadNetwork(model string, reset bool) (data *NetworkData, err error) {
	data = &NetworkData{
		Model:   model,
		Stats:   []nnet.Stats{},
		Pred:    map[string][]int32{},
		Params:  []LayerData{},
		History: []HistoryData{},
	}
	if !reset {
		if err = loadGob(model+".state", data); err != nil {
			reset = true
		}
	}
	if reset {
		data.Conf, err = nnet.LoadConfig(model + ".net")
	}
	return data, err
}

func loadGob(name string, data *NetworkData) error {
	filePath := path.Join(nnet.DataDir, name)
	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()
	log.Info().Str("file", name).Msg("loading network state")
	return gob.NewDecoder(f).Decode(data)
}

func seq(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = i
	}
	return s
}
