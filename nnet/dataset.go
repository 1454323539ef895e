package nnet

import (
	"encoding/gob"
	"fmt"
	"image"
	"math/rand"
	"os"
	"path"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

var (
	DataDir   = dataDir()
	DataTypes = []string{"train", "test", "valid"}
)

func dataDir() string {
	if dir := os.Getenv("VISION_DATA"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return path.Join(home, ".vision", "data")
}

func init() {
	gob.Register(data{})
}

// Data interface type represents the raw data for a training or test set
type Data interface {
	Len() int
	Classes() []string
	Shape() []int
	Label(index []int, label []int32)
	Input(index []int, buf []float64) error
	Image(i int) image.Image
}

// Dataset type encapsulates a set of training, test or validation data.
// The next batch is loaded in the background while the current one trains.
type Dataset struct {
	Data
	Samples   int
	BatchSize int
	Batches   int
	nfeat     int
	xBuffer   []float64
	x         [2]*mat.Dense
	y         [2][]int32
	y1H       [2]*mat.Dense
	rows      [2]int
	indexes   []int
	buf       int
	epoch     int
	batch     int
	rng       *rand.Rand
	grp       errgroup.Group
}

// Create a new Dataset struct, allocate batch buffers and set the batch size and maxSamples
func NewDataset(data Data, batchSize, maxSamples int, rng *rand.Rand) *Dataset {
	d := &Dataset{Data: data, Samples: data.Len(), rng: rng}
	if maxSamples > 0 && d.Samples > maxSamples {
		d.Samples = maxSamples
	}
	if batchSize == 0 || batchSize > d.Samples {
		d.BatchSize = d.Samples
	} else {
		d.BatchSize = batchSize
	}
	d.Batches = d.Samples / d.BatchSize
	if d.Samples%d.BatchSize != 0 {
		d.Batches++
	}
	d.nfeat = Prod(data.Shape())
	d.xBuffer = make([]float64, d.nfeat*d.BatchSize)
	nclass := len(d.Classes())
	for i := range d.x {
		d.x[i] = mat.NewDense(d.BatchSize, d.nfeat, nil)
		d.y[i] = make([]int32, d.BatchSize)
		d.y1H[i] = mat.NewDense(d.BatchSize, nclass, nil)
	}
	d.indexes = make([]int, d.Samples)
	for i := range d.indexes {
		d.indexes[i] = i
	}
	d.loadBatch()
	return d
}

// kick off load of next batch of data in background
func (d *Dataset) loadBatch() {
	buf, batch := d.buf, d.batch
	d.grp.Go(func() error {
		start := batch * d.BatchSize
		end := start + d.BatchSize
		if end > d.Samples {
			end = d.Samples
		}
		rows := end - start
		d.rows[buf] = rows
		index := d.indexes[start:end]
		if err := d.Input(index, d.xBuffer[:rows*d.nfeat]); err != nil {
			return err
		}
		x := d.x[buf].RawMatrix()
		copy(x.Data, d.xBuffer[:rows*d.nfeat])
		d.Label(index, d.y[buf][:rows])
		oneHot := d.y1H[buf].RawMatrix()
		for i := range oneHot.Data {
			oneHot.Data[i] = 0
		}
		for i, label := range d.y[buf][:rows] {
			oneHot.Data[i*oneHot.Stride+int(label)] = 1
		}
		return nil
	})
}

// Get next batch of data, panics if the background load failed
func (d *Dataset) NextBatch() (x *mat.Dense, y []int32, yOneHot *mat.Dense) {
	if err := d.grp.Wait(); err != nil {
		panic(err)
	}
	rows := d.rows[d.buf]
	x = d.x[d.buf].Slice(0, rows, 0, d.nfeat).(*mat.Dense)
	y = d.y[d.buf][:rows]
	yOneHot = d.y1H[d.buf].Slice(0, rows, 0, len(d.Classes())).(*mat.Dense)
	d.batch = (d.batch + 1) % d.Batches
	d.buf = (d.buf + 1) % 2
	d.loadBatch()
	return
}

// Rewind to start of data
func (d *Dataset) Rewind() {
	d.grp.Wait()
	d.epoch = 0
	d.batch = 0
	d.loadBatch()
}

// Called at start of each epoch
func (d *Dataset) NextEpoch() {
	d.grp.Wait()
	d.epoch++
	d.batch = 0
	d.loadBatch()
}

// Shuffle the data set
func (d *Dataset) Shuffle() {
	d.grp.Wait()
	d.indexes = d.rng.Perm(d.Samples)
}

// Load data from disk given the model name.
func LoadData(model string) (d map[string]Data, err error) {
	var data Data
	d = make(map[string]Data)
	for _, key := range DataTypes {
		name := model + "_" + key
		if FileExists(name + ".dat") {
			if data, err = LoadDataFile(name); err != nil {
				return
			}
			d[key] = data
		}
	}
	if _, ok := d["train"]; !ok {
		return nil, errors.Errorf("no training data found for %s under %s", model, DataDir)
	}
	return d, nil
}

// Decode data from file in gob format under DataDir
func LoadDataFile(name string) (Data, error) {
	filePath := path.Join(DataDir, name+".dat")
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "open data file %s", name)
	}
	defer f.Close()
	fmt.Printf("loading data from %s.dat:\t", name)
	var d Data
	if err = gob.NewDecoder(f).Decode(&d); err != nil {
		return nil, errors.Wrapf(err, "decode data file %s", name)
	}
	fmt.Println(append(d.Shape(), d.Len()))
	return d, nil
}

// Encode in gob format and save to file under DataDir
func SaveDataFile(d Data, name string) error {
	if err := os.MkdirAll(DataDir, 0755); err != nil {
		return errors.Wrap(err, "create data dir")
	}
	filePath := path.Join(DataDir, name+".dat")
	f, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "create data file %s", name)
	}
	defer f.Close()
	fmt.Println("saving data to", name+".dat")
	return gob.NewEncoder(f).Encode(&d)
}

// Check if file exists under DataDir
func FileExists(name string) bool {
	filePath := path.Join(DataDir, name)
	_, err := os.Stat(filePath)
	return err == nil
}

type data struct {
	Class  []string
	Dims   []int
	Labels []int32
	Inputs []float64
}

// NewData function creates a new data set which implements the Data interface
func NewData(nclasses int, shape []int, labels []int32, inputs []float64) Data {
	classes := make([]string, nclasses)
	for i := range classes {
		classes[i] = strconv.Itoa(i)
	}
	return data{Class: classes, Dims: shape, Labels: labels, Inputs: inputs}
}

func (d data) Len() int { return len(d.Labels) }

func (d data) Classes() []string { return d.Class }

func (d data) Shape() []int { return d.Dims }

func (d data) Label(index []int, label []int32) {
	for i, ix := range index {
		label[i] = d.Labels[ix]
	}
}

func (d data) Input(index []int, buf []float64) error {
	nfeat := Prod(d.Dims)
	for i, ix := range index {
		copy(buf[i*nfeat:], d.Inputs[ix*nfeat:(ix+1)*nfeat])
	}
	return nil
}

func (d data) Image(i int) image.Image { return nil }
