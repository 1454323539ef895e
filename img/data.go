package img

import (
	"encoding/gob"
	"fmt"
	"image"
	"math/rand"

	"github.com/chunduriv/vision/stats"
	"github.com/pkg/errors"
)

func init() {
	gob.Register(&Data{})
	gob.Register(&GrayImage{})
	gob.Register(&RGBImage{})
}

// Image data set which implements the nnet.Data interface
type Data struct {
	Class  []string
	Dims   []int
	Labels []int32
	Mean   []float32
	StdDev []float32
	Images []Image
	trans  *Transformer
}

// Create a new image set
func NewData(classes []string, labels []int32, images []Image) *Data {
	src := images[0]
	b := src.Bounds()
	dims := []int{b.Dy(), b.Dx(), src.Channels()}
	return &Data{Class: classes, Dims: dims, Labels: labels, Images: images}
}

// Len function returns number of images
func (d *Data) Len() int { return len(d.Labels) }

// Classes function returns the class label names
func (d *Data) Classes() []string { return d.Class }

// Shape returns height, width, channels
func (d *Data) Shape() []int { return d.Dims }

// Label returns classification for given images
func (d *Data) Label(index []int, label []int32) {
	for i, ix := range index {
		label[i] = d.Labels[ix]
	}
}

// Set the transformer which is applied when batches of input data are loaded
func (d *Data) SetTrans(t *Transformer) {
	d.trans = t
}

// Augment sets up the standard transforms for this data set: random
// distortions appropriate to the image type when distort is set, plus mean
// and stddev normalisation when normalise is set.
func (d *Data) Augment(distort, normalise bool, rng *rand.Rand) {
	var trans TransType
	if distort {
		if d.Dims[2] == 1 {
			trans = GrayTrans
		} else {
			trans = RGBTrans
		}
	}
	if normalise {
		trans |= Normalise
	}
	if trans != 0 {
		d.SetTrans(NewTransformer(d, trans, rng))
	}
}

// Input returns the scaled input data in buf, applying the augmentation
// transform when one is set.
func (d *Data) Input(index []int, buf []float64) error {
	nfeat := d.nfeat()
	if d.trans == nil {
		for i, ix := range index {
			for j, pix := range d.Images[ix].Pixels(-1) {
				buf[i*nfeat+j] = float64(pix)
			}
		}
		return nil
	}
	temp, err := d.trans.TransformBatch(index, nil)
	if err != nil {
		return errors.Wrap(err, "transform batch")
	}
	for i := range index {
		for j, pix := range temp[i].Pixels(-1) {
			buf[i*nfeat+j] = float64(pix)
		}
	}
	return nil
}

// Image returns given image number
func (d *Data) Image(ix int) image.Image {
	return d.Images[ix]
}

// Slice returns images from start to end
func (d *Data) Slice(start, end int) *Data {
	data := *d
	data.Labels = append([]int32{}, d.Labels[start:end]...)
	data.Images = append([]Image{}, d.Images[start:end]...)
	return &data
}

func (d *Data) nfeat() int {
	n := 1
	for _, dim := range d.Dims {
		n *= dim
	}
	return n
}

// Calculate mean and stddev for each channel over a set of images
func GetStats(imgList ...[]Image) (mean, std []float32) {
	channels := imgList[0][0].Channels()
	stat := make([]*stats.Average, channels)
	for i := range stat {
		stat[i] = new(stats.Average)
	}
	for _, images := range imgList {
		for _, img := range images {
			for ch, s := range stat {
				for _, val := range img.Pixels(ch) {
					s.Add(float64(val))
				}
			}
		}
	}
	mean = make([]float32, channels)
	std = make([]float32, channels)
	for i, s := range stat {
		mean[i] = float32(s.Mean)
		std[i] = float32(s.StdDev)
	}
	fmt.Printf("mean = %.2f stddev = %.2f\n", mean, std)
	return mean, std
}
