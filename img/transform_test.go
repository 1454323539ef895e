package img

import (
	"fmt"
	"image/color"
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"
)

func printArray(in []float32, size int) string {
	s := make([]string, size)
	for i := 0; i < size; i++ {
		s[i] = fmt.Sprintf("%6.3f", in[i*size:(i+1)*size])
	}
	return strings.Join(s, "\n")
}

func diagonal(size int) *GrayImage {
	src := NewGray(size, size)
	for i := 1; i < size-1; i++ {
		src.Set(size-1-i, i, color.Gray{Y: 255})
	}
	return src
}

func testData(images []Image) *Data {
	labels := make([]int32, len(images))
	return NewData([]string{"0", "1"}, labels, images)
}

func TestTransform(t *testing.T) {
	seed := time.Now().UTC().UnixNano()
	rng := rand.New(rand.NewSource(seed))
	src := diagonal(8)
	data := testData([]Image{src})
	trans := NewTransformer(data, GrayTrans, rng)
	t.Logf("\n%s", printArray(src.Pixels(0), 8))

	for _, tt := range []TransType{Scale, Rotate, Elastic} {
		trans.Trans = tt
		dst, err := trans.Transform(src, 0)
		if err != nil {
			t.Fatal(err)
		}
		t.Logf("%s\n%s", tt, printArray(dst.Pixels(0), 8))
		if db, sb := dst.Bounds(), src.Bounds(); db != sb {
			t.Errorf("%s: bounds changed %v => %v", tt, sb, db)
		}
	}
}

func TestTransformBatch(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	images := make([]Image, 20)
	for i := range images {
		images[i] = diagonal(8)
	}
	data := testData(images)
	trans := NewTransformer(data, GrayTrans, rng)
	index := make([]int, len(images))
	for i := range index {
		index[i] = i
	}
	dst, err := trans.TransformBatch(index, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(dst) != len(images) {
		t.Fatalf("have %d images expect %d", len(dst), len(images))
	}
	for i, m := range dst {
		if m == nil {
			t.Fatalf("image %d not transformed", i)
		}
	}
}

func TestFlipHoriz(t *testing.T) {
	src := diagonal(8)
	flip := FlipHoriz(src)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if flip.At(x, y) != src.At(7-x, y) {
				t.Fatalf("flip mismatch at %d,%d", x, y)
			}
		}
	}
	// flip is its own inverse
	back := FlipHoriz(flip)
	for i, v := range back.Pixels(0) {
		if v != src.Pix[i] {
			t.Fatalf("double flip changed pixel %d", i)
		}
	}
}

func TestCrop(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	src := diagonal(8)
	data := testData([]Image{src})
	trans := NewTransformer(data, Crop, rng)
	dst, err := trans.Transform(src, 0)
	if err != nil {
		t.Fatal(err)
	}
	if db, sb := dst.Bounds(), src.Bounds(); db != sb {
		t.Errorf("crop changed bounds %v => %v", sb, db)
	}
}

func TestResize(t *testing.T) {
	src := diagonal(8)
	dst := Resize(src, 16, 12)
	b := dst.Bounds()
	if b.Dx() != 16 || b.Dy() != 12 {
		t.Errorf("resize dims %dx%d expect 16x12", b.Dx(), b.Dy())
	}
	same := Resize(src, 8, 8)
	if same != Image(src) {
		t.Error("resize to same size should return the source")
	}
}

func TestNormalise(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	images := make([]Image, 10)
	for i := range images {
		m := NewGray(8, 8)
		for j := range m.Pix {
			m.Pix[j] = rng.Float32()
		}
		images[i] = m
	}
	data := testData(images)
	data.Mean, data.StdDev = GetStats(images)
	trans := NewTransformer(data, Normalise, rng)
	data.SetTrans(trans)
	buf := make([]float64, 10*64)
	index := make([]int, 10)
	for i := range index {
		index[i] = i
	}
	if err := data.Input(index, buf); err != nil {
		t.Fatal(err)
	}
	mean, vari := 0.0, 0.0
	for _, v := range buf {
		mean += v
	}
	mean /= float64(len(buf))
	for _, v := range buf {
		vari += (v - mean) * (v - mean)
	}
	std := math.Sqrt(vari / float64(len(buf)))
	t.Logf("normalised mean=%.4f stddev=%.4f", mean, std)
	if math.Abs(mean) > 0.01 || math.Abs(std-1) > 0.01 {
		t.Errorf("normalise: mean=%g stddev=%g", mean, std)
	}
}

func TestNormaliseMissingStats(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	data := testData([]Image{diagonal(8)})
	trans := NewTransformer(data, Normalise, rng)
	if _, err := trans.Transform(data.Images[0], 0); err == nil {
		t.Error("expect error when mean and stddev are not set")
	}
}
