package img

import (
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Types of image transformations
type TransType int

const NoTrans TransType = 0

const (
	Scale TransType = 1 << iota
	Rotate
	Elastic
	HorizFlip
	Crop
	Normalise
)

var (
	GrayTrans = Scale | Rotate | Elastic
	RGBTrans  = HorizFlip | Crop
)

var transTypeNames = map[TransType]string{
	Scale:     "Scale",
	Rotate:    "Rotate",
	Elastic:   "Elastic",
	HorizFlip: "HorizFlip",
	Crop:      "Crop",
	Normalise: "Normalise",
}

func (t TransType) String() string {
	if t == NoTrans {
		return "None"
	}
	s := []string{}
	for key, name := range transTypeNames {
		if t&key != 0 {
			s = append(s, name)
		}
	}
	sort.Strings(s)
	return strings.Join(s, " ")
}

var (
	MaxScale     = 0.15
	MaxRotate    = 15.0
	ElasticScale = 0.5
	KernelSize   = 9
	KernelSigma  = 4.0
	CropPixels   = 4
)

// Transformer applies a sequence of image transformations to a batch.
// Each op is a pure function of the source image: the source is never written.
type Transformer struct {
	Amount float64
	Trans  TransType
	data   *Data
	w, h   int
	rng    []*rand.Rand
	conv   Convolution
}

// Create a new transformer object which applies a sequence of image transformations
func NewTransformer(data *Data, trans TransType, rng *rand.Rand) *Transformer {
	threads := runtime.GOMAXPROCS(0)
	b := data.Images[0].Bounds()
	t := &Transformer{Amount: 1, Trans: trans, data: data, w: b.Dx(), h: b.Dy()}
	for i := 0; i < threads; i++ {
		t.rng = append(t.rng, rand.New(rand.NewSource(rng.Int63())))
	}
	t.conv = NewConv(gaussian1d(KernelSigma, KernelSize), KernelSize, t.w, t.h)
	return t
}

// Transform a batch of images in parallel
func (t *Transformer) TransformBatch(index []int, dst []Image) ([]Image, error) {
	if dst == nil {
		dst = make([]Image, len(index))
	}
	var g errgroup.Group
	queue := make(chan int, len(index))
	for i := range index {
		queue <- i
	}
	close(queue)
	for thread := range t.rng {
		thread := thread
		g.Go(func() error {
			for i := range queue {
				var err error
				if dst[i], err = t.Transform(t.data.Images[index[i]], thread); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dst, nil
}

// Perform one or more image transforms
func (t *Transformer) Transform(src Image, thread int) (Image, error) {
	rng := t.rng[thread]
	img := src
	if t.Trans&(Scale|Rotate|Elastic) != 0 {
		img = t.affine(img, thread)
	}
	if t.Trans&HorizFlip != 0 && rng.Float64() > 0.5 {
		img = FlipHoriz(img)
	}
	if t.Trans&Crop != 0 {
		off := int(float64(CropPixels)*t.Amount + 0.5)
		ox := rng.Intn(2*off+1) - off
		oy := rng.Intn(2*off+1) - off
		if ox != 0 || oy != 0 {
			img = shift(img, ox, oy)
		}
	}
	if t.Trans&Normalise != 0 {
		return t.normalise(img)
	}
	return img, nil
}

// Flip the image about the vertical axis
func FlipHoriz(src Image) Image {
	w := src.Bounds().Dx()
	return remap(src, func(x, y int) (int, int) { return w - x - 1, y })
}

// Random crop: pad with edge reflection and shift by the given offset,
// output size matches the input.
func shift(src Image, ox, oy int) Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	return remap(src, func(x, y int) (int, int) { return wrap(x-ox, w), wrap(y-oy, h) })
}

// Resize the image to the given size using bilinear interpolation.
func Resize(src Image, width, height int) Image {
	b := src.Bounds()
	sw, sh := b.Dx(), b.Dy()
	if sw == width && sh == height {
		return src
	}
	dst := NewImageSize(src, width, height)
	xscale := float32(sw) / float32(width)
	yscale := float32(sh) / float32(height)
	for ch := 0; ch < src.Channels(); ch++ {
		in := src.Pixels(ch)
		out := dst.Pixels(ch)
		for y := 0; y < height; y++ {
			yv := (float32(y)+0.5)*yscale - 0.5
			iy := int(math.Floor(float64(yv)))
			yf := yv - float32(iy)
			for x := 0; x < width; x++ {
				xv := (float32(x)+0.5)*xscale - 0.5
				ix := int(math.Floor(float64(xv)))
				xf := xv - float32(ix)
				avg0 := sample(in, ix, iy, sw, sh)*(1-xf) + sample(in, ix+1, iy, sw, sh)*xf
				avg1 := sample(in, ix, iy+1, sw, sh)*(1-xf) + sample(in, ix+1, iy+1, sw, sh)*xf
				out[x+y*width] = avg0*(1-yf) + avg1*yf
			}
		}
	}
	return dst
}

func (t *Transformer) normalise(src Image) (Image, error) {
	channels := src.Channels()
	if len(t.data.Mean) != channels || len(t.data.StdDev) != channels {
		return src, fmt.Errorf("error applying normalisation - missing mean and stddev")
	}
	dst := NewImageLike(src)
	for ch := 0; ch < channels; ch++ {
		pix := dst.Pixels(ch)
		for i, val := range src.Pixels(ch) {
			pix[i] = (val - t.data.Mean[ch]) / t.data.StdDev[ch]
		}
	}
	return dst, nil
}

// Random affine distortion: scale, rotation and elastic displacement fields
// are combined into a single per pixel offset then sampled bilinearly.
func (t *Transformer) affine(src Image, thread int) Image {
	rng := t.rng[thread]
	dx := make([]float32, t.w*t.h)
	dy := make([]float32, t.w*t.h)
	var elX, elY float32
	if t.Trans&Elastic != 0 {
		ux := make([]float32, t.w*t.h)
		uy := make([]float32, t.w*t.h)
		for i := range ux {
			ux[i] = rng.Float32()*2 - 1
			uy[i] = rng.Float32()*2 - 1
		}
		t.conv.Apply(ux, dx)
		t.conv.Apply(uy, dy)
		elX = float32(t.Amount*ElasticScale) * float32(t.w)
		elY = float32(t.Amount*ElasticScale) * float32(t.h)
	}
	var sx, sy float32
	if t.Trans&Scale != 0 {
		sx = float32(t.Amount*MaxScale) * (2*rng.Float32() - 1)
		sy = float32(t.Amount*MaxScale) * (2*rng.Float32() - 1)
	}
	var sina, cosa float32
	if t.Trans&Rotate != 0 {
		angle := t.Amount * MaxRotate * (math.Pi / 180) * (2*rng.Float64() - 1)
		sa, ca := math.Sincos(angle)
		sina, cosa = float32(sa), float32(ca-1)
	}
	for y := 0; y < t.h; y++ {
		ym := float32(2*y-t.h+1) / 2
		for x := 0; x < t.w; x++ {
			xm := float32(2*x-t.w+1) / 2
			dx[x+y*t.w] = dx[x+y*t.w]*elX + xm*(sx+cosa) - ym*sina
			dy[x+y*t.w] = dy[x+y*t.w]*elY + ym*(sy+cosa) + xm*sina
		}
	}
	dst := NewImageLike(src)
	for ch := 0; ch < src.Channels(); ch++ {
		in := src.Pixels(ch)
		out := dst.Pixels(ch)
		for y := 0; y < t.h; y++ {
			for x := 0; x < t.w; x++ {
				pos := x + y*t.w
				xv := float32(x) + dx[pos]
				yv := float32(y) + dy[pos]
				ix, iy := int(xv), int(yv)
				xf, yf := xv-float32(ix), yv-float32(iy)
				avg0 := sample(in, ix, iy, t.w, t.h)*(1-xf) + sample(in, ix+1, iy, t.w, t.h)*xf
				avg1 := sample(in, ix, iy+1, t.w, t.h)*(1-xf) + sample(in, ix+1, iy+1, t.w, t.h)*xf
				out[pos] = avg0*(1-yf) + avg1*yf
			}
		}
	}
	return dst
}

// copy the image remapping source coordinates with fn
func remap(src Image, fn func(x, y int) (int, int)) Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := NewImageLike(src)
	for ch := 0; ch < src.Channels(); ch++ {
		in := src.Pixels(ch)
		out := dst.Pixels(ch)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				sx, sy := fn(x, y)
				out[x+y*w] = in[sx+sy*w]
			}
		}
	}
	return dst
}

func sample(pix []float32, x, y, w, h int) float32 {
	if x < 0 || x >= w || y < 0 || y >= h {
		return 0
	}
	return pix[x+y*w]
}

// reflect coordinates off the image border
func wrap(x, dx int) int {
	if x < 0 {
		return -x - 1
	}
	if x >= dx {
		return 2*dx - x - 1
	}
	return x
}
