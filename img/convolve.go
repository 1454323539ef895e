package img

import "math"

func gaussian1d(sigma float64, size int) []float32 {
	kernel := make([]float32, 2*size+1)
	for x := -size; x <= size; x++ {
		d2 := float64(x * x)
		kernel[x+size] = float32(math.Exp(-d2/(2*sigma*sigma)) / (math.Sqrt(2*math.Pi) * sigma))
	}
	return kernel
}

// Convolution to apply kernel to image
type Convolution interface {
	Apply(in, out []float32)
}

// Convolution with a 1d separable kernel, normalised at the borders
type conv struct {
	w, h  int
	ksize int
	kdata []float32
}

func NewConv(kernel []float32, ksize, width, height int) Convolution {
	return &conv{w: width, h: height, ksize: ksize, kdata: kernel}
}

func (c *conv) Apply(in, out []float32) {
	temp := make([]float32, c.w*c.h)
	for x := 0; x < c.w; x++ {
		start := maxi(x-c.ksize, 0)
		end := mini(x+c.ksize, c.w-1)
		var sum float32
		for ix := start; ix <= end; ix++ {
			sum += c.kdata[x-ix+c.ksize]
		}
		for y := 0; y < c.h; y++ {
			var val float32
			for ix := start; ix <= end; ix++ {
				val += in[ix+y*c.w] * c.kdata[x-ix+c.ksize]
			}
			temp[x+y*c.w] = val / sum
		}
	}
	for y := 0; y < c.h; y++ {
		start := maxi(y-c.ksize, 0)
		end := mini(y+c.ksize, c.h-1)
		var sum float32
		for iy := start; iy <= end; iy++ {
			sum += c.kdata[y-iy+c.ksize]
		}
		for x := 0; x < c.w; x++ {
			var val float32
			for iy := start; iy <= end; iy++ {
				val += temp[x+iy*c.w] * c.kdata[y-iy+c.ksize]
			}
			out[x+y*c.w] = val / sum
		}
	}
}

func mini(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxi(a, b int) int {
	if a > b {
		return a
	}
	return b
}
