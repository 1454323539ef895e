// Package img contains routines for manipulating sets of images.
package img

import (
	"image"
	"image/color"
	"image/draw"
)

var (
	GrayModel = color.ModelFunc(grayModel)
	RGBModel  = color.ModelFunc(rgbModel)
)

// Gray color stored as a float in range 0-1
type Gray struct {
	Y float32
}

func (c Gray) RGBA() (r, g, b, a uint32) {
	y := clampu(c.Y, 0, 1)
	return y, y, y, 0xffff
}

func grayModel(c color.Color) color.Color {
	if _, ok := c.(Gray); ok {
		return c
	}
	r, g, b, _ := c.RGBA()
	return Gray{Y: 0.299*float32(r)/0xffff + 0.587*float32(g)/0xffff + 0.114*float32(b)/0xffff}
}

// RGB color is stored as a float for each channel with values in range 0-1
type RGB struct {
	R, G, B float32
}

func (c RGB) RGBA() (r, g, b, a uint32) {
	return clampu(c.R, 0, 1), clampu(c.G, 0, 1), clampu(c.B, 0, 1), 0xffff
}

func rgbModel(c color.Color) color.Color {
	if _, ok := c.(RGB); ok {
		return c
	}
	r, g, b, _ := c.RGBA()
	return RGB{R: float32(r) / 0xffff, G: float32(g) / 0xffff, B: float32(b) / 0xffff}
}

// Image interface type with additional methods to access the pixel data planes
type Image interface {
	draw.Image
	Pixels(ch int) []float32
	Channels() int
}

func NewImageLike(src Image) Image {
	b := src.Bounds()
	return NewImageSize(src, b.Dx(), b.Dy())
}

func NewImageSize(src Image, width, height int) Image {
	switch src.(type) {
	case *GrayImage:
		return NewGray(width, height)
	case *RGBImage:
		return NewRGB(width, height)
	default:
		panic("invalid image type")
	}
}

// GrayImage type stores the image data as float32 values in row major order.
type GrayImage struct {
	Pix    []float32
	Width  int
	Height int
}

func NewGray(width, height int) *GrayImage {
	return &GrayImage{Pix: make([]float32, width*height), Width: width, Height: height}
}

func (m *GrayImage) Channels() int {
	return 1
}

func (m *GrayImage) ColorModel() color.Model {
	return GrayModel
}

func (m *GrayImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

func (m *GrayImage) GrayAt(x, y int) Gray {
	if x < 0 || x >= m.Width || y < 0 || y >= m.Height {
		return Gray{}
	}
	return Gray{Y: m.Pix[x+y*m.Width]}
}

func (m *GrayImage) At(x, y int) color.Color {
	return m.GrayAt(x, y)
}

func (m *GrayImage) Set(x, y int, c color.Color) {
	if x < 0 || x >= m.Width || y < 0 || y >= m.Height {
		return
	}
	m.Pix[x+y*m.Width] = grayModel(c).(Gray).Y
}

func (m *GrayImage) Pixels(ch int) []float32 {
	return m.Pix
}

// RGBImage type stores the image data as float32 values in row major order
// with the r, g and b color planes stored separately.
type RGBImage struct {
	Pix    []float32
	Width  int
	Height int
}

func NewRGB(width, height int) *RGBImage {
	return &RGBImage{Pix: make([]float32, 3*width*height), Width: width, Height: height}
}

func (m *RGBImage) Channels() int {
	return 3
}

func (m *RGBImage) ColorModel() color.Model {
	return RGBModel
}

func (m *RGBImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

func (m *RGBImage) plane() int {
	return m.Width * m.Height
}

func (m *RGBImage) RGBAt(x, y int) RGB {
	if x < 0 || x >= m.Width || y < 0 || y >= m.Height {
		return RGB{}
	}
	pos := x + y*m.Width
	return RGB{R: m.Pix[pos], G: m.Pix[pos+m.plane()], B: m.Pix[pos+2*m.plane()]}
}

func (m *RGBImage) At(x, y int) color.Color {
	return m.RGBAt(x, y)
}

func (m *RGBImage) Set(x, y int, c color.Color) {
	if x < 0 || x >= m.Width || y < 0 || y >= m.Height {
		return
	}
	rgb := rgbModel(c).(RGB)
	pos := x + y*m.Width
	m.Pix[pos] = rgb.R
	m.Pix[pos+m.plane()] = rgb.G
	m.Pix[pos+2*m.plane()] = rgb.B
}

func (m *RGBImage) Pixels(ch int) []float32 {
	if ch >= 0 && ch <= 2 {
		return m.Pix[ch*m.plane() : (ch+1)*m.plane()]
	}
	return m.Pix
}

func clamp(x, x0, x1 float32) float32 {
	if x < x0 {
		return x0
	}
	if x > x1 {
		return x1
	}
	return x
}

func clampu(x, x0, x1 float32) uint32 {
	return uint32(clamp(x, x0, x1) * 0xffff)
}
