package web

import (
	"fmt"
	"html/template"
	"image/png"
	"net/http"
	"strconv"

	"github.com/chunduriv/vision/img"
	"github.com/gorilla/mux"
)

type ImagePage struct {
	*Templates
	Dset   string
	Page   int
	Width  int
	Height int
	net    *Network
	errors bool
	scale  int
	rows   int
	cols   int
}

type GridCell struct {
	Url   string
	Title string
	Wrong bool
}

// Base data for handler functions to view the dataset images with their
// predicted labels.
func NewImagePage(t *Templates, net *Network, scale, rows, cols int) *ImagePage {
	p := &ImagePage{net: net, scale: scale, rows: rows, cols: cols, Page: 1}
	p.Templates = t.Select("/images")
	p.AddOption(Link{Name: "all", Url: "/images/all"})
	p.AddOption(Link{Name: "errors", Url: "/images/errors"})
	return p
}

// Handler function for the main image grid
func (p *ImagePage) Base() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.net.Lock()
		defer p.net.Unlock()
		vars := mux.Vars(r)
		if inc, ok := vars["inc"]; ok {
			p.errors = inc == "errors"
			session := p.session(r)
			session.Values["errors"] = p.errors
			session.Save(r, w)
		} else if val, ok := p.session(r).Values["errors"].(bool); ok {
			p.errors = val
		}
		p.Dset = vars["dset"]
		if _, ok := p.net.Data[p.Dset]; !ok {
			p.Dset = "train"
		}
		p.Page, _ = strconv.Atoi(vars["page"])
		if p.Page < 1 {
			p.Page = 1
		}
		if p.Page > p.Pages() {
			p.Page = p.Pages()
		}
		dims := p.net.Data[p.Dset].Shape()
		p.Height, p.Width = p.scale*dims[0], p.scale*dims[1]
		if err := p.ExecuteTemplate(w, "images", p); err != nil {
			logError(w, err)
		}
	}
}

// Handler function to serve a single image as png
func (p *ImagePage) Image() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.net.Lock()
		defer p.net.Unlock()
		vars := mux.Vars(r)
		dset := vars["dset"]
		id, _ := strconv.Atoi(vars["id"])
		data, ok := p.net.Data[dset]
		if !ok || id < 0 || id >= data.Len() {
			http.NotFound(w, r)
			return
		}
		m := data.Image(id)
		if src, ok := m.(img.Image); ok && p.scale > 1 {
			b := src.Bounds()
			m = img.Resize(src, b.Dx()*p.scale, b.Dy()*p.scale)
		}
		w.Header().Set("Content-Type", "image/png")
		png.Encode(w, m)
	}
}

func (p *ImagePage) Heading() template.HTML {
	total := p.count()
	mode := "all"
	if p.errors {
		mode = "errors"
	}
	s := fmt.Sprintf("%s: %s images (%d)", p.Dset, mode, total)
	return template.HTML(s)
}

// indexes of the images to show, filtered to misclassified when the errors
// option is selected
func (p *ImagePage) index() []int {
	labels := p.net.Labels[p.Dset]
	pred := p.net.Pred[p.Dset]
	var ix []int
	for i := range labels {
		if !p.errors || (i < len(pred) && pred[i] != labels[i]) {
			ix = append(ix, i)
		}
	}
	return ix
}

func (p *ImagePage) count() int {
	return len(p.index())
}

func (p *ImagePage) Pages() int {
	perPage := p.rows * p.cols
	n := (p.count() + perPage - 1) / perPage
	if n < 1 {
		n = 1
	}
	return n
}

func (p *ImagePage) Grid() []GridCell {
	classes := p.net.Data[p.Dset].Classes()
	labels := p.net.Labels[p.Dset]
	pred := p.net.Pred[p.Dset]
	ix := p.index()
	perPage := p.rows * p.cols
	start := (p.Page - 1) * perPage
	var cells []GridCell
	for i := start; i < start+perPage && i < len(ix); i++ {
		id := ix[i]
		cell := GridCell{Url: fmt.Sprintf("/img/%s/%d", p.Dset, id)}
		title := classes[labels[id]]
		if id < len(pred) {
			predicted := classes[pred[id]]
			cell.Wrong = pred[id] != labels[id]
			if cell.Wrong {
				title += " => " + predicted
			}
		}
		cell.Title = title
		cells = append(cells, cell)
	}
	return cells
}

func (p *ImagePage) HavePrev() bool { return p.Page > 1 }

func (p *ImagePage) HaveNext() bool { return p.Page < p.Pages() }

func (p *ImagePage) PrevUrl() string {
	return fmt.Sprintf("/images/%s/%d", p.Dset, p.Page-1)
}

func (p *ImagePage) NextUrl() string {
	return fmt.Sprintf("/images/%s/%d", p.Dset, p.Page+1)
}
