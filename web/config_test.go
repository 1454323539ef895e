package web

import (
	"testing"

	"github.com/chunduriv/vision/nnet"
)

func TestTemplates(t *testing.T) {
	tmpl, err := NewTemplates()
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"train", "stats", "config", "images", "menu", "head"} {
		if tmpl.Lookup(name) == nil {
			t.Errorf("template %q not defined", name)
		}
	}
}

func TestGetFields(t *testing.T) {
	conf := nnet.Config{DataSet: "mnist", Eta: 0.1, Shuffle: true}
	flds := getFields(conf)
	if len(flds) != len(conf.Fields()) {
		t.Fatalf("have %d fields expect %d", len(flds), len(conf.Fields()))
	}
	byName := map[string]Field{}
	for _, f := range flds {
		byName[f.Name] = f
	}
	if f := byName["DataSet"]; f.Value != "mnist" || f.Boolean {
		t.Errorf("DataSet field: %+v", f)
	}
	if f := byName["Shuffle"]; !f.Boolean || !f.On {
		t.Errorf("Shuffle field: %+v", f)
	}
	if f := byName["Eta"]; f.Value != "0.1" {
		t.Errorf("Eta field: %+v", f)
	}
}

func TestGetLayers(t *testing.T) {
	conf := nnet.Config{}.AddLayers(
		nnet.Linear{Nout: 10},
		nnet.Activation{Atype: "relu"},
		nnet.Softmax{},
	)
	layers := getLayers(conf)
	if len(layers) != 3 {
		t.Fatalf("have %d layers", len(layers))
	}
	if layers[2].Desc != "softmax" {
		t.Errorf("layer 2: %q", layers[2].Desc)
	}
}
