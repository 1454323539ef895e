// Command web serves the training monitor at the given address.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/chunduriv/vision/nnet"
	"github.com/chunduriv/vision/web"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	scale = 3
	rows  = 8
	cols  = 10
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	addr := flag.String("addr", ":8080", "listen address")
	user := flag.String("user", "", "username for basic auth, disabled if empty")
	pass := flag.String("pass", "", "password for basic auth")
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Println("usage: web [opts] <model>")
		os.Exit(1)
	}
	model := flag.Arg(0)

	net, err := web.NewNetwork(model)
	nnet.CheckErr(err)

	t, err := web.NewTemplates()
	nnet.CheckErr(err)
	t.AddMenuItem(web.Link{Url: "/train", Name: "train"})
	t.AddMenuItem(web.Link{Url: "/images", Name: "images"})
	t.AddMenuItem(web.Link{Url: "/config", Name: "config"})

	trainPage := web.NewTrainPage(t.Clone(), net)
	imagePage := web.NewImagePage(t.Clone(), net, scale, rows, cols)
	configPage := web.NewConfigPage(t.Clone(), net)

	r := mux.NewRouter()
	r.Handle("/", http.RedirectHandler("/train/stats", http.StatusFound))

	r.Handle("/train", http.RedirectHandler("/train/stats", http.StatusFound))
	r.HandleFunc("/train/{cmd:(?:stats|start|stop|continue)}", trainPage.Base())
	r.HandleFunc("/stats", trainPage.Stats())
	r.HandleFunc("/ws", trainPage.Websocket())

	r.Handle("/images", http.RedirectHandler("/images/train/1", http.StatusFound))
	r.HandleFunc("/images/{inc:(?:all|errors)}", imagePage.Base())
	r.HandleFunc("/images/{dset}/{page:[0-9]+}", imagePage.Base())
	r.HandleFunc("/img/{dset}/{id:[0-9]+}", imagePage.Image())

	r.HandleFunc("/config", configPage.Base())
	r.HandleFunc("/config/load", configPage.Load()).Methods("POST")
	r.HandleFunc("/config/save", configPage.Save()).Methods("POST")
	r.HandleFunc("/config/reset", configPage.Reset())

	var handler http.Handler = r
	if *user != "" {
		handler = web.NewAuthMiddleware(*user, *pass).Middleware(r)
	}
	log.Info().Str("addr", *addr).Msg("serving web page")
	if err := http.ListenAndServe(*addr, handler); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
