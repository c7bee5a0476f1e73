package main

import (
	"flag"
	"net/http"
	"os"
	"strings"
	"time"

	"nodegraph_poc/pkg"
	"nodegraph_poc/src/datastore"
	"nodegraph_poc/src/logger"
	"nodegraph_poc/src/model"

	"github.com/joho/godotenv"
)

// Local stand-in for the graph backend. Serves small fixed lists on the
// same paths the store fetches from.

var fixtures = map[pkg.Resource][]pkg.Record{
	pkg.ResourceNodes: {
		pkg.Record(`{"id":1,"label":"Seneca"}`),
		pkg.Record(`{"id":2,"label":"Epictetus"}`),
		pkg.Record(`{"id":3,"label":"Marcus Aurelius"}`),
	},
	pkg.ResourceEdges: {
		pkg.Record(`{"source":1,"target":2}`),
		pkg.Record(`{"source":2,"target":3}`),
	},
	pkg.ResourceQuotes: {
		pkg.Record(`{"node":1,"text":"Luck is what happens when preparation meets opportunity."}`),
		pkg.Record(`{"node":3,"text":"The impediment to action advances action."}`),
	},
}

func main() {
	addr := flag.String("addr", ":3001", "listen address")
	delay := flag.Duration("delay", 0, "delay before answering /nodes")
	fail := flag.String("fail", "", "comma separated resources that answer 500")
	malformed := flag.String("malformed", "", "comma separated resources that answer invalid JSON")
	flag.Parse()

	_ = godotenv.Load()
	if err := logger.InitLogger(model.LogConfig{Level: "info", Format: "console", Output: "stdout"}); err != nil {
		os.Exit(1)
	}

	failing := toSet(*fail)
	broken := toSet(*malformed)

	mux := http.NewServeMux()
	for _, r := range pkg.Resources {
		mux.HandleFunc("GET /"+string(r), func(w http.ResponseWriter, req *http.Request) {
			if r == pkg.ResourceNodes && *delay > 0 {
				time.Sleep(*delay)
			}
			logger.Info().Str("path", req.URL.Path).Msg("request")

			switch {
			case failing[r]:
				http.Error(w, "forced failure", http.StatusInternalServerError)
				return
			case broken[r]:
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`[{"id":`))
				return
			}

			body, err := datastore.EncodeList(fixtures[r])
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(body)
		})
	}

	logger.Info().Str("addr", *addr).Msg("mock graph backend listening")
	if err := http.ListenAndServe(*addr, mux); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func toSet(csv string) map[pkg.Resource]bool {
	set := make(map[pkg.Resource]bool)
	for _, name := range strings.Split(csv, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		r, err := pkg.ParseResource(name)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid flag")
		}
		set[r] = true
	}
	return set
}
