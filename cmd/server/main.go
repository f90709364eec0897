package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mr-karan/caskdb/pkg/cask"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tidwall/redcon"
	"github.com/zerodha/logf"
)

var (
	// Version of the build. This is injected at build-time.
	buildString = "unknown"
)

type App struct {
	lo   logf.Logger
	cask *cask.Cask
}

func main() {
	ko, err := initConfig(os.Args[1:])
	if err != nil {
		logf.New(logf.Opts{}).Fatal("error loading config", "error", err)
	}

	lo := initLogger(ko)
	lo.Info("starting caskdb", "version", buildString)

	store, err := initStore(ko, lo)
	if err != nil {
		lo.Fatal("error opening store", "error", err)
	}

	app := &App{
		lo:   lo,
		cask: store,
	}

	if addr := ko.String("app.metrics_address"); addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			lo.Info("serving metrics", "address", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				lo.Error("error serving metrics", "error", err)
			}
		}()
	}

	mux := redcon.NewServeMux()
	mux.HandleFunc("ping", app.ping)
	mux.HandleFunc("quit", app.quit)
	mux.HandleFunc("set", app.set)
	mux.HandleFunc("get", app.get)

	srv := redcon.NewServer(ko.MustString("app.address"),
		mux.ServeRESP,
		func(conn redcon.Conn) bool {
			// use this function to accept or deny the connection.
			return true
		},
		func(conn redcon.Conn, err error) {
			// this is called when the connection has been closed
		},
	)

	// Close the store on shutdown so that segments are synced and the lock is released.
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs

		lo.Info("shutting down")
		if err := srv.Close(); err != nil {
			lo.Error("error stopping server", "error", err)
		}
	}()

	lo.Info("listening", "address", ko.String("app.address"))
	if err := srv.ListenAndServe(); err != nil {
		lo.Error("error running server", "error", err)
	}

	if err := app.cask.Close(); err != nil {
		lo.Fatal("error closing store", "error", err)
	}
}
