package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-workforce-client/internal/config"
	"github.com/jrsteele09/go-workforce-client/internal/devserver"
	"github.com/jrsteele09/go-workforce-client/internal/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const appName = "workforce dev"

func main() {
	_ = godotenv.Load()
	for {
		if err := run(); err != nil {
			log.Error().Err(err).Msg("dev server failed, restarting")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.Load(os.Getenv("WORKFORCE_CONFIG"))
	if err != nil {
		return err
	}
	logger.Init(c.GetLogLevel(), c.GetLogFormat())
	displayAppname(appName)

	dev, err := devserver.New(devserver.WithEnv(c.GetEnv()), devserver.WithLogger(logger.Component("devserver")))
	if err != nil {
		return err
	}
	defer dev.Close()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", dev)

	server := &http.Server{Addr: c.GetDevServerPort(), Handler: mux}
	errc := make(chan error, 1)
	go func() { errc <- listenAndServe(server) }()

	select {
	case err := <-errc:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(server, dev)
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server, dev *devserver.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Push handlers block until their subscriber goes; drop them first.
	dev.Close()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
