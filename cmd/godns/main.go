package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"
)

var (
	// discards everything until initLogger adds handlers
	logger = NewLogger()
)

func main() {

	var configFile string
	flag.StringVar(&configFile, "c", "godns.conf", "Look for godns toml-formatting config file in this directory")
	flag.Parse()

	var err error
	if settings, err = LoadSettings(configFile); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if err := initLogger(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	handler, err := NewHandler(settings)
	if err != nil {
		logger.Error("godns start failed: %s", err)
		logger.Close()
		os.Exit(1)
	}

	server := NewServer(settings.Server, handler, 5*time.Second)
	server.Run()

	var api *APIServer
	if settings.API.Enable {
		api = NewAPIServer(settings.API.Addr(), handler)
		api.Run()
	}

	logger.Info("godns %s start", settings.Version)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)

	<-sig
	logger.Info("signal received, stopping")

	server.Shutdown()
	if api != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		api.Shutdown(ctx)
		cancel()
	}
	logger.Close()
}

func initLogger() error {
	if settings.Log.Stdout {
		if err := logger.SetLogger("console", nil); err != nil {
			return err
		}
	}

	if settings.Log.File != "" {
		config := map[string]interface{}{"file": settings.Log.File}
		if err := logger.SetLogger("file", config); err != nil {
			return err
		}
	}

	level, err := settings.Log.LogLevel()
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	return nil
}
