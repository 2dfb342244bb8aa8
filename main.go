package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	configDir := flag.String("config", "", "Directory containing pong.yaml")
	flag.Parse()

	cfg, err := LoadConfig(*configDir)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	InitLogger(cfg.Log)

	db, err := OpenDB(cfg.DBPath)
	if err != nil {
		logrus.Fatalf("open database: %v", err)
	}
	defer db.Close()

	hub := NewHub(cfg, db)
	go hub.Run()

	mux := SetupRoutes(hub)

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		logrus.WithField("addr", cfg.Addr).Info("server starting")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			logrus.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-stop
	logrus.Info("shutting down")
	server.Close()
}
