package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flitsinc/go-bridge/internal/api"
	"github.com/flitsinc/go-bridge/internal/config"
	"github.com/flitsinc/go-bridge/internal/exchangelog"
	"github.com/flitsinc/go-bridge/internal/ledger"
	"github.com/flitsinc/go-bridge/internal/portalloc"
	"github.com/flitsinc/go-bridge/internal/ready"
	"github.com/flitsinc/go-bridge/internal/submission"
	"github.com/flitsinc/go-bridge/internal/surface"
	"github.com/flitsinc/go-bridge/internal/web"
)

func main() {
	cfg := config.Load()

	var store *exchangelog.Store
	if cfg.DBPath != "" {
		db, err := exchangelog.Open(cfg.DBPath)
		if err != nil {
			log.Fatalf("open exchange log: %v", err)
		}
		defer db.Close()
		store = exchangelog.NewStore(db)
	}

	alloc := portalloc.New(cfg.Host, cfg.BasePort, cfg.PortRange, cfg.Roots)
	listener, port, err := alloc.Allocate()
	if err != nil {
		log.Fatalf("allocate port: %v", err)
	}
	defer alloc.Cleanup()

	reqLedger := ledger.New()
	latch := ready.NewLatch()
	hub := surface.NewHub()

	apiServer := &api.Server{
		Ledger:                reqLedger,
		Hub:                   hub,
		Ready:                 latch,
		Assembler:             &submission.Assembler{},
		Log:                   store,
		Port:                  port,
		DefaultTimeoutMinutes: cfg.DefaultTimeoutMinutes,
		ReadyTimeout:          time.Duration(cfg.ReadyTimeoutMS) * time.Millisecond,
		MaxBodyBytes:          cfg.MaxBodyBytes,
	}
	hub.OnMessage = apiServer.DispatchSurfaceMessage
	hub.OnLastDetach = latch.Reset

	webServer := &web.Server{Dir: cfg.WebDir}
	mux := http.NewServeMux()
	mux.Handle("/", apiServer.Handler())
	mux.Handle("/surface/assets/", http.StripPrefix("/surface/assets/", webServer.Handler()))

	httpServer := &http.Server{
		Handler:           loggingMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("bridged listening on %s", listener.Addr())
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	// Drain first so every parked /request exchange writes its terminal
	// answer before the listener goes away.
	reqLedger.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
	_ = httpServer.Close()
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}
