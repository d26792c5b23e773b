package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"verify-service/internal/config"
	"verify-service/internal/factory"
	"verify-service/internal/handler"
	tlsmanager "verify-service/internal/tls"
	"verify-service/internal/util"
)

func main() {
	cfg := config.LoadConfig()

	f, err := factory.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()
	defer util.Sync()

	router := handler.NewRouter(f.AuthHandler, f.UserHandler, f.HealthHandler())

	servers := make([]*http.Server, 0, 2)

	if cfg.Server.EnableTLS {
		tlsMgr, err := tlsmanager.NewManager(cfg)
		if err != nil {
			util.Fatal("failed to initialize TLS", zap.Error(err))
		}
		tlsConfig, err := tlsMgr.TLSConfig()
		if err != nil {
			util.Fatal("failed to build TLS config", zap.Error(err))
		}

		tlsServer := &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.TLSPort),
			Handler:      router,
			TLSConfig:    tlsConfig,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		}
		servers = append(servers, tlsServer)

		go func() {
			util.Info("HTTPS server listening", zap.Int("port", cfg.Server.TLSPort))
			if err := tlsServer.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
				util.Fatal("HTTPS server failed", zap.Error(err))
			}
		}()

		// Plain listener answers ACME challenges and redirects the rest
		httpServer := &http.Server{
			Addr:         cfg.GetServerAddress(),
			Handler:      tlsMgr.HTTPHandler(redirectToHTTPS(cfg)),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		}
		servers = append(servers, httpServer)

		go func() {
			util.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				util.Fatal("HTTP server failed", zap.Error(err))
			}
		}()
	} else {
		httpServer := &http.Server{
			Addr:         cfg.GetServerAddress(),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		}
		servers = append(servers, httpServer)

		go func() {
			util.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				util.Fatal("HTTP server failed", zap.Error(err))
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	util.Info("Shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			util.Error("Server shutdown failed", zap.Error(err))
		}
	}

	util.Info("Shutdown complete")
}

func redirectToHTTPS(cfg *config.Config) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if cfg.Server.Domain != "" {
			host = cfg.Server.Domain
		}
		target := fmt.Sprintf("https://%s%s", host, r.URL.RequestURI())
		http.Redirect(w, r, target, http.StatusMovedPermanently)
	})
}
