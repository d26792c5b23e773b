package tls

import (
	"crypto/tls"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"verify-service/internal/config"
	"verify-service/internal/util"
)

// Manager provisions certificates for the public listener. In autocert mode
// certificates come from Let's Encrypt and are cached on disk; otherwise a
// static certificate/key pair is loaded from config paths.
type Manager struct {
	config   *config.ServerConfig
	autocert *autocert.Manager
}

func NewManager(cfg *config.Config) (*Manager, error) {
	serverConfig := cfg.Server

	m := &Manager{config: &serverConfig}

	if serverConfig.AutoCert {
		if serverConfig.Domain == "" {
			return nil, fmt.Errorf("autocert requires a domain")
		}
		m.autocert = &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(serverConfig.Domain),
			Cache:      autocert.DirCache(serverConfig.AutoCertDir),
			Email:      serverConfig.Email,
		}
		util.Info("Autocert manager initialized",
			zap.String("domain", serverConfig.Domain),
			zap.String("cache_dir", serverConfig.AutoCertDir))
	}

	return m, nil
}

// TLSConfig returns the tls.Config for the HTTPS listener.
func (m *Manager) TLSConfig() (*tls.Config, error) {
	if m.autocert != nil {
		return &tls.Config{
			GetCertificate: m.autocert.GetCertificate,
			MinVersion:     tls.VersionTLS12,
		}, nil
	}

	cert, err := tls.LoadX509KeyPair(m.config.CertFile, m.config.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate/key: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// HTTPHandler wraps a fallback handler so ACME HTTP-01 challenges are
// answered on the plain listener. Without autocert it returns the fallback
// unchanged.
func (m *Manager) HTTPHandler(fallback http.Handler) http.Handler {
	if m.autocert != nil {
		return m.autocert.HTTPHandler(fallback)
	}
	return fallback
}
