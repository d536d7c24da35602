package ngrok

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"echovia/internal/config"

	"github.com/sirupsen/logrus"
	"golang.ngrok.com/ngrok/v2"
)

// ErrMissingAuthToken is returned when the tunnel is enabled without a token
var ErrMissingAuthToken = errors.New("ngrok auth token not found, set NGROK_AUTHTOKEN in .env or ngrok.auth_token in the config")

// Service exposes the local API through an ngrok endpoint. A nil *Service
// is a disabled tunnel and every method is a no-op on it.
type Service struct {
	config *config.NgrokConfig
	agent  ngrok.Agent
	tunnel ngrok.EndpointForwarder
	logger *logrus.Logger
}

// NewService returns nil when the tunnel is disabled
func NewService(cfg *config.NgrokConfig, logger *logrus.Logger) (*Service, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.AuthToken == "" {
		return nil, ErrMissingAuthToken
	}

	agent, err := ngrok.NewAgent(ngrok.WithAuthtoken(cfg.AuthToken))
	if err != nil {
		return nil, fmt.Errorf("failed to create ngrok agent: %w", err)
	}

	return &Service{
		config: cfg,
		agent:  agent,
		logger: logger,
	}, nil
}

// StartTunnel forwards the public endpoint to listenAddr, the address the
// API server is bound to.
func (s *Service) StartTunnel(ctx context.Context, listenAddr string) error {
	if s == nil {
		return nil
	}

	upstream := upstreamURL(listenAddr)
	s.logger.WithField("upstream", upstream).Info("Starting ngrok tunnel")

	var opts []ngrok.EndpointOption
	if s.config.Domain != "" {
		opts = append(opts, ngrok.WithURL(s.config.Domain))
	}
	if s.config.EnableAuth {
		opts = append(opts, ngrok.WithTrafficPolicy(oauthPolicy(s.config.AuthProvider)))
	}

	tunnel, err := s.agent.Forward(ctx, ngrok.WithUpstream(upstream), opts...)
	if err != nil {
		return fmt.Errorf("failed to create ngrok tunnel: %w", err)
	}
	s.tunnel = tunnel

	entry := s.logger.WithFields(logrus.Fields{
		"public_url": tunnel.URL().String(),
		"upstream":   upstream,
	})
	if s.config.EnableAuth {
		entry = entry.WithField("oauth_provider", s.config.AuthProvider)
	}
	entry.Info("Ngrok tunnel active")
	return nil
}

// PublicURL returns the tunnel's public URL, or "" when not running
func (s *Service) PublicURL() string {
	if s == nil || s.tunnel == nil {
		return ""
	}
	return s.tunnel.URL().String()
}

// Stop closes the tunnel
func (s *Service) Stop() error {
	if s == nil || s.tunnel == nil {
		return nil
	}
	s.logger.Info("Stopping ngrok tunnel")
	return s.tunnel.Close()
}

// Done is closed when the tunnel goes away. It is nil, and so blocks
// forever, when the tunnel is not running.
func (s *Service) Done() <-chan struct{} {
	if s == nil || s.tunnel == nil {
		return nil
	}
	return s.tunnel.Done()
}

// upstreamURL turns a listen address into something the agent can dial.
// Wildcard hosts are reached through localhost.
func upstreamURL(listenAddr string) string {
	host, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return "http://" + listenAddr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func oauthPolicy(provider string) string {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		provider = "google"
	}
	return fmt.Sprintf(`
on_http_request:
  - actions:
      - type: oauth
        config:
          provider: %s
`, provider)
}
