package main

import (
	"context"
	"crypto/tls"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"slidepress/internal/config"
	"slidepress/internal/handlers"
	"slidepress/internal/services"
)

var serveFlagKeys = map[string]string{
	"bind":            "server.host",
	"port":            "server.port",
	"tls":             "server.tls.enabled",
	"tls-cert":        "server.tls.cert",
	"tls-key":         "server.tls.key",
	"tls-min-version": "server.tls.min_version",
}

func newServeCmd() *cobra.Command {
	desc := `Serve a rendered presentation over HTTP

  Serves <outdir> together with the build history API. TLS is enabled with
  --tls or the server.tls.* configuration keys.`

	cmd := &cobra.Command{
		Use:   "serve <outdir>",
		Short: "Serve a rendered presentation over HTTP",
		Long:  desc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, serveFlagKeys)
			if err != nil {
				return err
			}

			st, err := os.Stat(args[0])
			if err != nil {
				return errors.Wrap(err, "Must provide an existing output directory")
			}
			if !st.IsDir() {
				return errors.Errorf("%s is not a directory", args[0])
			}

			s, err := openSession(cfg, true)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			router := handlers.SetupRoutes(args[0], handlers.NewBuildHandler(s.registry, services.NewRenderState()), nil)
			return serveHTTP(ctx, cfg.Server, router)
		},
	}

	cmd.Flags().StringP("bind", "b", "localhost", "address to serve on")
	cmd.Flags().StringP("port", "p", "8123", "port to serve on")
	cmd.Flags().Bool("tls", false, "serve over HTTPS")
	cmd.Flags().String("tls-cert", "", "TLS certificate file")
	cmd.Flags().String("tls-key", "", "TLS key file")
	cmd.Flags().String("tls-min-version", "1.2", "minimum TLS version (1.0 to 1.3)")

	return cmd
}

// serveHTTP serves handler until ctx is done.
func serveHTTP(ctx context.Context, cfg config.ServerConfig, handler http.Handler) error {
	server := &http.Server{
		Addr:    cfg.Addr(),
		Handler: handler,
	}

	errCh := make(chan error, 1)

	// Configure TLS if enabled
	if cfg.TLS.Enabled {
		server.TLSConfig = &tls.Config{
			MinVersion: getTLSVersion(cfg.TLS.MinVersion),
		}

		log.Printf("Starting HTTPS server on https://%s/", cfg.Addr())
		log.Printf("TLS Certificate: %s", cfg.TLS.CertFile)
		log.Printf("TLS Key: %s", cfg.TLS.KeyFile)
		log.Printf("TLS Min Version: %s", cfg.TLS.MinVersion)

		go func() { errCh <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile) }()
	} else {
		log.Printf("Starting HTTP server on http://%s/", cfg.Addr())
		if cfg.Host != "localhost" && cfg.Host != "127.0.0.1" {
			log.Printf("Warning: serving unencrypted HTTP on %s", cfg.Host)
		}

		go func() { errCh <- server.ListenAndServe() }()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdown)
	}
}

// getTLSVersion converts string version to tls.Version constant
func getTLSVersion(version string) uint16 {
	switch version {
	case "1.0":
		return tls.VersionTLS10
	case "1.1":
		return tls.VersionTLS11
	case "1.2":
		return tls.VersionTLS12
	case "1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}
