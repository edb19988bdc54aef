// Package main provides the local API server for the desktop front end.
// Desktop clients communicate via REST/WebSocket on localhost:8090.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kimhsiao/leadbook/cmd/desktop/handlers"
	"github.com/kimhsiao/leadbook/internal/config"
	"github.com/kimhsiao/leadbook/internal/logging"
	"github.com/kimhsiao/leadbook/internal/services"
)

const serviceName = "leadbook-desktop"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	v := viper.New()
	var configFile string

	cmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Serve the lead book to the desktop front end",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := config.Load(v, configFile)
			if err != nil {
				return err
			}
			log := logging.New(stderr, logging.LogLevel(settings.Log.Level), logging.Format(settings.Log.Format))
			return serve(cmd.Context(), settings, log)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "config file")
	flags.String("addr", "", "listen address (default 127.0.0.1:8090)")
	flags.String("data", "", "lead store file")
	flags.String("backend", "", "storage backend: json or sqlite")
	_ = v.BindPFlag("desktop.addr", flags.Lookup("addr"))
	_ = v.BindPFlag("storage.path", flags.Lookup("data"))
	_ = v.BindPFlag("storage.backend", flags.Lookup("backend"))

	cmd.SetArgs(args)
	cmd.SetOut(stderr)
	cmd.SetErr(stderr)
	return cmd.ExecuteContext(ctx)
}

// serve runs the API until ctx is cancelled, then saves the store.
func serve(ctx context.Context, settings *config.Settings, log *logging.Logger) (err error) {
	svc, err := services.Open(settings, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := svc.Close(); closeErr != nil {
			log.Error("failed to save leads on shutdown", closeErr)
			if err == nil {
				err = closeErr
			}
		}
	}()
	if warning := svc.LoadWarning(); warning != nil {
		log.Warn("started with an empty lead list", map[string]any{"cause": warning.Error()})
	}

	hub := NewWSHub(log)
	defer hub.Close()
	svc.SetEventCallback(hub.Broadcast)

	ln, err := net.Listen("tcp", settings.Desktop.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           newMux(svc, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Serve(ln)
	}()
	log.Info("server started", map[string]any{
		"addr":  ln.Addr().String(),
		"store": svc.Location(),
		"leads": svc.Len(),
	})

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown incomplete", map[string]any{"cause": err.Error()})
	}
	return nil
}

// newMux registers the REST and WebSocket routes behind localOnly.
func newMux(svc *services.LeadService, hub *WSHub) http.Handler {
	leadHandler := handlers.NewLeadHandler(svc)
	exportHandler := handlers.NewExportHandler(svc)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","service":%q,"leads":%d,"dirty":%t,"clients":%d}`,
			serviceName, svc.Len(), svc.Dirty(), hub.ClientCount())
	})

	mux.HandleFunc("/api/leads", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			leadHandler.ListLeads(w, r)
		case http.MethodPost:
			leadHandler.CreateLead(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/leads/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			leadHandler.GetLead(w, r)
		case http.MethodPatch:
			leadHandler.UpdateLead(w, r)
		case http.MethodDelete:
			leadHandler.DeleteLead(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/leads/at/{index}", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPatch:
			leadHandler.UpdateLeadAt(w, r)
		case http.MethodDelete:
			leadHandler.DeleteLeadAt(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/save", leadHandler.Save)

	mux.HandleFunc("/api/export", exportHandler.Export)
	mux.HandleFunc("/api/backup", exportHandler.Backup)
	mux.HandleFunc("/api/backups", exportHandler.ListBackups)
	mux.HandleFunc("/api/restore", exportHandler.Restore)

	mux.HandleFunc("/ws", HandleWebSocket(hub))
	return localOnly(mux)
}
