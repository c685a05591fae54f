package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/altolabs/clefshift/internal/adapters/midifile"
	"github.com/altolabs/clefshift/internal/adapters/omr"
	"github.com/altolabs/clefshift/internal/adapters/preprocess"
	"github.com/altolabs/clefshift/internal/adapters/render"
	"github.com/altolabs/clefshift/internal/adapters/rest"
	"github.com/altolabs/clefshift/internal/adapters/sqlite"
	"github.com/altolabs/clefshift/internal/adapters/store"
	"github.com/altolabs/clefshift/internal/config"
	"github.com/altolabs/clefshift/internal/core/clef"
	"github.com/altolabs/clefshift/internal/core/domain"
	"github.com/altolabs/clefshift/internal/core/ports"
	"github.com/altolabs/clefshift/internal/core/services"
	"github.com/altolabs/clefshift/internal/core/transpose"
	"github.com/altolabs/clefshift/internal/worker"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the conversion HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			return runServer(settings)
		},
	}
}

func runServer(settings config.Settings) error {
	if err := os.MkdirAll(settings.Upload.Dir, 0o755); err != nil {
		return err
	}

	// Driven adapters first: storage, then the pipeline collaborators.
	var taskStore ports.TaskStore
	var storeCloser func() error

	switch settings.Storage.Driver {
	case "sqlite":
		db, err := sqlite.NewStore(settings.Storage.Path)
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize task store: %v", err)
		}
		taskStore = db
		storeCloser = db.Close
	default:
		taskStore = store.NewMemory()
		storeCloser = func() error { return nil }
	}
	defer storeCloser()

	geo := clef.NewGeometry()
	geo.SetMaxLedgerLines(settings.Clef.MaxLedgerLines)

	var recognizer ports.Recognizer
	if settings.OMR.BaseURL != "" {
		var creds *clientcredentials.Config
		if settings.OMR.ClientID != "" {
			creds = &clientcredentials.Config{
				ClientID:     settings.OMR.ClientID,
				ClientSecret: settings.OMR.ClientSecret,
				TokenURL:     settings.OMR.TokenURL,
			}
		}
		recognizer = omr.NewRemote(settings.OMR.BaseURL, creds)
	} else {
		recognizer = omr.NewBasic(geo, domain.Clef(settings.Clef.SourceClef))
	}

	svc := services.NewOrchestrator(
		taskStore,
		preprocess.NewLocal(),
		recognizer,
		transpose.NewEngine(geo),
		render.NewRenderer(settings.Render.Width, settings.Render.Height),
		midifile.NewWriter(),
		services.Options{
			WorkDir:    settings.Upload.Dir,
			Timeout:    settings.Tasks.Timeout,
			Capacity:   settings.Tasks.Capacity,
			TargetClef: domain.Clef(settings.Clef.TargetClef),
		},
	)

	pool := worker.NewPool(svc.Run, settings.Tasks.Capacity)
	pool.Start(settings.Tasks.Workers)
	defer pool.Stop()

	handler := rest.NewHandler(svc, pool, settings.Upload.MaxBytes())

	srv := &http.Server{
		Addr:              settings.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()
	log.Printf("clefshift API listening on http://%s", settings.Server.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Expired tasks are reaped in the background so abandoned uploads do
	// not pin disk space or capacity forever.
	if settings.Tasks.TTL > 0 {
		go runSweeper(ctx, svc, settings.Tasks.TTL)
	}

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}
	return nil
}

func runSweeper(ctx context.Context, svc *services.Orchestrator, ttl time.Duration) {
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.SweepExpired(ctx, ttl)
		}
	}
}
