package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fedresearch-cli/internal/contacts"
	"github.com/sells-group/fedresearch-cli/internal/model"
	"github.com/sells-group/fedresearch-cli/internal/research"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only status API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initContacts(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate contacts store")
		}

		profiles, err := initProfileStore(ctx)
		if err != nil {
			return err
		}
		defer profiles.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet},
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Get("/api/status", func(w http.ResponseWriter, req *http.Request) {
			window := time.Duration(cfg.Research.FreshnessDays) * 24 * time.Hour
			stats, err := st.Stats(req.Context(), window)
			if err != nil {
				writeError(w, err)
				return
			}
			ledger := research.LoadLedger(cfg.Research.LedgerPath)
			completed, failed := ledger.Counts()
			writeJSON(w, http.StatusOK, map[string]any{
				"entities":         stats,
				"ledger_completed": completed,
				"ledger_failed":    failed,
			})
		})

		r.Get("/api/entities", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query()
			limit, _ := strconv.Atoi(q.Get("limit"))
			if limit <= 0 || limit > 500 {
				limit = 100
			}
			recs, err := st.List(req.Context(), contacts.Filter{
				Kind:     model.EntityKind(q.Get("kind")),
				Contains: q.Get("q"),
				Limit:    limit,
			})
			if err != nil {
				writeError(w, err)
				return
			}
			if recs == nil {
				recs = []contacts.Record{}
			}
			writeJSON(w, http.StatusOK, recs)
		})

		r.Get("/api/profiles/{key}", func(w http.ResponseWriter, req *http.Request) {
			key, err := url.PathUnescape(chi.URLParam(req, "key"))
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad key"})
				return
			}
			profile, err := profiles.Get(req.Context(), key)
			if err != nil {
				writeError(w, err)
				return
			}
			if profile == nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "no profile"})
				return
			}
			writeJSON(w, http.StatusOK, profile)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			// The signal context is already cancelled; give in-flight
			// requests their own drain window.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting status API", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	zap.L().Error("api request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
