package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/pci-audit/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only run history API",
	RunE: func(cmd *cobra.Command, args []string) error {
		port := servePort
		if port == 0 {
			if err := cfg.Validate("serve"); err != nil {
				return err
			}
			port = cfg.Server.Port
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(st),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func newRouter(st store.Store) http.Handler {
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

	r.Route("/api/runs", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			runs, err := st.ListRuns(req.Context(), 100)
			if err != nil {
				serveError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, runs)
		})
		r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
			run, err := st.GetRun(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				http.Error(w, `{"error":"run not found"}`, http.StatusNotFound)
				return
			}
			writeJSON(w, http.StatusOK, run)
		})
		r.Get("/{id}/summary", func(w http.ResponseWriter, req *http.Request) {
			rows, err := st.GetSummary(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				serveError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, rows)
		})
		r.Get("/{id}/midpoints", func(w http.ResponseWriter, req *http.Request) {
			rows, err := st.GetSummary(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				serveError(w, err)
				return
			}

			fc := geojson.FeatureCollection{}
			for i := range rows {
				row := &rows[i]
				if row.Lat == 0 && row.Lon == 0 {
					continue
				}
				fc.Features = append(fc.Features, &geojson.Feature{
					Geometry: geom.NewPointFlat(geom.XY, []float64{row.Lon, row.Lat}),
					Properties: map[string]any{
						"key":            row.Key,
						"street_name":    row.StreetName,
						"classification": row.Classification,
						"delta":          row.Delta,
						"imagery_url":    row.ImageryURL,
						"panorama_url":   row.PanoramaURL,
					},
				})
			}
			writeJSON(w, http.StatusOK, &fc)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("serve: encode response", zap.Error(err))
	}
}

func serveError(w http.ResponseWriter, err error) {
	zap.L().Error("serve: request failed", zap.Error(err))
	http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
