package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/vpat-cli/internal/grid"
	"github.com/sells-group/vpat-cli/internal/model"
	"github.com/sells-group/vpat-cli/internal/monitoring"
	"github.com/sells-group/vpat-cli/internal/pipeline"
	"github.com/sells-group/vpat-cli/internal/provider"
)

var servePort int

// runRequest triggers one pipeline invocation over HTTP.
type runRequest struct {
	Pipeline  string   `json:"pipeline"`
	Workbook  string   `json:"workbook"`
	Sheet     string   `json:"sheet"`
	Docs      []string `json:"docs"`
	Checklist string   `json:"checklist"`
	Out       string   `json:"out"`
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start an HTTP server that triggers pipeline runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		ai, err := initProvider()
		if err != nil {
			return err
		}

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Content-Type"},
		}))

		r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/runs", func(w http.ResponseWriter, req *http.Request) {
			var body runRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
			if body.Workbook == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "workbook is required"})
				return
			}

			auditor := pipeline.NewAuditor(ctx, st, body.Pipeline)
			if auditor == nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "run could not be recorded"})
				return
			}

			go runPipeline(ctx, ai, body, auditor)

			writeJSON(w, http.StatusAccepted, map[string]string{
				"status": "accepted",
				"run_id": auditor.RunID(),
			})
		})

		r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
			snap, err := monitoring.NewCollector(st).Collect(req.Context(), 24)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "stats unavailable"})
				return
			}
			writeJSON(w, http.StatusOK, snap)
		})

		r.Get("/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
			run, err := st.GetRun(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
				return
			}
			writeJSON(w, http.StatusOK, run)
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
			srv.Shutdown(context.Background())
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// runMu serializes pipeline execution: runs accepted over HTTP execute one
// at a time. The grid is mutated in place with no locking of its own, so
// two runs against the same workbook must never overlap.
var runMu sync.Mutex

// runPipeline executes one requested pipeline in the background. Outcomes
// land in the audit store; the HTTP caller polls GET /runs/{id}.
func runPipeline(ctx context.Context, ai provider.Provider, req runRequest, auditor *pipeline.Auditor) {
	runMu.Lock()
	defer runMu.Unlock()

	if err := executeRun(ctx, ai, req, auditor); err != nil {
		zap.L().Error("run failed",
			zap.String("run", auditor.RunID()),
			zap.String("pipeline", req.Pipeline),
			zap.Error(err),
		)
	}
}

// executeRun dispatches one run request. The pipeline functions close the
// audit run record themselves; every failure path that aborts before a
// pipeline takes ownership must finish the record here, or the run would
// sit in the store as running forever.
func executeRun(ctx context.Context, ai provider.Provider, req runRequest, auditor *pipeline.Auditor) error {
	wb, err := openWorkbook(req.Workbook, req.Sheet)
	if err != nil {
		auditor.Finish(ctx, &model.RunSummary{Pipeline: req.Pipeline}, err)
		return err
	}

	switch req.Pipeline {
	case "extract":
		_, err = pipeline.Extract(ctx, cfg, wb, req.Docs, auditor)
		return err
	case "interpret":
		_, err = pipeline.Interpret(ctx, cfg, wb, ai, auditor)
		return err
	case "quality":
		runCfg := *cfg
		if req.Checklist != "" {
			runCfg.Checklist.Path = req.Checklist
		}
		outPath := req.Out
		if outPath == "" {
			outPath = "quality.xlsx"
		}
		out, err := grid.NewXLSX(outPath, "Quality")
		if err != nil {
			auditor.Finish(ctx, &model.RunSummary{Pipeline: req.Pipeline}, err)
			return err
		}
		_, err = pipeline.Quality(ctx, &runCfg, wb, out, ai, auditor)
		return err
	default:
		err = eris.Errorf("unknown pipeline %q", req.Pipeline)
		auditor.Finish(ctx, &model.RunSummary{Pipeline: req.Pipeline}, err)
		return err
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
