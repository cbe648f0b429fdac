package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/labor-atlas/internal/model"
	"github.com/sells-group/labor-atlas/internal/quality"
	"github.com/sells-group/labor-atlas/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only archetype query API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(st),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
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
		AllowedMethods: []string{"GET", "OPTIONS"},
	}))

	api := &apiHandler{store: st}
	r.Get("/health", api.health)
	r.Get("/archetypes", api.listArchetypes)
	r.Get("/archetypes/{id}/evidence", api.listEvidence)
	r.Get("/quality", api.qualityReport)
	return r
}

type apiHandler struct {
	store store.Store
}

func (h *apiHandler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// listArchetypes returns archetypes matching the query filters. The
// response always includes the record type, confidence breakdown, and
// existence probability; consumers must never see a bare number.
func (h *apiHandler) listArchetypes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ArchetypeFilter{
		CompanyID: parseID(q.Get("company_id")),
		RoleID:    parseID(q.Get("role_id")),
		Seniority: model.Seniority(q.Get("seniority")),
		Type:      model.RecordType(q.Get("record_type")),
		Limit:     int(parseID(q.Get("limit"))),
		Offset:    int(parseID(q.Get("offset"))),
	}
	if v := q.Get("metro_id"); v != "" {
		id := parseID(v)
		filter.MetroID = &id
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}

	archetypes, err := h.store.QueryArchetypes(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"archetypes": archetypes})
}

func (h *apiHandler) listEvidence(w http.ResponseWriter, r *http.Request) {
	id := parseID(chi.URLParam(r, "id"))
	if id == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid archetype id"})
		return
	}
	evidence, err := h.store.ListEvidence(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"archetype_id": id, "evidence": evidence})
}

func (h *apiHandler) qualityReport(w http.ResponseWriter, r *http.Request) {
	report, err := quality.NewCollector(h.store).Collect(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func parseID(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}

func writeError(w http.ResponseWriter, err error) {
	zap.L().Error("api error", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
