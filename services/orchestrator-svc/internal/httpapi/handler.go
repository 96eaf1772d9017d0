// Package httpapi exposes the orchestrator facade over HTTP/JSON: the
// getPlacement / getCriticalPaths / getLatestMetrics / reportCompletion
// operations, plus an admin surface (health, readiness, Prometheus
// metrics, deploy/refine triggers).
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"orchestrator/pkg/apperror"
	"orchestrator/pkg/audit"
	"orchestrator/pkg/cache"
	"orchestrator/pkg/metrics"
	"orchestrator/pkg/orchestration/aggregator"
	"orchestrator/pkg/orchestration/deployer"
	"orchestrator/pkg/orchestration/orchestrator"
	"orchestrator/pkg/orchestration/restypes"
	"orchestrator/pkg/passhash"
	"orchestrator/pkg/ratelimit"
	"orchestrator/services/orchestrator-svc/internal/history"
)

// Handler wires the orchestrator core to net/http. It holds no state of
// its own beyond the core, an optional audit repository, an optional
// JWT manager, an optional distributed snapshot cache, an optional rate
// limiter and audit logger, and a logger; every operation is a thin
// translation to/from JSON.
type Handler struct {
	log     *slog.Logger
	o       *orchestrator.Orchestrator
	hist    *history.Repository
	jwt     *passhash.JWTManager
	snaps   *snapshotCache
	limiter ratelimit.Limiter
	audit   audit.Logger
}

// New creates a Handler bound to the given orchestrator core. hist may
// be nil, in which case deploy/refine passes are not recorded to the
// audit trail. jwt may be nil, in which case reportCompletion accepts
// unauthenticated callers (local dev / tests). snapBackend may be nil,
// in which case getLatestMetrics only ever serves this instance's own
// Monitor snapshots. limiter and auditLogger may both be nil to disable
// rate limiting and audit logging respectively.
func New(log *slog.Logger, o *orchestrator.Orchestrator, hist *history.Repository, jwt *passhash.JWTManager, snapBackend cache.Cache, limiter ratelimit.Limiter, auditLogger audit.Logger) *Handler {
	return &Handler{log: log, o: o, hist: hist, jwt: jwt, snaps: newSnapshotCache(snapBackend), limiter: limiter, audit: auditLogger}
}

// wrap applies the rate-limit and audit middleware common to every
// route, rate limit first so a throttled request is never audited as if
// it ran.
func (h *Handler) wrap(fn http.HandlerFunc) http.HandlerFunc {
	return withRateLimit(h.limiter, withAudit("orchestrator-svc", h.audit, fn))
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.healthz)
	mux.HandleFunc("GET /readyz", h.readyz)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /v1/services", h.wrap(h.registerService))
	mux.HandleFunc("GET /v1/services/{id}", h.wrap(h.getService))
	mux.HandleFunc("POST /v1/dependencies", h.wrap(h.addDependency))
	mux.HandleFunc("POST /v1/nodes", h.wrap(h.registerNode))
	mux.HandleFunc("GET /v1/nodes/{id}", h.wrap(h.getNode))
	mux.HandleFunc("POST /v1/delays", h.wrap(h.setDelay))
	mux.HandleFunc("POST /v1/chains", h.wrap(h.registerChain))

	mux.HandleFunc("POST /v1/deploy", h.wrap(h.deploy))
	mux.HandleFunc("POST /v1/refine", h.wrap(h.refine))
	mux.HandleFunc("GET /v1/placement", h.wrap(h.getPlacement))
	mux.HandleFunc("GET /v1/critical-paths", h.wrap(h.getCriticalPaths))
	mux.HandleFunc("GET /v1/metrics/latest", h.wrap(h.getLatestMetrics))
	if h.jwt != nil {
		mux.HandleFunc("POST /v1/completions", h.wrap(requireBearer(h.jwt, h.reportCompletion)))
	} else {
		mux.HandleFunc("POST /v1/completions", h.wrap(h.reportCompletion))
	}
	mux.HandleFunc("POST /v1/local-updates/{nodeId}", h.wrap(h.localUpdate))
	mux.HandleFunc("GET /v1/history", h.wrap(h.getHistory))
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) readyz(w http.ResponseWriter, _ *http.Request) {
	if _, ok := h.o.GetLatestMetrics(); !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "warming_up"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type registerServiceRequest struct {
	ID              string  `json:"id"`
	CPU             float64 `json:"cpu"`
	Mem             float64 `json:"mem"`
	Bandwidth       float64 `json:"bandwidth"`
	ExecutionTimeMs float64 `json:"execution_time_ms"`
}

func (h *Handler) registerService(w http.ResponseWriter, r *http.Request) {
	var req registerServiceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.o.RegisterService(req.ID, restypes.Requirements{CPU: req.CPU, Mem: req.Mem, Bandwidth: req.Bandwidth}, req.ExecutionTimeMs)
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) getService(w http.ResponseWriter, r *http.Request) {
	svc, err := h.o.Service(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	nodeID, placed := svc.NodeID()
	writeJSON(w, http.StatusOK, map[string]any{
		"id":                svc.ID,
		"requirements":      svc.Requirements,
		"execution_time_ms": svc.ExecutionTimeMs,
		"node_id":           nodeID,
		"placed":            placed,
	})
}

type addDependencyRequest struct {
	From       string  `json:"from"`
	To         string  `json:"to"`
	DataVolume float64 `json:"data_volume"`
	Frequency  float64 `json:"frequency"`
}

func (h *Handler) addDependency(w http.ResponseWriter, r *http.Request) {
	var req addDependencyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.o.AddDependency(req.From, req.To, req.DataVolume, req.Frequency); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

type registerNodeRequest struct {
	ID     string `json:"id"`
	IsEdge bool   `json:"is_edge"`
}

func (h *Handler) registerNode(w http.ResponseWriter, r *http.Request) {
	var req registerNodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.o.RegisterNode(req.ID, req.IsEdge)
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) getNode(w http.ResponseWriter, r *http.Request) {
	n, err := h.o.Node(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":        n.ID,
		"is_edge":   n.IsEdge,
		"totals":    n.Capacity.Totals(),
		"available": n.Capacity.Available(),
	})
}

type setDelayRequest struct {
	A  string  `json:"a"`
	B  string  `json:"b"`
	Ms float64 `json:"ms"`
}

func (h *Handler) setDelay(w http.ResponseWriter, r *http.Request) {
	var req setDelayRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.o.SetDelay(req.A, req.B, req.Ms); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type registerChainRequest struct {
	ID      string   `json:"id"`
	Members []string `json:"members"`
}

func (h *Handler) registerChain(w http.ResponseWriter, r *http.Request) {
	var req registerChainRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.o.RegisterChain(req.ID, req.Members)
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) deploy(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := h.o.Deploy()
	h.recordPass(r.Context(), "deploy", start, result)
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) refine(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := h.o.Refine()
	h.recordPass(r.Context(), "refine", start, result)
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) recordPass(ctx context.Context, phase string, start time.Time, result deployer.Result) {
	if m := metrics.Get(); m != nil {
		m.RecordDeployment(phase, time.Since(start), len(result.Unplaced))
	}
	if h.hist == nil {
		return
	}
	if err := h.hist.Record(ctx, phase, result); err != nil {
		h.log.Warn("failed to record deployment history", "phase", phase, "error", err)
	}
}

func (h *Handler) getHistory(w http.ResponseWriter, r *http.Request) {
	if h.hist == nil {
		writeJSON(w, http.StatusOK, []history.Entry{})
		return
	}
	limit := 50
	entries, err := h.hist.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, apperror.Wrap(err, apperror.CodeInternal, "failed to load deployment history"))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) getPlacement(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.o.GetPlacement())
}

func (h *Handler) getCriticalPaths(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.o.GetCriticalPaths())
}

func (h *Handler) getLatestMetrics(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.o.GetLatestMetrics()
	if ok {
		h.snaps.publish(r.Context(), snap)
		writeJSON(w, http.StatusOK, snap)
		return
	}
	if cached, ok := h.snaps.fetch(r.Context()); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "no snapshot yet"})
}

type reportCompletionRequest struct {
	ChainID    string  `json:"chain_id"`
	LatencyMs  float64 `json:"latency_ms"`
	Succeeded  bool    `json:"succeeded"`
}

func (h *Handler) reportCompletion(w http.ResponseWriter, r *http.Request) {
	var req reportCompletionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.o.ReportCompletion(req.ChainID, req.LatencyMs, req.Succeeded); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) localUpdate(w http.ResponseWriter, r *http.Request) {
	var stats aggregator.NodeStats
	if err := decodeJSON(r, &stats); err != nil {
		writeError(w, err)
		return
	}
	h.o.LocalUpdate(r.PathValue("nodeId"), stats)
	w.WriteHeader(http.StatusNoContent)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperror.Wrap(err, apperror.CodeInvalidArgument, "malformed request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.Error
	status := http.StatusInternalServerError
	code := apperror.CodeInternal
	if ae, ok := err.(*apperror.Error); ok {
		appErr = ae
		status = ae.HTTPStatus()
		code = ae.Code
	}
	body := map[string]any{"code": code, "message": err.Error()}
	if appErr != nil && len(appErr.Details) > 0 {
		body["details"] = appErr.Details
	}
	writeJSON(w, status, body)
}
