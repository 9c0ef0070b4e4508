package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"replay-proxy/internal/adapters/httpmsg"
	"replay-proxy/internal/adapters/keygen"
	"replay-proxy/internal/adapters/pubsub"
	"replay-proxy/internal/domain"
	"replay-proxy/internal/infrastructure/config"
	obs "replay-proxy/internal/infrastructure/observability"
	"replay-proxy/internal/usecase"
)

// TopicRouteAdded announces an admin route; the router mounts every Route it receives.
const TopicRouteAdded = "route.added"

// Route is the payload of TopicRouteAdded.
type Route struct {
	Pattern string
	Handler http.HandlerFunc
}

// Deps wires the HTTP layer. Bus, Stats, Recorder, Playback and Transports are required;
// the rest default in NewRouter.
type Deps struct {
	Cfg        config.Config
	Logger     *zerolog.Logger
	Metrics    *obs.Metrics
	Bus        *pubsub.Bus
	Stats      *usecase.StatsService
	Recorder   *usecase.ScenarioRecorder
	Playback   usecase.PlaybackRepository
	Keys       usecase.KeyGenerator
	Transports httpmsg.Transports
	Monitor    *MonitorHub
	Delay      *ResponseDelay
	Endpoints  []domain.Endpoint
}

// NewRouter builds the operational routes, subscribes to route announcements,
// announces the admin API and falls back to the record/replay pipeline.
func NewRouter(d *Deps) http.Handler {
	if d.Metrics == nil {
		d.Metrics = obs.NewMetrics()
	}
	if d.Delay == nil {
		d.Delay = NewResponseDelay(d.Cfg)
	}
	if d.Endpoints == nil {
		d.Endpoints = d.Cfg.Endpoints
	}
	if d.Keys == nil {
		d.Keys = keygen.MethodPath{IgnoreQuery: d.Cfg.IgnoreQuery}
	}
	if d.Monitor == nil {
		d.Monitor = NewMonitorHub(d.Bus, d.Stats.Dump, d.Logger)
	}
	SubscribeMetrics(d.Bus, d.Metrics)
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/api/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name":  "replay-proxy",
			"build": obs.Build(),
			"time":  time.Now().UTC(),
		})
	})
	mux.HandleFunc("/", d.handleProxy)

	rt := &routeTable{mux: mux, logger: *d.logger(), seen: make(map[string]bool)}
	d.Bus.Subscribe(TopicRouteAdded, rt.mount)
	for _, r := range d.adminRoutes() {
		d.Bus.Publish(TopicRouteAdded, r)
	}
	return withCORS(d.Cfg, mux)
}

func (d *Deps) adminRoutes() []Route {
	return []Route{
		{"/stats/", d.handleStats},
		{"/stats/har", d.handleStatsHAR},
		{"/stats/ws", d.Monitor.HandleWS},
		{"/scenarios/startRecording", d.handleStartRecording},
		{"/scenarios/finishRecording", d.handleFinishRecording},
		{"/scenarios/status", d.handleRecordingStatus},
		{"/caches", d.handleCaches},
		{"/caches/package", d.handleCachePackage},
		{"/enums/outcomes", d.handleOutcomeEnum},
		{"/settings", d.handleSettings},
	}
}

// routeTable mounts announced routes onto the mux, ignoring repeats.
type routeTable struct {
	mu     sync.Mutex
	mux    *http.ServeMux
	logger zerolog.Logger
	seen   map[string]bool
}

func (t *routeTable) mount(payload any) {
	r, ok := payload.(Route)
	if !ok || r.Pattern == "" || r.Handler == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.seen[r.Pattern] {
		t.logger.Warn().Str("pattern", r.Pattern).Msg("route already mounted")
		return
	}
	t.seen[r.Pattern] = true
	t.mux.HandleFunc(r.Pattern, r.Handler)
	t.logger.Debug().Str("pattern", r.Pattern).Msg("route mounted")
}

var nopLogger = zerolog.Nop()

func (d *Deps) logger() *zerolog.Logger {
	if d.Logger == nil {
		return &nopLogger
	}
	return d.Logger
}

func withCORS(cfg config.Config, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Cookie, Sec-WebSocket-Protocol")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
