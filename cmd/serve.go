package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/danmaku-sim/danmaku-sim/danmaku"
	"github.com/danmaku-sim/danmaku-sim/danmaku/render"
	"github.com/danmaku-sim/danmaku-sim/danmaku/workload"
)

const shutdownTimeout = 10 * time.Second

var (
	serveEngine  engineFlags
	serveAddr    string // Listen address
	serveEnvFile string // dotenv file
	serveInput   string // NDJSON item stream, "-" for stdin
)

// wallClock reports seconds since start. A live overlay never buffers.
type wallClock struct{ start time.Time }

func (c wallClock) PlaybackTime() float64 { return time.Since(c.start).Seconds() }
func (c wallClock) Buffering() bool       { return false }

// overlayServer runs a live engine against a headless canvas and exposes it
// read-only over HTTP.
type overlayServer struct {
	engine   *danmaku.Engine
	canvas   *render.Canvas
	registry *prometheus.Registry
}

// newOverlayServer creates a started live engine. Any mode in cfg is
// replaced by live.
func newOverlayServer(cfg danmaku.Config, clock danmaku.Clock) (*overlayServer, error) {
	if cfg.Mode != danmaku.ModeLive {
		logrus.Warnf("serve only supports live mode; ignoring mode %q", cfg.Mode)
		cfg.Mode = danmaku.ModeLive
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	canvas := render.NewCanvas(clock.PlaybackTime)
	engine, err := danmaku.NewEngine(cfg, danmaku.Collaborators{
		Clock:      clock,
		Delegate:   displayLogger{},
		DataSource: render.TextDataSource{},
		Renderer:   canvas,
		Metrics:    danmaku.NewMetrics(reg),
	})
	if err != nil {
		return nil, err
	}
	render.RegisterTextCells(engine)
	engine.LoadItems(nil)
	engine.Wait()
	if err := engine.Start(); err != nil {
		engine.Close()
		return nil, err
	}
	return &overlayServer{engine: engine, canvas: canvas, registry: reg}, nil
}

func (s *overlayServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.healthz)
	r.Get("/visible", s.visible)
	r.Get("/state", s.state)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return r
}

func (s *overlayServer) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"status":   "ok",
		"playing":  s.engine.Playing(),
		"prepared": s.engine.Prepared(),
	})
}

// visible lists the cells on screen with their current positions.
func (s *overlayServer) visible(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.canvas.Snapshot())
}

// state returns the engine's pending queue, visible set and last window.
func (s *overlayServer) state(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.engine.Snapshot())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Debugf("writing response: %v", err)
	}
}

// tickLoop steps the engine every interval until ctx is done.
func (s *overlayServer) tickLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.engine.Step()
		}
	}
}

// ingest submits entries read from r until it is exhausted or ctx is done.
func (s *overlayServer) ingest(ctx context.Context, r io.Reader) {
	n, err := readEntries(ctx, r, func(e workload.Entry) {
		item := e.Item
		s.engine.Submit(&item, e.Forced)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logrus.Errorf("item stream stopped after %d items: %v", n, err)
		return
	}
	logrus.Infof("item stream ended after %d items", n)
}

// serveCmd runs a live overlay engine fed from an NDJSON stream
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a live overlay engine fed from an NDJSON comment stream",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		if err := loadDotEnv(serveEnvFile); err != nil {
			logrus.Warnf("%v", err)
		}

		cfg, err := serveEngine.resolve(cmd, true)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		addr := serveAddr
		if !cmd.Flags().Changed("addr") {
			addr = getEnv("DANMAKU_ADDR", serveAddr)
		}

		srv, err := newOverlayServer(cfg, wallClock{start: time.Now()})
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		defer srv.engine.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var input io.Reader = os.Stdin
		if serveInput != "-" {
			f, err := os.Open(serveInput)
			if err != nil {
				logrus.Fatalf("opening item stream: %v", err)
			}
			defer func() { _ = f.Close() }()
			input = f
		}
		go srv.ingest(ctx, input)
		go srv.tickLoop(ctx, time.Duration(cfg.FrameInterval*float64(time.Second)))

		httpServer := &http.Server{Addr: addr, Handler: srv.routes(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrus.Fatalf("server error: %v", err)
			}
		}()
		logrus.Infof("serving on %s: lanes=%d duration=%.2fs tolerance=%.2fs", addr, cfg.NumberOfLanes, cfg.Duration, cfg.Tolerance)

		<-ctx.Done()
		logrus.Info("shutdown signal received, draining connections")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logrus.Errorf("shutdown error: %v", err)
		}
		srv.engine.Stop()
		srv.engine.Metrics().Print(os.Stdout)
		logrus.Info("server stopped")
	},
}

func init() {
	serveEngine.register(serveCmd, danmaku.ModeLive)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "HTTP listen address for /healthz, /visible, /state and /metrics")
	serveCmd.Flags().StringVar(&serveEnvFile, "env-file", ".env", "dotenv file with DANMAKU_* settings")
	serveCmd.Flags().StringVar(&serveInput, "input", "-", "NDJSON item stream path, - for stdin")

	rootCmd.AddCommand(serveCmd)
}
