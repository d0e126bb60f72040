package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"assetd/internal/bundle"
	"assetd/internal/codec"
	"assetd/internal/common/fsutil"
	"assetd/internal/config"
	"assetd/internal/engine"
	"assetd/internal/fetch"
	"assetd/internal/httpapi"
	"assetd/internal/loader"
	"assetd/internal/perf"
	"assetd/internal/registry"
	"assetd/pkg/types"
)

// daemon adapts the engine plus the static catalog to the HTTP service
// surface.
type daemon struct {
	eng *engine.Engine
	reg *registry.Registry
}

func (d *daemon) Assets() []types.AssetDescriptor            { return d.reg.Assets() }
func (d *daemon) Bundles() []types.AssetBundle               { return d.reg.Bundles() }
func (d *daemon) Bundle(id string) (types.AssetBundle, bool) { return d.reg.Bundle(id) }
func (d *daemon) Status() types.StatusResponse               { return d.eng.Status() }
func (d *daemon) StartBundle(b types.AssetBundle) string     { return d.eng.StartBundle(b) }
func (d *daemon) LoadBundle(ctx context.Context, b types.AssetBundle) error {
	_, err := d.eng.LoadBundle(ctx, b)
	return err
}
func (d *daemon) Session(id string) (types.SessionStatus, error) { return d.eng.Session(id) }
func (d *daemon) CancelSession(id string) error                  { return d.eng.CancelSession(id) }
func (d *daemon) Sample(s types.PerformanceSample)               { d.eng.Sample(s) }
func (d *daemon) OnContextLost()                                 { d.eng.OnContextLost() }
func (d *daemon) OnContextRestored()                             { d.eng.OnContextRestored() }
func (d *daemon) SetOnline(online bool)                          { d.eng.SetOnline(online) }
func (d *daemon) Ready() bool                                    { return true }

func main() {
	// Flags with environment variable defaults
	defaultAddr := ":8080"
	if v := os.Getenv("ASSETD_ADDR"); v != "" {
		defaultAddr = v
	}
	defaultRegistry := os.Getenv("ASSETD_REGISTRY")
	addr := flag.String("addr", defaultAddr, "HTTP listen address, e.g. :8080")
	configPath := flag.String("config", os.Getenv("ASSETD_CONFIG"), "Optional config file (.yaml/.json/.toml)")
	registryPath := flag.String("registry", defaultRegistry, "Asset catalog file (.yaml/.json/.toml)")
	corsOrigins := flag.String("cors-origins", os.Getenv("ASSETD_CORS_ORIGINS"), "Comma-separated allowed CORS origins (empty disables CORS)")
	dracoDecoder := flag.String("draco-decoder", os.Getenv("ASSETD_DRACO_DECODER"), "Path to a Draco transcoder binary (compressed GLB on stdin, plain GLB on stdout)")
	preload := flag.Bool("preload", true, "Warm the cache with preload/high-priority assets at startup")
	flag.Parse()

	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "assetd").Logger()

	var cfg config.Config
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *configPath).Msg("load config")
		}
	}
	// Flags win over the config file.
	if *addr != defaultAddr || cfg.Addr == "" {
		cfg.Addr = *addr
	}
	if *registryPath != "" {
		cfg.Registry = *registryPath
	}
	if *dracoDecoder != "" {
		cfg.Decoder.Draco = *dracoDecoder
	}
	if cfg.Registry == "" {
		log.Fatal().Msg("an asset catalog is required (-registry or config)")
	}
	if p, err := fsutil.ExpandHome(cfg.Registry); err != nil || !fsutil.PathExists(p) {
		log.Fatal().Str("path", cfg.Registry).Msg("asset catalog does not exist")
	}

	reg, err := registry.Load(cfg.Registry)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Registry).Msg("load asset catalog")
	}

	var mesh loader.MeshDecoder
	if cfg.Decoder.Draco != "" {
		mesh = loader.NewCommandDecoder(cfg.Decoder.Draco)
	}

	eng, err := engine.New(context.Background(), engine.Config{
		Mesh: mesh,
		Probe: codec.StaticProbe(types.Capabilities{
			KTX2:           cfg.Client.KTX2,
			WebP:           cfg.Client.WebP,
			MaxTextureSize: cfg.Client.MaxTextureSize,
			Mobile:         cfg.Client.Mobile,
		}),
		Fetch: fetch.Options{
			MaxAttempts: cfg.Fetch.MaxAttempts,
			BaseDelay:   time.Duration(cfg.Fetch.BaseDelayMS) * time.Millisecond,
			CapDelay:    time.Duration(cfg.Fetch.CapDelayMS) * time.Millisecond,
		},
		Breaker: fetch.BreakerConfig{
			FailureThreshold: cfg.Breaker.FailureThreshold,
			FailureWindow:    time.Duration(cfg.Breaker.FailureWindowSec) * time.Second,
			Cooldown:         time.Duration(cfg.Breaker.CooldownSec) * time.Second,
		},
		Bundle: bundle.Config{
			Parallelism: cfg.Bundle.Parallelism,
			ETACeiling:  time.Duration(cfg.Bundle.ETACeilingSec) * time.Second,
		},
		Perf: perf.Config{
			RingSize:         cfg.Perf.RingSize,
			CheckInterval:    cfg.Perf.CheckInterval,
			SustainedWindows: cfg.Perf.SustainedWindows,
		},
		Logger: log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("construct engine")
	}
	defer eng.Close()

	// Shutdown cancels in-flight synchronous loads through the base context.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)
	httpapi.SetLogger(log)
	if origins := splitCSV(*corsOrigins); len(origins) > 0 {
		httpapi.SetCORSOptions(true, origins,
			[]string{"GET", "POST", "DELETE"},
			[]string{"Content-Type", "X-Log-Level"})
	}

	if *preload {
		go func() {
			if err := eng.PreloadCritical(baseCtx, reg.Bundles()); err != nil {
				log.Warn().Err(err).Msg("preload interrupted")
			}
		}()
	}

	mux := httpapi.NewMux(&daemon{eng: eng, reg: reg})
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		log.Info().Str("addr", cfg.Addr).Str("catalog", cfg.Registry).Msg("assetd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
}

// splitCSV splits a comma-separated list, trimming blanks.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
