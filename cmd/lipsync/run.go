package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/normanking/cortexlipsync/internal/audio"
	"github.com/normanking/cortexlipsync/internal/bus"
	"github.com/normanking/cortexlipsync/internal/config"
	"github.com/normanking/cortexlipsync/internal/lipsync"
	"github.com/normanking/cortexlipsync/internal/metrics"
	"github.com/normanking/cortexlipsync/internal/stream"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var runMic bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Drive the avatar and stream frames to renderers",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runMic, "mic", false, "start microphone capture immediately")
}

func runRun(cmd *cobra.Command, args []string) error {
	loader, cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Close()
	log := logger.Component("main")

	eventBus := bus.NewEventBus()
	eventBus.SubscribeMultiple([]bus.EventType{bus.EventTypeCaptureFailed, bus.EventTypeCaptureDisabled}, func(e bus.Event) {
		log.Warn().Str("event", string(e.Type)).Interface("data", e.Data).Msg("Capture problem")
	})

	server := stream.NewServer(cfg.Stream, eventBus, logger.Zerolog())
	if err := server.Start(); err != nil {
		return err
	}
	defer func() {
		if err := server.Stop(); err != nil {
			log.Warn().Err(err).Msg("Stream server shutdown")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := loadRig(cfg.Avatar.ModelPath, log)
	if err != nil {
		return err
	}
	engine, err := buildEngine(cfg, r, audio.NewMalgoSource(cfg.Audio, logger.Zerolog()), eventBus, logger.Zerolog())
	if err != nil {
		return err
	}
	server.SetEngine(engine)
	defer func() { _ = engine.Dispose() }()

	if runMic {
		go startCapture(ctx, engine, log)
	}

	reloads := make(chan *config.Config, 1)
	loader.Watch(func(next *config.Config, err error) {
		if err != nil {
			log.Warn().Err(err).Msg("Ignoring invalid config change")
			return
		}
		select {
		case reloads <- next:
		default:
		}
	})

	ticker := time.NewTicker(frameInterval(cfg.Avatar.FPS))
	defer ticker.Stop()
	last := time.Now()

	log.Info().
		Str("addr", server.Addr()).
		Int("fps", cfg.Avatar.FPS).
		Str("config", loader.File()).
		Msg("Lip-sync host running")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Shutting down")
			return nil

		case next := <-reloads:
			// Engines are construct-once; a config change means a new engine.
			rebuilt, wasCapturing, err := rebuild(engine, next, eventBus, logger.Zerolog())
			if err != nil {
				log.Error().Err(err).Msg("Config reload failed, keeping current engine")
				continue
			}
			engine = rebuilt
			server.SetEngine(engine)
			if next.Avatar.FPS != cfg.Avatar.FPS {
				ticker.Reset(frameInterval(next.Avatar.FPS))
			}
			cfg = next
			if wasCapturing {
				go startCapture(ctx, engine, log)
			}
			metrics.ConfigReloads.Inc()
			eventBus.Publish(bus.Event{
				Type: bus.EventTypeConfigReloaded,
				Data: map[string]any{"engine_id": engine.ID()},
			})
			log.Info().Str("engine_id", engine.ID()).Msg("Configuration reloaded")

		case now := <-ticker.C:
			engine.Tick(now.Sub(last))
			last = now
			server.Broadcast(engine.Snapshot())
		}
	}
}

// rebuild swaps in an engine built from next, carrying over the animation
// state. It reports whether the old engine was capturing so the caller can
// reopen the microphone.
func rebuild(old *lipsync.Engine, next *config.Config, eventBus *bus.EventBus, zl zerolog.Logger) (*lipsync.Engine, bool, error) {
	log := zl.With().Str("component", "main").Logger()

	r, err := loadRig(next.Avatar.ModelPath, log)
	if err != nil {
		return nil, false, err
	}
	engine, err := buildEngine(next, r, audio.NewMalgoSource(next.Audio, zl), eventBus, zl)
	if err != nil {
		return nil, false, err
	}

	snap := old.Snapshot()
	_ = old.Dispose()
	if err := engine.SetState(snap.State); err != nil {
		log.Warn().Err(err).Msg("Failed to carry state over")
	}
	return engine, snap.Capture == string(audio.CaptureActive), nil
}

func startCapture(ctx context.Context, engine *lipsync.Engine, log zerolog.Logger) {
	if err := engine.StartCapture(ctx); err != nil {
		log.Warn().Err(err).Msg("Microphone capture unavailable")
	}
}

func frameInterval(fps int) time.Duration {
	if fps <= 0 {
		fps = 60
	}
	return time.Second / time.Duration(fps)
}
