package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/normanking/cortexlipsync/internal/audio"
	"github.com/normanking/cortexlipsync/internal/bus"
	"github.com/normanking/cortexlipsync/internal/lipsync"
	"github.com/normanking/cortexlipsync/internal/rig"
	"github.com/normanking/cortexlipsync/internal/viseme"
	"github.com/qmuntal/gltf"
	"github.com/spf13/cobra"
)

var (
	simScript string
	simFPS    int
	simSeed   int64
	simModel  string
	simExport string
	simEvery  int
	simJSON   bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the engine headless through a scripted state sequence",
	Long: `simulate drives the engine with a synthetic microphone and a scripted
sequence of states, without a renderer. Listening steps open the synthetic
microphone; every other step closes it.

Script format: state:duration[,state:duration...]
  e.g. listening:1.5s,speaking:2s,thinking:500ms,idle:1s`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simScript, "script", "listening:1.5s,speaking:2s,thinking:500ms,idle:1s", "state sequence")
	simulateCmd.Flags().IntVar(&simFPS, "fps", 60, "simulated frame rate")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 1, "random seed for the pattern scheduler")
	simulateCmd.Flags().StringVar(&simModel, "model", "", "glTF avatar to drive instead of the built-in test rig")
	simulateCmd.Flags().StringVar(&simExport, "export", "", "write the posed rig as glTF after the run (.glb for binary)")
	simulateCmd.Flags().IntVar(&simEvery, "every", 10, "log every Nth frame")
	simulateCmd.Flags().BoolVar(&simJSON, "json", false, "emit every frame as a JSON line on stdout")
}

type scriptStep struct {
	state    lipsync.State
	duration time.Duration
}

func parseScript(script string) ([]scriptStep, error) {
	var steps []scriptStep
	for _, part := range strings.Split(script, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, dur, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("script step %q: want state:duration", part)
		}
		state, err := lipsync.ParseState(name)
		if err != nil {
			return nil, err
		}
		d, err := time.ParseDuration(strings.TrimSpace(dur))
		if err != nil {
			return nil, fmt.Errorf("script step %q: %w", part, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("script step %q: duration must be positive", part)
		}
		steps = append(steps, scriptStep{state: state, duration: d})
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("empty script")
	}
	return steps, nil
}

// testRigDocument is a face mesh with every canonical viseme as a named
// morph target, plus Head and Spine joints in one skin.
func testRigDocument() *gltf.Document {
	names := viseme.MorphNames()
	return &gltf.Document{
		Asset: gltf.Asset{Version: "2.0", Generator: "cortexlipsync"},
		Scene: gltf.Index(0),
		Scenes: []*gltf.Scene{
			{Name: "Avatar", Nodes: []int{0, 1, 2}},
		},
		Nodes: []*gltf.Node{
			{Name: "Face", Mesh: gltf.Index(0), Weights: make([]float64, len(names))},
			{Name: "Head"},
			{Name: "Spine"},
		},
		Meshes: []*gltf.Mesh{{
			Name:       "Face",
			Primitives: []*gltf.Primitive{},
			Weights:    make([]float64, len(names)),
			Extras:     map[string]any{"targetNames": names},
		}},
		Skins: []*gltf.Skin{{Name: "Armature", Joints: []int{1, 2}}},
	}
}

func testRig() *rig.GLTFRig {
	return rig.FromDocument(testRigDocument())
}

// saveModel writes doc as binary glTF when path ends in .glb, JSON otherwise.
func saveModel(doc *gltf.Document, path string) error {
	if strings.EqualFold(filepath.Ext(path), ".glb") {
		return gltf.SaveBinary(doc, path)
	}
	return gltf.Save(doc, path)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	steps, err := parseScript(simScript)
	if err != nil {
		return err
	}
	if simFPS <= 0 {
		return fmt.Errorf("fps must be positive")
	}

	_, cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Close()
	log := logger.Component("simulate")

	r := testRig()
	if simModel != "" {
		if r, err = rig.LoadGLTF(simModel); err != nil {
			return err
		}
	}

	cfg.Lipsync.Seed = simSeed
	tone := audio.NewToneSource(180, cfg.Audio.SampleRate)
	eventBus := bus.NewEventBus()
	eventBus.Subscribe(bus.EventTypeGesture, func(e bus.Event) {
		log.Debug().Interface("data", e.Data).Msg("Gesture")
	})

	engine, err := buildEngine(cfg, r, tone, eventBus, logger.Zerolog())
	if err != nil {
		return err
	}
	defer func() { _ = engine.Dispose() }()

	enc := json.NewEncoder(cmd.OutOrStdout())
	dt := time.Second / time.Duration(simFPS)
	var elapsed time.Duration
	frame := 0

	for _, step := range steps {
		if step.state == lipsync.StateListening {
			if err := engine.StartCapture(context.Background()); err != nil {
				return err
			}
		} else {
			engine.StopCapture()
		}
		if err := engine.SetState(step.state); err != nil {
			return err
		}

		for t := time.Duration(0); t < step.duration; t += dt {
			// Syllable-rate envelope, roughly 2.5 bursts per second
			tone.SetLevel(0.5 * math.Abs(math.Sin(2*math.Pi*2.5*elapsed.Seconds())))
			engine.Tick(dt)
			elapsed += dt
			frame++

			snap := engine.Snapshot()
			if simJSON {
				if err := enc.Encode(snap); err != nil {
					return err
				}
			}
			if simEvery > 0 && frame%simEvery == 0 {
				log.Info().
					Int("frame", frame).
					Str("state", string(snap.State)).
					Str("driver", string(snap.Driver)).
					Float32("amplitude", snap.Amplitude).
					Float32("aa", snap.Visemes.Get(viseme.AA)).
					Float32("peak", snap.Visemes.Max()).
					Float32("jaw", snap.Jaw).
					Float32("glow", snap.Glow).
					Msg("Frame")
			}
		}
	}

	log.Info().
		Int("frames", frame).
		Dur("elapsed", elapsed).
		Str("tier", engine.Capability().Tier().String()).
		Msg("Simulation finished")

	if simExport != "" {
		if err := saveModel(r.Document(), simExport); err != nil {
			return fmt.Errorf("failed to export posed model: %w", err)
		}
		log.Info().Str("path", simExport).Msg("Posed model written")
	}
	return nil
}
