package lipsync

import (
	"context"
	"testing"

	"github.com/normanking/cortexlipsync/internal/audio"
	"github.com/normanking/cortexlipsync/internal/bus"
	"github.com/normanking/cortexlipsync/internal/rig"
	"github.com/normanking/cortexlipsync/internal/viseme"
	"github.com/rs/zerolog"
)

func benchRig() rig.Riggable {
	return rig.NewStaticRig(
		rig.NewMeshNode("Face", viseme.MorphNames()...),
		rig.NewMeshNode("Teeth", "mouthOpen"),
		rig.NewBoneNode("Head"),
		rig.NewBoneNode("Spine2"),
	)
}

func BenchmarkEngineTickScheduler(b *testing.B) {
	e, err := NewEngine(DefaultConfig(), benchRig(), nil, bus.NewEventBus(), zerolog.Nop(), WithRand(NewRand(1)))
	if err != nil {
		b.Fatal(err)
	}
	if err := e.SetState(StateSpeaking); err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Tick(frame)
	}
}

func BenchmarkEngineTickCapture(b *testing.B) {
	tone := audio.NewToneSource(200, 16000)
	tone.SetLevel(0.4)
	e, err := NewEngine(DefaultConfig(), benchRig(), tone, bus.NewEventBus(), zerolog.Nop(), WithRand(NewRand(1)))
	if err != nil {
		b.Fatal(err)
	}
	if err := e.StartCapture(context.Background()); err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Tick(frame)
	}
}
