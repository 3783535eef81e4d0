package audio

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"
)

// MalgoSource acquires microphone streams through miniaudio. Samples are
// captured as unsigned 8-bit so the analyser window matches a browser-style
// byte time-domain buffer.
type MalgoSource struct {
	config CaptureConfig
	logger zerolog.Logger
}

// NewMalgoSource creates a source for the configured device
func NewMalgoSource(config CaptureConfig, logger zerolog.Logger) *MalgoSource {
	return &MalgoSource{
		config: config,
		logger: logger.With().Str("component", "malgo").Logger(),
	}
}

// Acquire opens and starts the capture device. ctx is checked between each
// setup step; anything already initialised is torn down on failure.
func (s *MalgoSource) Acquire(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		s.logger.Debug().Msg(strings.TrimSpace(message))
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContextInit, err)
	}
	freeContext := func() {
		_ = malgoCtx.Uninit()
		malgoCtx.Free()
	}

	if err := ctx.Err(); err != nil {
		freeContext()
		return nil, err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatU8
	deviceConfig.Capture.Channels = s.config.Channels
	deviceConfig.SampleRate = s.config.SampleRate
	deviceConfig.PeriodSizeInFrames = s.config.BufferFrames

	if s.config.DeviceName != "" {
		info, err := findCaptureDevice(malgoCtx, s.config.DeviceName)
		if err != nil {
			freeContext()
			return nil, err
		}
		deviceConfig.Capture.DeviceID = info.ID.Pointer()
	}

	window := int(s.config.BufferFrames * s.config.Channels)
	stream := &malgoStream{
		ctx:    malgoCtx,
		latest: NewLatestBuffer(window),
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			stream.latest.Write(input)
		},
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		freeContext()
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	stream.device = device

	if err := ctx.Err(); err != nil {
		device.Uninit()
		freeContext()
		return nil, err
	}

	// Platform backends surface a refused microphone grant here.
	if err := device.Start(); err != nil {
		device.Uninit()
		freeContext()
		return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	s.logger.Info().
		Uint32("sample_rate", s.config.SampleRate).
		Uint32("channels", s.config.Channels).
		Int("window", window).
		Msg("Capture device started")
	return stream, nil
}

func findCaptureDevice(ctx *malgo.AllocatedContext, name string) (malgo.DeviceInfo, error) {
	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceInfo{}, fmt.Errorf("%w: enumerate devices: %v", ErrDeviceUnavailable, err)
	}
	needle := strings.ToLower(name)
	for _, info := range infos {
		if strings.Contains(strings.ToLower(info.Name()), needle) {
			return info, nil
		}
	}
	return malgo.DeviceInfo{}, fmt.Errorf("%w: no capture device matching %q", ErrDeviceUnavailable, name)
}

type malgoStream struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	latest *LatestBuffer
	closed bool
}

func (m *malgoStream) TimeDomain(dst []byte) int {
	return m.latest.Snapshot(dst)
}

func (m *malgoStream) BitDepth() int {
	return 8
}

// Close is called with the owning Capture's lock held, so it is never
// entered concurrently.
func (m *malgoStream) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true

	var stopErr error
	if m.device != nil {
		stopErr = m.device.Stop()
		m.device.Uninit()
	}
	if m.ctx != nil {
		_ = m.ctx.Uninit()
		m.ctx.Free()
	}
	if stopErr != nil {
		return fmt.Errorf("failed to stop device: %w", stopErr)
	}
	return nil
}
