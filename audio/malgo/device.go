package malgo

import (
	"fmt"
	"strings"
	"sync"

	miniaudio "github.com/gen2brain/malgo"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rfvox/audio"
)

// bufferFrames is the number of frames each device may hold before it starts
// discarding audio.
const bufferFrames = 10

// Config selects the device and the PCM format.
type Config struct {
	Format audio.Format
	// Device is a case-insensitive substring of the device name. Empty
	// selects the system default.
	Device string
}

type device struct {
	mu     sync.Mutex
	kind   miniaudio.DeviceType
	cfg    Config
	ctx    *miniaudio.AllocatedContext
	dev    *miniaudio.Device
	buf    *audio.PCMBuffer
	id     miniaudio.DeviceID
	opened bool
}

func newDevice(kind miniaudio.DeviceType, cfg Config) *device {
	frameBytes := 2 * cfg.Format.Samples()
	return &device{
		kind: kind,
		cfg:  cfg,
		buf:  audio.NewPCMBuffer(bufferFrames * frameBytes),
	}
}

func (d *device) name() string {
	if d.kind == miniaudio.Capture {
		return "capture"
	}
	return "playback"
}

func (d *device) open(data miniaudio.DataProc) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.opened {
		return nil
	}
	if err := d.cfg.Format.Validate(); err != nil {
		return err
	}

	ctx, err := miniaudio.InitContext(nil, miniaudio.ContextConfig{}, func(msg string) {
		logrus.WithFields(logrus.Fields{
			"function": "malgo",
			"device":   d.name(),
		}).Debug(strings.TrimSpace(msg))
	})
	if err != nil {
		return fmt.Errorf("init %s context: %w", d.name(), err)
	}

	devCfg := miniaudio.DefaultDeviceConfig(d.kind)
	devCfg.SampleRate = uint32(d.cfg.Format.SampleRate)
	sub := &devCfg.Playback
	if d.kind == miniaudio.Capture {
		sub = &devCfg.Capture
	}
	sub.Format = miniaudio.FormatS16
	sub.Channels = uint32(d.cfg.Format.Channels)

	if d.cfg.Device != "" {
		if err := d.selectDevice(ctx, sub); err != nil {
			_ = ctx.Uninit()
			ctx.Free()
			return err
		}
	}

	dev, err := miniaudio.InitDevice(ctx.Context, devCfg, miniaudio.DeviceCallbacks{Data: data})
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("init %s device: %w", d.name(), err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("start %s device: %w", d.name(), err)
	}

	d.buf.Reset()
	d.ctx, d.dev, d.opened = ctx, dev, true

	logrus.WithFields(logrus.Fields{
		"function":    "device.open",
		"device":      d.name(),
		"sample_rate": d.cfg.Format.SampleRate,
		"channels":    d.cfg.Format.Channels,
	}).Info("Audio device started")
	return nil
}

func (d *device) selectDevice(ctx *miniaudio.AllocatedContext, sub *miniaudio.SubConfig) error {
	infos, err := ctx.Devices(d.kind)
	if err != nil {
		return fmt.Errorf("list %s devices: %w", d.name(), err)
	}

	want := strings.ToLower(d.cfg.Device)
	for i := range infos {
		if strings.Contains(strings.ToLower(infos[i].Name()), want) {
			d.id = infos[i].ID
			sub.DeviceID = d.id.Pointer()
			logrus.WithFields(logrus.Fields{
				"function": "device.selectDevice",
				"device":   infos[i].Name(),
			}).Info("Selected audio device")
			return nil
		}
	}
	return fmt.Errorf("no %s device matching %q", d.name(), d.cfg.Device)
}

func (d *device) close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.buf.Close()
	if !d.opened {
		return nil
	}
	d.opened = false

	var firstErr error
	if err := d.dev.Stop(); err != nil {
		firstErr = fmt.Errorf("stop %s device: %w", d.name(), err)
	}
	d.dev.Uninit()
	if err := d.ctx.Uninit(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("uninit %s context: %w", d.name(), err)
	}
	d.ctx.Free()
	d.dev, d.ctx = nil, nil

	logrus.WithFields(logrus.Fields{
		"function": "device.close",
		"device":   d.name(),
		"dropped":  d.buf.Dropped(),
	}).Info("Audio device stopped")
	return firstErr
}

func (d *device) isOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened
}

// Input captures audio from a microphone.
type Input struct {
	*device
}

// NewInput creates a capture device. It is not started until Open.
func NewInput(cfg Config) *Input {
	return &Input{device: newDevice(miniaudio.Capture, cfg)}
}

// Open starts capturing.
func (in *Input) Open() error {
	return in.open(func(_, input []byte, _ uint32) {
		in.buf.Write(input)
	})
}

// Read blocks until one frame is captured.
func (in *Input) Read(frameSize int) ([]int16, error) {
	if !in.isOpen() {
		return nil, audio.ErrDeviceClosed
	}
	data, err := in.buf.ReadFull(2 * frameSize * in.cfg.Format.Channels)
	if err != nil {
		return nil, err
	}
	return audio.BytesToSamples(data), nil
}

// Close stops capturing and wakes a blocked Read.
func (in *Input) Close() error {
	return in.close()
}

// Output plays audio on a speaker.
type Output struct {
	*device
}

// NewOutput creates a playback device. It is not started until Open.
func NewOutput(cfg Config) *Output {
	return &Output{device: newDevice(miniaudio.Playback, cfg)}
}

// Open starts playback. The device plays silence until frames are written.
func (out *Output) Open() error {
	return out.open(func(output, _ []byte, _ uint32) {
		out.buf.Drain(output)
	})
}

// Write queues one frame for playback.
func (out *Output) Write(pcm []int16) error {
	if !out.isOpen() {
		return audio.ErrDeviceClosed
	}
	out.buf.Write(audio.SamplesToBytes(pcm))
	return nil
}

// Close stops playback and discards queued audio.
func (out *Output) Close() error {
	return out.close()
}

var (
	_ audio.Input  = (*Input)(nil)
	_ audio.Output = (*Output)(nil)
)
