package transport

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/opd-ai/rfvox/audio"
	"github.com/opd-ai/rfvox/crypto"
	"github.com/opd-ai/rfvox/frame"
	"github.com/opd-ai/rfvox/radio"
	"github.com/opd-ai/rfvox/task"
)

// Orchestrator runs the transmit and receive paths over one radio.
type Orchestrator struct {
	cfg     Config
	radio   radio.Radio
	engine  *crypto.Engine
	codec   audio.Codec
	input   audio.Input
	output  audio.Output
	effects *audio.EffectChain
	sched   *task.Scheduler
	obs     Observer

	splitter *frame.Splitter
	reasm    *frame.Reassembler
	limiter  *rate.Limiter
	queue    chan []byte

	// mu serializes task arbitration between the interrupt handler and
	// StartTransmit, StopTransmit and Close.
	mu     sync.Mutex
	closed atomic.Bool
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithObserver reports events to obs.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.obs = obs
		}
	}
}

// WithEffects runs received audio through chain before playback.
func WithEffects(chain *audio.EffectChain) Option {
	return func(o *Orchestrator) {
		o.effects = chain
	}
}

// WithScheduler shares an existing scheduler, for callers that run other
// tasks next to the transport.
func WithScheduler(s *task.Scheduler) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.sched = s
		}
	}
}

// New creates an orchestrator. If r implements radio.Interrupter its
// payload-ready callback is wired to HandleInterrupt.
func New(cfg Config, r radio.Radio, engine *crypto.Engine, codec audio.Codec, in audio.Input, out audio.Output, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if r == nil || engine == nil || codec == nil || in == nil || out == nil {
		return nil, fmt.Errorf("%w: radio, engine, codec and audio devices are required", ErrInvalidConfig)
	}

	splitter, err := frame.NewSplitter(cfg.Version)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:      cfg,
		radio:    r,
		engine:   engine,
		codec:    codec,
		input:    in,
		output:   out,
		obs:      NopObserver{},
		splitter: splitter,
		queue:    make(chan []byte, cfg.QueueDepth),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.sched == nil {
		o.sched = task.NewScheduler()
	}
	o.reasm = frame.NewReassembler(cfg.Version, o.obs)

	limit := rate.Inf
	if cfg.PacketDelay > 0 {
		limit = rate.Every(cfg.PacketDelay)
	}
	o.limiter = rate.NewLimiter(limit, 1)

	if irq, ok := r.(radio.Interrupter); ok {
		irq.OnPayloadReady(o.HandleInterrupt)
	}

	logrus.WithFields(logrus.Fields{
		"function":       "New",
		"version":        cfg.Version.String(),
		"mode":           engine.Mode().String(),
		"frame_size":     cfg.FrameSize,
		"buffer_timeout": cfg.BufferTimeout.String(),
		"packet_delay":   cfg.PacketDelay.String(),
	}).Info("Transport orchestrator created")
	return o, nil
}

// Scheduler returns the scheduler running the transport tasks.
func (o *Orchestrator) Scheduler() *task.Scheduler {
	return o.sched
}

// Mode returns the active encryption mode.
func (o *Orchestrator) Mode() crypto.Mode {
	return o.engine.Mode()
}

// SetMode switches the encryption mode for subsequent frames.
func (o *Orchestrator) SetMode(mode crypto.Mode) error {
	if o.closed.Load() {
		return ErrClosed
	}
	return o.engine.SetMode(mode)
}

// IsTransmitting reports whether the transmit task is alive.
func (o *Orchestrator) IsTransmitting() bool {
	return o.sched.IsRunning(TransmitTask)
}

// IsReceiving reports whether the receive task is alive.
func (o *Orchestrator) IsReceiving() bool {
	return o.sched.IsRunning(ReceiveTask)
}

// StartTransmit stops any receive session and starts the transmit task.
func (o *Orchestrator) StartTransmit() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed.Load() {
		return ErrClosed
	}
	if o.sched.IsRunning(ReceiveTask) {
		if err := o.sched.Stop(ReceiveTask); err != nil && !errors.Is(err, task.ErrUnknownTask) {
			return err
		}
	}
	o.discardBacklog("StartTransmit")
	return o.sched.Start(TransmitTask, o.RunTransmit)
}

// StopTransmit stops the transmit task and re-arms the radio for receiving.
func (o *Orchestrator) StopTransmit() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.sched.Stop(TransmitTask); err != nil {
		return err
	}
	o.discardBacklog("StopTransmit")
	if err := o.radio.Listen(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "StopTransmit",
			"error":    err.Error(),
		}).Error("Failed to re-arm radio")
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// HandleInterrupt is the radio payload-ready callback. While transmitting it
// stops any receive task and discards whatever the radio holds. Otherwise it
// pulls every pending packet, queues them without blocking and makes sure a
// receive task is running.
func (o *Orchestrator) HandleInterrupt() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed.Load() {
		return
	}

	if o.sched.IsRunning(TransmitTask) {
		if o.sched.IsRunning(ReceiveTask) {
			_ = o.sched.Stop(ReceiveTask)
		}
		o.discardRadio("HandleInterrupt")
		return
	}

	packet, err := o.radio.Receive(o.cfg.PullTimeout)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "HandleInterrupt",
			"error":    err.Error(),
		}).Debug("No packet after payload notification")
		return
	}
	for {
		o.obs.PacketReceived()
		o.enqueue(packet)

		// One notification may cover several packets.
		if !o.radio.PayloadReady() {
			break
		}
		if packet, err = o.radio.Receive(0); err != nil {
			break
		}
	}

	if !o.sched.IsRunning(ReceiveTask) {
		if err := o.sched.Start(ReceiveTask, o.RunReceive); err != nil && !errors.Is(err, task.ErrAlreadyRunning) {
			logrus.WithFields(logrus.Fields{
				"function": "HandleInterrupt",
				"error":    err.Error(),
			}).Error("Failed to start receive task")
		}
	}
}

func (o *Orchestrator) enqueue(packet []byte) {
	select {
	case o.queue <- packet:
	default:
		o.obs.PacketDropped()
		logrus.WithFields(logrus.Fields{
			"function":    "HandleInterrupt",
			"queue_depth": cap(o.queue),
		}).Warn("Packet queue full, dropping packet")
	}
}

// discardRadio drops every packet the radio holds. It returns the count.
func (o *Orchestrator) discardRadio(function string) int {
	n := 0
	for o.radio.PayloadReady() {
		if _, err := o.radio.Receive(0); err != nil {
			break
		}
		n++
	}
	if n > 0 {
		logrus.WithFields(logrus.Fields{
			"function": function,
			"packets":  n,
		}).Debug("Discarded packets heard while transmitting")
	}
	return n
}

// discardBacklog empties the radio and, when no receive task owns them, the
// packet queue and any partial frame. Callers hold o.mu.
func (o *Orchestrator) discardBacklog(function string) {
	o.discardRadio(function)
	if o.sched.IsRunning(ReceiveTask) {
		return
	}
	for len(o.queue) > 0 {
		<-o.queue
	}
	o.reasm.Reset()
}

// Close stops both tasks. The radio, engine and devices stay owned by the
// caller.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed.Swap(true) {
		return nil
	}
	o.sched.StopAll()

	logrus.WithFields(logrus.Fields{
		"function": "Close",
	}).Info("Transport orchestrator closed")
	return nil
}
