package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rfvox/frame"
	"github.com/opd-ai/rfvox/task"
	"github.com/opd-ai/rfvox/transport"
)

// NewRegistry returns a fresh Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// Handler returns a Prometheus HTTP handler bound to the registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Observer exports transport and reassembly events to Prometheus. It
// implements transport.Observer.
type Observer struct {
	packetsSent     prometheus.Counter
	packetsReceived prometheus.Counter
	packetsDropped  prometheus.Counter
	framesSent      prometheus.Counter
	framesPlayed    prometheus.Counter
	framesDropped   *prometheus.CounterVec
	frameBytes      *prometheus.HistogramVec
	sequenceGaps    prometheus.Counter
	failures        *prometheus.CounterVec
	receiveTimeouts prometheus.Counter
}

// NewObserver registers transport metrics on the registry.
func NewObserver(reg *prometheus.Registry) *Observer {
	o := &Observer{
		packetsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rfvox_packets_sent_total",
			Help: "Radio packets transmitted.",
		}),
		packetsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rfvox_packets_received_total",
			Help: "Radio packets pulled by the interrupt handler.",
		}),
		packetsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rfvox_packets_dropped_total",
			Help: "Received packets dropped on a full queue.",
		}),
		framesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rfvox_frames_sent_total",
			Help: "Frames fully transmitted.",
		}),
		framesPlayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rfvox_frames_played_total",
			Help: "Received frames written to the audio output.",
		}),
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rfvox_frames_dropped_total",
			Help: "Frames discarded by the reassembler, by reason.",
		}, []string{"reason"}),
		frameBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rfvox_frame_payload_bytes",
			Help:    "Frame payload size by direction.",
			Buckets: prometheus.ExponentialBuckets(16, 2, 10),
		}, []string{"direction"}),
		sequenceGaps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rfvox_sequence_gap_frames_total",
			Help: "Frames missing from the received sequence.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rfvox_frame_failures_total",
			Help: "Per-frame failures by pipeline stage.",
		}, []string{"stage"}),
		receiveTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rfvox_receive_timeouts_total",
			Help: "Receive sessions ended by the buffer timeout.",
		}),
	}
	reg.MustRegister(
		o.packetsSent,
		o.packetsReceived,
		o.packetsDropped,
		o.framesSent,
		o.framesPlayed,
		o.framesDropped,
		o.frameBytes,
		o.sequenceGaps,
		o.failures,
		o.receiveTimeouts,
	)
	return o
}

func (o *Observer) PacketSent() {
	o.packetsSent.Inc()
}

func (o *Observer) PacketReceived() {
	o.packetsReceived.Inc()
}

func (o *Observer) PacketDropped() {
	o.packetsDropped.Inc()
}

func (o *Observer) FrameSent(size int) {
	o.framesSent.Inc()
	o.frameBytes.WithLabelValues("tx").Observe(float64(size))
}

func (o *Observer) FramePlayed() {
	o.framesPlayed.Inc()
}

func (o *Observer) FrameReassembled(size int) {
	o.frameBytes.WithLabelValues("rx").Observe(float64(size))
}

func (o *Observer) FrameDropped(reason frame.DropReason) {
	o.framesDropped.WithLabelValues(reason.String()).Inc()
}

func (o *Observer) SequenceGap(missed int) {
	o.sequenceGaps.Add(float64(missed))
}

func (o *Observer) Failure(stage string) {
	o.failures.WithLabelValues(stage).Inc()
}

func (o *Observer) ReceiveTimeout() {
	o.receiveTimeouts.Inc()
}

// RegisterScheduler exports whether each transport task is running.
func RegisterScheduler(reg *prometheus.Registry, s *task.Scheduler) {
	for _, name := range []string{transport.TransmitTask, transport.ReceiveTask} {
		name := name
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "rfvox_task_running",
			Help:        "Whether the task is running (1) or not (0).",
			ConstLabels: prometheus.Labels{"task": name},
		}, func() float64 {
			if s.IsRunning(name) {
				return 1
			}
			return 0
		}))
	}
}

// Serve exposes the registry at /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(reg))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logrus.WithFields(logrus.Fields{
		"function": "Serve",
		"addr":     addr,
	}).Info("Serving metrics")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

var _ transport.Observer = (*Observer)(nil)
