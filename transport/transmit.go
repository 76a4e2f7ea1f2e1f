package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rfvox/audio"
	"github.com/opd-ai/rfvox/task"
)

// RunTransmit is the transmit task body. It reads PCM frames until stopped,
// sending each as one frame of packets. A failed frame is logged and skipped.
// The audio input is closed on return.
func (o *Orchestrator) RunTransmit(ctx context.Context, sig *task.Signal) {
	log := logrus.WithFields(runFields(ctx, "RunTransmit"))

	if !o.openInput(ctx, log) {
		return
	}
	stop := context.AfterFunc(ctx, func() { _ = o.input.Close() })
	defer stop()
	defer func() {
		_ = o.input.Close()
		log.Info("Transmit task stopped, audio input closed")
	}()

	log.Info("Transmit task started")

	for sig.Wait(ctx) {
		pcm, err := o.input.Read(o.cfg.FrameSize)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, audio.ErrDeviceClosed) {
				log.WithField("error", err.Error()).Error("Audio input closed unexpectedly")
				return
			}
			log.WithField("error", err.Error()).Warn("Audio read failed")
			continue
		}

		if err := o.transmitFrame(ctx, pcm); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithField("error", err.Error()).Warn("Dropping transmit frame")
		}
	}
}

func (o *Orchestrator) openInput(ctx context.Context, log *logrus.Entry) bool {
	for {
		err := o.input.Open()
		if err == nil {
			return true
		}
		log.WithField("error", err.Error()).Error("Failed to open audio input, retrying")

		select {
		case <-ctx.Done():
			return false
		case <-time.After(o.cfg.OpenRetry):
		}
	}
}

// transmitFrame encodes, encrypts, splits and sends one PCM frame.
func (o *Orchestrator) transmitFrame(ctx context.Context, pcm []int16) error {
	data, err := o.codec.Encode(pcm, o.cfg.FrameSize)
	if err != nil {
		o.obs.Failure(StageEncode)
		return fmt.Errorf("encode: %w", err)
	}

	payload, err := o.engine.Encrypt(data)
	if err != nil {
		o.obs.Failure(StageEncrypt)
		return fmt.Errorf("encrypt: %w", err)
	}

	packets, err := o.splitter.Split(payload)
	if err != nil {
		o.obs.Failure(StageSplit)
		return fmt.Errorf("split: %w", err)
	}

	for i, packet := range packets {
		if err := o.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := o.radio.Send(packet); err != nil {
			o.obs.Failure(StageSend)
			return fmt.Errorf("send packet %d/%d: %w", i+1, len(packets), err)
		}
		o.obs.PacketSent()
	}

	o.obs.FrameSent(len(payload))
	return nil
}

// runFields returns log fields identifying the task run behind ctx.
func runFields(ctx context.Context, function string) logrus.Fields {
	fields := logrus.Fields{"function": function}
	if name, runID, ok := task.FromContext(ctx); ok {
		fields["task"] = name
		fields["run_id"] = runID.String()
	}
	return fields
}
