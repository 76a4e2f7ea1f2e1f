package transport

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rfvox/task"
)

// RunReceive is the receive task body. It blocks while paused, then drains
// the packet queue until no packet arrives for Config.BufferTimeout. On
// timeout it closes the audio output, resets the reassembler and returns.
func (o *Orchestrator) RunReceive(ctx context.Context, sig *task.Signal) {
	log := logrus.WithFields(runFields(ctx, "RunReceive"))

	if !sig.Wait(ctx) {
		return
	}

	if err := o.output.Open(); err != nil {
		log.WithField("error", err.Error()).Error("Failed to open audio output")
	}
	defer func() {
		_ = o.output.Close()
		log.Info("Receive task stopped, audio output closed")
	}()

	log.Info("Receive task started")

	timer := time.NewTimer(o.cfg.BufferTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case packet := <-o.queue:
			o.receivePacket(log, packet)
		case <-timer.C:
			o.obs.ReceiveTimeout()
			o.reasm.Reset()
			log.WithField("buffer_timeout", o.cfg.BufferTimeout.String()).
				Info("No packet within buffer timeout, ending receive session")
			return
		}

		if !sig.Wait(ctx) {
			return
		}
		timer.Reset(o.cfg.BufferTimeout)
	}
}

// receivePacket feeds one packet to the reassembler and plays the frame it
// completes, if any.
func (o *Orchestrator) receivePacket(log *logrus.Entry, packet []byte) {
	payload, ready := o.reasm.Push(packet)
	if !ready {
		return
	}

	data, err := o.engine.Decrypt(payload)
	if err != nil {
		o.obs.Failure(StageDecrypt)
		return
	}

	pcm, err := o.codec.Decode(data, o.cfg.FrameSize)
	if err != nil {
		o.obs.Failure(StageDecode)
		log.WithFields(logrus.Fields{
			"error": err.Error(),
			"size":  len(data),
		}).Warn("Decode failed, dropping frame")
		return
	}

	if o.effects != nil {
		pcm, err = o.effects.Process(pcm)
		if err != nil {
			o.obs.Failure(StageEffects)
			log.WithField("error", err.Error()).Warn("Output effects failed, dropping frame")
			return
		}
	}

	if err := o.output.Write(pcm); err != nil {
		o.obs.Failure(StageWrite)
		log.WithField("error", err.Error()).Warn("Audio write failed")
		return
	}
	o.obs.FramePlayed()
}
