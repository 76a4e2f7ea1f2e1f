// Package transport is the rfvox transport orchestrator. It owns the radio
// handle and wires the two half-duplex paths:
//
//	transmit: audio.Input → audio.Codec → crypto.Engine → frame.Splitter → radio.Send
//	receive:  interrupt → radio.Receive → queue → frame.Reassembler → crypto.Engine → audio.Codec → effects → audio.Output
//
// Each path runs as a named task.Scheduler task. The radio's payload-ready
// interrupt only moves packets into a bounded queue and starts the receive
// task; decryption and decoding happen on the receive task.
//
// # Half-duplex
//
// Transmit and receive never run at the same time. StartTransmit stops a
// running receive task before transmitting, and while transmitting
// HandleInterrupt stops any receive task and ignores the notification.
//
// # Timeout recovery
//
// When no packet arrives within Config.BufferTimeout the receive task closes
// the audio output, discards any partial frame and exits. The next interrupt
// starts a fresh receive task.
//
// Example:
//
//	orch, err := transport.New(transport.DefaultConfig(), r, engine, codec, in, out,
//		transport.WithObserver(metrics.NewObserver(nil)))
//	if err != nil {
//		return err
//	}
//	defer orch.Close()
//
//	orch.StartTransmit()
//	...
//	orch.StopTransmit()
package transport
