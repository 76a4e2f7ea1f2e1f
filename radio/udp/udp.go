// Package udp carries radio packets over UDP, one datagram per packet. It
// stands in for an RF link between two hosts, for bench testing without
// transceivers or for bridging a radio into a network.
package udp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rfvox/limits"
	"github.com/opd-ai/rfvox/radio"
)

const (
	// QueueDepth is the number of received packets held before new ones are
	// dropped.
	QueueDepth = 256

	readTimeout = 100 * time.Millisecond
)

// Radio implements radio.Radio and radio.Interrupter over a UDP socket.
type Radio struct {
	conn       net.PacketConn
	listenAddr net.Addr
	peer       net.Addr
	rx         chan []byte

	mu      sync.RWMutex
	handler func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New listens on listenAddr and sends to peerAddr. Datagrams from other
// sources are ignored.
func New(listenAddr, peerAddr string) (*Radio, error) {
	peer, err := net.ResolveUDPAddr("udp", peerAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve peer %q: %w", peerAddr, err)
	}

	conn, err := net.ListenPacket("udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen %q: %w", listenAddr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Radio{
		conn:       conn,
		listenAddr: conn.LocalAddr(),
		peer:       peer,
		rx:         make(chan []byte, QueueDepth),
		ctx:        ctx,
		cancel:     cancel,
	}

	r.wg.Add(1)
	go r.processPackets()

	logrus.WithFields(logrus.Fields{
		"function": "udp.New",
		"listen":   r.listenAddr.String(),
		"peer":     peer.String(),
	}).Info("UDP radio started")
	return r, nil
}

// Send transmits one packet to the peer.
func (r *Radio) Send(packet []byte) error {
	if err := limits.ValidateMessageSize(packet, limits.PacketSize); err != nil {
		return fmt.Errorf("%w: %v", radio.ErrPacketSize, err)
	}
	if r.ctx.Err() != nil {
		return radio.ErrClosed
	}
	_, err := r.conn.WriteTo(packet, r.peer)
	return err
}

// Receive returns the next packet, waiting up to timeout.
func (r *Radio) Receive(timeout time.Duration) ([]byte, error) {
	select {
	case p := <-r.rx:
		return p, nil
	default:
	}
	if timeout <= 0 {
		if r.ctx.Err() != nil {
			return nil, radio.ErrClosed
		}
		return nil, radio.ErrTimeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case p := <-r.rx:
		return p, nil
	case <-timer.C:
		return nil, radio.ErrTimeout
	case <-r.ctx.Done():
		return nil, radio.ErrClosed
	}
}

// PayloadReady reports whether a packet is waiting.
func (r *Radio) PayloadReady() bool {
	return len(r.rx) > 0
}

// Listen is a no-op: the socket always receives.
func (r *Radio) Listen() error {
	if r.ctx.Err() != nil {
		return radio.ErrClosed
	}
	return nil
}

// OnPayloadReady registers the interrupt handler. It runs on the read
// goroutine.
func (r *Radio) OnPayloadReady(handler func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = handler
}

// LocalAddr returns the address the radio is listening on.
func (r *Radio) LocalAddr() net.Addr {
	return r.listenAddr
}

// Close shuts down the socket and waits for the read loop.
func (r *Radio) Close() error {
	r.cancel()
	err := r.conn.Close()
	r.wg.Wait()
	return err
}

func (r *Radio) processPackets() {
	defer r.wg.Done()
	buffer := make([]byte, 2048)

	for {
		select {
		case <-r.ctx.Done():
			return
		default:
			r.processIncomingPacket(buffer)
		}
	}
}

func (r *Radio) processIncomingPacket(buffer []byte) {
	_ = r.conn.SetReadDeadline(time.Now().Add(readTimeout))

	n, addr, err := r.conn.ReadFrom(buffer)
	if err != nil {
		r.handleReadError(err)
		return
	}

	if !r.fromPeer(addr) {
		logrus.WithFields(logrus.Fields{
			"function": "Radio.processIncomingPacket",
			"source":   addr.String(),
		}).Debug("Ignoring datagram from unknown source")
		return
	}
	if err := limits.ValidateMessageSize(buffer[:n], limits.PacketSize); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Radio.processIncomingPacket",
			"size":     n,
			"error":    err.Error(),
		}).Warn("Dropping malformed datagram")
		return
	}

	packet := make([]byte, n)
	copy(packet, buffer[:n])

	select {
	case r.rx <- packet:
	default:
		logrus.WithFields(logrus.Fields{
			"function": "Radio.processIncomingPacket",
		}).Warn("Receive queue full, dropping packet")
		return
	}

	r.mu.RLock()
	handler := r.handler
	r.mu.RUnlock()
	if handler != nil {
		handler()
	}
}

func (r *Radio) handleReadError(err error) {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return
	}
	if r.ctx.Err() != nil {
		return
	}
	logrus.WithFields(logrus.Fields{
		"function": "Radio.processIncomingPacket",
		"error":    err.Error(),
	}).Warn("UDP read failed")
	// Avoid spinning on a persistent socket error.
	time.Sleep(readTimeout)
}

func (r *Radio) fromPeer(addr net.Addr) bool {
	ua, ok := addr.(*net.UDPAddr)
	pa, ok2 := r.peer.(*net.UDPAddr)
	if !ok || !ok2 {
		return addr.String() == r.peer.String()
	}
	if ua.Port != pa.Port {
		return false
	}
	return pa.IP.IsUnspecified() || ua.IP.Equal(pa.IP) || (pa.IP.IsLoopback() && ua.IP.IsLoopback())
}

var (
	_ radio.Radio       = (*Radio)(nil)
	_ radio.Interrupter = (*Radio)(nil)
)
