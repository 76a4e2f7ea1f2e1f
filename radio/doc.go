// Package radio defines the packet radio boundary of rfvox.
//
// A Radio moves opaque packets of at most limits.PacketSize bytes. Drivers
// that can signal packet arrival also implement Interrupter; the callback
// carries no payload and the handler pulls the packet with Receive, the way
// a transceiver raises a payload-ready line.
//
// Drivers:
//
//   - radio/stub: in-memory loopback for tests and demos.
//   - radio/udp: one datagram per packet between two hosts.
package radio
