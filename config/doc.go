// Package config loads the rfvox configuration from YAML, applies defaults
// and command-line overrides, and converts it into the settings of the
// individual packages.
//
// Example file:
//
//	keys:
//	  dir: ./keys
//	protocol:
//	  version: 2
//	  buffer_timeout: 1s
//	  packet_delay: 1.4ms
//	crypto:
//	  mode: hybrid
//	audio:
//	  codec: opus
//	radio:
//	  kind: udp
//	  listen: 0.0.0.0:7000
//	  peer: 192.168.1.20:7000
//	logging:
//	  level: info
//	  file: rfvox.log
//	metrics:
//	  addr: 127.0.0.1:9100
package config
