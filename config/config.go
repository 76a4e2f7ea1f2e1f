package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/opd-ai/rfvox/audio"
	"github.com/opd-ai/rfvox/crypto"
	"github.com/opd-ai/rfvox/frame"
	"github.com/opd-ai/rfvox/limits"
	"github.com/opd-ai/rfvox/logging"
	"github.com/opd-ai/rfvox/transport"
)

// ErrInvalid is returned by Validate and Load for unusable settings.
var ErrInvalid = errors.New("invalid configuration")

// Radio kinds.
const (
	RadioStub = "stub"
	RadioUDP  = "udp"
)

// Config is the complete rfvox configuration.
type Config struct {
	Keys     Keys     `yaml:"keys"`
	Protocol Protocol `yaml:"protocol"`
	Crypto   Crypto   `yaml:"crypto"`
	Audio    Audio    `yaml:"audio"`
	Effects  Effects  `yaml:"effects"`
	Radio    Radio    `yaml:"radio"`
	Logging  Logging  `yaml:"logging"`
	Metrics  Metrics  `yaml:"metrics"`
}

// Keys locates the key material.
type Keys struct {
	Dir  string `yaml:"dir"`
	Bits int    `yaml:"bits"`
	// PassphraseEnv names an environment variable holding the passphrase
	// that seals the private keys. Empty stores them unsealed.
	PassphraseEnv string `yaml:"passphrase_env"`
}

// Protocol tunes the frame protocol and the transport.
type Protocol struct {
	Version       int           `yaml:"version"`
	BufferTimeout time.Duration `yaml:"buffer_timeout"`
	PacketDelay   time.Duration `yaml:"packet_delay"`
	QueueDepth    int           `yaml:"queue_depth"`
}

// Crypto selects the encryption mode.
type Crypto struct {
	Mode crypto.Mode `yaml:"mode"`
}

// Audio selects devices, format and codec.
type Audio struct {
	SampleRate   int    `yaml:"sample_rate"`
	Channels     int    `yaml:"channels"`
	FrameSize    int    `yaml:"frame_size"`
	InputDevice  string `yaml:"input_device"`
	OutputDevice string `yaml:"output_device"`
	// Codec is one of pcm, lz4, opus or opus-decode.
	Codec   string `yaml:"codec"`
	Bitrate int    `yaml:"bitrate"`
}

// Effects configures the output effect chain. Zero values disable a stage.
type Effects struct {
	Volume             int     `yaml:"volume"`
	NoiseGate          float64 `yaml:"noise_gate"`
	NormalizeTarget    float64 `yaml:"normalize_target"`
	NormalizeSmoothing float64 `yaml:"normalize_smoothing"`
}

// Radio selects the radio driver.
type Radio struct {
	Kind   string `yaml:"kind"`
	Listen string `yaml:"listen"`
	Peer   string `yaml:"peer"`
}

// Logging configures logrus output.
type Logging struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	Console    bool   `yaml:"console"`
	JSON       bool   `yaml:"json"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Options converts the section for logging.Setup.
func (l Logging) Options() logging.Options {
	return logging.Options{
		Level:      l.Level,
		Console:    l.Console,
		File:       l.File,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		JSON:       l.JSON,
	}
}

// Metrics configures the Prometheus endpoint. Empty Addr disables it.
type Metrics struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	tc := transport.DefaultConfig()
	return Config{
		Keys: Keys{
			Dir:  "keys",
			Bits: limits.RSAKeyBits,
		},
		Protocol: Protocol{
			Version:       int(tc.Version),
			BufferTimeout: tc.BufferTimeout,
			PacketDelay:   tc.PacketDelay,
			QueueDepth:    tc.QueueDepth,
		},
		Crypto: Crypto{Mode: crypto.ModeNone},
		Audio: Audio{
			SampleRate: audio.DefaultFormat.SampleRate,
			Channels:   audio.DefaultFormat.Channels,
			FrameSize:  audio.DefaultFormat.FrameSize,
			Codec:      "opus",
			Bitrate:    24000,
		},
		Effects: Effects{
			Volume:             100,
			NoiseGate:          300,
			NormalizeTarget:    3000,
			NormalizeSmoothing: 0.9,
		},
		Radio: Radio{
			Kind:   RadioUDP,
			Listen: "0.0.0.0:7000",
			Peer:   "127.0.0.1:7000",
		},
		Logging: Logging{
			Level:      "info",
			Console:    true,
			MaxSizeMB:  5,
			MaxBackups: 5,
		},
	}
}

// Load reads path over the defaults. Unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Load",
		"path":     path,
	}).Debug("Loaded configuration file")
	return cfg, cfg.Validate()
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	if c.Keys.Dir == "" {
		return fmt.Errorf("%w: keys.dir is empty", ErrInvalid)
	}
	if c.Keys.Bits < 2048 {
		return fmt.Errorf("%w: keys.bits %d is below 2048", ErrInvalid, c.Keys.Bits)
	}
	if !c.Crypto.Mode.Valid() {
		return fmt.Errorf("%w: crypto.mode %d", ErrInvalid, int(c.Crypto.Mode))
	}
	if err := c.Transport().Validate(); err != nil {
		return fmt.Errorf("%w: protocol: %v", ErrInvalid, err)
	}
	if err := c.Format().Validate(); err != nil {
		return fmt.Errorf("%w: audio: %v", ErrInvalid, err)
	}
	switch c.Audio.Codec {
	case "pcm", "lz4", "opus", "opus-decode":
	default:
		return fmt.Errorf("%w: audio.codec %q", ErrInvalid, c.Audio.Codec)
	}
	if c.Effects.Volume < 0 || c.Effects.Volume > 400 {
		return fmt.Errorf("%w: effects.volume %d outside 0-400", ErrInvalid, c.Effects.Volume)
	}
	switch c.Radio.Kind {
	case RadioStub:
	case RadioUDP:
		if c.Radio.Listen == "" || c.Radio.Peer == "" {
			return fmt.Errorf("%w: udp radio needs listen and peer", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: radio.kind %q", ErrInvalid, c.Radio.Kind)
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: logging.level: %v", ErrInvalid, err)
	}
	return nil
}

// Transport returns the orchestrator settings.
func (c Config) Transport() transport.Config {
	tc := transport.DefaultConfig()
	tc.Version = frame.Version(c.Protocol.Version)
	tc.FrameSize = c.Audio.FrameSize
	tc.BufferTimeout = c.Protocol.BufferTimeout
	tc.PacketDelay = c.Protocol.PacketDelay
	tc.QueueDepth = c.Protocol.QueueDepth
	return tc
}

// Format returns the PCM format.
func (c Config) Format() audio.Format {
	return audio.Format{
		SampleRate: c.Audio.SampleRate,
		Channels:   c.Audio.Channels,
		FrameSize:  c.Audio.FrameSize,
	}
}

// KeyConfig returns the key loader settings. Protocol v1 peers share the
// stored IV; v2 derives one per message.
func (c Config) KeyConfig() crypto.KeyConfig {
	policy := crypto.IVPerMessage
	if frame.Version(c.Protocol.Version) == frame.V1 {
		policy = crypto.IVFixed
	}

	kc := crypto.KeyConfig{
		Dir:    c.Keys.Dir,
		Bits:   c.Keys.Bits,
		Policy: policy,
	}
	if c.Keys.PassphraseEnv != "" {
		if pass := os.Getenv(c.Keys.PassphraseEnv); pass != "" {
			kc.Passphrase = []byte(pass)
		}
	}
	return kc
}

// EffectChain builds the output effect chain: noise gate, normalizer, then
// volume. It returns nil when every stage is disabled.
func (c Config) EffectChain() (*audio.EffectChain, error) {
	chain := audio.NewEffectChain()
	if c.Effects.NoiseGate > 0 {
		chain.AddEffect(audio.NewNoiseGateEffect(c.Effects.NoiseGate))
	}
	if c.Effects.NormalizeTarget > 0 {
		chain.AddEffect(audio.NewNormalizeEffect(c.Effects.NormalizeTarget, c.Effects.NormalizeSmoothing))
	}
	if c.Effects.Volume != 100 {
		gain, err := audio.NewVolumeEffect(c.Effects.Volume)
		if err != nil {
			return nil, err
		}
		chain.AddEffect(gain)
	}
	if chain.GetEffectCount() == 0 {
		return nil, nil
	}
	return chain, nil
}

// modeFlag adapts crypto.Mode to flag.Value.
type modeFlag struct{ m *crypto.Mode }

func (f modeFlag) String() string {
	if f.m == nil {
		return ""
	}
	return f.m.String()
}

func (f modeFlag) Set(s string) error {
	return f.m.UnmarshalText([]byte(s))
}

// BindFlags registers command-line overrides for the most common settings.
// Flags write straight into c, so parse them after Load.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Keys.Dir, "keys", c.Keys.Dir, "key material directory")
	fs.Var(modeFlag{&c.Crypto.Mode}, "mode", "encryption mode: none, aes, rsa or hybrid")
	fs.IntVar(&c.Protocol.Version, "protocol", c.Protocol.Version, "frame protocol version (1 or 2)")
	fs.DurationVar(&c.Protocol.BufferTimeout, "buffer-timeout", c.Protocol.BufferTimeout, "receive buffer timeout")
	fs.DurationVar(&c.Protocol.PacketDelay, "packet-delay", c.Protocol.PacketDelay, "delay between transmitted packets")
	fs.StringVar(&c.Audio.Codec, "codec", c.Audio.Codec, "audio codec: pcm, lz4, opus or opus-decode")
	fs.StringVar(&c.Radio.Kind, "radio", c.Radio.Kind, "radio driver: udp or stub")
	fs.StringVar(&c.Radio.Listen, "listen", c.Radio.Listen, "udp radio listen address")
	fs.StringVar(&c.Radio.Peer, "peer", c.Radio.Peer, "udp radio peer address")
	fs.StringVar(&c.Logging.Level, "log-level", c.Logging.Level, "log level")
	fs.StringVar(&c.Logging.File, "log-file", c.Logging.File, "rotating log file (empty for none)")
	fs.StringVar(&c.Metrics.Addr, "metrics", c.Metrics.Addr, "Prometheus listen address (empty disables)")
}

// String renders the configuration as YAML.
func (c Config) String() string {
	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return strings.TrimSpace(string(out))
}
