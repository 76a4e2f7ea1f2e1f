// Package main is the rfvox transceiver.
//
// Usage:
//
//	rfvox [run] [-config rfvox.yaml] [flags]   start the transceiver
//	rfvox keygen [-keys dir] [-force]           create hybrid key material
//	rfvox rekey -old-env VAR -new-env VAR       re-seal private keys
//
// While running, commands are read from standard input, one per line:
//
//	t          start transmitting (push to talk)
//	r          stop transmitting and listen
//	m <mode>   switch encryption mode (none, aes, rsa, hybrid)
//	s          show active tasks
//	q          quit
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rfvox/audio"
	"github.com/opd-ai/rfvox/audio/malgo"
	"github.com/opd-ai/rfvox/audio/opus"
	"github.com/opd-ai/rfvox/config"
	"github.com/opd-ai/rfvox/crypto"
	"github.com/opd-ai/rfvox/logging"
	"github.com/opd-ai/rfvox/metrics"
	"github.com/opd-ai/rfvox/radio"
	"github.com/opd-ai/rfvox/radio/stub"
	"github.com/opd-ai/rfvox/radio/udp"
	"github.com/opd-ai/rfvox/transport"
)

func main() {
	args := os.Args[1:]
	cmd := "run"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "run":
		err = run(args)
	case "keygen":
		err = keygen(args)
	case "rekey":
		err = rekey(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want run, keygen or rekey)\n", cmd)
		os.Exit(2)
	}

	if err != nil && !errors.Is(err, flag.ErrHelp) {
		logrus.WithFields(logrus.Fields{
			"function": "main",
			"command":  cmd,
			"error":    err.Error(),
		}).Fatal("rfvox failed")
	}
}

// loadConfig reads the optional -config file and applies flag overrides.
func loadConfig(fs *flag.FlagSet, args []string) (config.Config, error) {
	var path string
	for i, a := range args {
		switch {
		case (a == "-config" || a == "--config") && i+1 < len(args):
			path = args[i+1]
		case strings.HasPrefix(a, "-config="), strings.HasPrefix(a, "--config="):
			path = a[strings.Index(a, "=")+1:]
		}
	}

	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	fs.String("config", path, "YAML configuration file")
	cfg.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func run(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}

	logCloser, err := logging.Setup(cfg.Logging.Options())
	if err != nil {
		return err
	}
	defer logCloser.Close()

	keys, err := crypto.LoadOrGenerateKeys(cfg.KeyConfig())
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "run",
			"dir":      cfg.Keys.Dir,
			"error":    err.Error(),
		}).Fatal("Cannot load key material")
	}

	engine, err := crypto.NewEngine(keys, cfg.Crypto.Mode)
	if err != nil {
		return err
	}
	defer engine.Close()

	codec, err := buildCodec(cfg)
	if err != nil {
		return err
	}

	r, closeRadio, err := buildRadio(cfg)
	if err != nil {
		return err
	}
	defer closeRadio()

	effects, err := cfg.EffectChain()
	if err != nil {
		return err
	}

	format := cfg.Format()
	in := malgo.NewInput(malgo.Config{Format: format, Device: cfg.Audio.InputDevice})
	out := malgo.NewOutput(malgo.Config{Format: format, Device: cfg.Audio.OutputDevice})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []transport.Option{}
	if effects != nil {
		opts = append(opts, transport.WithEffects(effects))
		defer effects.Close()
	}

	reg := metrics.NewRegistry()
	if cfg.Metrics.Addr != "" {
		opts = append(opts, transport.WithObserver(metrics.NewObserver(reg)))
	}

	orch, err := transport.New(cfg.Transport(), r, engine, codec, in, out, opts...)
	if err != nil {
		return err
	}
	defer orch.Close()

	if cfg.Metrics.Addr != "" {
		metrics.RegisterScheduler(reg, orch.Scheduler())
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, reg); err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "run",
					"error":    err.Error(),
				}).Error("Metrics server failed")
			}
		}()
	}

	if err := r.Listen(); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "run",
		"mode":     cfg.Crypto.Mode.String(),
		"protocol": cfg.Protocol.Version,
		"codec":    cfg.Audio.Codec,
		"radio":    cfg.Radio.Kind,
	}).Info("rfvox ready")

	return control(ctx, orch, os.Stdin, os.Stdout)
}

// control executes operator commands until quit, EOF or ctx is done.
func control(ctx context.Context, orch *transport.Orchestrator, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				<-ctx.Done()
				return nil
			}
			if quit := execute(orch, strings.Fields(line), out); quit {
				return nil
			}
		}
	}
}

func execute(orch *transport.Orchestrator, fields []string, out io.Writer) (quit bool) {
	if len(fields) == 0 {
		return false
	}

	var err error
	switch fields[0] {
	case "t":
		err = orch.StartTransmit()
	case "r":
		err = orch.StopTransmit()
	case "m":
		if len(fields) != 2 {
			err = errors.New("usage: m <none|aes|rsa|hybrid>")
			break
		}
		var mode crypto.Mode
		if mode, err = crypto.ParseMode(fields[1]); err == nil {
			err = orch.SetMode(mode)
		}
	case "s":
		fmt.Fprintf(out, "mode=%s tasks=%v\n", orch.Mode(), orch.Scheduler().ListActive())
	case "q":
		return true
	default:
		err = fmt.Errorf("unknown command %q", fields[0])
	}

	if err != nil {
		fmt.Fprintln(out, "error:", err)
	}
	return false
}

func buildCodec(cfg config.Config) (audio.Codec, error) {
	if cfg.Audio.Codec == "opus" {
		c, err := opus.NewCodec(cfg.Format(), cfg.Audio.Bitrate)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return audio.NewCodec(cfg.Audio.Codec, cfg.Format())
}

func buildRadio(cfg config.Config) (radio.Radio, func(), error) {
	switch cfg.Radio.Kind {
	case config.RadioUDP:
		r, err := udp.New(cfg.Radio.Listen, cfg.Radio.Peer)
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	case config.RadioStub:
		r := stub.New()
		return r, func() { _ = r.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown radio kind %q", cfg.Radio.Kind)
	}
}

func keygen(args []string) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	cfg, force := config.Default(), false
	fs.StringVar(&cfg.Keys.Dir, "keys", cfg.Keys.Dir, "key material directory")
	fs.IntVar(&cfg.Keys.Bits, "bits", cfg.Keys.Bits, "RSA key size")
	fs.StringVar(&cfg.Keys.PassphraseEnv, "passphrase-env", "", "environment variable holding the sealing passphrase")
	fs.BoolVar(&force, "force", false, "overwrite existing hybrid keys")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	h, err := crypto.CreateHybridKeys(cfg.KeyConfig(), force)
	if err != nil {
		return err
	}
	defer h.Wipe()

	fmt.Printf("hybrid keys written to %s\n", cfg.Keys.Dir)
	return nil
}

func rekey(args []string) error {
	fs := flag.NewFlagSet("rekey", flag.ContinueOnError)
	dir := fs.String("keys", config.Default().Keys.Dir, "key material directory")
	oldEnv := fs.String("old-env", "", "environment variable holding the current passphrase")
	newEnv := fs.String("new-env", "", "environment variable holding the new passphrase")
	if err := fs.Parse(args); err != nil {
		return err
	}

	oldPass, newPass := os.Getenv(*oldEnv), os.Getenv(*newEnv)
	if *oldEnv == "" || *newEnv == "" || oldPass == "" || newPass == "" {
		return errors.New("rekey needs -old-env and -new-env naming non-empty variables")
	}

	store, err := crypto.NewSealedStore(*dir, []byte(oldPass))
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Rotate([]byte(newPass), crypto.PrivateKeyFile, crypto.HybridPrivateFile); err != nil {
		return err
	}
	fmt.Printf("private keys in %s re-sealed\n", *dir)
	return nil
}
