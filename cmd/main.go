package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/urfave/cli/v2"
	commonpb "go.temporal.io/api/common/v1"
	"go.temporal.io/sdk/converter"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"iotauth/distkey/codec"
	"iotauth/distkey/config"
	"iotauth/distkey/crypto"
	"iotauth/distkey/logging"
	"iotauth/distkey/metrics"
)

type deps struct {
	fx.In

	Config   config.ConfigProvider
	Logger   *zap.Logger
	Clock    clock.Clock
	Wrapper  crypto.KeyWrapper
	Issuing  *crypto.IssuingMaterialsManager
	Envelope *codec.KeyEnvelope
	Codec    *codec.Codec
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "distkey",
		Usage: "issue and inspect time-bounded distribution keys",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    config.ConfigPathFlag,
				Usage:   "config file",
				Aliases: []string{"c"},
				Value:   config.DefaultConfigPath,
			},
			&cli.StringFlag{
				Name:  config.LogLevelFlag,
				Usage: "log level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "issue",
				Usage: "issue a distribution key and store it wrapped",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "envelope output file", Required: true},
					&cli.StringSliceFlag{Name: "context", Usage: "extra wrapping context as key=value"},
					&cli.BoolFlag{Name: "print-raw", Usage: "also print the unwrapped DKE-1 body as hex"},
				},
				Action: withDeps(issue),
			},
			{
				Name:  "inspect",
				Usage: "show crypto spec and expiration of a stored or raw distribution key",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "in", Aliases: []string{"i"}, Usage: "envelope file"},
					&cli.StringSliceFlag{Name: "context", Usage: "extra wrapping context as key=value"},
					&cli.StringFlag{Name: "hex", Usage: "raw DKE-1 body as hex, instead of --in"},
					&cli.StringFlag{Name: "spec", Usage: "crypto spec of a raw body", Value: config.DefaultCryptoSpec},
				},
				Action: inspect,
			},
			{
				Name:  "encrypt",
				Usage: "seal a file with the current distribution key",
				Flags: ioFlags(),
				Action: withDeps(encrypt),
			},
			{
				Name:  "decrypt",
				Usage: "open a file sealed by encrypt",
				Flags: ioFlags(),
				Action: withDeps(decrypt),
			},
		},
	}
}

func ioFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "in", Aliases: []string{"i"}, Required: true},
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Required: true},
	}
}

// withDeps builds the fx graph, runs fn between start and stop and
// flushes metrics on stop
func withDeps(fn func(*cli.Context, deps) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		var d deps
		app := fx.New(
			fx.Supply(c),
			config.Module,
			logging.Module,
			metrics.Module,
			codec.Module,
			fx.Populate(&d),
			fx.NopLogger,
		)

		startCtx, cancel := context.WithTimeout(c.Context, fx.DefaultTimeout)
		defer cancel()
		if err := app.Start(startCtx); err != nil {
			return err
		}

		runErr := fn(c, d)

		stopCtx, cancelStop := context.WithTimeout(context.Background(), fx.DefaultTimeout)
		defer cancelStop()
		if err := app.Stop(stopCtx); err != nil && runErr == nil {
			return err
		}
		return runErr
	}
}

func issue(c *cli.Context, d deps) error {
	extra, err := parseContext(c.StringSlice("context"))
	if err != nil {
		return err
	}
	envelope := d.Envelope
	if len(extra) > 0 {
		envelope = codec.NewKeyEnvelope(d.Wrapper, extra)
	}

	material, err := d.Issuing.GetMaterial(c.Context, envelope.CryptoContext())
	if err != nil {
		return err
	}
	defer material.Key.Zero()

	data, err := codec.MarshalPayload(envelope.FromMaterial(material))
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.String("out"), data, 0o600); err != nil {
		return fmt.Errorf("failed to write envelope: %w", err)
	}

	d.Logger.Info("distribution key issued",
		zap.String("spec", material.Key.CryptoSpec().Name()),
		zap.Time("expiration", material.Key.ExpirationTime()),
		zap.String("out", c.String("out")),
	)

	if c.Bool("print-raw") {
		fmt.Fprintln(c.App.Writer, hex.EncodeToString(material.Key.Serialize()))
	}
	return nil
}

func inspect(c *cli.Context) error {
	if raw := c.String("hex"); raw != "" {
		spec, err := crypto.ParseCryptoSpec(c.String("spec"))
		if err != nil {
			return err
		}
		data, err := hex.DecodeString(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("failed to decode hex: %w", err)
		}
		key, err := crypto.ParseDistributionKey(data, spec)
		if err != nil {
			return err
		}
		defer key.Zero()

		printKey(c, key, clock.New())
		return nil
	}

	if c.String("in") == "" {
		return fmt.Errorf("one of --in or --hex is required")
	}

	return withDeps(func(c *cli.Context, d deps) error {
		extra, err := parseContext(c.StringSlice("context"))
		if err != nil {
			return err
		}

		data, err := os.ReadFile(c.String("in"))
		if err != nil {
			return fmt.Errorf("failed to read envelope: %w", err)
		}
		payload, err := codec.UnmarshalPayload(data)
		if err != nil {
			return err
		}

		key, err := codec.NewKeyEnvelope(d.Wrapper, extra).Open(c.Context, payload)
		if err != nil {
			return err
		}
		defer key.Zero()

		printKey(c, key, d.Clock)
		return nil
	})(c)
}

// encrypt seals the input file as is, whatever its content
func encrypt(c *cli.Context, d deps) error {
	data, err := os.ReadFile(c.String("in"))
	if err != nil {
		return err
	}

	out, err := d.Codec.Encode([]*commonpb.Payload{{
		Metadata: map[string][]byte{converter.MetadataEncoding: []byte(converter.MetadataEncodingBinary)},
		Data:     data,
	}})
	if err != nil {
		return err
	}

	sealed, err := codec.MarshalPayload(out[0])
	if err != nil {
		return err
	}

	d.Logger.Debug("file encrypted", zap.String("in", c.String("in")), zap.String("out", c.String("out")))
	return os.WriteFile(c.String("out"), sealed, 0o600)
}

// decrypt opens a file written by encrypt and writes the original bytes
func decrypt(c *cli.Context, d deps) error {
	data, err := os.ReadFile(c.String("in"))
	if err != nil {
		return err
	}
	sealed, err := codec.UnmarshalPayload(data)
	if err != nil {
		return err
	}
	if string(sealed.GetMetadata()[converter.MetadataEncoding]) != codec.MetadataEncodingEncrypted {
		return fmt.Errorf("%s is not an encrypted payload", c.String("in"))
	}

	out, err := d.Codec.Decode([]*commonpb.Payload{sealed})
	if err != nil {
		return err
	}

	d.Logger.Debug("file decrypted", zap.String("in", c.String("in")), zap.String("out", c.String("out")))
	return os.WriteFile(c.String("out"), out[0].GetData(), 0o600)
}

func printKey(c *cli.Context, key *crypto.DistributionKey, clk clock.Clock) {
	now := clk.Now()
	fmt.Fprintf(c.App.Writer, "spec:       %s\n", key.CryptoSpec().Name())
	fmt.Fprintf(c.App.Writer, "key length: %d\n", key.CryptoSpec().KeyLength())
	fmt.Fprintf(c.App.Writer, "expiration: %s (%d ms)\n", key.ExpirationTime().UTC().Format(time.RFC3339Nano), key.ExpirationTime().UnixMilli())
	fmt.Fprintf(c.App.Writer, "expired:    %t\n", key.IsExpired(now))
	fmt.Fprintf(c.App.Writer, "remaining:  %s\n", key.Remaining(now).Round(time.Second))
}

func parseContext(entries []string) (map[string]string, error) {
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		k, v, ok := strings.Cut(e, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid context entry %q, expected key=value", e)
		}
		out[k] = v
	}
	return out, nil
}
