// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the word2pdf CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/word2pdf/internal/secrets"
	"github.com/pdiddy/word2pdf/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

const (
	defaultTimeout    = 2 * time.Minute
	defaultDebounce   = 2 * time.Second
	defaultSecretsDir = ".secrets/"
)

var (
	// logger is replaced in PersistentPreRunE once flags are parsed.
	logger = zap.NewNop()

	// loadedSecrets holds credentials loaded from the secrets directory.
	loadedSecrets secrets.Secrets
)

// rootCmd is the base command for the word2pdf CLI.
var rootCmd = &cobra.Command{
	Use:   "word2pdf",
	Short: "Convert a folder of Word documents to PDF",
	Long: `word2pdf walks a folder, finds every Word document (.docx, .doc), and
converts each one to PDF with an installed office engine. The PDFs are
written to a mirrored folder tree, "<folder>_pdf" next to the input by
default.

Engines: Microsoft Word (Windows), LibreOffice (soffice), LibreOffice in a
docker/podman container, or a Gotenberg service. "auto" picks the first one
available.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(viper.GetBool("verbose"))
		if err != nil {
			return err
		}
		logger = l

		s, err := secrets.Load(viper.GetString("secrets_dir"), logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := s.Keys()
			sort.Strings(keys)
			logger.Debug("loaded secrets", zap.Strings("keys", keys))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./word2pdf.yaml or ~/.config/word2pdf/word2pdf.yaml)")
	pf.BoolP("verbose", "v", false, "enable debug logging")
	pf.String("secrets-dir", defaultSecretsDir, "directory holding gotenberg-username and gotenberg-password")

	pf.StringP("backend", "b", string(types.BackendAuto), "conversion engine: auto, word, soffice, container, gotenberg")
	pf.IntP("workers", "w", 1, "documents converted concurrently (Word always uses 1)")
	pf.Duration("timeout", defaultTimeout, "time limit for a single document")
	pf.Duration("settle-delay", 0, "pause after each successful conversion")
	pf.StringSlice("ext", nil, "document extensions to convert (default .docx,.doc)")
	pf.Bool("verify", true, "check that every produced PDF opens and has pages")
	pf.Bool("strict", false, "also run full PDF structure validation")

	pf.String("soffice", "", "path to the soffice binary")
	pf.String("image", "", "container image providing soffice (default libreoffice:latest)")
	pf.String("gotenberg-url", "", "Gotenberg base URL, e.g. http://localhost:3000")
	pf.String("gotenberg-username", "", "Gotenberg basic auth user")
	pf.String("gotenberg-password", "", "Gotenberg basic auth password")

	pf.String("ledger", "", "conversion history database (default ~/.config/word2pdf/ledger.db)")
	pf.Bool("no-ledger", false, "do not record conversion history")

	bindFlags(viper.GetViper(), rootCmd)
}

// flagKeys maps persistent flag names to config keys.
var flagKeys = map[string]string{
	"verbose":            "verbose",
	"secrets-dir":        "secrets_dir",
	"backend":            "conversion.backend",
	"workers":            "conversion.workers",
	"timeout":            "conversion.timeout",
	"settle-delay":       "conversion.settle_delay",
	"ext":                "scan.extensions",
	"verify":             "conversion.verify",
	"strict":             "conversion.strict",
	"soffice":            "office.soffice_path",
	"image":              "container.image",
	"gotenberg-url":      "gotenberg.url",
	"gotenberg-username": "gotenberg.username",
	"gotenberg-password": "gotenberg.password",
	"ledger":             "ledger.path",
	"no-ledger":          "ledger.disabled",
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) {
	cmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			_ = v.BindPFlag(key, f)
		}
	})
	// Short aliases for the settings changed most often.
	_ = v.BindEnv("conversion.backend", "WORD2PDF_BACKEND", "WORD2PDF_CONVERSION_BACKEND")
	_ = v.BindEnv("conversion.workers", "WORD2PDF_WORKERS", "WORD2PDF_CONVERSION_WORKERS")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("word2pdf")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "word2pdf"))
		}
	}

	setDefaults(viper.GetViper())

	viper.SetEnvPrefix("WORD2PDF")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults covers the keys without a flag.
func setDefaults(v *viper.Viper) {
	v.SetDefault("conversion.max_pdf_size", int64(0))
	v.SetDefault("gotenberg.timeout", defaultTimeout)
	v.SetDefault("gotenberg.max_retries", 0)
	v.SetDefault("gotenberg.user_agent", "word2pdf/"+version)
	v.SetDefault("watch.debounce", defaultDebounce)
}

// configFromViper assembles the typed configuration. Gotenberg credentials
// fall back to the secrets directory when no flag, env or config value is set.
func configFromViper(v *viper.Viper, s secrets.Secrets) types.Config {
	return types.Config{
		Scan: types.ScanConfig{
			Extensions: v.GetStringSlice("scan.extensions"),
		},
		Conversion: types.ConversionConfig{
			Backend:     types.Backend(strings.ToLower(v.GetString("conversion.backend"))),
			OutputDir:   v.GetString("conversion.output_dir"),
			Workers:     v.GetInt("conversion.workers"),
			Timeout:     v.GetDuration("conversion.timeout"),
			SettleDelay: v.GetDuration("conversion.settle_delay"),
			Force:       v.GetBool("conversion.force"),
			Verify:      v.GetBool("conversion.verify"),
			Strict:      v.GetBool("conversion.strict"),
			MaxPDFSize:  v.GetInt64("conversion.max_pdf_size"),
		},
		Office: types.OfficeConfig{
			SofficePath: v.GetString("office.soffice_path"),
		},
		Container: types.ContainerConfig{
			Image: v.GetString("container.image"),
		},
		Gotenberg: types.GotenbergConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:    v.GetDuration("gotenberg.timeout"),
				UserAgent:  v.GetString("gotenberg.user_agent"),
				MaxRetries: v.GetInt("gotenberg.max_retries"),
			},
			URL:      v.GetString("gotenberg.url"),
			Username: s.Value(secrets.KeyGotenbergUsername, v.GetString("gotenberg.username")),
			Password: s.Value(secrets.KeyGotenbergPassword, v.GetString("gotenberg.password")),
		},
		Ledger: types.LedgerConfig{
			Path:     v.GetString("ledger.path"),
			Disabled: v.GetBool("ledger.disabled"),
		},
		Watch: types.WatchConfig{
			Debounce: v.GetDuration("watch.debounce"),
		},
	}
}

// loadConfig returns the configuration for the running command, applying
// command-local flags on top of the global settings.
func loadConfig(cmd *cobra.Command) types.Config {
	cfg := configFromViper(viper.GetViper(), loadedSecrets)
	if f := cmd.Flags().Lookup("output-dir"); f != nil && f.Changed {
		cfg.Conversion.OutputDir = f.Value.String()
	}
	if force, err := cmd.Flags().GetBool("force"); err == nil && force {
		cfg.Conversion.Force = true
	}
	return cfg
}

// newLogger builds the production zap logger, at debug level when verbose.
func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return l, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
