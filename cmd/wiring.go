package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adam01140114/WaterData/internal/config"
	"github.com/Adam01140114/WaterData/internal/repository"
	"github.com/Adam01140114/WaterData/internal/store"
)

// app is the opened storage stack shared by every command that touches
// readings.
type app struct {
	cfg   *config.Config
	loc   *time.Location
	store *store.Fallback
	repo  *repository.Repository
}

// loadConfig sets up logging and reads the configuration. The --log-format
// flag wins over log_format from the config file.
func loadConfig() (*config.Config, error) {
	setupLogging(logFormat)
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	setupLogging(effectiveLogFormat(rootCmd.PersistentFlags().Changed("log-format"), logFormat, cfg.LogFormat))
	return cfg, nil
}

func effectiveLogFormat(flagSet bool, flagValue, configValue string) string {
	if flagSet || configValue == "" {
		return flagValue
	}
	return configValue
}

// openApp opens the local store, connects the remote store when enabled and
// loads the repository. A remote store that cannot be reached within the
// configured timeout is logged and skipped. onFallback may be nil.
func openApp(ctx context.Context, cfg *config.Config, onFallback func(op string, err error)) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	local, err := store.NewSQLiteStore(cfg.Storage.Local.Path, loc)
	if err != nil {
		return nil, err
	}

	var remote store.Store
	if cfg.Storage.Remote.Enabled {
		ps, err := store.ConnectPostgres(ctx, cfg.Storage.Remote.DSN, cfg.Storage.Remote.ConnectTimeout, slog.Default())
		if err != nil {
			slog.Warn("remote store unavailable, using local storage",
				"dsn", redactDSN(cfg.Storage.Remote.DSN),
				"error", err,
			)
		} else {
			remote = ps
		}
	}

	fb := store.NewFallback(remote, local, slog.Default())
	fb.OnFallback = onFallback

	repo := repository.New(fb,
		repository.WithLocation(loc),
		repository.WithSites(cfg.Sites...),
		repository.WithLogger(slog.Default()),
	)
	if err := repo.Load(ctx); err != nil {
		_ = fb.Close()
		return nil, err
	}

	slog.Info("storage ready", "mode", fb.Mode(), "readings", repo.Len())
	return &app{cfg: cfg, loc: loc, store: fb, repo: repo}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// withApp loads config, opens the stack, runs fn and closes the stack.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck
	return fn(ctx, a)
}

func setupLogging(format string) {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	if format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// redactDSN masks the password in a PostgreSQL DSN for safe display.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return dsn
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// askYesNo prints question and reads a y/N answer. Anything but y or yes,
// including end of input, is a no.
func askYesNo(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("reading answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// terminalConfirmer asks on the terminal before overwriting a same-month
// reading. With yes set it confirms without asking.
func terminalConfirmer(in io.Reader, out io.Writer, yes bool, loc *time.Location) repository.Confirmer {
	if yes {
		return repository.AlwaysOverwrite
	}
	return repository.ConfirmFunc(func(_ context.Context, existing store.Reading, d store.Draft) (bool, error) {
		return askYesNo(in, out, repository.OverwritePrompt(existing, d, loc))
	})
}
