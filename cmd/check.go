package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jandubois/snmp-probe/internal/check"
	"github.com/jandubois/snmp-probe/internal/config"
	"github.com/jandubois/snmp-probe/internal/snapshot"
	"github.com/jandubois/snmp-probe/internal/snmp"
	"github.com/spf13/cobra"
)

const (
	defaultTimeout   = 5 * time.Second
	defaultConfigDir = config.DefaultDir
)

// queryClient is a check.QueryClient that holds a connection or file open.
type queryClient interface {
	check.QueryClient
	Close() error
}

func runCheck(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	out := cmd.OutOrStdout()

	if v, _ := flags.GetBool("version"); v {
		fmt.Fprintf(out, "snmp-probe version %s\n", Version)
		return nil
	}
	if d, _ := flags.GetBool("describe"); d {
		return json.NewEncoder(out).Encode(describe(cmd))
	}

	logger := newLogger(cmd)

	if l, _ := flags.GetBool("list"); l {
		return listConfigs(out, configDir(cmd))
	}

	name, _ := flags.GetString("config")
	extend, _ := flags.GetString("extend")
	switch {
	case name == "" && extend == "":
		return errors.New("one of --config or --extend is required")
	case name != "" && extend != "":
		return errors.New("--config and --extend cannot be combined")
	}

	format, _ := flags.GetString("format")
	if format != "text" && format != "json" {
		return fmt.Errorf("unknown output format %q", format)
	}

	var v *check.Verdict
	if extend != "" {
		v = runExtend(cmd.Context(), cmd, logger, extend)
	} else {
		v = runConfig(cmd.Context(), cmd, logger, name)
	}

	if err := report(out, v, format); err != nil {
		return err
	}
	if code := v.Severity.ExitCode(); code != 0 {
		return &exitError{code: code}
	}
	return nil
}

func runConfig(ctx context.Context, cmd *cobra.Command, logger *slog.Logger, name string) *check.Verdict {
	path, err := config.Resolve(configDir(cmd), name)
	if err != nil {
		return check.Failed(name, err)
	}
	model, err := config.Load(path)
	if err != nil {
		return check.Failed(name, err)
	}
	if len(model.MIBs) > 0 {
		logger.Debug("ignoring mibs, names are not resolved", "mibs", model.MIBs)
	}
	logger.Info("config loaded", "path", path, "identifier", model.Identifier, "bases", len(model.Keys()))

	client, err := openClient(ctx, cmd, logger)
	if err != nil {
		return check.Failed(model.Identifier, err)
	}
	defer client.Close()

	strict, _ := cmd.Flags().GetBool("strict")
	e := check.New(model, client, check.Options{Strict: strict, Logger: logger})
	return e.Check(ctx)
}

func runExtend(ctx context.Context, cmd *cobra.Command, logger *slog.Logger, name string) *check.Verdict {
	client, err := openClient(ctx, cmd, logger)
	if err != nil {
		return check.Failed(name, err)
	}
	defer client.Close()

	v, err := check.Extend(ctx, client, name)
	if err != nil {
		logger.Warn("extend failed", "name", name, "error", err)
		return check.Failed(name, err)
	}
	logger.Info("extend complete", "name", name, "severity", v.Severity.String())
	return v
}

// openClient returns the snapshot named by --snapshot, or a session with the
// live agent.
func openClient(ctx context.Context, cmd *cobra.Command, logger *slog.Logger) (queryClient, error) {
	if path, _ := cmd.Flags().GetString("snapshot"); path != "" {
		s, err := snapshot.OpenExisting(ctx, path)
		if err != nil {
			return nil, err
		}
		logger.Info("using snapshot", "path", path)
		return s, nil
	}

	cfg := clientConfig(cmd)
	c, err := snmp.Dial(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("session opened", "host", cfg.Host, "port", cfg.Port, "version", cfg.Version)
	return c, nil
}

func clientConfig(cmd *cobra.Command) config.ClientConfig {
	flags := cmd.Flags()
	cfg := config.DefaultClientConfig()
	cfg.Host, _ = flags.GetString("host")
	cfg.Port, _ = flags.GetInt("port")
	cfg.Version, _ = flags.GetString("snmp-version")
	cfg.Timeout, _ = flags.GetDuration("timeout")
	cfg.Retries, _ = flags.GetInt("retries")
	cfg.User, _ = flags.GetString("user")
	cfg.SecLevel, _ = flags.GetString("sec-level")
	cfg.AuthProto, _ = flags.GetString("auth-proto")
	cfg.AuthPass, _ = flags.GetString("auth-pass")
	cfg.PrivProto, _ = flags.GetString("priv-proto")
	cfg.PrivPass, _ = flags.GetString("priv-pass")

	cfg.Community, _ = flags.GetString("community")
	if !flags.Changed("community") {
		if env := os.Getenv("SNMP_COMMUNITY"); env != "" {
			cfg.Community = env
		}
	}

	verbosity, _ := flags.GetCount("verbose")
	cfg.Trace = verbosity >= 3
	return cfg
}

func configDir(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString("cfgdir")
	if dir == "" {
		dir = os.Getenv("SNMP_PROBE_CONFIG_DIR")
	}
	if dir == "" {
		dir = defaultConfigDir
	}
	return dir
}

func listConfigs(w io.Writer, dir string) error {
	names, err := config.List(dir)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(w, name)
	}
	return nil
}

func report(w io.Writer, v *check.Verdict, format string) error {
	if format == "json" {
		return json.NewEncoder(w).Encode(v.Result())
	}
	_, err := fmt.Fprintln(w, v.String())
	return err
}
