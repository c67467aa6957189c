package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jandubois/snmp-probe/internal/probe"
	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X github.com/jandubois/snmp-probe/cmd.Version=..."
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "snmp-probe",
	Short: "Nagios plugin that checks SNMP agents against rule configurations",
	Long: `snmp-probe queries an SNMP agent for the identifiers named in a
configuration, classifies each value with the configuration's rules and
prints a single Nagios status line. The exit status is the Nagios state:
0 OK, 1 WARNING, 2 CRITICAL, 3 UNKNOWN.

Configurations are looked up by name in the config directory, or given as
a path. With --extend the plugin instead reports the result of a script
the agent runs through net-snmp's extend mechanism.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCheck,
}

// exitError carries a non-zero plugin exit status out of a command.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// Execute runs the command line and returns the process exit status.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if args == nil {
		args = []string{}
	}
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintf(stderr, "snmp-probe: %v\n", err)
	return probe.SeverityUnknown.ExitCode()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringP("host", "H", "localhost", "Agent hostname or address")
	pf.IntP("port", "p", 161, "Agent UDP port")
	pf.StringP("community", "c", "public", "Community string for v1/v2c (or SNMP_COMMUNITY env var)")
	pf.StringP("snmp-version", "V", "2c", "SNMP version (1, 2c, 3)")
	pf.DurationP("timeout", "t", defaultTimeout, "Timeout per request")
	pf.IntP("retries", "r", 1, "Retries per request")
	pf.StringP("user", "u", "", "SNMPv3 user name")
	pf.StringP("sec-level", "L", "authPriv", "SNMPv3 security level (noAuthNoPriv, authNoPriv, authPriv)")
	pf.StringP("auth-proto", "a", "SHA", "SNMPv3 authentication protocol (MD5, SHA, SHA224, SHA256, SHA384, SHA512)")
	pf.StringP("auth-pass", "A", "", "SNMPv3 authentication passphrase")
	pf.StringP("priv-proto", "x", "AES", "SNMPv3 privacy protocol (DES, AES, AES192, AES256)")
	pf.StringP("priv-pass", "X", "", "SNMPv3 privacy passphrase")
	pf.CountP("verbose", "v", "Log to stderr (-v info, -vv debug, -vvv packet trace)")

	f := rootCmd.Flags()
	f.StringP("config", "C", "", "Configuration name or path")
	f.StringP("cfgdir", "d", "", "Configuration directory (or SNMP_PROBE_CONFIG_DIR env var, default "+defaultConfigDir+")")
	f.BoolP("list", "l", false, "List the configurations in the configuration directory")
	f.StringP("extend", "e", "", "Report the result of a net-snmp extend script")
	f.BoolP("strict", "s", false, "Treat identifiers the agent does not have as UNKNOWN")
	f.String("format", "text", "Output format (text, json)")
	f.String("snapshot", "", "Query a recorded snapshot file instead of the agent")
	f.Bool("describe", false, "Output the probe description as JSON")
	f.Bool("version", false, "Print version and exit")
}

// newLogger returns the stderr logger for the -v count: warnings only by
// default, info with -v, debug with -vv.
func newLogger(cmd *cobra.Command) *slog.Logger {
	verbosity, _ := cmd.Flags().GetCount("verbose")
	level := slog.LevelWarn
	switch {
	case verbosity >= 2:
		level = slog.LevelDebug
	case verbosity == 1:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
