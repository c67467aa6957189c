package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jandubois/snmp-probe/internal/oid"
	"github.com/jandubois/snmp-probe/internal/probe"
	"github.com/jandubois/snmp-probe/internal/snapshot"
	"github.com/jandubois/snmp-probe/internal/snmp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const diskConfig = `{
  "identifier": "disk",
  "oids": {
    "1.3.6.1.4.1.2021.9.1.9": {
      "range": "index_oid:1.3.6.1.4.1.2021.9.1.1",
      "desc": "Disk",
      "id": "index_oid:1.3.6.1.4.1.2021.9.1.2",
      "value_map": [["%value > 90", 2, "% full"], ["%value > 80", 1, "% full"]]
    }
  }
}`

// resetFlags restores every flag to its default so runs do not leak into
// each other through the package-level command tree.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	resetFlags(rootCmd)
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// recordAgent writes a snapshot file holding vbs and returns its path.
func recordAgent(t *testing.T, values map[string]snmp.Value) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.db")
	s, err := snapshot.Open(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	var vbs []snmp.Varbind
	for id, v := range values {
		vbs = append(vbs, snmp.Varbind{OID: oid.MustParse(id), Value: v})
	}
	if _, err := s.Save(context.Background(), "test", oid.MustParse("1.3.6.1"), vbs); err != nil {
		t.Fatal(err)
	}
	return path
}

func diskAgent(t *testing.T, used int64) string {
	return recordAgent(t, map[string]snmp.Value{
		"1.3.6.1.4.1.2021.9.1.1.1": snmp.Integer(1),
		"1.3.6.1.4.1.2021.9.1.1.2": snmp.Integer(2),
		"1.3.6.1.4.1.2021.9.1.2.1": snmp.String("/"),
		"1.3.6.1.4.1.2021.9.1.2.2": snmp.String("/var"),
		"1.3.6.1.4.1.2021.9.1.9.1": snmp.Integer(used),
		"1.3.6.1.4.1.2021.9.1.9.2": snmp.Integer(40),
	})
}

func configDirWith(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		writeFile(t, filepath.Join(dir, name), content)
	}
	return dir
}

func TestCheckCommand(t *testing.T) {
	dir := configDirWith(t, map[string]string{"disk.json": diskConfig})

	tests := []struct {
		name   string
		used   int64
		output string
		code   int
	}{
		{name: "ok", used: 50, output: "disk: OK\n", code: 0},
		{name: "warning", used: 85, output: "disk: Disk / = 85 % full\n", code: 1},
		{name: "critical", used: 95, output: "disk: Disk / = 95 % full\n", code: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr, code := run(t, "-d", dir, "-C", "disk", "--snapshot", diskAgent(t, tt.used))
			if stdout != tt.output {
				t.Errorf("stdout = %q, want %q", stdout, tt.output)
			}
			if code != tt.code {
				t.Errorf("exit code = %d, want %d (stderr %q)", code, tt.code, stderr)
			}
		})
	}
}

func TestCheckCommandConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	writeFile(t, path, diskConfig)

	stdout, _, code := run(t, "--config", path, "--snapshot", diskAgent(t, 95))
	if stdout != "disk: Disk / = 95 % full\n" || code != 2 {
		t.Errorf("got %q exit %d", stdout, code)
	}
}

func TestCheckCommandConfigDirFromEnv(t *testing.T) {
	dir := configDirWith(t, map[string]string{"disk.json": diskConfig})
	t.Setenv("SNMP_PROBE_CONFIG_DIR", dir)

	stdout, _, code := run(t, "-C", "disk", "--snapshot", diskAgent(t, 50))
	if stdout != "disk: OK\n" || code != 0 {
		t.Errorf("got %q exit %d", stdout, code)
	}
}

func TestCheckCommandJSON(t *testing.T) {
	dir := configDirWith(t, map[string]string{"disk.json": diskConfig})

	stdout, _, code := run(t, "-d", dir, "-C", "disk", "--snapshot", diskAgent(t, 95), "--format", "json")
	if code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}

	var result probe.Result
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("output is not a probe result: %v\n%s", err, stdout)
	}
	if result.Status != probe.StatusCritical {
		t.Errorf("status = %q, want %q", result.Status, probe.StatusCritical)
	}
	if result.Message != "disk: Disk / = 95 % full" {
		t.Errorf("message = %q", result.Message)
	}
	if result.Data["identifier"] != "disk" {
		t.Errorf("identifier = %v", result.Data["identifier"])
	}
}

func TestCheckCommandFailures(t *testing.T) {
	dir := configDirWith(t, map[string]string{
		"disk.json":   diskConfig,
		"broken.json": `{"oids": {}}`,
	})

	tests := []struct {
		name   string
		args   []string
		prefix string
	}{
		{
			name:   "missing snapshot",
			args:   []string{"-d", dir, "-C", "disk", "--snapshot", filepath.Join(t.TempDir(), "none.db")},
			prefix: "disk: open snapshot:",
		},
		{
			name:   "unknown config",
			args:   []string{"-d", dir, "-C", "nope"},
			prefix: "nope: no configuration",
		},
		{
			name:   "invalid config",
			args:   []string{"-d", dir, "-C", "broken"},
			prefix: "broken: broken.json: invalid configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, code := run(t, tt.args...)
			if code != 3 {
				t.Errorf("exit code = %d, want 3", code)
			}
			if !strings.HasPrefix(stdout, tt.prefix) {
				t.Errorf("stdout = %q, want prefix %q", stdout, tt.prefix)
			}
			if strings.Count(stdout, "\n") != 1 {
				t.Errorf("expected a single output line, got %q", stdout)
			}
		})
	}
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "no mode", args: nil, want: "one of --config or --extend is required"},
		{name: "both modes", args: []string{"-C", "disk", "-e", "raid"}, want: "cannot be combined"},
		{name: "bad format", args: []string{"-C", "disk", "--format", "xml"}, want: `unknown output format "xml"`},
		{name: "bad flag", args: []string{"--bogus"}, want: "unknown flag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr, code := run(t, tt.args...)
			if code != 3 {
				t.Errorf("exit code = %d, want 3", code)
			}
			if stdout != "" {
				t.Errorf("unexpected stdout %q", stdout)
			}
			if !strings.Contains(stderr, tt.want) {
				t.Errorf("stderr = %q, want it to contain %q", stderr, tt.want)
			}
		})
	}
}

func TestExtendCommand(t *testing.T) {
	path := recordAgent(t, map[string]snmp.Value{
		"1.3.6.1.4.1.8072.1.3.2.3.1.1.4.114.97.105.100": snmp.String("md1 degraded"),
		"1.3.6.1.4.1.8072.1.3.2.3.1.4.4.114.97.105.100": snmp.Integer(2),
	})

	stdout, _, code := run(t, "-e", "raid", "--snapshot", path)
	if stdout != "raid: md1 degraded\n" || code != 2 {
		t.Errorf("got %q exit %d", stdout, code)
	}

	stdout, _, code = run(t, "-e", "backup", "--snapshot", path)
	if !strings.HasPrefix(stdout, "backup: unconfigured identifier") || code != 3 {
		t.Errorf("got %q exit %d", stdout, code)
	}
}

func TestListCommand(t *testing.T) {
	dir := configDirWith(t, map[string]string{
		"disk.json": diskConfig,
		"load.yaml": "identifier: load\noids: {}\n",
		"disk.yml":  "identifier: disk\noids: {}\n",
		"notes.txt": "not a config",
	})

	stdout, _, code := run(t, "-l", "-d", dir)
	if code != 0 {
		t.Errorf("exit code = %d", code)
	}
	if stdout != "disk\nload\n" {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestVersionAndDescribe(t *testing.T) {
	stdout, _, code := run(t, "--version")
	if stdout != "snmp-probe version dev\n" || code != 0 {
		t.Errorf("got %q exit %d", stdout, code)
	}

	stdout, _, code = run(t, "--describe")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	var desc probe.Description
	if err := json.Unmarshal([]byte(stdout), &desc); err != nil {
		t.Fatalf("invalid description: %v", err)
	}
	if desc.Name != "snmp" {
		t.Errorf("name = %q", desc.Name)
	}
	host, ok := desc.Arguments.Optional["host"]
	if !ok || host.Default != "localhost" || host.Type != "string" {
		t.Errorf("host argument = %+v", host)
	}
	if port := desc.Arguments.Optional["port"]; port.Type != "integer" || port.Default != float64(161) {
		t.Errorf("port argument = %+v", port)
	}
	if v := desc.Arguments.Optional["snmp-version"]; len(v.Enum) != 3 {
		t.Errorf("snmp-version enum = %v", v.Enum)
	}
	if _, ok := desc.Arguments.Optional["describe"]; ok {
		t.Error("describe should not describe itself")
	}
}

func TestClientConfig(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		env       string
		community string
		trace     bool
	}{
		{name: "default", community: "public"},
		{name: "env", env: "s3cret", community: "s3cret"},
		{name: "flag wins over env", args: []string{"-c", "private"}, env: "s3cret", community: "private"},
		{name: "trace", args: []string{"-vvv"}, community: "public", trace: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SNMP_COMMUNITY", tt.env)
			resetFlags(rootCmd)
			if err := rootCmd.ParseFlags(tt.args); err != nil {
				t.Fatal(err)
			}
			cfg := clientConfig(rootCmd)
			if cfg.Community != tt.community {
				t.Errorf("community = %q, want %q", cfg.Community, tt.community)
			}
			if cfg.Trace != tt.trace {
				t.Errorf("trace = %v, want %v", cfg.Trace, tt.trace)
			}
			if cfg.Host != "localhost" || cfg.Port != 161 || cfg.Version != "2c" {
				t.Errorf("unexpected defaults: %+v", cfg)
			}
		})
	}
}
