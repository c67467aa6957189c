package cmd

import (
	"strconv"
	"time"

	"github.com/jandubois/snmp-probe/internal/probe"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var flagEnums = map[string][]string{
	"snmp-version": {"1", "2c", "3"},
	"sec-level":    {"noAuthNoPriv", "authNoPriv", "authPriv"},
	"auth-proto":   {"MD5", "SHA", "SHA224", "SHA256", "SHA384", "SHA512"},
	"priv-proto":   {"DES", "AES", "AES192", "AES256"},
	"format":       {"text", "json"},
}

// Flags that only control this process, not what is checked.
var describeSkip = map[string]bool{
	"describe": true,
	"version":  true,
	"list":     true,
	"help":     true,
	"verbose":  true,
}

// describe builds the probe description from the command's flags.
func describe(cmd *cobra.Command) probe.Description {
	optional := make(map[string]probe.ArgumentSpec)
	visit := func(f *pflag.Flag) {
		if describeSkip[f.Name] {
			return
		}
		optional[f.Name] = probe.ArgumentSpec{
			Type:        argumentType(f),
			Description: f.Usage,
			Default:     argumentDefault(f),
			Enum:        flagEnums[f.Name],
		}
	}
	cmd.InheritedFlags().VisitAll(visit)
	cmd.LocalFlags().VisitAll(visit)

	return probe.Description{
		Name:        "snmp",
		Description: "Check SNMP agent values against a rule configuration",
		Version:     Version,
		Arguments: probe.Arguments{
			Optional: optional,
		},
	}
}

func argumentType(f *pflag.Flag) string {
	switch f.Value.Type() {
	case "int", "count":
		return "integer"
	case "bool":
		return "boolean"
	case "duration":
		return "duration"
	default:
		return "string"
	}
}

func argumentDefault(f *pflag.Flag) any {
	switch f.Value.Type() {
	case "int", "count":
		n, err := strconv.Atoi(f.DefValue)
		if err != nil || n == 0 {
			return nil
		}
		return n
	case "bool":
		b, _ := strconv.ParseBool(f.DefValue)
		if !b {
			return nil
		}
		return b
	case "duration":
		d, err := time.ParseDuration(f.DefValue)
		if err != nil {
			return nil
		}
		return d.String()
	}
	if f.DefValue == "" {
		return nil
	}
	return f.DefValue
}
