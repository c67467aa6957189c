package config

import "time"

// ClientConfig holds connection settings for the SNMP agent being checked.
type ClientConfig struct {
	Host      string // Agent hostname or address
	Port      int
	Community string // v1/v2c community string
	Version   string // "1", "2c" or "3"
	Timeout   time.Duration
	Retries   int

	// SNMPv3 user-based security
	User      string
	SecLevel  string // noAuthNoPriv, authNoPriv or authPriv
	AuthProto string
	AuthPass  string
	PrivProto string
	PrivPass  string

	Trace bool // Log every PDU sent and received
}

// DefaultClientConfig returns the settings used when no flags are given.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Host:      "localhost",
		Port:      161,
		Community: "public",
		Version:   "2c",
		Timeout:   5 * time.Second,
		Retries:   1,
	}
}
