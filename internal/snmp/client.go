package snmp

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/gosnmp/gosnmp"
	"github.com/jandubois/snmp-probe/internal/config"
	"github.com/jandubois/snmp-probe/internal/oid"
)

// Client queries a live agent. Requests are issued one at a time.
type Client struct {
	g   *gosnmp.GoSNMP
	get func(names []string) (*gosnmp.SnmpPacket, error)
}

// Dial validates cfg and opens the UDP session to the agent.
func Dial(ctx context.Context, cfg config.ClientConfig, logger *slog.Logger) (*Client, error) {
	g, err := newGoSNMP(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Trace && logger != nil {
		g.Logger = gosnmp.NewLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	}
	if err := g.Connect(); err != nil {
		return nil, fmt.Errorf("connect to %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Client{g: g, get: g.Get}, nil
}

func newGoSNMP(ctx context.Context, cfg config.ClientConfig) (*gosnmp.GoSNMP, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if cfg.Port <= 0 || cfg.Port > math.MaxUint16 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}

	g := &gosnmp.GoSNMP{
		Target:    cfg.Host,
		Port:      uint16(cfg.Port),
		Transport: "udp",
		Community: cfg.Community,
		Timeout:   cfg.Timeout,
		Retries:   cfg.Retries,
		Context:   ctx,
	}

	switch cfg.Version {
	case "1":
		g.Version = gosnmp.Version1
	case "2", "2c", "":
		g.Version = gosnmp.Version2c
	case "3":
		g.Version = gosnmp.Version3
		if err := applyUSM(g, cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported SNMP version %q", cfg.Version)
	}
	return g, nil
}

func applyUSM(g *gosnmp.GoSNMP, cfg config.ClientConfig) error {
	if cfg.User == "" {
		return fmt.Errorf("SNMPv3 requires a user name")
	}
	params := &gosnmp.UsmSecurityParameters{
		UserName:                 cfg.User,
		AuthenticationPassphrase: cfg.AuthPass,
		PrivacyPassphrase:        cfg.PrivPass,
	}

	switch strings.ToLower(cfg.SecLevel) {
	case "noauthnopriv":
		g.MsgFlags = gosnmp.NoAuthNoPriv
	case "authnopriv":
		g.MsgFlags = gosnmp.AuthNoPriv
	case "authpriv", "":
		g.MsgFlags = gosnmp.AuthPriv
	default:
		return fmt.Errorf("unknown security level %q", cfg.SecLevel)
	}

	if g.MsgFlags != gosnmp.NoAuthNoPriv {
		switch strings.ToUpper(cfg.AuthProto) {
		case "MD5":
			params.AuthenticationProtocol = gosnmp.MD5
		case "SHA", "":
			params.AuthenticationProtocol = gosnmp.SHA
		case "SHA224":
			params.AuthenticationProtocol = gosnmp.SHA224
		case "SHA256":
			params.AuthenticationProtocol = gosnmp.SHA256
		case "SHA384":
			params.AuthenticationProtocol = gosnmp.SHA384
		case "SHA512":
			params.AuthenticationProtocol = gosnmp.SHA512
		default:
			return fmt.Errorf("unknown auth protocol %q", cfg.AuthProto)
		}
	}
	if g.MsgFlags == gosnmp.AuthPriv {
		switch strings.ToUpper(cfg.PrivProto) {
		case "DES":
			params.PrivacyProtocol = gosnmp.DES
		case "AES", "":
			params.PrivacyProtocol = gosnmp.AES
		case "AES192":
			params.PrivacyProtocol = gosnmp.AES192
		case "AES256":
			params.PrivacyProtocol = gosnmp.AES256
		default:
			return fmt.Errorf("unknown privacy protocol %q", cfg.PrivProto)
		}
	}

	g.SecurityModel = gosnmp.UserSecurityModel
	g.SecurityParameters = params
	return nil
}

// Close releases the session.
func (c *Client) Close() error {
	if c.g.Conn == nil {
		return nil
	}
	return c.g.Conn.Close()
}

// Get fetches a single value.
func (c *Client) Get(ctx context.Context, id oid.OID) (Varbind, error) {
	vbs, err := c.GetMany(ctx, []oid.OID{id})
	if err != nil {
		return Varbind{}, err
	}
	if len(vbs) != 1 {
		return Varbind{}, fmt.Errorf("get %s: agent returned %d varbinds", id, len(vbs))
	}
	return vbs[0], nil
}

// GetMany fetches ids in as few requests as the agent's PDU limit allows.
// Results are returned in request order.
func (c *Client) GetMany(ctx context.Context, ids []oid.OID) ([]Varbind, error) {
	out := make([]Varbind, 0, len(ids))
	chunk := c.g.MaxOids
	if chunk <= 0 {
		chunk = gosnmp.MaxOids
	}
	for start := 0; start < len(ids); start += chunk {
		end := min(start+chunk, len(ids))
		vbs, err := c.getChunk(ctx, ids[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vbs...)
	}
	return out, nil
}

// getChunk fetches ids with a single PDU. SNMPv1 agents answer a missing
// instance with noSuchName for the whole PDU; the offending identifier is
// recorded as missing and the rest is requested again.
func (c *Client) getChunk(ctx context.Context, ids []oid.OID) ([]Varbind, error) {
	out := make([]Varbind, len(ids))
	pending := make([]int, len(ids))
	for i := range ids {
		pending[i] = i
	}
	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		names := make([]string, len(pending))
		for k, i := range pending {
			names[k] = "." + ids[i].String()
		}
		pkt, err := c.get(names)
		if err != nil {
			return nil, fmt.Errorf("get %d oids: %w", len(names), err)
		}
		if pkt.Error == gosnmp.NoSuchName && pkt.ErrorIndex >= 1 && int(pkt.ErrorIndex) <= len(pending) {
			k := int(pkt.ErrorIndex) - 1
			out[pending[k]] = Missing(ids[pending[k]])
			pending = append(pending[:k], pending[k+1:]...)
			continue
		}
		if pkt.Error != gosnmp.NoError {
			return nil, fmt.Errorf("get %d oids: agent error %s at index %d", len(names), pkt.Error, pkt.ErrorIndex)
		}
		if len(pkt.Variables) != len(pending) {
			return nil, fmt.Errorf("get %d oids: agent returned %d varbinds", len(names), len(pkt.Variables))
		}
		for k, pdu := range pkt.Variables {
			vb, err := fromPDU(pdu)
			if err != nil {
				return nil, err
			}
			out[pending[k]] = vb
		}
		pending = nil
	}
	return out, nil
}

// Walk returns every varbind below root in agent order.
func (c *Client) Walk(ctx context.Context, root oid.OID) ([]Varbind, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		pdus []gosnmp.SnmpPDU
		err  error
	)
	if c.g.Version == gosnmp.Version1 {
		pdus, err = c.g.WalkAll("." + root.String())
	} else {
		pdus, err = c.g.BulkWalkAll("." + root.String())
	}
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	out := make([]Varbind, 0, len(pdus))
	for _, pdu := range pdus {
		vb, err := fromPDU(pdu)
		if err != nil {
			return nil, err
		}
		if vb.NotFound {
			continue
		}
		out = append(out, vb)
	}
	return out, nil
}

func fromPDU(pdu gosnmp.SnmpPDU) (Varbind, error) {
	id, err := oid.Parse(pdu.Name)
	if err != nil {
		return Varbind{}, fmt.Errorf("agent returned %w", err)
	}
	vb := Varbind{OID: id}

	switch pdu.Type {
	case gosnmp.NoSuchInstance, gosnmp.NoSuchObject, gosnmp.EndOfMibView:
		vb.NotFound = true
	case gosnmp.Integer:
		vb.Value = Value{Kind: KindInteger, Text: bigText(pdu.Value)}
	case gosnmp.Counter32, gosnmp.Gauge32, gosnmp.Uinteger32:
		vb.Value = Value{Kind: KindUnsigned, Text: bigText(pdu.Value)}
	case gosnmp.Counter64:
		vb.Value = Value{Kind: KindCounter64, Text: bigText(pdu.Value)}
	case gosnmp.TimeTicks:
		vb.Value = Value{Kind: KindTimeTicks, Text: bigText(pdu.Value)}
	case gosnmp.OctetString, gosnmp.BitString:
		b, _ := pdu.Value.([]byte)
		vb.Value = Value{Kind: KindString, Text: string(b)}
	case gosnmp.ObjectIdentifier:
		s, _ := pdu.Value.(string)
		vb.Value = Value{Kind: KindOID, Text: strings.TrimPrefix(s, ".")}
	case gosnmp.IPAddress:
		s, _ := pdu.Value.(string)
		vb.Value = Value{Kind: KindIPAddress, Text: s}
	case gosnmp.OpaqueFloat:
		f, _ := pdu.Value.(float32)
		vb.Value = Value{Kind: KindOpaque, Text: strconv.FormatFloat(float64(f), 'g', -1, 32)}
	case gosnmp.OpaqueDouble:
		f, _ := pdu.Value.(float64)
		vb.Value = Value{Kind: KindOpaque, Text: strconv.FormatFloat(f, 'g', -1, 64)}
	case gosnmp.Null:
		vb.Value = Value{Kind: KindNull}
	default:
		vb.Value = Value{Kind: KindOpaque, Text: fmt.Sprint(pdu.Value)}
	}
	return vb, nil
}

func bigText(v any) string {
	n := gosnmp.ToBigInt(v)
	if n == nil {
		return new(big.Int).String()
	}
	return n.String()
}
