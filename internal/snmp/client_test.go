package snmp

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gosnmp/gosnmp"
	"github.com/jandubois/snmp-probe/internal/config"
	"github.com/jandubois/snmp-probe/internal/oid"
)

func TestFromPDU(t *testing.T) {
	tests := []struct {
		name         string
		pdu          gosnmp.SnmpPDU
		wantKind     Kind
		wantText     string
		wantNotFound bool
	}{
		{
			name:     "integer",
			pdu:      gosnmp.SnmpPDU{Name: ".1.3.6.1.2.1.2.2.1.8.1", Type: gosnmp.Integer, Value: 1},
			wantKind: KindInteger,
			wantText: "1",
		},
		{
			name:     "negative integer",
			pdu:      gosnmp.SnmpPDU{Name: ".1.3.6.1.4.1.1", Type: gosnmp.Integer, Value: -40},
			wantKind: KindInteger,
			wantText: "-40",
		},
		{
			name:     "gauge",
			pdu:      gosnmp.SnmpPDU{Name: ".1.3.6.1.4.1.2", Type: gosnmp.Gauge32, Value: uint(95)},
			wantKind: KindUnsigned,
			wantText: "95",
		},
		{
			name:     "counter64",
			pdu:      gosnmp.SnmpPDU{Name: ".1.3.6.1.4.1.3", Type: gosnmp.Counter64, Value: uint64(18446744073709551615)},
			wantKind: KindCounter64,
			wantText: "18446744073709551615",
		},
		{
			name:     "octet string",
			pdu:      gosnmp.SnmpPDU{Name: ".1.3.6.1.2.1.1.5.0", Type: gosnmp.OctetString, Value: []byte("router1")},
			wantKind: KindString,
			wantText: "router1",
		},
		{
			name:     "object identifier",
			pdu:      gosnmp.SnmpPDU{Name: ".1.3.6.1.2.1.1.2.0", Type: gosnmp.ObjectIdentifier, Value: ".1.3.6.1.4.1.8072.3.2.10"},
			wantKind: KindOID,
			wantText: "1.3.6.1.4.1.8072.3.2.10",
		},
		{
			name:         "no such instance",
			pdu:          gosnmp.SnmpPDU{Name: ".1.3.6.1.4.1.9", Type: gosnmp.NoSuchInstance},
			wantNotFound: true,
		},
		{
			name:         "no such object",
			pdu:          gosnmp.SnmpPDU{Name: ".1.3.6.1.4.1.9", Type: gosnmp.NoSuchObject},
			wantNotFound: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vb, err := fromPDU(tt.pdu)
			if err != nil {
				t.Fatalf("fromPDU returned error: %v", err)
			}
			if vb.NotFound != tt.wantNotFound {
				t.Fatalf("NotFound = %v, want %v", vb.NotFound, tt.wantNotFound)
			}
			if strings.HasPrefix(vb.OID.String(), ".") {
				t.Errorf("OID kept its leading dot: %s", vb.OID)
			}
			if tt.wantNotFound {
				return
			}
			if vb.Value.Kind != tt.wantKind || vb.Value.Text != tt.wantText {
				t.Errorf("value = %s %q, want %s %q", vb.Value.Kind, vb.Value.Text, tt.wantKind, tt.wantText)
			}
		})
	}
}

func TestFromPDUBadName(t *testing.T) {
	if _, err := fromPDU(gosnmp.SnmpPDU{Name: "not-an-oid", Type: gosnmp.Integer, Value: 1}); err == nil {
		t.Error("expected error for malformed varbind name")
	}
}

func TestNewGoSNMP(t *testing.T) {
	base := config.DefaultClientConfig()

	tests := []struct {
		name    string
		mutate  func(c *config.ClientConfig)
		wantErr string
		check   func(t *testing.T, g *gosnmp.GoSNMP)
	}{
		{
			name: "defaults",
			check: func(t *testing.T, g *gosnmp.GoSNMP) {
				if g.Version != gosnmp.Version2c || g.Port != 161 || g.Community != "public" {
					t.Errorf("unexpected session: version=%v port=%d community=%q", g.Version, g.Port, g.Community)
				}
				if g.Timeout != 5*time.Second {
					t.Errorf("timeout = %s", g.Timeout)
				}
			},
		},
		{
			name:   "version 1",
			mutate: func(c *config.ClientConfig) { c.Version = "1" },
			check: func(t *testing.T, g *gosnmp.GoSNMP) {
				if g.Version != gosnmp.Version1 {
					t.Errorf("version = %v", g.Version)
				}
			},
		},
		{
			name: "version 3 authPriv",
			mutate: func(c *config.ClientConfig) {
				c.Version = "3"
				c.User = "monitor"
				c.AuthProto = "sha256"
				c.AuthPass = "authsecret"
				c.PrivProto = "aes"
				c.PrivPass = "privsecret"
			},
			check: func(t *testing.T, g *gosnmp.GoSNMP) {
				if g.MsgFlags != gosnmp.AuthPriv {
					t.Errorf("msg flags = %v", g.MsgFlags)
				}
				usm, ok := g.SecurityParameters.(*gosnmp.UsmSecurityParameters)
				if !ok {
					t.Fatalf("security parameters are %T", g.SecurityParameters)
				}
				if usm.AuthenticationProtocol != gosnmp.SHA256 || usm.PrivacyProtocol != gosnmp.AES {
					t.Errorf("protocols = %v/%v", usm.AuthenticationProtocol, usm.PrivacyProtocol)
				}
			},
		},
		{
			name:    "version 3 without user",
			mutate:  func(c *config.ClientConfig) { c.Version = "3" },
			wantErr: "user name",
		},
		{
			name:    "bad version",
			mutate:  func(c *config.ClientConfig) { c.Version = "4" },
			wantErr: "unsupported SNMP version",
		},
		{
			name:    "bad port",
			mutate:  func(c *config.ClientConfig) { c.Port = 70000 },
			wantErr: "invalid port",
		},
		{
			name:    "empty host",
			mutate:  func(c *config.ClientConfig) { c.Host = "" },
			wantErr: "host is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			g, err := newGoSNMP(context.Background(), cfg)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("newGoSNMP returned error: %v", err)
			}
			tt.check(t, g)
		})
	}
}

func TestExtendIndex(t *testing.T) {
	got := ExtendIndex("raid")
	if got.String() != "4.114.97.105.100" {
		t.Errorf("ExtendIndex(raid) = %s", got)
	}
	full := NsExtendResult.Append(got...)
	if full.String() != "1.3.6.1.4.1.8072.1.3.2.3.1.4.4.114.97.105.100" {
		t.Errorf("result oid = %s", full)
	}
}

func TestValueInt(t *testing.T) {
	if n, err := Integer(42).Int(); err != nil || n != 42 {
		t.Errorf("Integer(42).Int() = %d, %v", n, err)
	}
	if n, err := String(" 7 ").Int(); err != nil || n != 7 {
		t.Errorf("String(7).Int() = %d, %v", n, err)
	}
	if _, err := String("eth0").Int(); err == nil {
		t.Error("expected error converting a name to an integer")
	}
}

// v1Agent answers like an SNMPv1 agent: a request naming an absent instance
// fails as a whole with noSuchName pointing at the first absent name.
type v1Agent struct {
	values   map[string]int
	requests [][]string
}

func (a *v1Agent) get(names []string) (*gosnmp.SnmpPacket, error) {
	a.requests = append(a.requests, names)
	pkt := &gosnmp.SnmpPacket{}
	for k, name := range names {
		v, ok := a.values[name]
		if !ok {
			pkt.Error = gosnmp.NoSuchName
			pkt.ErrorIndex = uint8(k + 1)
			return pkt, nil
		}
		pkt.Variables = append(pkt.Variables, gosnmp.SnmpPDU{Name: name, Type: gosnmp.Integer, Value: v})
	}
	return pkt, nil
}

func TestGetManyNoSuchName(t *testing.T) {
	agent := &v1Agent{values: map[string]int{
		".1.3.6.1.4.1.1.1": 10,
		".1.3.6.1.4.1.1.4": 40,
		".1.3.6.1.4.1.1.5": 50,
	}}
	c := &Client{g: &gosnmp.GoSNMP{MaxOids: 4}, get: agent.get}

	ids := []oid.OID{
		oid.MustParse("1.3.6.1.4.1.1.1"),
		oid.MustParse("1.3.6.1.4.1.1.2"),
		oid.MustParse("1.3.6.1.4.1.1.3"),
		oid.MustParse("1.3.6.1.4.1.1.4"),
		oid.MustParse("1.3.6.1.4.1.1.5"),
	}
	vbs, err := c.GetMany(context.Background(), ids)
	if err != nil {
		t.Fatalf("GetMany returned error: %v", err)
	}

	var got []string
	for _, vb := range vbs {
		if vb.NotFound {
			got = append(got, vb.OID.String()+" missing")
			continue
		}
		got = append(got, vb.OID.String()+" = "+vb.Value.Text)
	}
	want := []string{
		"1.3.6.1.4.1.1.1 = 10",
		"1.3.6.1.4.1.1.2 missing",
		"1.3.6.1.4.1.1.3 missing",
		"1.3.6.1.4.1.1.4 = 40",
		"1.3.6.1.4.1.1.5 = 50",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("varbinds mismatch (-want +got):\n%s", diff)
	}

	wantRequests := [][]string{
		{".1.3.6.1.4.1.1.1", ".1.3.6.1.4.1.1.2", ".1.3.6.1.4.1.1.3", ".1.3.6.1.4.1.1.4"},
		{".1.3.6.1.4.1.1.1", ".1.3.6.1.4.1.1.3", ".1.3.6.1.4.1.1.4"},
		{".1.3.6.1.4.1.1.1", ".1.3.6.1.4.1.1.4"},
		{".1.3.6.1.4.1.1.5"},
	}
	if diff := cmp.Diff(wantRequests, agent.requests); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
}

func TestGetManyAgentError(t *testing.T) {
	c := &Client{
		g: &gosnmp.GoSNMP{},
		get: func(names []string) (*gosnmp.SnmpPacket, error) {
			return &gosnmp.SnmpPacket{Error: gosnmp.GenErr, ErrorIndex: 1}, nil
		},
	}
	_, err := c.GetMany(context.Background(), []oid.OID{oid.MustParse("1.3.6.1.4.1.1.1")})
	if err == nil || !strings.Contains(err.Error(), "agent error") {
		t.Errorf("expected agent error, got %v", err)
	}
}
