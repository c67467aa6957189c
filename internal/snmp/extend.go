package snmp

import "github.com/jandubois/snmp-probe/internal/oid"

// NET-SNMP-EXTEND-MIB columns of nsExtendOutput1Table.
var (
	NsExtendOutput1Line = oid.MustParse("1.3.6.1.4.1.8072.1.3.2.3.1.1")
	NsExtendResult      = oid.MustParse("1.3.6.1.4.1.8072.1.3.2.3.1.4")
)

// ExtendIndex returns the table index of an extend entry: the name encoded as
// a length-prefixed octet string.
func ExtendIndex(name string) oid.OID {
	idx := make(oid.OID, 0, len(name)+1)
	idx = append(idx, uint32(len(name)))
	for i := 0; i < len(name); i++ {
		idx = append(idx, uint32(name[i]))
	}
	return idx
}
