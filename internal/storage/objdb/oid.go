package objdb

import (
	"encoding/binary"

	"github.com/yndnr/plonemetrics-go/internal/core/domain"
)

var keyPrefix = []byte("obj/")

// objectKey returns the storage key of oid. Big endian keeps prefix scans in
// oid order.
func objectKey(oid domain.OID) []byte {
	k := make([]byte, len(keyPrefix)+8)
	copy(k, keyPrefix)
	binary.BigEndian.PutUint64(k[len(keyPrefix):], uint64(oid))
	return k
}

func oidFromKey(k []byte) (domain.OID, bool) {
	if len(k) != len(keyPrefix)+8 {
		return 0, false
	}
	return domain.OID(binary.BigEndian.Uint64(k[len(keyPrefix):])), true
}
