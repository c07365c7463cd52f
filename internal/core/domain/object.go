package domain

import (
	"fmt"
	"strconv"
)

// OID identifies a persistent object of the object database.
type OID uint64

// ParseOID parses the decimal form used on the HTTP surface.
func ParseOID(s string) (OID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, ErrBadRequest.WithDetails(fmt.Sprintf("invalid oid %q", s))
	}
	return OID(v), nil
}

// String returns the decimal form of the oid.
func (o OID) String() string {
	return strconv.FormatUint(uint64(o), 10)
}
