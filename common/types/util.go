package types

import (
	"encoding/hex"
	"strconv"
)

func itoa(v uint32) string { return strconv.FormatUint(uint64(v), 10) }

func shortHex(v []byte) string {
	n := len(v)
	if n > 4 {
		n = 4
	}
	return hex.EncodeToString(v[:n])
}
