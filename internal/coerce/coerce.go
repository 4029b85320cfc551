// Package coerce converts between 16-bit PLC words and decoded sample
// values. The FINS wire protocol only ever exchanges 16-bit words; BOOL and
// CHANNEL tags are requested and transported as single words and decoded
// here, while multi-word types are combined without any byte-swapping —
// the FINS library is the source of truth for word order.
package coerce

import (
	"bytes"
	"math"
	"strings"

	"github.com/plantdata/finsbridge/internal/config"
	"github.com/plantdata/finsbridge/internal/sample"
)

// Decode turns the raw words returned for one tag into a decoded Value.
// malformed is true when a BOOL word was nonzero but not exactly 1; the
// returned value is then already coerced to false and the caller logs it,
// rather than silently treating any nonzero word as true.
func Decode(dtype config.DataType, strLen int, words []uint16) (v sample.Value, malformed bool) {
	switch dtype {
	case config.TypeBool:
		return decodeBool(words[0])
	case config.TypeChannel:
		return sample.Uint64(uint64(words[0])), false
	case config.TypeInt16:
		return sample.Int64(int64(int16(words[0]))), false
	case config.TypeUint16:
		return sample.Uint64(uint64(words[0])), false
	case config.TypeInt32:
		return sample.Int64(int64(int32(combine32(words)))), false
	case config.TypeUint32:
		return sample.Uint64(uint64(combine32(words))), false
	case config.TypeReal32:
		return sample.Float64(float64(math.Float32frombits(combine32(words)))), false
	case config.TypeString:
		return sample.String(decodeString(words, strLen)), false
	default:
		return sample.Null, false
	}
}

// decodeBool applies the narrow BOOL contract: word == 1 decodes true,
// word == 0 decodes false, any other nonzero word is malformed and is
// coerced to false.
func decodeBool(word uint16) (sample.Value, bool) {
	switch word {
	case 0:
		return sample.Bool(false), false
	case 1:
		return sample.Bool(true), false
	default:
		return sample.Bool(false), true
	}
}

func combine32(words []uint16) uint32 {
	return uint32(words[0])<<16 | uint32(words[1])
}

// decodeString reads ceil(n/2) words as n ASCII bytes (high byte first,
// then low byte, per word) and trims at the first null byte.
func decodeString(words []uint16, n int) string {
	buf := make([]byte, 0, len(words)*2)
	for _, w := range words {
		buf = append(buf, byte(w>>8), byte(w&0xFF))
	}
	if len(buf) > n {
		buf = buf[:n]
	}
	if idx := bytes.IndexByte(buf, 0); idx >= 0 {
		buf = buf[:idx]
	}
	return strings.TrimRight(string(buf), "\x00")
}
