// Package bitvector decodes the compact signer bitmask carried in block and
// election signatures and tallies committee weight against it.
package bitvector

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/cometbft/cometbft/libs/bits"
)

// DecodeError is returned when a bitvector is not valid unpadded URL-safe base64.
type DecodeError struct {
	Input string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode bitvector %q: %v", e.Input, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var errLineBreak = errors.New("line break in input")

// encoding rejects non-zero trailing bits, so every bitvector has one spelling.
var encoding = base64.RawURLEncoding.Strict()

// Decode turns the base64url text into a bit sequence, most significant bit
// of each byte first. The result length is always a multiple of 8. An empty
// input yields an empty (nil) sequence.
func Decode(input string) (*bits.BitArray, error) {
	trimmed := strings.TrimRight(input, "=")
	// The stdlib decoder skips CR and LF even in strict mode.
	if strings.ContainsAny(trimmed, "\r\n") {
		return nil, &DecodeError{Input: input, Err: errLineBreak}
	}
	raw, err := encoding.DecodeString(trimmed)
	if err != nil {
		return nil, &DecodeError{Input: input, Err: err}
	}

	bv := bits.NewBitArray(len(raw) * 8)
	for i, b := range raw {
		for j := 0; j < 8; j++ {
			if (b>>(7-j))&1 == 1 {
				bv.SetIndex(i*8+j, true)
			}
		}
	}
	return bv, nil
}
