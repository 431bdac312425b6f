package bitvector

import (
	"fmt"

	"github.com/cometbft/cometbft/libs/bits"
)

// Tally is the participation summary of a multi-party signature.
type Tally struct {
	Voted    uint64
	Eligible uint64
}

func (t Tally) String() string {
	return fmt.Sprintf("voted=%d eligible=%d", t.Voted, t.Eligible)
}

// Compute sums the weights of members whose bit is set. Member i reads the
// bit at position bv.Size()-1-i, so member 0 is the last bit of the sequence.
// Members past the end of the sequence count as not voted.
func Compute(bv *bits.BitArray, weights []uint64) Tally {
	var t Tally
	size := bv.Size()
	for i, w := range weights {
		t.Eligible += w
		if i >= size {
			continue
		}
		if bv.GetIndex(size - 1 - i) {
			t.Voted += w
		}
	}
	return t
}

// FromString decodes input and tallies it against weights in one step.
func FromString(input string, weights []uint64) (Tally, error) {
	bv, err := Decode(input)
	if err != nil {
		return Tally{}, err
	}
	return Compute(bv, weights), nil
}
