package sketches

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/sahithikokkula/sqlite-hll/pkg/canonical"
)

const (
	MinPrecision = 4
	MaxPrecision = 18

	hashBits = 64
)

// two64 is 2^64, the size of the hash space.
var two64 = math.Ldexp(1, hashBits)

var ErrInvalidRelativeError = errors.New("relative error must be in (0, 1)")

// HyperLogLog implements the HyperLogLog algorithm for cardinality estimation
type HyperLogLog struct {
	registers []uint8
	b         uint8   // number of bits for register selection (m = 2^b)
	m         uint32  // number of registers
	alpha     float64 // bias correction constant
}

// PrecisionFor returns the number of index bits needed for a relative standard
// error of relativeError, using err = 1.04/sqrt(m). The result is clamped to
// [MinPrecision, MaxPrecision].
func PrecisionFor(relativeError float64) (uint8, error) {
	if math.IsNaN(relativeError) || relativeError <= 0 || relativeError >= 1 {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidRelativeError, relativeError)
	}

	ratio := 1.04 / relativeError
	b := math.Ceil(math.Log2(ratio * ratio))

	switch {
	case b < MinPrecision:
		return MinPrecision, nil
	case b > MaxPrecision:
		return MaxPrecision, nil
	default:
		return uint8(b), nil
	}
}

// NewHyperLogLog creates a HyperLogLog sized for the given relative error.
// Redis' 0.0081 default yields 2^15 registers.
func NewHyperLogLog(relativeError float64) (*HyperLogLog, error) {
	b, err := PrecisionFor(relativeError)
	if err != nil {
		return nil, err
	}

	return NewHyperLogLogWithPrecision(b), nil
}

// NewHyperLogLogWithPrecision creates a new HyperLogLog with 2^b registers.
// Out of range values are clamped.
func NewHyperLogLogWithPrecision(b uint8) *HyperLogLog {
	if b < MinPrecision {
		b = MinPrecision
	} else if b > MaxPrecision {
		b = MaxPrecision
	}

	m := uint32(1) << b

	return &HyperLogLog{
		registers: make([]uint8, m),
		b:         b,
		m:         m,
		alpha:     alphaFor(m),
	}
}

func alphaFor(m uint32) float64 {
	switch {
	case m >= 128:
		return 0.7213 / (1 + 1.079/float64(m))
	case m >= 64:
		return 0.709
	case m >= 32:
		return 0.697
	default:
		return 0.673
	}
}

// Insert adds a canonical value to the sketch. Inserting the same value again
// leaves the registers untouched.
func (hll *HyperLogLog) Insert(v canonical.Value) {
	hll.insertHash(v.Hash())
}

func (hll *HyperLogLog) insertHash(hash uint64) {
	j := hash & uint64(hll.m-1)
	rank := rankOf(hash>>hll.b, hll.b)

	if rank > hll.registers[j] {
		hll.registers[j] = rank
	}
}

// rankOf is the 1-based position of the lowest set bit among the 64-b bits of
// w. An all-zero w gets the largest representable rank.
func rankOf(w uint64, b uint8) uint8 {
	maxRank := uint8(hashBits-b) + 1

	rank := uint8(bits.TrailingZeros64(w)) + 1
	if rank > maxRank {
		return maxRank
	}
	return rank
}

// Estimate returns the cardinality estimate. An empty sketch estimates 0.
func (hll *HyperLogLog) Estimate() float64 {
	sum, zeros := hll.harmonicSum()
	raw := hll.alpha * float64(hll.m) * float64(hll.m) / sum

	return correct(raw, hll.m, zeros)
}

// correct applies the small range (linear counting) and large range (hash
// exhaustion) corrections to a raw estimate.
func correct(raw float64, m uint32, zeros uint32) float64 {
	fm := float64(m)

	if raw <= 2.5*fm {
		if zeros != 0 {
			return fm * math.Log(fm/float64(zeros))
		}
		return raw
	}

	if raw <= two64/30 {
		return raw
	}
	if raw >= two64 {
		return two64
	}

	return -two64 * math.Log1p(-raw/two64)
}

// StandardError returns the theoretical standard error for this HLL
func (hll *HyperLogLog) StandardError() float64 {
	return StandardErrorFor(hll.b)
}

// StandardErrorFor returns 1.04/sqrt(2^b).
func StandardErrorFor(b uint8) float64 {
	return 1.04 / math.Sqrt(float64(uint32(1)<<b))
}

func (hll *HyperLogLog) Precision() uint8 {
	return hll.b
}

func (hll *HyperLogLog) Registers() int {
	return int(hll.m)
}

func (hll *HyperLogLog) harmonicSum() (float64, uint32) {
	var (
		sum   = 0.0
		zeros = uint32(0)
	)

	for _, reg := range hll.registers {
		sum += math.Ldexp(1, -int(reg))
		if reg == 0 {
			zeros++
		}
	}

	return sum, zeros
}
