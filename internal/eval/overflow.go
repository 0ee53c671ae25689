package eval

import (
	"math"
	"math/bits"

	"monoc/internal/lowlevel"
)

// AddInt64Checked returns (a+b, ok). ok is false on signed overflow.
func AddInt64Checked(a, b int64) (int64, bool) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, false
	}
	return a + b, true
}

// SubInt64Checked returns (a-b, ok). ok is false on signed overflow.
func SubInt64Checked(a, b int64) (int64, bool) {
	if (b > 0 && a < math.MinInt64+b) || (b < 0 && a > math.MaxInt64+b) {
		return 0, false
	}
	return a - b, true
}

// MulInt64Checked returns (a*b, ok). ok is false on signed overflow.
func MulInt64Checked(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if (a == math.MinInt64 && b == -1) || (b == math.MinInt64 && a == -1) {
		return 0, false
	}
	res := a * b
	if res/b != a {
		return 0, false
	}
	return res, true
}

// checkedInt applies a trapping arithmetic op at the given width. Unsigned
// values travel as the bit pattern of their uint64.
func checkedInt(op lowlevel.Op, a, b int64, width uint8, signed bool) (int64, bool) {
	if width == 0 || width > 64 {
		width = 64
	}
	if !signed {
		x, y := uint64(a), uint64(b)
		var r, carry uint64
		switch op {
		case lowlevel.NumAdd:
			r, carry = bits.Add64(x, y, 0)
		case lowlevel.NumSub:
			r, carry = bits.Sub64(x, y, 0)
		default:
			carry, r = bits.Mul64(x, y)
		}
		if carry != 0 || (width < 64 && r>>width != 0) {
			return 0, false
		}
		return int64(r), true
	}
	var (
		r  int64
		ok bool
	)
	switch op {
	case lowlevel.NumAdd:
		r, ok = AddInt64Checked(a, b)
	case lowlevel.NumSub:
		r, ok = SubInt64Checked(a, b)
	default:
		r, ok = MulInt64Checked(a, b)
	}
	if !ok {
		return 0, false
	}
	if width < 64 {
		lo, hi := -(int64(1) << (width - 1)), int64(1)<<(width-1)-1
		if r < lo || r > hi {
			return 0, false
		}
	}
	return r, true
}

func overflowMessage(op lowlevel.Op) string {
	switch op {
	case lowlevel.NumAdd:
		return "integer addition overflowed!"
	case lowlevel.NumSub:
		return "integer subtraction overflowed!"
	default:
		return "integer multiplication overflowed!"
	}
}
