package core

// Number formatting for debug output and dictionary constants without
// pulling fmt into the firmware image.

func itoa(n int) string {
	return itoa64(int64(n))
}

func itoa64(n int64) string {
	if n < 0 {
		// Negating in uint64 also covers math.MinInt64.
		return "-" + utoa64(uint64(-n))
	}
	return utoa64(uint64(n))
}

func utoa(n uint32) string {
	return utoa64(uint64(n))
}

func utoa64(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[pos:])
}

// valueToString converts a dictionary constant to its string form
func valueToString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return itoa(val)
	case int32:
		return itoa64(int64(val))
	case int64:
		return itoa64(val)
	case uint:
		return utoa64(uint64(val))
	case uint8:
		return utoa(uint32(val))
	case uint16:
		return utoa(uint32(val))
	case uint32:
		return utoa(val)
	case uint64:
		return utoa64(val)
	default:
		return ""
	}
}
