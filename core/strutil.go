package core

// Number formatting without fmt, which TinyGo builds keep out of core

// itoa formats a signed integer
func itoa(n int) string {
	if n < 0 {
		return "-" + utoa64(uint64(-int64(n)))
	}
	return utoa64(uint64(n))
}

// utoa formats an unsigned 32-bit integer
func utoa(n uint32) string {
	return utoa64(uint64(n))
}

func utoa64(n uint64) string {
	var buf [20]byte
	pos := len(buf)
	for {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	return string(buf[pos:])
}

// String formats the record as "X<x> Y<y> Z<z>"
func (h HomeCoordinates) String() string {
	return "X" + itoa(int(h.X)) + " Y" + itoa(int(h.Y)) + " Z" + itoa(int(h.Z))
}
