package permission

// Mask64 is one bit per registered attribute.
type Mask64 uint64

// Has reports whether bit is set.
func (m Mask64) Has(bit int) bool {
	if bit < 0 || bit >= MaxAttributes {
		return false
	}
	return m&(1<<bit) != 0
}

// Set turns bit on. Out-of-range bits are ignored.
func (m *Mask64) Set(bit int) {
	if bit < 0 || bit >= MaxAttributes {
		return
	}
	*m |= 1 << bit
}

// Clear turns bit off.
func (m *Mask64) Clear(bit int) {
	if bit < 0 || bit >= MaxAttributes {
		return
	}
	*m &^= 1 << bit
}

// Raw returns the underlying bits.
func (m Mask64) Raw() uint64 {
	return uint64(m)
}
