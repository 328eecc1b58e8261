// Package checksum implements the RFC 1071 internet checksum as a running
// 32-bit sum that is folded to 16 bits once all data has been added.
package checksum

// Update adds data to sum as a sequence of big-endian 16-bit words. An odd
// trailing byte is padded on the right with zero.
func Update(sum uint32, data []byte) uint32 {
	i := 0
	for ; i+1 < len(data); i += 2 {
		sum += uint32(data[i])<<8 | uint32(data[i+1])
	}
	if i < len(data) {
		sum += uint32(data[i]) << 8
	}
	return sum
}

// Sum is Update starting from zero.
func Sum(data []byte) uint32 {
	return Update(0, data)
}

// AddUint16 adds a single 16-bit word to sum.
func AddUint16(sum uint32, v uint16) uint32 {
	return sum + uint32(v)
}

// Fold folds the carries of sum back into the low 16 bits and returns the
// ones' complement of the result.
func Fold(sum uint32) uint16 {
	for sum>>16 != 0 {
		sum = sum&0xffff + sum>>16
	}
	return ^uint16(sum)
}

// Checksum is Fold(Sum(data)).
func Checksum(data []byte) uint16 {
	return Fold(Sum(data))
}
