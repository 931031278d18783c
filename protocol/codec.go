package protocol

// Encode obfuscates one firmware chunk before it is placed in a write or
// verify command.
//
// Bytes at i%8 == 7 are XORed with (key+chipID)&0xFF. For VariantNew every
// other byte is XORed with key; VariantOld leaves them untouched.
func Encode(chunk [ChunkSize]byte, key, chipID byte, v Variant) [ChunkSize]byte {
	mask := byte((int(key) + int(chipID)) & 0xFF)
	for i := range chunk {
		if i%8 == 7 {
			chunk[i] ^= mask
		} else if v == VariantNew {
			chunk[i] ^= key
		}
	}
	return chunk
}

// Decode reverses Encode. XOR masking is its own inverse.
func Decode(chunk [ChunkSize]byte, key, chipID byte, v Variant) [ChunkSize]byte {
	return Encode(chunk, key, chipID, v)
}
