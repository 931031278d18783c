package protocol

// Variant selects the key exchange shape and payload obfuscation rule.
type Variant int

const (
	// VariantOld is the V2.30 bootloader behaviour
	VariantOld Variant = iota

	// VariantNew is the V2.31 / V2.40 bootloader behaviour
	VariantNew
)

func (v Variant) String() string {
	switch v {
	case VariantOld:
		return "old"
	case VariantNew:
		return "new"
	default:
		return "unknown"
	}
}

// ConfigInfo contains the fields extracted from a read config reply.
type ConfigInfo struct {
	// Version is formatted as "V{major}.{minor}{patch}", e.g. "V2.40"
	Version string

	// ChecksumKey is the low byte of the sum of the four key bytes
	ChecksumKey byte
}
