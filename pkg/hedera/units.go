package hedera

// TinybarPerHbar is the number of smallest network units in one whole
// HBAR. The ledger stores whole HBAR; only this package converts.
const TinybarPerHbar int64 = 100_000_000

// ToTinybar converts a whole-HBAR ledger amount to tinybar.
func ToTinybar(hbar int64) int64 {
	return hbar * TinybarPerHbar
}

// FromTinybar converts a tinybar amount to whole HBAR, truncating any
// sub-HBAR remainder.
func FromTinybar(tinybar int64) int64 {
	return tinybar / TinybarPerHbar
}
