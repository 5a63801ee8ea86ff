package hedera

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnitConversion(t *testing.T) {
	assert.Equal(t, int64(0), ToTinybar(0))
	assert.Equal(t, int64(100_000_000), ToTinybar(1))
	assert.Equal(t, int64(2_500_000_000), ToTinybar(25))

	assert.Equal(t, int64(25), FromTinybar(2_500_000_000))
	// Sub-HBAR remainders truncate
	assert.Equal(t, int64(1), FromTinybar(199_999_999))
	assert.Equal(t, int64(0), FromTinybar(99_999_999))
}
