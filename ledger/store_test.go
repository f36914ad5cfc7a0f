package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/draco/vendor-ledger/ledger"
)

func TestEffectiveLimit(t *testing.T) {
	// Missing or nonsense limits fall back to the default; oversized ones
	// are clamped to the maximum, not reset.

	assert.Equal(t, ledger.DefaultPageLimit, ledger.Page{}.EffectiveLimit())
	assert.Equal(t, ledger.DefaultPageLimit, ledger.Page{Limit: -1}.EffectiveLimit())
	assert.Equal(t, 25, ledger.Page{Limit: 25}.EffectiveLimit())
	assert.Equal(t, ledger.MaxPageLimit, ledger.Page{Limit: ledger.MaxPageLimit}.EffectiveLimit())
	assert.Equal(t, ledger.MaxPageLimit, ledger.Page{Limit: ledger.MaxPageLimit + 1}.EffectiveLimit())
}
