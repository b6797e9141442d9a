package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestValidateQty_StepRule(t *testing.T) {
	p := &Product{
		ID:     "p1",
		Name:   "Papa negra",
		Step:   dec("0.5"),
		MinQty: dec("0.5"),
		MaxQty: dec("10"),
	}

	require.NoError(t, p.ValidateQty(dec("0.5")))
	require.NoError(t, p.ValidateQty(dec("1.5")))
	require.NoError(t, p.ValidateQty(dec("10")))

	err := p.ValidateQty(dec("1.3"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQuantity)
	assert.Contains(t, err.Error(), "step")
}

func TestValidateQty_Bounds(t *testing.T) {
	p := &Product{Step: dec("1"), MinQty: dec("2"), MaxQty: dec("6")}

	err := p.ValidateQty(dec("1"))
	require.ErrorIs(t, err, ErrQuantity)
	assert.Contains(t, err.Error(), "minimum")

	err = p.ValidateQty(dec("7"))
	require.ErrorIs(t, err, ErrQuantity)
	assert.Contains(t, err.Error(), "maximum")

	assert.NoError(t, p.ValidateQty(dec("2")))
	assert.NoError(t, p.ValidateQty(dec("6")))
}

func TestValidateQty_Defaults(t *testing.T) {
	// Zero-valued rule falls back to step=1, min=1.
	p := &Product{}
	assert.NoError(t, p.ValidateQty(dec("3")))
	assert.Error(t, p.ValidateQty(dec("0.5")))
}

func TestValidateQty_Tolerance(t *testing.T) {
	p := &Product{Step: dec("0.5"), MinQty: dec("0.5"), MaxQty: dec("10")}
	// Within 1e-6 of a step multiple.
	assert.NoError(t, p.ValidateQty(dec("1.5000000001")))
	assert.Error(t, p.ValidateQty(dec("1.50001")))
}
