package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinorUnits(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"1", 100},
		{"12.34", 1234},
		{"0.01", 1},
		{"-5.50", -550},
		{"1000.00", 100000},
		{"0.10", 10},
	}
	for _, tc := range cases {
		d, err := decimal.NewFromString(tc.in)
		require.NoError(t, err)
		got, err := ToMinorUnits(d)
		require.NoError(t, err, "input %s", tc.in)
		assert.Equal(t, tc.want, got, "input %s", tc.in)
	}
}

func TestToMinorUnitsPrecision(t *testing.T) {
	for _, in := range []string{"0.005", "1.234", "0.001"} {
		d, err := decimal.NewFromString(in)
		require.NoError(t, err)
		_, err = ToMinorUnits(d)
		assert.ErrorIs(t, err, ErrPrecision, "input %s", in)
	}
}

func TestToMinorUnitsRange(t *testing.T) {
	d, err := decimal.NewFromString("92233720368547758.08")
	require.NoError(t, err)
	_, err = ToMinorUnits(d)
	assert.ErrorIs(t, err, ErrRange)
}

func TestFromMinorUnits(t *testing.T) {
	assert.Equal(t, "12.34", FromMinorUnits(1234).StringFixed(2))
	assert.Equal(t, "0.00", FromMinorUnits(0).StringFixed(2))
	assert.Equal(t, "-5.50", FromMinorUnits(-550).StringFixed(2))
}

func TestRoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, 99, 100, 123456789} {
		got, err := ToMinorUnits(FromMinorUnits(v))
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}
