package valueobject

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	t.Run("creates money with valid amount and currency", func(t *testing.T) {
		m, err := NewMoney(decimal.NewFromFloat(100.50), UGX)
		require.NoError(t, err)
		assert.Equal(t, UGX, m.Currency())
		assert.True(t, m.Amount().Equal(decimal.NewFromFloat(100.50)))
	})

	t.Run("returns error for empty currency", func(t *testing.T) {
		_, err := NewMoney(decimal.NewFromFloat(100), "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "currency cannot be empty")
	})
}

func TestNewMoneyFromString(t *testing.T) {
	t.Run("valid string", func(t *testing.T) {
		m, err := NewMoneyFromString("10000.45", UGX)
		require.NoError(t, err)
		assert.True(t, m.Amount().Equal(decimal.NewFromFloat(10000.45)))
	})

	t.Run("invalid string", func(t *testing.T) {
		_, err := NewMoneyFromString("not-a-number", UGX)
		assert.Error(t, err)
	})
}

func TestNewMoneyUGX(t *testing.T) {
	m := NewMoneyUGX(decimal.NewFromInt(50000))
	assert.Equal(t, UGX, m.Currency())
	assert.True(t, m.Amount().Equal(decimal.NewFromInt(50000)))
}

func TestZero(t *testing.T) {
	m := Zero(KES)
	assert.True(t, m.IsZero())
	assert.Equal(t, KES, m.Currency())

	assert.True(t, ZeroUGX().IsZero())
	assert.Equal(t, UGX, ZeroUGX().Currency())
}

func TestMoneyHasValidScale(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		valid  bool
	}{
		{"integer", "10000", true},
		{"one decimal place", "100.5", true},
		{"two decimal places", "100.55", true},
		{"three decimal places", "100.555", false},
		{"trailing zeros beyond scale", "100.550", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMoneyFromString(tt.amount, UGX)
			require.NoError(t, err)
			assert.Equal(t, tt.valid, m.HasValidScale())
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	t.Run("add", func(t *testing.T) {
		a := NewMoneyUGX(decimal.NewFromInt(10000))
		b := NewMoneyUGX(decimal.NewFromInt(2500))
		sum, err := a.Add(b)
		require.NoError(t, err)
		assert.True(t, sum.Amount().Equal(decimal.NewFromInt(12500)))
	})

	t.Run("subtract", func(t *testing.T) {
		a := NewMoneyUGX(decimal.NewFromInt(10000))
		b := NewMoneyUGX(decimal.NewFromInt(2500))
		diff, err := a.Subtract(b)
		require.NoError(t, err)
		assert.True(t, diff.Amount().Equal(decimal.NewFromInt(7500)))
	})

	t.Run("currency mismatch rejected", func(t *testing.T) {
		a := NewMoneyUGX(decimal.NewFromInt(100))
		b, _ := NewMoney(decimal.NewFromInt(100), KES)
		_, err := a.Add(b)
		assert.Error(t, err)
		_, err = a.Subtract(b)
		assert.Error(t, err)
	})

	t.Run("must add panics on mismatch", func(t *testing.T) {
		a := NewMoneyUGX(decimal.NewFromInt(100))
		b, _ := NewMoney(decimal.NewFromInt(100), USD)
		assert.Panics(t, func() { a.MustAdd(b) })
	})

	t.Run("multiply and negate", func(t *testing.T) {
		m := NewMoneyUGX(decimal.NewFromInt(50000))
		doubled := m.Multiply(decimal.NewFromInt(2))
		assert.True(t, doubled.Amount().Equal(decimal.NewFromInt(100000)))
		assert.True(t, m.Negate().IsNegative())
	})
}

func TestMoneyComparisons(t *testing.T) {
	a := NewMoneyUGX(decimal.NewFromInt(100))
	b := NewMoneyUGX(decimal.NewFromInt(200))

	lt, err := a.LessThan(b)
	require.NoError(t, err)
	assert.True(t, lt)

	gt, err := b.GreaterThan(a)
	require.NoError(t, err)
	assert.True(t, gt)

	gte, err := a.GreaterThanOrEqual(a)
	require.NoError(t, err)
	assert.True(t, gte)

	kes, _ := NewMoney(decimal.NewFromInt(100), KES)
	_, err = a.LessThan(kes)
	assert.Error(t, err)
}

func TestMoneyJSON(t *testing.T) {
	m := NewMoneyUGX(decimal.NewFromFloat(10000.50))

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"10000.5","currency":"UGX"}`, string(data))

	var decoded Money
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.Equals(m))
}

func TestMoneyValueAndScan(t *testing.T) {
	m := NewMoneyUGX(decimal.NewFromFloat(123.45))

	v, err := m.Value()
	require.NoError(t, err)
	assert.Equal(t, "123.45", v)

	var scanned Money
	require.NoError(t, scanned.Scan("123.45"))
	assert.True(t, scanned.Amount().Equal(decimal.NewFromFloat(123.45)))
	assert.Equal(t, DefaultCurrency, scanned.Currency())

	var fromNil Money
	require.NoError(t, fromNil.Scan(nil))
	assert.True(t, fromNil.IsZero())
}

func TestCalculatePercentage(t *testing.T) {
	m := NewMoneyUGX(decimal.NewFromInt(50000))
	interest := m.CalculatePercentage(decimal.NewFromInt(2))
	assert.True(t, interest.Amount().Equal(decimal.NewFromInt(1000)))
}
