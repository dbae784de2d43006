package convert

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

type fakeSource map[string]decimal.Decimal

func (f fakeSource) MarketMid(pair string) (decimal.Decimal, bool) {
	mid, ok := f[pair]
	return mid, ok
}

func TestRate_Identity(t *testing.T) {
	c := New(fakeSource{})
	rate, err := c.Rate("USD", "USD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rate.Equal(d(1)) {
		t.Errorf("expected identity rate 1, got %s", rate)
	}
}

func TestRate_Direct(t *testing.T) {
	c := New(fakeSource{"EUR/USD": d(1.10)})
	rate, err := c.Rate("EUR", "USD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rate.Equal(d(1.10)) {
		t.Errorf("expected 1.10, got %s", rate)
	}
}

func TestRate_Inverse(t *testing.T) {
	c := New(fakeSource{"EUR/USD": d(1.10)})
	rate, err := c.Rate("USD", "EUR")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := decimal.NewFromInt(1).DivRound(d(1.10), inversionPrecision)
	if !rate.Equal(want) {
		t.Errorf("expected %s, got %s", want, rate)
	}
}

func TestRate_Missing(t *testing.T) {
	c := New(fakeSource{})
	_, err := c.Rate("EUR", "JPY")
	if _, ok := err.(MissingRateError); !ok {
		t.Fatalf("expected MissingRateError, got %v", err)
	}
}

func TestConvert_AppliesRate(t *testing.T) {
	c := New(fakeSource{"EUR/USD": d(1.10)})
	result, err := c.Convert(d(1_000_000), "EUR", "USD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Equal(d(1_100_000)) {
		t.Errorf("expected 1,100,000, got %s", result)
	}
}

func TestConvert_PropagatesMissingRate(t *testing.T) {
	c := New(fakeSource{})
	_, err := c.Convert(d(100), "EUR", "JPY")
	if err == nil {
		t.Errorf("expected an error for an unresolvable pair")
	}
}
