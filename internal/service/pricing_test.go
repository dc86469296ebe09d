package service

import (
	"errors"
	"testing"

	"swap_rfq/internal/domain"

	"github.com/shopspring/decimal"
)

func atmParams() PricingParams {
	return PricingParams{
		SpotPrice:    decimal.NewFromInt(100),
		StrikePrice:  decimal.NewFromInt(100),
		TimeToExpiry: decimal.NewFromInt(1),
		Volatility:   decimal.RequireFromString("0.2"),
		RiskFreeRate: decimal.RequireFromString("0.05"),
	}
}

func TestCalculatePremium_ATMReference(t *testing.T) {
	premium, err := CalculatePremium(atmParams())
	if err != nil {
		t.Fatalf("CalculatePremium failed: %v", err)
	}

	// S=K=100, T=1, sigma=0.2, r=0.05: d1=0.35, d2=0.15, premium 10.4506.
	want := decimal.RequireFromString("10.4506")
	if premium.Sub(want).Abs().GreaterThan(decimal.RequireFromString("0.001")) {
		t.Errorf("ATM premium = %v, want %v +- 0.001", premium, want)
	}
}

func TestCalculatePremium_MonotonicInVolatility(t *testing.T) {
	params := atmParams()
	prev := decimal.Zero
	for _, sigma := range []string{"0.1", "0.2", "0.4", "0.8"} {
		params.Volatility = decimal.RequireFromString(sigma)
		premium, err := CalculatePremium(params)
		if err != nil {
			t.Fatalf("CalculatePremium(sigma=%s) failed: %v", sigma, err)
		}
		if !premium.GreaterThan(prev) {
			t.Errorf("premium at sigma=%s (%v) not greater than previous (%v)", sigma, premium, prev)
		}
		prev = premium
	}
}

func TestCalculatePremium_RejectsBadInputs(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*PricingParams)
	}{
		{"zero spot", func(p *PricingParams) { p.SpotPrice = decimal.Zero }},
		{"negative strike", func(p *PricingParams) { p.StrikePrice = decimal.NewFromInt(-1) }},
		{"zero expiry", func(p *PricingParams) { p.TimeToExpiry = decimal.Zero }},
		{"zero volatility", func(p *PricingParams) { p.Volatility = decimal.Zero }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := atmParams()
			tc.mutate(&params)
			if _, err := CalculatePremium(params); err == nil {
				t.Error("expected an input validation error")
			}
		})
	}
}

func TestCalculateVega_Positive(t *testing.T) {
	vega, err := CalculateVega(atmParams())
	if err != nil {
		t.Fatalf("CalculateVega failed: %v", err)
	}
	// ATM vega = S*sqrt(T)*phi(0.35), roughly 37.5.
	if vega.LessThan(decimal.NewFromInt(35)) || vega.GreaterThan(decimal.NewFromInt(40)) {
		t.Errorf("ATM vega = %v, expected near 37.5", vega)
	}
}

func TestCalculateImpliedVolatility_RoundTrip(t *testing.T) {
	for _, sigma := range []string{"0.05", "0.2", "0.5", "1.0", "2.0"} {
		params := atmParams()
		params.Volatility = decimal.RequireFromString(sigma)

		premium, err := CalculatePremium(params)
		if err != nil {
			t.Fatalf("CalculatePremium(sigma=%s) failed: %v", sigma, err)
		}

		solved, err := CalculateImpliedVolatility(premium, params)
		if err != nil {
			t.Fatalf("CalculateImpliedVolatility(sigma=%s) failed: %v", sigma, err)
		}
		if solved.Sub(params.Volatility).Abs().GreaterThan(decimal.RequireFromString("0.001")) {
			t.Errorf("round-trip sigma=%s solved to %v", sigma, solved)
		}
	}
}

func TestCalculateImpliedVolatility_NoConvergence(t *testing.T) {
	// A market price below the no-volatility floor S - K*e^(-rT) is
	// unreachable at any sigma in the clamp range.
	_, err := CalculateImpliedVolatility(decimal.NewFromInt(1), atmParams())
	if !errors.Is(err, domain.ErrNoConvergence) {
		t.Fatalf("expected ErrNoConvergence, got %v", err)
	}
}
