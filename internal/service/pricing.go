package service

import (
	"fmt"

	"swap_rfq/internal/domain"

	"github.com/shopspring/decimal"
)

// All pricing arithmetic runs at this precision. The CDF polynomial
// compounds five multiplications, so drift below 20 digits shows up in the
// premium's last cents.
const pricingPrecision = 30

var (
	one = decimal.NewFromInt(1)
	two = decimal.NewFromInt(2)

	sqrt2Pi = decimal.RequireFromString("2.506628274631000502415765284811")

	// Abramowitz-Stegun 26.2.17 coefficients. Reproduced exactly; pricing
	// parity with other deployments depends on these digits.
	cdfGamma = decimal.RequireFromString("0.2316419")
	cdfB1    = decimal.RequireFromString("0.319381530")
	cdfB2    = decimal.RequireFromString("0.356563782")
	cdfB3    = decimal.RequireFromString("1.781477937")
	cdfB4    = decimal.RequireFromString("1.821255978")
	cdfB5    = decimal.RequireFromString("1.330274429")

	ivInitialSigma = decimal.RequireFromString("0.5")
	ivTolerance    = decimal.RequireFromString("0.0001")
	ivSigmaMin     = decimal.RequireFromString("0.01")
	ivSigmaMax     = decimal.NewFromInt(5)
)

const ivMaxIterations = 100

// PricingParams are the Black-Scholes inputs. TimeToExpiry is in years.
type PricingParams struct {
	SpotPrice    decimal.Decimal
	StrikePrice  decimal.Decimal
	TimeToExpiry decimal.Decimal
	Volatility   decimal.Decimal
	RiskFreeRate decimal.Decimal
}

func (p PricingParams) validate() error {
	if !p.SpotPrice.IsPositive() {
		return fmt.Errorf("spot price must be positive, got %v", p.SpotPrice)
	}
	if !p.StrikePrice.IsPositive() {
		return fmt.Errorf("strike price must be positive, got %v", p.StrikePrice)
	}
	if !p.TimeToExpiry.IsPositive() {
		return fmt.Errorf("time to expiry must be positive, got %v", p.TimeToExpiry)
	}
	if !p.Volatility.IsPositive() {
		return fmt.Errorf("volatility must be positive, got %v", p.Volatility)
	}
	return nil
}

// CalculatePremium prices a European call with Black-Scholes:
// premium = S*N(d1) - K*e^(-rT)*N(d2).
func CalculatePremium(params PricingParams) (decimal.Decimal, error) {
	if err := params.validate(); err != nil {
		return decimal.Zero, err
	}

	d1, d2, _, err := dTerms(params)
	if err != nil {
		return decimal.Zero, err
	}

	nd1, err := normalCDF(d1)
	if err != nil {
		return decimal.Zero, err
	}
	nd2, err := normalCDF(d2)
	if err != nil {
		return decimal.Zero, err
	}

	discount, err := params.RiskFreeRate.Mul(params.TimeToExpiry).Neg().ExpTaylor(pricingPrecision)
	if err != nil {
		return decimal.Zero, err
	}

	premium := params.SpotPrice.Mul(nd1).Sub(params.StrikePrice.Mul(discount).Mul(nd2))
	return premium, nil
}

// CalculateVega is the closed-form premium sensitivity to volatility:
// vega = S*sqrt(T)*phi(d1).
func CalculateVega(params PricingParams) (decimal.Decimal, error) {
	if err := params.validate(); err != nil {
		return decimal.Zero, err
	}

	d1, _, sqrtT, err := dTerms(params)
	if err != nil {
		return decimal.Zero, err
	}
	pdf, err := normalPDF(d1)
	if err != nil {
		return decimal.Zero, err
	}
	return params.SpotPrice.Mul(sqrtT).Mul(pdf), nil
}

// CalculateImpliedVolatility solves premium(sigma) = marketPrice by
// Newton-Raphson, starting at 0.5 and clamping sigma to [0.01, 5] after
// each step. Fails with ErrNoConvergence after 100 iterations.
func CalculateImpliedVolatility(marketPrice decimal.Decimal, params PricingParams) (decimal.Decimal, error) {
	sigma := ivInitialSigma
	for i := 0; i < ivMaxIterations; i++ {
		params.Volatility = sigma

		price, err := CalculatePremium(params)
		if err != nil {
			return decimal.Zero, err
		}
		diff := price.Sub(marketPrice)
		if diff.Abs().LessThan(ivTolerance) {
			return sigma, nil
		}

		vega, err := CalculateVega(params)
		if err != nil {
			return decimal.Zero, err
		}
		if vega.IsZero() {
			break
		}

		sigma = sigma.Sub(diff.DivRound(vega, pricingPrecision))
		if sigma.LessThan(ivSigmaMin) {
			sigma = ivSigmaMin
		} else if sigma.GreaterThan(ivSigmaMax) {
			sigma = ivSigmaMax
		}
	}
	return decimal.Zero, domain.ErrNoConvergence
}

// dTerms computes d1, d2 and sqrt(T) for the given inputs:
// d1 = [ln(S/K) + (r + sigma^2/2)*T] / (sigma*sqrt(T)), d2 = d1 - sigma*sqrt(T).
func dTerms(params PricingParams) (d1, d2, sqrtT decimal.Decimal, err error) {
	sqrtT, err = sqrtDecimal(params.TimeToExpiry)
	if err != nil {
		return
	}
	sigmaSqrtT := params.Volatility.Mul(sqrtT)

	lnSK, err := params.SpotPrice.DivRound(params.StrikePrice, pricingPrecision).Ln(pricingPrecision)
	if err != nil {
		return
	}

	drift := params.RiskFreeRate.
		Add(params.Volatility.Mul(params.Volatility).DivRound(two, pricingPrecision)).
		Mul(params.TimeToExpiry)

	d1 = lnSK.Add(drift).DivRound(sigmaSqrtT, pricingPrecision)
	d2 = d1.Sub(sigmaSqrtT)
	return
}

// normalPDF is the standard normal density e^(-x^2/2)/sqrt(2*pi).
func normalPDF(x decimal.Decimal) (decimal.Decimal, error) {
	e, err := x.Mul(x).DivRound(two, pricingPrecision).Neg().ExpTaylor(pricingPrecision)
	if err != nil {
		return decimal.Zero, err
	}
	return e.DivRound(sqrt2Pi, pricingPrecision), nil
}

// normalCDF approximates the standard normal CDF with the fixed
// five-coefficient polynomial, mirrored for negative x.
func normalCDF(x decimal.Decimal) (decimal.Decimal, error) {
	ax := x.Abs()

	t := one.DivRound(one.Add(cdfGamma.Mul(ax)), pricingPrecision)
	d, err := normalPDF(ax)
	if err != nil {
		return decimal.Zero, err
	}

	// Horner form of b5*t^5 - b4*t^4 + b3*t^3 - b2*t^2 + b1*t.
	poly := cdfB5
	poly = poly.Mul(t).Sub(cdfB4)
	poly = poly.Mul(t).Add(cdfB3)
	poly = poly.Mul(t).Sub(cdfB2)
	poly = poly.Mul(t).Add(cdfB1)
	poly = poly.Mul(t)

	cdf := one.Sub(d.Mul(poly))
	if x.IsNegative() {
		return one.Sub(cdf), nil
	}
	return cdf, nil
}

// sqrtDecimal is x^0.5 at pricing precision.
func sqrtDecimal(x decimal.Decimal) (decimal.Decimal, error) {
	if x.IsZero() {
		return decimal.Zero, nil
	}
	return x.PowWithPrecision(decimalHalf, pricingPrecision)
}
