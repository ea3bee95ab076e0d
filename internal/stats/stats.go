// Package stats computes calibrated success probabilities over a trial
// pass/fail vector using exact integer combinatorics.
package stats

import "math/big"

// PassAtK returns the probability that at least one of k trials sampled
// without replacement from the observed trials succeeds.
func PassAtK(results []bool, k int) float64 {
	n, c := count(results)
	return passAtK(n, c, k)
}

// PassPowerK returns the probability that all k sampled trials succeed.
func PassPowerK(results []bool, k int) float64 {
	n, c := count(results)
	return passPowerK(n, c, k)
}

func count(results []bool) (n, c int) {
	n = len(results)
	for _, passed := range results {
		if passed {
			c++
		}
	}
	return n, c
}

func passAtK(n, c, k int) float64 {
	if k <= 0 {
		return 0.0
	}
	if n < k {
		// Not enough trials to sample k of them.
		if c > 0 {
			return 1.0
		}
		return 0.0
	}
	if n-c < k {
		// Too few failures to fill a k-subset.
		return 1.0
	}
	return 1.0 - ratio(binomial(n-c, k), binomial(n, k))
}

func passPowerK(n, c, k int) float64 {
	if k <= 0 {
		return 0.0
	}
	if n < k || c < k {
		return 0.0
	}
	return ratio(binomial(c, k), binomial(n, k))
}

// binomial returns C(n, k) exactly. Trial counts are small, but float
// factorials lose precision long before int64 overflows would.
func binomial(n, k int) *big.Int {
	if k < 0 || k > n {
		return big.NewInt(0)
	}
	return new(big.Int).Binomial(int64(n), int64(k))
}

func ratio(num, den *big.Int) float64 {
	if den.Sign() == 0 {
		return 0.0
	}
	f, _ := new(big.Rat).SetFrac(num, den).Float64()
	return f
}
