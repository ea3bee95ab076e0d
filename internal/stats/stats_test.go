package stats

import (
	"math"
	"testing"
)

func vector(n, c int) []bool {
	out := make([]bool, n)
	for i := 0; i < c; i++ {
		out[i] = true
	}
	return out
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

func TestPassAtKScenarios(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		n, c, k int
		want    float64
	}{
		{"k1_is_pass_rate", 5, 3, 1, 0.6},
		{"n5_c3_k2", 5, 3, 2, 0.9}, // 1 - C(2,2)/C(5,2)
		{"no_successes", 5, 0, 3, 0.0},
		{"k_exceeds_n_with_success", 3, 2, 5, 1.0},
		{"k_exceeds_n_without_success", 3, 0, 5, 0.0},
		{"too_few_failures", 5, 4, 2, 1.0},
		{"k_equals_n_some_pass", 5, 2, 5, 1.0},
		{"k_equals_n_none_pass", 5, 0, 5, 0.0},
	}
	for _, tc := range cases {
		got := PassAtK(vector(tc.n, tc.c), tc.k)
		if !almostEqual(got, tc.want) {
			t.Fatalf("%s: PassAtK(n=%d,c=%d,k=%d) = %v, want %v", tc.name, tc.n, tc.c, tc.k, got, tc.want)
		}
	}
}

func TestPassPowerKScenarios(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		n, c, k int
		want    float64
	}{
		{"k1_is_pass_rate", 5, 3, 1, 0.6},
		{"n5_c3_k2", 5, 3, 2, 0.3}, // C(3,2)/C(5,2)
		{"no_successes", 5, 0, 3, 0.0},
		{"k_exceeds_n", 3, 2, 5, 0.0},
		{"k_equals_n_all_pass", 5, 5, 5, 1.0},
		{"k_equals_n_one_fail", 5, 4, 5, 0.0},
	}
	for _, tc := range cases {
		got := PassPowerK(vector(tc.n, tc.c), tc.k)
		if !almostEqual(got, tc.want) {
			t.Fatalf("%s: PassPowerK(n=%d,c=%d,k=%d) = %v, want %v", tc.name, tc.n, tc.c, tc.k, got, tc.want)
		}
	}
}

func TestPassPowerKNeverExceedsPassAtK(t *testing.T) {
	t.Parallel()

	for n := 0; n <= 12; n++ {
		for c := 0; c <= n; c++ {
			for k := 1; k <= n+2; k++ {
				v := vector(n, c)
				atK := PassAtK(v, k)
				powK := PassPowerK(v, k)
				if powK > atK+1e-12 {
					t.Fatalf("n=%d c=%d k=%d: pass^k %v > pass@k %v", n, c, k, powK, atK)
				}
			}
		}
	}
}

func TestOrderIndependence(t *testing.T) {
	t.Parallel()

	a := []bool{true, false, true, false, true}
	b := []bool{false, false, true, true, true}
	if PassAtK(a, 2) != PassAtK(b, 2) || PassPowerK(a, 2) != PassPowerK(b, 2) {
		t.Fatalf("statistics must depend only on counts, not order")
	}
}

func TestNonPositiveK(t *testing.T) {
	t.Parallel()

	if PassAtK(vector(3, 2), 0) != 0.0 || PassPowerK(vector(3, 2), 0) != 0.0 {
		t.Fatalf("k <= 0 must yield 0.0")
	}
}
