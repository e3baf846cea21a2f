package venue

import "testing"

func TestNormalizePrice(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"probability-unchanged", 0.52, 0.52},
		{"zero", 0, 0},
		{"one", 1, 1},
		{"cents-divided", 52, 0.52},
		{"hundred-cents", 100, 1},
		{"over-hundred-clamped", 150, 1},
		{"negative-clamped", -0.1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePrice(tt.in); got != tt.want {
				t.Errorf("NormalizePrice(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestAskFromBid(t *testing.T) {
	tests := []struct {
		name string
		bid  float64
		want float64
	}{
		{"mid-book", 0.48, 0.52},
		{"zero-bid", 0, 1},
		{"full-bid", 1, 0},
		{"overshoot-clamped", 1.2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AskFromBid(tt.bid)
			if diff := got - tt.want; diff > 1e-12 || diff < -1e-12 {
				t.Errorf("AskFromBid(%v) = %v, want %v", tt.bid, got, tt.want)
			}
		})
	}
}
