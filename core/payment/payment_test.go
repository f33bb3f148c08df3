package payment

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		price string
		want  int64
	}{
		{"20.00", 2000},
		{"19.99", 1999},
		{"0.01", 1},
		{"0", 0},
		{"100", 10000},
		{"7.5", 750},
	}

	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			price, err := decimal.NewFromString(tt.price)
			if err != nil {
				t.Fatalf("parsing price: %v", err)
			}

			if got := MinorUnits(price); got != tt.want {
				t.Fatalf("expected %d minor units for %s, got %d", tt.want, tt.price, got)
			}
		})
	}
}
