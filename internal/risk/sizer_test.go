package risk

import (
	"math"
	"testing"

	"equity-sim/config"
)

func TestPositionSizer_Size(t *testing.T) {
	sizer := NewPositionSizer(config.DefaultRiskConfig())

	tests := []struct {
		name         string
		accountValue float64
		riskPerTrade float64
		stopLossPct  float64
		wantSize     float64
		wantCapped   bool
		wantErr      bool
	}{
		{
			name:         "baseline 1% risk 5% stop",
			accountValue: 100000,
			riskPerTrade: 0.01,
			stopLossPct:  0.05,
			wantSize:     20000,
			wantCapped:   false,
		},
		{
			name:         "tight stop hits the cap",
			accountValue: 100000,
			riskPerTrade: 0.02,
			stopLossPct:  0.01,
			wantSize:     10000, // 10% cap, not 200000
			wantCapped:   true,
		},
		{
			name:         "zero stop is a config error",
			accountValue: 100000,
			riskPerTrade: 0.01,
			stopLossPct:  0,
			wantErr:      true,
		},
		{
			name:         "negative stop is a config error",
			accountValue: 100000,
			riskPerTrade: 0.01,
			stopLossPct:  -0.05,
			wantErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sizer.Size(tt.accountValue, tt.riskPerTrade, tt.stopLossPct)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Size() error = %v, wantErr = %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if math.Abs(got.PositionSize-tt.wantSize) > 1e-9 {
				t.Errorf("PositionSize = %f, want %f", got.PositionSize, tt.wantSize)
			}
			if got.CappedByMax != tt.wantCapped {
				t.Errorf("CappedByMax = %v, want %v", got.CappedByMax, tt.wantCapped)
			}
		})
	}
}

func TestPositionSizer_Shares(t *testing.T) {
	sizer := NewPositionSizer(config.DefaultRiskConfig())

	tests := []struct {
		name         string
		price        float64
		positionSize float64
		want         int
	}{
		{"whole shares floor", 100.05, 10000, 99},
		{"exact division", 100, 10000, 100},
		{"size below one share still buys one", 500, 100, 1},
		{"zero price", 0, 10000, 0},
		{"negative price", -10, 10000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sizer.Shares(tt.price, tt.positionSize); got != tt.want {
				t.Errorf("Shares(%f, %f) = %d, want %d", tt.price, tt.positionSize, got, tt.want)
			}
		})
	}
}

func TestPositionSizer_Kelly(t *testing.T) {
	sizer := NewPositionSizer(config.DefaultRiskConfig())

	tests := []struct {
		name    string
		winRate float64
		avgWin  float64
		avgLoss float64
		want    float64
	}{
		{"even odds even payoff", 0.5, 100, 100, 0},
		{"favorable edge", 0.6, 100, 100, 0.1}, // full Kelly 0.2, halved
		{"zero average loss", 0.9, 100, 0, 0},
		{"losing edge clamps to zero", 0.3, 100, 100, 0},
		{"extreme edge clamps at half", 1.0, 1000, 1, 0.5},
		{"negative avg loss uses magnitude", 0.6, 100, -100, 0.1},
		{"losing edge with negative avg loss", 0.3, 100, -100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sizer.Kelly(tt.winRate, tt.avgWin, tt.avgLoss)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Kelly(%f, %f, %f) = %f, want %f", tt.winRate, tt.avgWin, tt.avgLoss, got, tt.want)
			}
			if got < 0 || got > 0.5 {
				t.Errorf("Kelly result %f outside [0, 0.5]", got)
			}
		})
	}
}
