package optimizer

import (
	"errors"
	"math"
	"testing"

	"github.com/kilianp07/battopt/core/model"
)

func TestNormalize(t *testing.T) {
	b, err := Normalize(model.BatteryParams{CapacityKWh: 10, MaxRateKW: 2.5, MinSOCPercent: 20, EfficiencyRoundtrip: 0.81}, 50)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if b.MinSOCKWh != 2 || b.MaxSOCKWh != 10 || b.InitialSOCKWh != 5 {
		t.Fatalf("unexpected soc bounds %+v", b)
	}
	if math.Abs(b.OneWayEfficiency-0.9) > 1e-12 || math.Abs(b.InverseOneWayEfficiency-1/0.9) > 1e-12 {
		t.Fatalf("unexpected efficiencies %+v", b)
	}
	if b.MaxEnergyPerStep != 2.5 {
		t.Fatalf("expected 2.5 kWh per step got %v", b.MaxEnergyPerStep)
	}
	if b.InitialClamped {
		t.Fatal("initial soc should not be clamped")
	}
}

func TestNormalizeClampsInitialSOC(t *testing.T) {
	p := model.BatteryParams{CapacityKWh: 10, MaxRateKW: 1, MinSOCPercent: 10, EfficiencyRoundtrip: 1}
	cases := []struct {
		percent float64
		want    float64
	}{
		{-20, 1},
		{5, 1},
		{150, 10},
	}
	for _, c := range cases {
		b, err := Normalize(p, c.percent)
		if err != nil {
			t.Fatalf("normalize %v: %v", c.percent, err)
		}
		if b.InitialSOCKWh != c.want || !b.InitialClamped {
			t.Fatalf("percent %v: got %v clamped=%v", c.percent, b.InitialSOCKWh, b.InitialClamped)
		}
	}
}

func TestNormalizeEfficiencyErrors(t *testing.T) {
	p := model.BatteryParams{CapacityKWh: 10, MaxRateKW: 1, MinSOCPercent: 10}

	p.EfficiencyRoundtrip = -0.1
	if _, err := Normalize(p, 50); !errors.Is(err, ErrDomain) {
		t.Fatalf("expected domain error got %v", err)
	}
	p.EfficiencyRoundtrip = 0
	if _, err := Normalize(p, 50); !errors.Is(err, ErrDivision) {
		t.Fatalf("expected division error got %v", err)
	}
}

func TestNormalizeMinAboveCapacity(t *testing.T) {
	b, err := Normalize(model.BatteryParams{CapacityKWh: 10, MaxRateKW: 1, MinSOCPercent: 120, EfficiencyRoundtrip: 1}, 50)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if b.MinSOCKWh <= b.MaxSOCKWh {
		t.Fatalf("expected inverted bounds, got %+v", b)
	}
	if b.InitialSOCKWh != b.MaxSOCKWh {
		t.Fatalf("initial soc should end on the capacity, got %v", b.InitialSOCKWh)
	}
}
