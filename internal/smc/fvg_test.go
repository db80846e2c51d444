package smc

import (
	"testing"

	"smc-trader/pkg/types"
)

const pip = 0.0001

func m5(ts int64, o, h, l, c float64) types.Bar {
	return types.Bar{Timestamp: ts, Open: o, High: h, Low: l, Close: c}
}

// bearishGapBars: first low 1.0990, third high 1.0972 → 18-pip gap.
func bearishGapBars() []types.Bar {
	return []types.Bar{
		m5(100, 1.0995, 1.0998, 1.0990, 1.0992),
		m5(200, 1.0990, 1.0991, 1.0975, 1.0976),
		m5(300, 1.0971, 1.0972, 1.0965, 1.0968),
	}
}

func TestDetectBearishFVG(t *testing.T) {
	t.Parallel()
	f := DetectFVG(bearishGapBars(), types.SELL, 0, 2, pip)
	if f == nil {
		t.Fatal("no gap detected")
	}
	if f.Low != 1.0972 || f.High != 1.0990 {
		t.Errorf("zone = [%v, %v], want [1.0972, 1.0990]", f.Low, f.High)
	}
	if f.GapSizePips < 17.9 || f.GapSizePips > 18.1 {
		t.Errorf("gap = %v pips, want ~18", f.GapSizePips)
	}
	if f.CreatedAt != 300 {
		t.Errorf("created at = %d, want 300", f.CreatedAt)
	}
}

func TestDetectBullishFVG(t *testing.T) {
	t.Parallel()
	bars := []types.Bar{
		m5(100, 1.1000, 1.1005, 1.0998, 1.1003),
		m5(200, 1.1005, 1.1020, 1.1004, 1.1019),
		m5(300, 1.1022, 1.1030, 1.1021, 1.1028),
	}
	f := DetectFVG(bars, types.BUY, 0, 2, pip)
	if f == nil {
		t.Fatal("no gap detected")
	}
	if f.Low != 1.1005 || f.High != 1.1021 {
		t.Errorf("zone = [%v, %v], want [1.1005, 1.1021]", f.Low, f.High)
	}
}

func TestDetectFVGMinGap(t *testing.T) {
	t.Parallel()
	// 1-pip gap, below the 2-pip minimum.
	bars := []types.Bar{
		m5(100, 1.1000, 1.1002, 1.0999, 1.1000),
		m5(200, 1.0999, 1.0999, 1.0998, 1.0998),
		m5(300, 1.0998, 1.0998, 1.0995, 1.0996),
	}
	if f := DetectFVG(bars, types.SELL, 0, 2, pip); f != nil {
		t.Errorf("detected sub-minimum gap: %+v", f)
	}
}

func TestDetectFVGRespectsWatermark(t *testing.T) {
	t.Parallel()
	// The gap's first candle predates the watermark: no detection.
	if f := DetectFVG(bearishGapBars(), types.SELL, 150, 2, pip); f != nil {
		t.Errorf("detected gap before watermark: %+v", f)
	}
}

func TestFVGMitigation(t *testing.T) {
	t.Parallel()
	f := DetectFVG(bearishGapBars(), types.SELL, 0, 2, pip)

	// Price climbs back into the zone.
	f.Update(m5(400, 1.0968, 1.0975, 1.0966, 1.0970))
	if !f.Mitigated {
		t.Fatal("gap not mitigated by re-entry")
	}
	if f.Invalidated {
		t.Error("mitigation marked as invalidation")
	}
	if f.MitigatedPrice != 1.0975 {
		t.Errorf("mitigated price = %v, want 1.0975", f.MitigatedPrice)
	}
}

func TestFVGInvalidation(t *testing.T) {
	t.Parallel()
	f := DetectFVG(bearishGapBars(), types.SELL, 0, 2, pip)

	// Close above the far edge: imbalance fully repriced.
	f.Update(m5(400, 1.0970, 1.0995, 1.0968, 1.0993))
	if !f.Invalidated {
		t.Fatal("gap not invalidated by close through far edge")
	}
}

func TestFVGIgnoresOlderBars(t *testing.T) {
	t.Parallel()
	f := DetectFVG(bearishGapBars(), types.SELL, 0, 2, pip)
	f.Update(m5(200, 1.0990, 1.0998, 1.0975, 1.0976)) // predates the gap
	if f.Mitigated || f.Invalidated {
		t.Error("bar older than the gap changed its state")
	}
}
