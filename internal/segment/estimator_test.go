package segment

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestEstimator_Estimate(t *testing.T) {
	est := NewEstimator(160, MoneyFromFloat(0.0075))

	tests := []struct {
		name         string
		text         string
		wantChars    int
		wantSegments int
		wantBand     Band
	}{
		{"empty", "", 0, 1, WithinSingleSegment},
		{"one char", "a", 1, 1, WithinSingleSegment},
		{"exactly one segment", strings.Repeat("a", 160), 160, 1, WithinSingleSegment},
		{"one over", strings.Repeat("a", 161), 161, 2, MultiSegmentWarning},
		{"exactly two segments", strings.Repeat("a", 320), 320, 2, MultiSegmentWarning},
		{"three segments", strings.Repeat("a", 321), 321, 3, OverLimit},
		{"runes not bytes", strings.Repeat("é", 160), 160, 1, WithinSingleSegment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := est.Estimate(tt.text)
			if got.Characters != tt.wantChars {
				t.Errorf("Characters = %d, want %d", got.Characters, tt.wantChars)
			}
			if got.Segments != tt.wantSegments {
				t.Errorf("Segments = %d, want %d", got.Segments, tt.wantSegments)
			}
			if got.Band != tt.wantBand {
				t.Errorf("Band = %q, want %q", got.Band, tt.wantBand)
			}
		})
	}
}

func TestEstimator_Monotonic(t *testing.T) {
	est := NewEstimator(160, MoneyFromFloat(0.0075))
	prev := 0
	for n := 0; n <= 1000; n++ {
		got := est.Estimate(strings.Repeat("x", n)).Segments
		if got < prev {
			t.Fatalf("segments decreased at length %d: %d < %d", n, got, prev)
		}
		prev = got
	}
}

func TestEstimator_CostScenario(t *testing.T) {
	est := NewEstimator(160, MoneyFromFloat(0.0075))
	got := est.Estimate(strings.Repeat("m", 165))

	if got.Segments != 2 {
		t.Fatalf("Segments = %d, want 2", got.Segments)
	}
	if got.CostPerMessage.Float() != 0.015 {
		t.Errorf("CostPerMessage = %v, want 0.015", got.CostPerMessage.Float())
	}
	if total := got.Total(100); total.Float() != 1.50 {
		t.Errorf("Total(100) = %v, want 1.50", total.Float())
	}
}

func TestEstimator_DefaultSize(t *testing.T) {
	est := NewEstimator(0, 0)
	if est.SegmentSize != DefaultSize {
		t.Errorf("SegmentSize = %d, want %d", est.SegmentSize, DefaultSize)
	}
}

func TestMoney(t *testing.T) {
	m := MoneyFromFloat(0.0075)
	if m != 7500 {
		t.Errorf("MoneyFromFloat(0.0075) = %d, want 7500", m)
	}
	if s := m.Mul(200).String(); s != "1.5000" {
		t.Errorf("String() = %q, want 1.5000", s)
	}
	data, err := json.Marshal(struct {
		Cost Money `json:"cost"`
	}{Cost: m.Mul(2)})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `{"cost":0.015}` {
		t.Errorf("Marshal() = %s", data)
	}
}

func TestMoney_UnmarshalJSON(t *testing.T) {
	var v struct {
		Price Money `json:"price"`
	}
	if err := json.Unmarshal([]byte(`{"price":0.0075}`), &v); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if v.Price != 7500 {
		t.Errorf("Price = %d, want 7500", v.Price)
	}
	if err := json.Unmarshal([]byte(`{"price":"cheap"}`), &v); err == nil {
		t.Error("Unmarshal() should fail for a string")
	}
}
