package iv

import "testing"

func TestNormalizeDecimal(t *testing.T) {
	v, notes := Normalize(0.35, EncodingDecimal)
	if v != 0.35 {
		t.Fatalf("unexpected iv %v", v)
	}
	if len(notes) != 0 {
		t.Fatalf("unexpected notes %v", notes)
	}
}

func TestNormalizePercent(t *testing.T) {
	v, notes := Normalize(35, EncodingPercent)
	if v != 0.35 {
		t.Fatalf("unexpected iv %v", v)
	}
	if len(notes) != 0 {
		t.Fatalf("unexpected notes %v", notes)
	}
}

func TestNormalizeReinterpretsMislabeledPercent(t *testing.T) {
	// 42 declared decimal would mean 4200% IV; treat it as percent.
	v, notes := Normalize(42, EncodingDecimal)
	if v != 0.42 {
		t.Fatalf("unexpected iv %v", v)
	}
	if len(notes) != 1 {
		t.Fatalf("expected one note, got %v", notes)
	}
}

func TestNormalizeClamps(t *testing.T) {
	v, notes := Normalize(-0.2, EncodingDecimal)
	if v != 0 || len(notes) != 1 {
		t.Fatalf("expected clamp to 0, got %v %v", v, notes)
	}

	// 5000% even after percent reinterpretation still exceeds the ceiling.
	v, notes = Normalize(5000, EncodingPercent)
	if v != MaxDecimal || len(notes) != 1 {
		t.Fatalf("expected clamp to ceiling, got %v %v", v, notes)
	}
}

func TestRoundTrip(t *testing.T) {
	if got := FromPercent(ToPercent(0.618)); got != 0.618 {
		t.Fatalf("round trip changed value: %v", got)
	}
}
