package model

import "testing"

func TestKindForLabel(t *testing.T) {
	cases := []struct {
		label string
		want  DetectionKind
	}{
		{"person", KindPerson},
		{"Person", KindPerson},
		{"fall_detected", KindFall},
		{"falling", KindFall},
		{"bed", KindFurniture},
		{"chair", KindFurniture},
		{"bottle", KindMedicalItem},
		{"laptop", KindOther},
		{"", KindOther},
	}
	for _, tc := range cases {
		if got := KindForLabel(tc.label); got != tc.want {
			t.Fatalf("KindForLabel(%q) = %s, want %s", tc.label, got, tc.want)
		}
	}
}

func TestPriorityFor(t *testing.T) {
	if PriorityFor(AlertCritical) != 1 {
		t.Fatal("critical must be priority 1")
	}
	if PriorityFor(AlertWarning) != 2 {
		t.Fatal("warning must be priority 2")
	}
	if PriorityFor(AlertInfo) != 3 {
		t.Fatal("info must be priority 3")
	}
	if PriorityFor(AlertKind("custom")) != 2 {
		t.Fatal("unknown kinds default to priority 2")
	}
}
