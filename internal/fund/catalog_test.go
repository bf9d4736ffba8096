package fund

import (
	"errors"
	"testing"
	"time"
)

func TestParseScaledInt(t *testing.T) {
	tests := []struct {
		in      string
		scale   int
		want    int64
		wantErr bool
	}{
		{"12.34", 4, 123400, false},
		{"12", 0, 12, false},
		{"+0.001", 3, 1, false},
		{" 7.5 ", 2, 750, false},
		{"0.0001", 3, 0, true},
		{"0", 2, 0, true},
		{"-1", 2, 0, true},
		{"abc", 2, 0, true},
		{"", 2, 0, true},
		{"99999999999999999999", 0, 0, true},
	}

	for _, tt := range tests {
		got, err := ParseScaledInt(tt.in, tt.scale)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidAmount) {
				t.Errorf("ParseScaledInt(%q, %d): expected ErrInvalidAmount, got %v (%d)", tt.in, tt.scale, err, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseScaledInt(%q, %d) failed: %v", tt.in, tt.scale, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseScaledInt(%q, %d) = %d, want %d", tt.in, tt.scale, got, tt.want)
		}
	}
}

func TestFormatScaledInt(t *testing.T) {
	tests := []struct {
		v     int64
		scale int
		want  string
	}{
		{123400, 4, "12.34"},
		{125000, 4, "12.5"},
		{10000, 4, "1"},
		{5, 3, "0.005"},
		{42, 0, "42"},
	}
	for _, tt := range tests {
		if got := FormatScaledInt(tt.v, tt.scale); got != tt.want {
			t.Errorf("FormatScaledInt(%d, %d) = %q, want %q", tt.v, tt.scale, got, tt.want)
		}
	}
}

func TestMemoryCatalog(t *testing.T) {
	c, err := NewMemoryCatalog(DefaultSpecs()...)
	if err != nil {
		t.Fatalf("NewMemoryCatalog failed: %v", err)
	}

	spec, err := c.Get("equity-growth")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if spec.FundID != "EQUITY-GROWTH" || spec.PriceScale != 4 {
		t.Errorf("unexpected spec: %+v", spec)
	}

	if _, err := c.Get("UNKNOWN"); !errors.Is(err, ErrFundNotFound) {
		t.Errorf("expected ErrFundNotFound, got %v", err)
	}

	nav, ok := c.NAV("BOND-INCOME")
	if !ok || nav != 102500 {
		t.Errorf("expected NAV 102500, got %d/%v", nav, ok)
	}

	if err := c.SetNAV("BOND-INCOME", 103000, time.Now()); err != nil {
		t.Fatalf("SetNAV failed: %v", err)
	}
	if nav, _ := c.NAV("BOND-INCOME"); nav != 103000 {
		t.Errorf("expected updated NAV 103000, got %d", nav)
	}
	if err := c.SetNAV("NOPE", 1, time.Now()); !errors.Is(err, ErrFundNotFound) {
		t.Errorf("expected ErrFundNotFound, got %v", err)
	}

	list := c.List()
	if len(list) != 3 || list[0].FundID != "BOND-INCOME" {
		t.Errorf("expected sorted list of 3, got %+v", list)
	}
}

func TestMemoryCatalog_NoNAV(t *testing.T) {
	c, err := NewMemoryCatalog(Spec{FundID: "F1", PriceScale: 2, UnitScale: 0})
	if err != nil {
		t.Fatalf("NewMemoryCatalog failed: %v", err)
	}
	if _, ok := c.NAV("F1"); ok {
		t.Error("expected no NAV for fund without one")
	}
}

func TestParseSpecList(t *testing.T) {
	specs, err := ParseSpecList("eq-1:4:3:12.5, BOND-2:2:0")
	if err != nil {
		t.Fatalf("ParseSpecList failed: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 specs, got %d", len(specs))
	}
	if specs[0].FundID != "EQ-1" || specs[0].NAV != 125000 || specs[0].UnitScale != 3 {
		t.Errorf("unexpected first spec: %+v", specs[0])
	}
	if specs[1].NAV != 0 || specs[1].PriceScale != 2 {
		t.Errorf("unexpected second spec: %+v", specs[1])
	}

	for _, bad := range []string{"X", "X:a:1", "X:1:b", "X:1:1:-3", "X:99:1"} {
		if _, err := ParseSpecList(bad); !errors.Is(err, ErrInvalidSpec) {
			t.Errorf("ParseSpecList(%q): expected ErrInvalidSpec, got %v", bad, err)
		}
	}

	if specs, err := ParseSpecList(""); err != nil || specs != nil {
		t.Errorf("expected empty list for empty input, got %v/%v", specs, err)
	}
}
