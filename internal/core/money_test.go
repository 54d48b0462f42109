package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1.00", true},
		{"1.0", "1.00", true},
		{"1.23", "1.23", true},
		{"1,23", "", false},
		{"1,234.5", "", false},
		{"0", "0.00", true},
		{"1.005", "1.01", true}, // half away from zero
		{" 2.50 ", "2.50", true},
		{"-1", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
		{"9999999.99", "9999999.99", true},
		{"10000000", "", false},
		{"9999999.995", "", false}, // rounds up to the cap
		{"200000000000000000", "", false},
		{"-0.001", "", false},
		{"-0", "0.00", true},
		{"1e100000000", "", false},
		{"1e-100000000", "", false},
		{"1.5e3", "1500.00", true},
	}
	for _, tc := range cases {
		got, err := ParseMoney(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestMoneyCents(t *testing.T) {
	if c := MoneyFromFloat(12.34).Cents(); c != 1234 {
		t.Fatalf("expected 1234 cents, got %d", c)
	}
	if c := MoneyFromCents(5).Cents(); c != 5 {
		t.Fatalf("expected 5 cents, got %d", c)
	}
}

func TestMoneyAddIsExact(t *testing.T) {
	sum := Money{}
	for i := 0; i < 10; i++ {
		sum = sum.Add(MoneyFromFloat(0.1))
	}
	if !sum.Equal(MoneyFromCents(100)) {
		t.Fatalf("expected 1.00, got %s", sum)
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(MoneyFromFloat(150))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "150" {
		t.Fatalf("expected bare number 150, got %s", b)
	}

	b, _ = json.Marshal(MoneyFromFloat(12.5))
	if string(b) != "12.5" {
		t.Fatalf("expected 12.5, got %s", b)
	}

	for _, in := range []string{`42.129`, `"42.129"`} {
		var m Money
		if err := json.Unmarshal([]byte(in), &m); err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if m.String() != "42.13" {
			t.Fatalf("%s: expected 42.13, got %s", in, m)
		}
	}

	var m Money
	if err := json.Unmarshal([]byte(`"abc"`), &m); err == nil {
		t.Fatalf("expected error for non-numeric string")
	}
}

func TestMoneyJSONBounds(t *testing.T) {
	cases := []struct {
		in   string
		want error
	}{
		{`1e100000000`, ErrInvalidAmount},
		{`1e-2147483648`, ErrInvalidAmount},
		{`"1e100000000"`, ErrInvalidAmount},
		{`10000000`, ErrAmountTooLarge},
		{`200000000000000000`, ErrAmountTooLarge},
		{`-0.001`, ErrInvalidAmount},
		{`-5`, ErrInvalidAmount},
	}
	for _, tc := range cases {
		start := time.Now()
		var m Money
		err := json.Unmarshal([]byte(tc.in), &m)
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.in, err, tc.want)
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Errorf("%s: decoding took %v", tc.in, elapsed)
		}
	}

	var m Money
	if err := json.Unmarshal([]byte(`9999999.99`), &m); err != nil {
		t.Fatalf("largest amount rejected: %v", err)
	}
	if c := m.Cents(); c != 999999999 {
		t.Fatalf("expected 999999999 cents, got %d", c)
	}
	if !MoneyFromCents(m.Cents()).Equal(m) {
		t.Fatalf("cents round trip lost precision: %s", m)
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := MoneyFromCents(999999999).Validate(); err != nil {
		t.Errorf("9999999.99 should be valid: %v", err)
	}
	if err := MoneyFromCents(1000000000).Validate(); !errors.Is(err, ErrAmountTooLarge) {
		t.Errorf("10000000.00 should be too large, got %v", err)
	}
	if err := MoneyFromCents(-1).Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("-0.01 should be invalid, got %v", err)
	}
}
