package core

import (
	"encoding/json"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"25", 2500, true},
		{"18.00", 1800, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"0", 0, false},
		{"0.004", 0, false}, // rounds to zero
		{"abc", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
		{"1.2.3", 0, false},
		{"1000000", 100_000_000, true},
		{"1000000.01", 0, false},
		{"90000000000000000", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error, got %d", tc.in, got.Cents)
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := map[int64]string{
		0:    "0.00",
		5:    "0.05",
		4300: "43.00",
		5733: "57.33",
	}
	for cents, want := range cases {
		if got := (Money{Cents: cents}).String(); got != want {
			t.Errorf("Money{%d}.String() = %q, want %q", cents, got, want)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Money `json:"a"`
	}{A: Dollars(32, 0)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"a":32.00}` {
		t.Fatalf("unexpected json %s", b)
	}

	var got struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a":12.5,"b":"7.25"}`), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.A.Cents != 1250 || got.B.Cents != 725 {
		t.Fatalf("decoded %+v", got)
	}
	var huge Money
	if err := json.Unmarshal([]byte(`184467440737095516.20`), &huge); err == nil {
		t.Fatalf("decoded out-of-range amount as %d cents", huge.Cents)
	}
}

func TestMoneyArithmetic(t *testing.T) {
	a := Dollars(75, 0)
	b := Dollars(80, 50)
	if got := a.Sub(b); got.Cents != -550 {
		t.Fatalf("Sub = %d", got.Cents)
	}
	if got := a.Sub(b).Max0(); !got.IsZero() {
		t.Fatalf("Max0 = %d", got.Cents)
	}
	if err := (Money{}).Validate(); err != ErrInvalidAmount {
		t.Fatalf("zero Validate = %v", err)
	}
	if err := MaxTransactionAmount.Validate(); err != nil {
		t.Fatalf("ceiling Validate = %v", err)
	}
	if err := MaxTransactionAmount.Add(Money{Cents: 1}).Validate(); err != ErrInvalidAmount {
		t.Fatalf("above ceiling Validate = %v", err)
	}
}

func TestAddUsage(t *testing.T) {
	cases := []struct {
		name string
		a, b int64
		want int64
		err  error
	}{
		{"small", 4300, 1800, 6100, nil},
		{"up to limit", MaxUsage.Cents - 1, 1, MaxUsage.Cents, nil},
		{"past limit", MaxUsage.Cents, 1, MaxUsage.Cents, ErrUsageLimit},
		{"would wrap int64", 1<<62, 1 << 62, 1 << 62, ErrUsageLimit},
		{"negative operand", 0, -1, 0, ErrUsageLimit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Money{Cents: tc.a}.AddUsage(Money{Cents: tc.b})
			if err != tc.err || got.Cents != tc.want {
				t.Fatalf("AddUsage = %d, %v; want %d, %v", got.Cents, err, tc.want, tc.err)
			}
		})
	}
}
