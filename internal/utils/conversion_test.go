package utils

import (
	"errors"
	"math"
	"testing"

	sdkmath "cosmossdk.io/math"
)

func TestIntToFloat64(t *testing.T) {
	got, err := IntToFloat64(sdkmath.NewInt(1_500_000), 6)
	if err != nil {
		t.Fatalf("IntToFloat64: %v", err)
	}
	if math.Abs(got-1.5) > 1e-12 {
		t.Errorf("IntToFloat64(1500000, 6) = %f, want 1.5", got)
	}

	got, err = IntToFloat64(sdkmath.NewInt(-42), 0)
	if err != nil {
		t.Fatalf("IntToFloat64 negative: %v", err)
	}
	if got != -42 {
		t.Errorf("IntToFloat64(-42, 0) = %f, want -42", got)
	}
}

func TestIntToFloat64Errors(t *testing.T) {
	if _, err := IntToFloat64(sdkmath.NewInt(1), -1); !errors.Is(err, ErrInvalidPrecision) {
		t.Errorf("negative precision: got %v, want ErrInvalidPrecision", err)
	}
	if _, err := IntToFloat64(sdkmath.NewInt(1), 19); !errors.Is(err, ErrInvalidPrecision) {
		t.Errorf("precision over 18: got %v, want ErrInvalidPrecision", err)
	}
	if _, err := IntToFloat64(sdkmath.Int{}, 6); !errors.Is(err, ErrAmountNil) {
		t.Errorf("nil amount: got %v, want ErrAmountNil", err)
	}
}

func TestDecToFloat64(t *testing.T) {
	got, err := DecToFloat64(sdkmath.LegacyMustNewDecFromStr("0.125"))
	if err != nil {
		t.Fatalf("DecToFloat64: %v", err)
	}
	if math.Abs(got-0.125) > 1e-12 {
		t.Errorf("DecToFloat64(0.125) = %f, want 0.125", got)
	}

	if _, err := DecToFloat64(sdkmath.LegacyDec{}); !errors.Is(err, ErrAmountNil) {
		t.Errorf("nil dec: got %v, want ErrAmountNil", err)
	}
}
