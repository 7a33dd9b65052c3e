package engine

import (
	"testing"

	"github.com/blockberries/subsidy"
	"github.com/blockberries/subsidy/types"
)

func wantCode(t *testing.T, err error, want types.Code) {
	t.Helper()
	code, ok := subsidy.CodeOf(err)
	if !ok {
		t.Fatalf("expected code %s, got %v", want, err)
	}
	if code != want {
		t.Fatalf("expected code %s, got %s", want, code)
	}
}

func TestValidateAmount(t *testing.T) {
	wantCode(t, validateAmount(0), types.CodeInvalidAmount)
	wantCode(t, validateAmount(types.MaxClaimAmount+1), types.CodeInvalidAmount)
	if err := validateAmount(1); err != nil {
		t.Errorf("amount 1 must pass: %v", err)
	}
	if err := validateAmount(types.MaxClaimAmount); err != nil {
		t.Errorf("amount at cap must pass: %v", err)
	}
}

func TestValidateMetadata(t *testing.T) {
	if err := validateMetadata(nil); err != nil {
		t.Errorf("nil metadata must pass: %v", err)
	}
	if err := validateMetadata(make([]byte, types.MaxMetadataLen)); err != nil {
		t.Errorf("metadata at cap must pass: %v", err)
	}
	wantCode(t, validateMetadata(make([]byte, types.MaxMetadataLen+1)), types.CodeInvalidMetadata)
}

func TestValidatePeriod(t *testing.T) {
	wantCode(t, validatePeriod(types.MinPeriod-1), types.CodeClaimPeriodExpired)
	wantCode(t, validatePeriod(types.MaxPeriod+1), types.CodeClaimPeriodExpired)
	if err := validatePeriod(types.MinPeriod); err != nil {
		t.Errorf("window lower bound must pass: %v", err)
	}
	if err := validatePeriod(types.MaxPeriod); err != nil {
		t.Errorf("window upper bound must pass: %v", err)
	}
}

func TestCooldownOK(t *testing.T) {
	const last = uint64(100)
	boundary := last + types.ClaimCooldown

	cases := []struct {
		name   string
		rec    *types.FarmerPeriodRecord
		height uint64
		want   bool
	}{
		{"no record", nil, 1, true},
		{"blacklisted", &types.FarmerPeriodRecord{Blacklisted: true}, 1 << 40, false},
		{"at boundary", &types.FarmerPeriodRecord{LastClaimBlock: last, ClaimCount: 1}, boundary, false},
		{"past boundary", &types.FarmerPeriodRecord{LastClaimBlock: last, ClaimCount: 1}, boundary + 1, true},
		{"budget exhausted", &types.FarmerPeriodRecord{LastClaimBlock: last, ClaimCount: types.MaxClaimsPerFarmer}, boundary + 1, false},
		{"budget remaining", &types.FarmerPeriodRecord{LastClaimBlock: last, ClaimCount: types.MaxClaimsPerFarmer - 1}, boundary + 1, true},
		{"blacklist overrides elapsed cooldown", &types.FarmerPeriodRecord{LastClaimBlock: last, ClaimCount: 1, Blacklisted: true}, boundary + 1, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cooldownOK(tc.rec, tc.height); got != tc.want {
				t.Errorf("cooldownOK = %v, want %v", got, tc.want)
			}
		})
	}
}
