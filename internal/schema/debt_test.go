package schema

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestStateFor(t *testing.T) {
	tests := []struct {
		name        string
		outstanding string
		original    string
		want        DebtState
	}{
		{"untouched debt is pending", "100000", "100000", DebtPending},
		{"partially amortized", "50000", "100000", DebtPartial},
		{"fully amortized", "0", "100000", DebtPaid},
		{"almost paid stays partial", "0.01", "100000", DebtPartial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StateFor(dec(tt.outstanding), dec(tt.original))
			if got != tt.want {
				t.Errorf("StateFor(%s, %s) = %q, want %q",
					tt.outstanding, tt.original, got, tt.want)
			}
		})
	}
}

func validInterBoxDebt() *InterBoxDebt {
	return &InterBoxDebt{
		ID:            "d1",
		DebtorBoxID:   "box-a",
		CreditorBoxID: "box-b",
		Original:      dec("50000"),
		Outstanding:   dec("50000"),
		LoanDate:      time.Now(),
		State:         DebtPending,
	}
}

func TestInterBoxDebtValidate(t *testing.T) {
	if err := validInterBoxDebt().Validate(); err != nil {
		t.Fatalf("valid debt rejected: %v", err)
	}

	d := validInterBoxDebt()
	d.CreditorBoxID = d.DebtorBoxID
	if err := d.Validate(); err == nil {
		t.Error("expected error when debtor and creditor are the same box")
	}

	d = validInterBoxDebt()
	d.Original = dec("-1")
	d.Outstanding = dec("-1")
	if err := d.Validate(); err == nil {
		t.Error("expected error for non-positive original amount")
	}
}

func TestInterBoxDebtValidateAmortization(t *testing.T) {
	// Outstanding must track original minus the payment sum, and the
	// state must match the amounts.
	d := validInterBoxDebt()
	d.Outstanding = dec("30000")
	d.Payments = []Payment{{Amount: dec("20000"), Date: time.Now(), BoxID: "box-a"}}
	d.State = DebtPartial
	if err := d.Validate(); err != nil {
		t.Fatalf("consistent partial debt rejected: %v", err)
	}

	d.State = DebtPending
	if err := d.Validate(); err == nil {
		t.Error("expected error for state inconsistent with amounts")
	}

	d = validInterBoxDebt()
	d.Outstanding = dec("60000")
	if err := d.Validate(); err == nil {
		t.Error("expected error when outstanding exceeds original")
	}

	d = validInterBoxDebt()
	d.Outstanding = dec("-10")
	d.Payments = []Payment{{Amount: dec("50010"), Date: time.Now()}}
	if err := d.Validate(); err == nil {
		t.Error("expected error for negative outstanding")
	}

	d = validInterBoxDebt()
	d.Outstanding = dec("30000")
	d.State = DebtPartial
	// No payments recorded: 50000 - 0 != 30000.
	if err := d.Validate(); err == nil {
		t.Error("expected error when outstanding does not match payment sum")
	}
}

func TestThirdPartyDebtValidate(t *testing.T) {
	d := &ThirdPartyDebt{
		ID:           "t1",
		ThirdPartyID: "prov-1",
		Original:     dec("80000"),
		Outstanding:  dec("80000"),
		DebtDate:     time.Now(),
		State:        DebtPending,
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("valid debt rejected: %v", err)
	}

	d.ThirdPartyID = ""
	if err := d.Validate(); err == nil {
		t.Error("expected error for missing tercero_id")
	}

	d.ThirdPartyID = "prov-1"
	d.Original = decimal.Zero
	d.Outstanding = decimal.Zero
	if err := d.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for zero original, got %v", err)
	}
}
