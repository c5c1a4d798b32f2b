package core

import (
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2026, 1, 1), true},
		{NewDate(2026, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2026-02-28 ")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if d.Year() != 2026 || d.Month() != 2 || d.Day() != 28 {
		t.Fatalf("got %s", d)
	}
	for _, in := range []string{"", "28/02/2026", "2026-13-01", "2026-02-30"} {
		if _, err := ParseDate(in); err == nil {
			t.Fatalf("%q expected error", in)
		}
	}
}

func TestFrequencyMonthsPerPeriod(t *testing.T) {
	cases := []struct {
		f      Frequency
		months int
	}{
		{Weekly, 0},
		{Monthly, 1},
		{Bimonthly, 2},
		{Quarterly, 3},
		{Semiannual, 6},
		{Annual, 12},
	}
	for _, tc := range cases {
		if got := tc.f.MonthsPerPeriod(); got != tc.months {
			t.Fatalf("%s expected %d, got %d", tc.f, tc.months, got)
		}
		if !tc.f.Valid() {
			t.Fatalf("%s expected valid", tc.f)
		}
	}
	if Frequency("daily").Valid() {
		t.Fatalf("daily expected invalid")
	}
}

func TestRoleCanWrite(t *testing.T) {
	cases := []struct {
		r     Role
		write bool
	}{
		{RoleAdmin, true},
		{RoleAccountant, true},
		{RoleViewer, false},
	}
	for _, tc := range cases {
		if got := tc.r.CanWrite(); got != tc.write {
			t.Fatalf("%s expected %v, got %v", tc.r, tc.write, got)
		}
	}
	if Role("owner").Valid() {
		t.Fatalf("owner expected invalid")
	}
}

func TestDaysInMonth(t *testing.T) {
	cases := []struct {
		year, month, days int
	}{
		{2026, 1, 31},
		{2026, 2, 28},
		{2028, 2, 29}, // leap year
		{2026, 4, 30},
		{2026, 12, 31},
	}
	for _, tc := range cases {
		if got := DaysInMonth(tc.year, tc.month); got != tc.days {
			t.Fatalf("%d-%02d expected %d, got %d", tc.year, tc.month, tc.days, got)
		}
	}
}

func TestCompanyValidate(t *testing.T) {
	good := Company{Code: "ACME", Name: "Acme SA"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []Company{
		{Code: "", Name: "Acme SA"},
		{Code: "ACME", Name: ""},
		{Code: "ACME", Name: string(make([]byte, 201))},
	}
	for i, c := range bads {
		if err := c.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestThirdPartyValidate(t *testing.T) {
	good := ThirdParty{CompanyID: 1, Code: "T001", Name: "Proveedor Uno", Kind: ThirdPartySupplier}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []ThirdParty{
		{CompanyID: 1, Code: "", Name: "x", Kind: ThirdPartyCustomer},
		{CompanyID: 1, Code: "T001", Name: "", Kind: ThirdPartyCustomer},
		{CompanyID: 1, Code: "T001", Name: "x", Kind: ThirdPartyKind("partner")},
	}
	for i, tp := range bads {
		if err := tp.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestUserValidate(t *testing.T) {
	good := User{Email: "ana@acme.test", Name: "Ana", Role: RoleAccountant}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []User{
		{Email: "", Name: "Ana", Role: RoleAccountant},
		{Email: "not-an-email", Name: "Ana", Role: RoleAccountant},
		{Email: "ana@acme.test", Name: "", Role: RoleAccountant},
		{Email: "ana@acme.test", Name: "Ana", Role: Role("root")},
	}
	for i, u := range bads {
		if err := u.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}
