package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Weekly     Frequency = "weekly"
	Monthly    Frequency = "monthly"
	Bimonthly  Frequency = "bimonthly"
	Quarterly  Frequency = "quarterly"
	Semiannual Frequency = "semiannual"
	Annual     Frequency = "annual"
)

const (
	EntryDraft  EntryStatus = "draft"
	EntryPosted EntryStatus = "posted"
	EntryVoid   EntryStatus = "void"
)

const (
	RoleAdmin      Role = "admin"
	RoleAccountant Role = "accountant"
	RoleViewer     Role = "viewer"
)

const (
	ThirdPartyCustomer ThirdPartyKind = "customer"
	ThirdPartySupplier ThirdPartyKind = "supplier"
	ThirdPartyBoth     ThirdPartyKind = "both"
)

type (
	// Frequency is the repetition cadence of budget lines and scheduled
	// transactions. All cadences except Weekly step in whole months.
	Frequency string

	EntryStatus string

	Role string

	ThirdPartyKind string

	Date struct {
		time.Time
	}

	Company struct {
		ID      int64
		Code    string
		Name    string
		TaxID   string
		Address string
		Active  bool
	}

	ThirdParty struct {
		ID        int64
		CompanyID int64
		Code      string
		Name      string
		TaxID     string
		Kind      ThirdPartyKind
		Email     string
		Phone     string
		Active    bool
	}

	CostCenter struct {
		ID        int64
		CompanyID int64
		Code      string
		Name      string
		Position  int
		Active    bool
	}

	UnitOfMeasure struct {
		ID        int64
		CompanyID int64
		Code      string
		Name      string
		Symbol    string
	}

	User struct {
		ID     int64
		Email  string
		Name   string
		Role   Role
		Active bool
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyCode        = errors.New("empty code")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyDescription = errors.New("empty description")
	ErrDuplicateCode    = errors.New("duplicate code")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidRole      = errors.New("invalid role")
	ErrInvalidEmail     = errors.New("invalid email")
)

// Valid reports whether f is one of the supported cadences.
func (f Frequency) Valid() bool {
	switch f {
	case Weekly, Monthly, Bimonthly, Quarterly, Semiannual, Annual:
		return true
	default:
		return false
	}
}

// MonthsPerPeriod returns the month step of a frequency, or 0 for Weekly,
// which steps by days rather than months.
func (f Frequency) MonthsPerPeriod() int {
	switch f {
	case Monthly:
		return 1
	case Bimonthly:
		return 2
	case Quarterly:
		return 3
	case Semiannual:
		return 6
	case Annual:
		return 12
	default:
		return 0
	}
}

func (s EntryStatus) Valid() bool {
	switch s {
	case EntryDraft, EntryPosted, EntryVoid:
		return true
	default:
		return false
	}
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleAccountant, RoleViewer:
		return true
	default:
		return false
	}
}

// CanWrite reports whether the role may create or modify accounting data.
func (r Role) CanWrite() bool {
	return r == RoleAdmin || r == RoleAccountant
}

func (k ThirdPartyKind) Valid() bool {
	switch k {
	case ThirdPartyCustomer, ThirdPartySupplier, ThirdPartyBoth:
		return true
	default:
		return false
	}
}

// NewDate creates a Date at UTC midnight.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date in YYYY-MM-DD form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Day returns the day of the month.
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month as an int (1-12).
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year.
func (d Date) Year() int {
	return d.Time.Year()
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

// DaysInMonth returns the number of days of the given month.
func DaysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (c Company) Validate() error {
	if strings.TrimSpace(c.Code) == "" {
		return ErrEmptyCode
	}
	if len(c.Code) > 20 {
		return errors.New("code too long (max 20 characters)")
	}
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	return nil
}

func (t ThirdParty) Validate() error {
	if strings.TrimSpace(t.Code) == "" {
		return ErrEmptyCode
	}
	if len(t.Code) > 20 {
		return errors.New("code too long (max 20 characters)")
	}
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyName
	}
	if !t.Kind.Valid() {
		return errors.New("invalid third party kind")
	}
	if t.Email != "" && !strings.Contains(t.Email, "@") {
		return ErrInvalidEmail
	}
	return nil
}

func (cc CostCenter) Validate() error {
	if strings.TrimSpace(cc.Code) == "" {
		return ErrEmptyCode
	}
	if len(cc.Code) > 20 {
		return errors.New("code too long (max 20 characters)")
	}
	if strings.TrimSpace(cc.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (u UnitOfMeasure) Validate() error {
	if strings.TrimSpace(u.Code) == "" {
		return ErrEmptyCode
	}
	if strings.TrimSpace(u.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Email) == "" || !strings.Contains(u.Email, "@") {
		return ErrInvalidEmail
	}
	if strings.TrimSpace(u.Name) == "" {
		return ErrEmptyName
	}
	if !u.Role.Valid() {
		return ErrInvalidRole
	}
	return nil
}
