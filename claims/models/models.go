package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Claim is one row per billable visit / CPT line item. Claims are created by
// the charge-entry system, never by this application; we only apply partial
// field updates. Nullable columns use nil to mean "unset", never the empty
// string.
type Claim struct {
	ID int64 `json:"id" mapstructure:"id"`

	PatientID *int64  `json:"patient_id" mapstructure:"patient_id"`
	FirstName *string `json:"first_name" mapstructure:"first_name"`
	LastName  *string `json:"last_name" mapstructure:"last_name"`
	DOB       *string `json:"dob" mapstructure:"dob"`

	CPTID   *int64  `json:"cpt_id" mapstructure:"cpt_id"`
	CPTCode *string `json:"cpt_code" mapstructure:"cpt_code"`

	ClaimStatus *string `json:"claim_status" mapstructure:"claim_status"`
	StatusType  *string `json:"status_type" mapstructure:"status_type"`

	ServiceStart *string `json:"service_start" mapstructure:"service_start"`
	ServiceEnd   *string `json:"service_end" mapstructure:"service_end"`

	ChargeDate  *string  `json:"charge_date" mapstructure:"charge_date"`
	ChargeAmt   *float64 `json:"charge_amt" mapstructure:"charge_amt"`
	AllowedAmt  *float64 `json:"allowed_amt" mapstructure:"allowed_amt"`
	TotalAmt    *float64 `json:"total_amt" mapstructure:"total_amt"`
	WriteOffAmt *float64 `json:"write_off_amt" mapstructure:"write_off_amt"`
	BalanceAmt  *float64 `json:"balance_amt" mapstructure:"balance_amt"`
	ReimbPct    *float64 `json:"reimb_pct" mapstructure:"reimb_pct"`

	PrimPayer      *string  `json:"prim_payer" mapstructure:"prim_payer"`
	PrimAmt        *float64 `json:"prim_amt" mapstructure:"prim_amt"`
	PrimPostDate   *string  `json:"prim_post_date" mapstructure:"prim_post_date"`
	PrimRecvDate   *string  `json:"prim_recv_date" mapstructure:"prim_recv_date"`
	PrimCheckNum   *string  `json:"prim_check_num" mapstructure:"prim_check_num"`
	PrimCheckAmt   *float64 `json:"prim_check_amt" mapstructure:"prim_check_amt"`
	PrimCmt        *string  `json:"prim_cmt" mapstructure:"prim_cmt"`
	PrimDenialCode *string  `json:"prim_denial_code" mapstructure:"prim_denial_code"`

	SecPayer      *string  `json:"sec_payer" mapstructure:"sec_payer"`
	SecAmt        *float64 `json:"sec_amt" mapstructure:"sec_amt"`
	SecPostDate   *string  `json:"sec_post_date" mapstructure:"sec_post_date"`
	SecRecvDate   *string  `json:"sec_recv_date" mapstructure:"sec_recv_date"`
	SecCheckNum   *string  `json:"sec_check_num" mapstructure:"sec_check_num"`
	SecCheckAmt   *float64 `json:"sec_check_amt" mapstructure:"sec_check_amt"`
	SecCmt        *string  `json:"sec_cmt" mapstructure:"sec_cmt"`
	SecDenialCode *string  `json:"sec_denial_code" mapstructure:"sec_denial_code"`

	PtPaidAmt  *float64 `json:"pt_paid_amt" mapstructure:"pt_paid_amt"`
	PtRecvDate *string  `json:"pt_recv_date" mapstructure:"pt_recv_date"`

	Notes *string `json:"notes" mapstructure:"notes"`

	// Derived legacy fields kept for older consumers. Never authoritative and
	// never written back; incoming payloads carrying them are stripped.
	VisitID     string   `json:"visit_id,omitempty" mapstructure:"-"`
	PatientName string   `json:"name,omitempty" mapstructure:"-"`
	Amount      *float64 `json:"amount,omitempty" mapstructure:"-"`
	Status      *string  `json:"status,omitempty" mapstructure:"-"`
}

// FillDerived populates the legacy compatibility fields from the canonical
// ones.
func (c *Claim) FillDerived() {
	c.VisitID = strconv.FormatInt(c.ID, 10)

	var names []string
	if c.FirstName != nil {
		names = append(names, *c.FirstName)
	}
	if c.LastName != nil {
		names = append(names, *c.LastName)
	}
	c.PatientName = strings.Join(names, " ")

	c.Amount = c.BalanceAmt
	c.Status = c.ClaimStatus
}

// ChangeLogEntry is an immutable audit row recording one field's old-to-new
// transition on a claim. A single update request that changes N fields
// produces N entries.
type ChangeLogEntry struct {
	ID        int64     `json:"id"`
	ClaimID   int64     `json:"claim_id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	FieldName string    `json:"field_name"`
	OldValue  *string   `json:"old_value"`
	NewValue  *string   `json:"new_value"`
	CreatedAt time.Time `json:"created_at"`
}

// Actor identifies the user applying a claim update.
type Actor struct {
	UserID   int64  `json:"user_id" mapstructure:"user_id"`
	Username string `json:"username" mapstructure:"username"`
}

// User is an application account. PasswordHash is never serialized.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SearchFilters are the ephemeral claim-search query parameters. They are
// never persisted.
type SearchFilters struct {
	PatientID  *int64
	CPTID      *int64
	ServiceEnd *string
}

// HistoryFilters select change-log entries for the global history view.
// ClaimID nil means all claims.
type HistoryFilters struct {
	ClaimID   *int64
	UserID    *int64
	CPTID     *int64
	StartDate *string
	EndDate   *string
	Page      int
	Limit     int
}

func (f HistoryFilters) String() string {
	return fmt.Sprintf("claim=%v user=%v cpt=%v range=[%v,%v] page=%d limit=%d",
		int64PtrString(f.ClaimID), int64PtrString(f.UserID), int64PtrString(f.CPTID),
		strPtrString(f.StartDate), strPtrString(f.EndDate), f.Page, f.Limit)
}

func int64PtrString(v *int64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatInt(*v, 10)
}

func strPtrString(v *string) string {
	if v == nil {
		return "-"
	}
	return *v
}
