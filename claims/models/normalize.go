package models

import (
	"fmt"
	"strconv"
	"time"
)

// ClaimFields is the canonical set of updatable claim columns, in the order
// used for SELECTs. Anything not listed here (including the legacy visit_id /
// name / amount / status fields still sent by stale clients) is stripped from
// incoming payloads before it can touch a canonical column.
var ClaimFields = []string{
	"patient_id", "first_name", "last_name", "dob",
	"cpt_id", "cpt_code",
	"claim_status", "status_type",
	"service_start", "service_end",
	"charge_date", "charge_amt", "allowed_amt", "total_amt", "write_off_amt", "balance_amt", "reimb_pct",
	"prim_payer", "prim_amt", "prim_post_date", "prim_recv_date", "prim_check_num", "prim_check_amt", "prim_cmt", "prim_denial_code",
	"sec_payer", "sec_amt", "sec_post_date", "sec_recv_date", "sec_check_num", "sec_check_amt", "sec_cmt", "sec_denial_code",
	"pt_paid_amt", "pt_recv_date",
	"notes",
}

// integer identity columns; coerced to int64 rather than float64
var idFields = map[string]bool{
	"patient_id": true,
	"cpt_id":     true,
}

var amountFields = map[string]bool{
	"charge_amt":     true,
	"allowed_amt":    true,
	"total_amt":      true,
	"write_off_amt":  true,
	"balance_amt":    true,
	"reimb_pct":      true,
	"prim_amt":       true,
	"prim_check_amt": true,
	"sec_amt":        true,
	"sec_check_amt":  true,
	"pt_paid_amt":    true,
}

var dateFields = map[string]bool{
	"dob":            true,
	"service_start":  true,
	"service_end":    true,
	"charge_date":    true,
	"prim_post_date": true,
	"prim_recv_date": true,
	"sec_post_date":  true,
	"sec_recv_date":  true,
	"pt_recv_date":   true,
}

var claimFieldSet = func() map[string]bool {
	s := make(map[string]bool, len(ClaimFields))
	for _, f := range ClaimFields {
		s[f] = true
	}
	return s
}()

func IsClaimField(name string) bool { return claimFieldSet[name] }
func IsNumericField(name string) bool {
	return idFields[name] || amountFields[name]
}
func IsDateField(name string) bool { return dateFields[name] }

// Accepted incoming date layouts. The first is the canonical wire form;
// the locale forms come from older UI builds.
var dateLayouts = []string{
	"2006-01-02",
	"1/2/2006",
	"01/02/2006",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
}

// NormalizeDate canonicalizes a date string to YYYY-MM-DD. The second return
// is false when no layout matched.
func NormalizeDate(s string) (string, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return s, false
}

// NormalizeFields applies the canonical payload rules to a partial claim:
// unknown fields are stripped, numeric fields are coerced (empty string means
// null, never zero), and date fields are canonicalized to YYYY-MM-DD.
// Unparseable values are kept as-is and reported in the returned warnings so
// they are never silently dropped.
func NormalizeFields(fields map[string]interface{}) (map[string]interface{}, []string) {
	normalized := make(map[string]interface{}, len(fields))
	var warnings []string

	for name, value := range fields {
		if !IsClaimField(name) {
			continue
		}

		switch {
		case IsNumericField(name):
			v, warn := normalizeNumber(name, value)
			normalized[name] = v
			if warn != "" {
				warnings = append(warnings, warn)
			}
		case IsDateField(name):
			v, warn := normalizeDateValue(name, value)
			normalized[name] = v
			if warn != "" {
				warnings = append(warnings, warn)
			}
		default:
			normalized[name] = normalizeText(value)
		}
	}

	return normalized, warnings
}

func normalizeNumber(name string, value interface{}) (interface{}, string) {
	switch v := value.(type) {
	case nil:
		return nil, ""
	case string:
		// An empty string for a numeric field means "set to null", not zero.
		if v == "" {
			return nil, ""
		}
		if idFields[name] {
			if i, err := strconv.ParseInt(v, 10, 64); err == nil {
				return i, ""
			}
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			if idFields[name] {
				return int64(f), ""
			}
			return f, ""
		}
		return v, fmt.Sprintf("field %s: %q is not numeric", name, v)
	case float64:
		if idFields[name] {
			return int64(v), ""
		}
		return v, ""
	case int:
		if idFields[name] {
			return int64(v), ""
		}
		return float64(v), ""
	case int64:
		if idFields[name] {
			return v, ""
		}
		return float64(v), ""
	default:
		return value, fmt.Sprintf("field %s: unexpected type %T", name, value)
	}
}

func normalizeDateValue(name string, value interface{}) (interface{}, string) {
	switch v := value.(type) {
	case nil:
		return nil, ""
	case string:
		if v == "" {
			return nil, ""
		}
		normalized, ok := NormalizeDate(v)
		if !ok {
			return v, fmt.Sprintf("field %s: %q is not a recognized date", name, v)
		}
		return normalized, ""
	case time.Time:
		return v.Format("2006-01-02"), ""
	default:
		return value, fmt.Sprintf("field %s: unexpected type %T", name, value)
	}
}

func normalizeText(value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return v
	default:
		return value
	}
}

// ValueString renders a field value in its canonical text form, used for
// diffing an incoming value against the stored one. nil stays nil so null
// round-trips as null.
func ValueString(field string, value interface{}) *string {
	switch v := value.(type) {
	case nil:
		return nil
	case *string:
		if v == nil {
			return nil
		}
		return ValueString(field, *v)
	case *float64:
		if v == nil {
			return nil
		}
		return ValueString(field, *v)
	case *int64:
		if v == nil {
			return nil
		}
		return ValueString(field, *v)
	case string:
		return canonicalizeString(field, v)
	case []byte:
		return canonicalizeString(field, string(v))
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		return &s
	case int64:
		s := strconv.FormatInt(v, 10)
		return &s
	case int:
		s := strconv.Itoa(v)
		return &s
	case time.Time:
		s := v.Format("2006-01-02")
		return &s
	case bool:
		s := strconv.FormatBool(v)
		return &s
	default:
		s := fmt.Sprintf("%v", v)
		return &s
	}
}

func canonicalizeString(field, v string) *string {
	if IsNumericField(field) {
		// "150.00" and 150 must compare equal.
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			s := strconv.FormatFloat(f, 'f', -1, 64)
			return &s
		}
	}
	if IsDateField(field) {
		if s, ok := NormalizeDate(v); ok {
			return &s
		}
	}
	return &v
}

// TextValue renders a field value as the literal text it was stored or
// supplied with, used for the old/new columns of change-log entries. Unlike
// ValueString it never collapses numeric forms, so a stored "150.00" is
// logged as "150.00" rather than "150".
func TextValue(field string, value interface{}) *string {
	switch v := value.(type) {
	case nil:
		return nil
	case *string:
		if v == nil {
			return nil
		}
		return TextValue(field, *v)
	case *float64:
		if v == nil {
			return nil
		}
		return TextValue(field, *v)
	case *int64:
		if v == nil {
			return nil
		}
		return TextValue(field, *v)
	case string:
		return &v
	case []byte:
		s := string(v)
		return &s
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		return &s
	case int64:
		s := strconv.FormatInt(v, 10)
		return &s
	case int:
		s := strconv.Itoa(v)
		return &s
	case time.Time:
		s := v.Format("2006-01-02")
		return &s
	case bool:
		s := strconv.FormatBool(v)
		return &s
	default:
		s := fmt.Sprintf("%v", v)
		return &s
	}
}

// EqualValueStrings reports whether two canonical values match, treating two
// nils as equal.
func EqualValueStrings(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
