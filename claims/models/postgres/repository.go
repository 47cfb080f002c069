package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/huandu/go-sqlbuilder"

	"github.com/medtrack/claims-app/claims/models"
)

type queryable interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type executable interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

const (
	sqlFlavor = sqlbuilder.PostgreSQL

	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Ensure Repository satisfies the interface
var _ models.Repository = &Repository{}

type Repository struct {
	queryable
	executable
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db, db}
}

func NewRepositoryTx(tx *sql.Tx) *Repository {
	return &Repository{tx, tx}
}

var claimColumns = append([]string{"id"}, models.ClaimFields...)

func (r *Repository) GetClaimByID(ctx context.Context, claimID int64) (*models.Claim, error) {
	sb := sqlFlavor.NewSelectBuilder()
	sb.Select(claimColumns...)
	sb.From("claims").Where(sb.Equal("id", claimID))

	query, args := sb.Build()
	claim, err := scanClaim(r.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return claim, nil
}

func (r *Repository) SearchClaims(ctx context.Context, filters models.SearchFilters) ([]*models.Claim, error) {
	sb := sqlFlavor.NewSelectBuilder()
	sb.Select(claimColumns...)
	sb.From("claims")
	if filters.PatientID != nil {
		sb.Where(sb.Equal("patient_id", *filters.PatientID))
	}
	if filters.CPTID != nil {
		sb.Where(sb.Equal("cpt_id", *filters.CPTID))
	}
	if filters.ServiceEnd != nil {
		sb.Where(sb.Equal("service_end", *filters.ServiceEnd))
	}
	sb.OrderBy("id").Desc()

	query, args := sb.Build()
	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []*models.Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return claims, nil
}

func (r *Repository) GetClaimFields(ctx context.Context, claimID int64, fields []string) (map[string]interface{}, error) {
	sb := sqlFlavor.NewSelectBuilder()
	sb.Select(fields...)
	sb.From("claims").Where(sb.Equal("id", claimID))

	query, args := sb.Build()
	dest := make([]interface{}, len(fields))
	for i := range dest {
		dest[i] = new(interface{})
	}

	if err := r.QueryRowContext(ctx, query, args...).Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	values := make(map[string]interface{}, len(fields))
	for i, field := range fields {
		values[field] = *(dest[i].(*interface{}))
	}

	return values, nil
}

func (r *Repository) UpdateClaimFields(ctx context.Context, claimID int64, fields map[string]interface{}) error {
	ub := sqlFlavor.NewUpdateBuilder().Update("claims")
	for field, value := range fields {
		ub.SetMore(ub.Assign(field, value))
	}
	ub.Where(ub.Equal("id", claimID))

	query, args := ub.Build()
	result, err := r.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return fmt.Errorf("claim %d not updated, no row found", claimID)
	}

	return nil
}

func (r *Repository) CreateChangeLogEntries(ctx context.Context, entries ...models.ChangeLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	ib := sqlFlavor.NewInsertBuilder().InsertInto("change_log")
	ib.Cols("claim_id", "user_id", "username", "field_name", "old_value", "new_value")
	for _, e := range entries {
		ib.Values(e.ClaimID, e.UserID, e.Username, e.FieldName, e.OldValue, e.NewValue)
	}

	query, args := ib.Build()
	_, err := r.ExecContext(ctx, query, args...)
	return err
}

var changeLogColumns = []string{"id", "claim_id", "user_id", "username", "field_name", "old_value", "new_value", "created_at"}

func (r *Repository) GetChangeLogByClaimID(ctx context.Context, claimID int64) ([]*models.ChangeLogEntry, error) {
	sb := sqlFlavor.NewSelectBuilder()
	sb.Select(changeLogColumns...)
	sb.From("change_log").Where(sb.Equal("claim_id", claimID))
	sb.OrderBy("created_at").Desc()

	query, args := sb.Build()
	return r.getChangeLog(ctx, query, args...)
}

func (r *Repository) GetChangeLog(ctx context.Context, filters models.HistoryFilters) ([]*models.ChangeLogEntry, error) {
	sb := sqlFlavor.NewSelectBuilder()
	sb.Select(changeLogColumns...)
	sb.From("change_log")
	if filters.ClaimID != nil {
		sb.Where(sb.Equal("claim_id", *filters.ClaimID))
	}
	if filters.UserID != nil {
		sb.Where(sb.Equal("user_id", *filters.UserID))
	}
	if filters.CPTID != nil {
		// The change log does not carry the CPT id; subquery back to the claim.
		subSB := sqlFlavor.NewSelectBuilder()
		subSB.Select("id").From("claims").Where(subSB.Equal("cpt_id", *filters.CPTID))
		sb.Where(sb.In("claim_id", subSB))
	}
	if filters.StartDate != nil {
		sb.Where(sb.GreaterEqualThan("created_at", *filters.StartDate))
	}
	if filters.EndDate != nil {
		sb.Where(sb.LessEqualThan("created_at", *filters.EndDate))
	}
	sb.OrderBy("created_at").Desc()

	limit := filters.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	sb.Limit(limit)

	if filters.Page > 1 {
		sb.Offset((filters.Page - 1) * limit)
	}

	query, args := sb.Build()
	return r.getChangeLog(ctx, query, args...)
}

func (r *Repository) getChangeLog(ctx context.Context, query string, args ...interface{}) ([]*models.ChangeLogEntry, error) {
	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.ChangeLogEntry
	for rows.Next() {
		var (
			e        models.ChangeLogEntry
			oldValue sql.NullString
			newValue sql.NullString
		)
		if err = rows.Scan(&e.ID, &e.ClaimID, &e.UserID, &e.Username, &e.FieldName,
			&oldValue, &newValue, &e.CreatedAt); err != nil {
			return nil, err
		}
		if oldValue.Valid {
			e.OldValue = &oldValue.String
		}
		if newValue.Valid {
			e.NewValue = &newValue.String
		}
		entries = append(entries, &e)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

var userColumns = []string{"id", "username", "display_name", "role", "password_hash", "active", "created_at", "updated_at"}

func (r *Repository) GetUserByID(ctx context.Context, userID int64) (*models.User, error) {
	sb := sqlFlavor.NewSelectBuilder()
	sb.Select(userColumns...)
	sb.From("users").Where(sb.Equal("id", userID))

	query, args := sb.Build()
	return r.scanUserRow(r.QueryRowContext(ctx, query, args...))
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	sb := sqlFlavor.NewSelectBuilder()
	sb.Select(userColumns...)
	sb.From("users").Where(sb.Equal("username", username))

	query, args := sb.Build()
	return r.scanUserRow(r.QueryRowContext(ctx, query, args...))
}

func (r *Repository) scanUserRow(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &u.Role, &u.PasswordHash,
		&u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repository) ListUsers(ctx context.Context) ([]*models.User, error) {
	sb := sqlFlavor.NewSelectBuilder()
	sb.Select(userColumns...)
	sb.From("users")
	sb.OrderBy("username")

	query, args := sb.Build()
	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var u models.User
		if err = rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.Role, &u.PasswordHash,
			&u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, &u)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}

func (r *Repository) CreateUser(ctx context.Context, user models.User) (int64, error) {
	// Use the raw builder since we need to retrieve the associated ID
	query, args := sqlbuilder.Buildf(`INSERT INTO users
		(username, display_name, role, password_hash, active, created_at, updated_at) VALUES
		(%s, %s, %s, %s, %s, NOW(), NOW()) RETURNING id`,
		user.Username, user.DisplayName, user.Role, user.PasswordHash, user.Active).
		BuildWithFlavor(sqlFlavor)

	var id int64
	if err := r.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, err
	}

	return id, nil
}

func (r *Repository) UpdateUser(ctx context.Context, userID int64, fields map[string]interface{}) error {
	ub := sqlFlavor.NewUpdateBuilder().Update("users")
	for field, value := range fields {
		ub.SetMore(ub.Assign(field, value))
	}
	ub.SetMore(ub.Assign("updated_at", sqlbuilder.Raw("NOW()")))
	ub.Where(ub.Equal("id", userID))

	query, args := ub.Build()
	result, err := r.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return fmt.Errorf("user %d not updated, no row found", userID)
	}

	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanClaim(row scanner) (*models.Claim, error) {
	var (
		c models.Claim

		patientID, cptID sql.NullInt64

		firstName, lastName, cptCode, claimStatus, statusType        sql.NullString
		primPayer, primCheckNum, primCmt, primDenialCode             sql.NullString
		secPayer, secCheckNum, secCmt, secDenialCode, notes          sql.NullString
		dob, serviceStart, serviceEnd, chargeDate                    sql.NullTime
		primPostDate, primRecvDate, secPostDate, secRecvDate         sql.NullTime
		ptRecvDate                                                   sql.NullTime
		chargeAmt, allowedAmt, totalAmt, writeOffAmt, balanceAmt     sql.NullFloat64
		reimbPct, primAmt, primCheckAmt, secAmt, secCheckAmt, ptPaid sql.NullFloat64
	)

	err := row.Scan(&c.ID,
		&patientID, &firstName, &lastName, &dob,
		&cptID, &cptCode,
		&claimStatus, &statusType,
		&serviceStart, &serviceEnd,
		&chargeDate, &chargeAmt, &allowedAmt, &totalAmt, &writeOffAmt, &balanceAmt, &reimbPct,
		&primPayer, &primAmt, &primPostDate, &primRecvDate, &primCheckNum, &primCheckAmt, &primCmt, &primDenialCode,
		&secPayer, &secAmt, &secPostDate, &secRecvDate, &secCheckNum, &secCheckAmt, &secCmt, &secDenialCode,
		&ptPaid, &ptRecvDate,
		&notes)
	if err != nil {
		return nil, err
	}

	c.PatientID = nullInt64(patientID)
	c.FirstName = nullString(firstName)
	c.LastName = nullString(lastName)
	c.DOB = nullDate(dob)
	c.CPTID = nullInt64(cptID)
	c.CPTCode = nullString(cptCode)
	c.ClaimStatus = nullString(claimStatus)
	c.StatusType = nullString(statusType)
	c.ServiceStart = nullDate(serviceStart)
	c.ServiceEnd = nullDate(serviceEnd)
	c.ChargeDate = nullDate(chargeDate)
	c.ChargeAmt = nullFloat64(chargeAmt)
	c.AllowedAmt = nullFloat64(allowedAmt)
	c.TotalAmt = nullFloat64(totalAmt)
	c.WriteOffAmt = nullFloat64(writeOffAmt)
	c.BalanceAmt = nullFloat64(balanceAmt)
	c.ReimbPct = nullFloat64(reimbPct)
	c.PrimPayer = nullString(primPayer)
	c.PrimAmt = nullFloat64(primAmt)
	c.PrimPostDate = nullDate(primPostDate)
	c.PrimRecvDate = nullDate(primRecvDate)
	c.PrimCheckNum = nullString(primCheckNum)
	c.PrimCheckAmt = nullFloat64(primCheckAmt)
	c.PrimCmt = nullString(primCmt)
	c.PrimDenialCode = nullString(primDenialCode)
	c.SecPayer = nullString(secPayer)
	c.SecAmt = nullFloat64(secAmt)
	c.SecPostDate = nullDate(secPostDate)
	c.SecRecvDate = nullDate(secRecvDate)
	c.SecCheckNum = nullString(secCheckNum)
	c.SecCheckAmt = nullFloat64(secCheckAmt)
	c.SecCmt = nullString(secCmt)
	c.SecDenialCode = nullString(secDenialCode)
	c.PtPaidAmt = nullFloat64(ptPaid)
	c.PtRecvDate = nullDate(ptRecvDate)
	c.Notes = nullString(notes)

	return &c, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	i := v.Int64
	return &i
}

func nullFloat64(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullDate(v sql.NullTime) *string {
	if !v.Valid {
		return nil
	}
	s := v.Time.Format("2006-01-02")
	return &s
}
