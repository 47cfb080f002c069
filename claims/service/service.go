package service

import (
	"context"
	"database/sql"
	"sort"

	"github.com/sirupsen/logrus"

	claimserrors "github.com/medtrack/claims-app/claims/errors"
	"github.com/medtrack/claims-app/claims/models"
	"github.com/medtrack/claims-app/claims/models/postgres"
	"github.com/medtrack/claims-app/middleware"
)

// Ensure service satisfies the interface
var _ Service = &service{}

// Service contains the claim operations exposed through the API: reads,
// partial updates with per-field change logging, and history queries.
type Service interface {
	GetClaim(ctx context.Context, claimID int64) (*models.Claim, error)
	SearchClaims(ctx context.Context, filters models.SearchFilters) ([]*models.Claim, error)

	// UpdateClaim applies a normalized partial update and, for every field
	// whose value actually changed, writes one change-log entry. The row
	// update and all change-log inserts commit together or not at all.
	UpdateClaim(ctx context.Context, claimID int64, fields map[string]interface{}, actor models.Actor) (*models.Claim, error)

	ClaimHistory(ctx context.Context, claimID int64) ([]*models.ChangeLogEntry, error)
	History(ctx context.Context, filters models.HistoryFilters) ([]*models.ChangeLogEntry, error)
}

type service struct {
	db     *sql.DB
	r      models.Repository
	txRepo func(tx *sql.Tx) models.Repository
	logger logrus.FieldLogger
}

func NewService(db *sql.DB, r models.Repository, logger logrus.FieldLogger) Service {
	return &service{
		db:     db,
		r:      r,
		txRepo: func(tx *sql.Tx) models.Repository { return postgres.NewRepositoryTx(tx) },
		logger: logger,
	}
}

func (s *service) GetClaim(ctx context.Context, claimID int64) (*models.Claim, error) {
	claim, err := s.r.GetClaimByID(ctx, claimID)
	if err != nil {
		return nil, &claimserrors.PersistenceError{Err: err, Op: "get claim"}
	}
	if claim == nil {
		return nil, &claimserrors.NotFoundError{ID: claimID}
	}
	return claim, nil
}

func (s *service) SearchClaims(ctx context.Context, filters models.SearchFilters) ([]*models.Claim, error) {
	claims, err := s.r.SearchClaims(ctx, filters)
	if err != nil {
		return nil, &claimserrors.PersistenceError{Err: err, Op: "search claims"}
	}
	return claims, nil
}

func (s *service) UpdateClaim(ctx context.Context, claimID int64, fields map[string]interface{}, actor models.Actor) (*models.Claim, error) {
	if claimID <= 0 {
		return nil, &claimserrors.ValidationError{Msg: "claim id is required"}
	}
	if actor.UserID == 0 || actor.Username == "" {
		return nil, &claimserrors.ValidationError{Msg: "acting user id and username are required"}
	}

	normalized, warnings := models.NormalizeFields(fields)
	for _, w := range warnings {
		s.logger.WithField("claim_id", claimID).Warn(w)
	}

	// No recognized fields in the payload; nothing to diff.
	if len(normalized) == 0 {
		return s.GetClaim(ctx, claimID)
	}

	targeted := make([]string, 0, len(normalized))
	for f := range normalized {
		targeted = append(targeted, f)
	}
	sort.Strings(targeted)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &claimserrors.PersistenceError{Err: err, Op: "begin update"}
	}

	r := s.txRepo(tx)

	current, err := r.GetClaimFields(ctx, claimID, targeted)
	if err != nil {
		rollback(tx, s.logger)
		return nil, &claimserrors.PersistenceError{Err: err, Op: "read current values"}
	}
	if current == nil {
		rollback(tx, s.logger)
		return nil, &claimserrors.NotFoundError{ID: claimID}
	}

	changed := make(map[string]interface{})
	var entries []models.ChangeLogEntry
	for _, field := range targeted {
		// Diff on the canonical form so "150.00" and 150 compare equal, but
		// log the literal stored and incoming text.
		if models.EqualValueStrings(
			models.ValueString(field, current[field]),
			models.ValueString(field, normalized[field])) {
			continue
		}

		changed[field] = normalized[field]
		entries = append(entries, models.ChangeLogEntry{
			ClaimID:   claimID,
			UserID:    actor.UserID,
			Username:  actor.Username,
			FieldName: field,
			OldValue:  models.TextValue(field, current[field]),
			NewValue:  models.TextValue(field, normalized[field]),
		})
	}

	if len(changed) > 0 {
		if err := r.UpdateClaimFields(ctx, claimID, changed); err != nil {
			rollback(tx, s.logger)
			return nil, &claimserrors.PersistenceError{Err: err, Op: "update claim"}
		}
		if err := r.CreateChangeLogEntries(ctx, entries...); err != nil {
			rollback(tx, s.logger)
			return nil, &claimserrors.PersistenceError{Err: err, Op: "write change log"}
		}
	}

	claim, err := r.GetClaimByID(ctx, claimID)
	if err != nil {
		rollback(tx, s.logger)
		return nil, &claimserrors.PersistenceError{Err: err, Op: "read updated claim"}
	}

	if err := tx.Commit(); err != nil {
		return nil, &claimserrors.PersistenceError{Err: err, Op: "commit update"}
	}

	logFields := logrus.Fields{
		"claim_id":       claimID,
		"user_id":        actor.UserID,
		"changed_fields": len(changed),
	}
	if txID, ok := ctx.Value(middleware.CtxTransactionKey).(string); ok {
		logFields["transaction_id"] = txID
	}
	s.logger.WithFields(logFields).Info("claim updated")

	return claim, nil
}

func (s *service) ClaimHistory(ctx context.Context, claimID int64) ([]*models.ChangeLogEntry, error) {
	entries, err := s.r.GetChangeLogByClaimID(ctx, claimID)
	if err != nil {
		return nil, &claimserrors.PersistenceError{Err: err, Op: "read claim history"}
	}
	// An empty history is a legitimate result, not an error.
	if entries == nil {
		entries = []*models.ChangeLogEntry{}
	}
	return entries, nil
}

func (s *service) History(ctx context.Context, filters models.HistoryFilters) ([]*models.ChangeLogEntry, error) {
	entries, err := s.r.GetChangeLog(ctx, filters)
	if err != nil {
		return nil, &claimserrors.PersistenceError{Err: err, Op: "read change log"}
	}
	if entries == nil {
		entries = []*models.ChangeLogEntry{}
	}
	return entries, nil
}

func rollback(tx *sql.Tx, logger logrus.FieldLogger) {
	if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
		logger.Errorf("failed to roll back claim update: %s", err.Error())
	}
}
