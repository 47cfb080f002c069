package service

import (
	"context"
	"database/sql"
	"errors"
	"io/ioutil"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	claimserrors "github.com/medtrack/claims-app/claims/errors"
	"github.com/medtrack/claims-app/claims/models"
)

// fakeRepository lets each test script the repository calls the service makes
// inside its transaction.
type fakeRepository struct {
	models.Repository

	getClaimByID          func(ctx context.Context, claimID int64) (*models.Claim, error)
	searchClaims          func(ctx context.Context, filters models.SearchFilters) ([]*models.Claim, error)
	getClaimFields        func(ctx context.Context, claimID int64, fields []string) (map[string]interface{}, error)
	updateClaimFields     func(ctx context.Context, claimID int64, fields map[string]interface{}) error
	createChangeLog       func(ctx context.Context, entries ...models.ChangeLogEntry) error
	getChangeLogByClaimID func(ctx context.Context, claimID int64) ([]*models.ChangeLogEntry, error)
	getChangeLog          func(ctx context.Context, filters models.HistoryFilters) ([]*models.ChangeLogEntry, error)
}

func (f *fakeRepository) GetClaimByID(ctx context.Context, claimID int64) (*models.Claim, error) {
	return f.getClaimByID(ctx, claimID)
}

func (f *fakeRepository) SearchClaims(ctx context.Context, filters models.SearchFilters) ([]*models.Claim, error) {
	return f.searchClaims(ctx, filters)
}

func (f *fakeRepository) GetClaimFields(ctx context.Context, claimID int64, fields []string) (map[string]interface{}, error) {
	return f.getClaimFields(ctx, claimID, fields)
}

func (f *fakeRepository) UpdateClaimFields(ctx context.Context, claimID int64, fields map[string]interface{}) error {
	return f.updateClaimFields(ctx, claimID, fields)
}

func (f *fakeRepository) CreateChangeLogEntries(ctx context.Context, entries ...models.ChangeLogEntry) error {
	return f.createChangeLog(ctx, entries...)
}

func (f *fakeRepository) GetChangeLogByClaimID(ctx context.Context, claimID int64) ([]*models.ChangeLogEntry, error) {
	return f.getChangeLogByClaimID(ctx, claimID)
}

func (f *fakeRepository) GetChangeLog(ctx context.Context, filters models.HistoryFilters) ([]*models.ChangeLogEntry, error) {
	return f.getChangeLog(ctx, filters)
}

type ServiceTestSuite struct {
	suite.Suite

	db   *sql.DB
	mock sqlmock.Sqlmock
	repo *fakeRepository
	svc  *service
}

func (s *ServiceTestSuite) SetupTest() {
	db, mock, err := sqlmock.New()
	if err != nil {
		assert.FailNowf(s.T(), "Failed to setup sqlmock", "err %s", err.Error())
	}

	logger := logrus.New()
	logger.SetOutput(ioutil.Discard)

	s.db, s.mock = db, mock
	s.repo = &fakeRepository{}
	s.svc = &service{
		db:     db,
		r:      s.repo,
		txRepo: func(*sql.Tx) models.Repository { return s.repo },
		logger: logger,
	}
}

func (s *ServiceTestSuite) TearDownTest() {
	assert.NoError(s.T(), s.mock.ExpectationsWereMet())
	s.db.Close()
}

func TestServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

var actor = models.Actor{UserID: 3, Username: "jsmith"}

func (s *ServiceTestSuite) TestUpdateClaimWritesOneEntryPerChangedField() {
	s.mock.ExpectBegin()
	s.mock.ExpectCommit()

	s.repo.getClaimFields = func(_ context.Context, claimID int64, fields []string) (map[string]interface{}, error) {
		assert.Equal(s.T(), []string{"charge_amt", "claim_status", "notes"}, fields)
		return map[string]interface{}{
			"charge_amt":   []byte("150.00"),
			"claim_status": "OPEN",
			"notes":        nil,
		}, nil
	}

	var updated map[string]interface{}
	s.repo.updateClaimFields = func(_ context.Context, _ int64, fields map[string]interface{}) error {
		updated = fields
		return nil
	}

	var written []models.ChangeLogEntry
	s.repo.createChangeLog = func(_ context.Context, entries ...models.ChangeLogEntry) error {
		written = entries
		return nil
	}

	s.repo.getClaimByID = func(context.Context, int64) (*models.Claim, error) {
		return &models.Claim{ID: 7}, nil
	}

	claim, err := s.svc.UpdateClaim(context.Background(), 7, map[string]interface{}{
		"charge_amt":   "175.50",
		"claim_status": "PAID",
		"notes":        nil,
	}, actor)

	assert.NoError(s.T(), err)
	assert.Equal(s.T(), int64(7), claim.ID)

	// charge_amt and claim_status changed; notes stayed null.
	assert.Len(s.T(), updated, 2)
	assert.Len(s.T(), written, 2)
	for _, e := range written {
		assert.Equal(s.T(), int64(7), e.ClaimID)
		assert.Equal(s.T(), int64(3), e.UserID)
		assert.Equal(s.T(), "jsmith", e.Username)
	}
	// The old value keeps the literal stored text; the new value is the
	// normalized incoming one.
	assert.Equal(s.T(), "charge_amt", written[0].FieldName)
	assert.Equal(s.T(), "150.00", *written[0].OldValue)
	assert.Equal(s.T(), "175.5", *written[0].NewValue)
	assert.Equal(s.T(), "claim_status", written[1].FieldName)
}

func (s *ServiceTestSuite) TestUpdateClaimZeroDiffWritesNothing() {
	s.mock.ExpectBegin()
	s.mock.ExpectCommit()

	s.repo.getClaimFields = func(context.Context, int64, []string) (map[string]interface{}, error) {
		// Stored as NUMERIC text; the incoming float must compare equal.
		return map[string]interface{}{"charge_amt": []byte("150.00")}, nil
	}
	s.repo.updateClaimFields = func(context.Context, int64, map[string]interface{}) error {
		s.T().Fatal("no update should run when nothing changed")
		return nil
	}
	s.repo.createChangeLog = func(_ context.Context, entries ...models.ChangeLogEntry) error {
		s.T().Fatal("no change log rows should be written when nothing changed")
		return nil
	}
	s.repo.getClaimByID = func(context.Context, int64) (*models.Claim, error) {
		return &models.Claim{ID: 7}, nil
	}

	claim, err := s.svc.UpdateClaim(context.Background(), 7,
		map[string]interface{}{"charge_amt": 150.0}, actor)
	assert.NoError(s.T(), err)
	assert.NotNil(s.T(), claim)
}

func (s *ServiceTestSuite) TestUpdateClaimEmptyStringClearsAmount() {
	s.mock.ExpectBegin()
	s.mock.ExpectCommit()

	s.repo.getClaimFields = func(context.Context, int64, []string) (map[string]interface{}, error) {
		return map[string]interface{}{"charge_amt": []byte("150.00")}, nil
	}
	s.repo.updateClaimFields = func(_ context.Context, _ int64, fields map[string]interface{}) error {
		assert.Contains(s.T(), fields, "charge_amt")
		assert.Nil(s.T(), fields["charge_amt"])
		return nil
	}

	var written []models.ChangeLogEntry
	s.repo.createChangeLog = func(_ context.Context, entries ...models.ChangeLogEntry) error {
		written = entries
		return nil
	}
	s.repo.getClaimByID = func(context.Context, int64) (*models.Claim, error) {
		return &models.Claim{ID: 7}, nil
	}

	_, err := s.svc.UpdateClaim(context.Background(), 7,
		map[string]interface{}{"charge_amt": ""}, actor)
	assert.NoError(s.T(), err)

	assert.Len(s.T(), written, 1)
	assert.Equal(s.T(), "150.00", *written[0].OldValue)
	assert.Nil(s.T(), written[0].NewValue)
}

func (s *ServiceTestSuite) TestUpdateClaimUnknownFieldsOnlySkipsTransaction() {
	// No ExpectBegin: the legacy-only payload normalizes to nothing.
	s.repo.getClaimByID = func(context.Context, int64) (*models.Claim, error) {
		return &models.Claim{ID: 7}, nil
	}

	claim, err := s.svc.UpdateClaim(context.Background(), 7, map[string]interface{}{
		"visit_id": "7",
		"status":   "PAID",
	}, actor)
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), int64(7), claim.ID)
}

func (s *ServiceTestSuite) TestUpdateClaimNotFound() {
	s.mock.ExpectBegin()
	s.mock.ExpectRollback()

	s.repo.getClaimFields = func(context.Context, int64, []string) (map[string]interface{}, error) {
		return nil, nil
	}

	_, err := s.svc.UpdateClaim(context.Background(), 999,
		map[string]interface{}{"notes": "x"}, actor)

	var nfe *claimserrors.NotFoundError
	assert.True(s.T(), errors.As(err, &nfe))
	assert.Equal(s.T(), int64(999), nfe.ID)
}

func (s *ServiceTestSuite) TestUpdateClaimValidation() {
	var ve *claimserrors.ValidationError

	_, err := s.svc.UpdateClaim(context.Background(), 0, nil, actor)
	assert.True(s.T(), errors.As(err, &ve))

	_, err = s.svc.UpdateClaim(context.Background(), 7, nil, models.Actor{})
	assert.True(s.T(), errors.As(err, &ve))
}

func (s *ServiceTestSuite) TestUpdateClaimRollsBackOnWriteFailure() {
	s.mock.ExpectBegin()
	s.mock.ExpectRollback()

	s.repo.getClaimFields = func(context.Context, int64, []string) (map[string]interface{}, error) {
		return map[string]interface{}{"notes": nil}, nil
	}
	s.repo.updateClaimFields = func(context.Context, int64, map[string]interface{}) error {
		return errors.New("deadlock detected")
	}

	_, err := s.svc.UpdateClaim(context.Background(), 7,
		map[string]interface{}{"notes": "call patient"}, actor)

	var pe *claimserrors.PersistenceError
	assert.True(s.T(), errors.As(err, &pe))
}

func (s *ServiceTestSuite) TestUpdateClaimRollsBackOnChangeLogFailure() {
	s.mock.ExpectBegin()
	s.mock.ExpectRollback()

	s.repo.getClaimFields = func(context.Context, int64, []string) (map[string]interface{}, error) {
		return map[string]interface{}{"notes": nil}, nil
	}
	s.repo.updateClaimFields = func(context.Context, int64, map[string]interface{}) error {
		return nil
	}
	s.repo.createChangeLog = func(_ context.Context, _ ...models.ChangeLogEntry) error {
		return errors.New("insert failed")
	}

	_, err := s.svc.UpdateClaim(context.Background(), 7,
		map[string]interface{}{"notes": "call patient"}, actor)

	var pe *claimserrors.PersistenceError
	assert.True(s.T(), errors.As(err, &pe))
}

func (s *ServiceTestSuite) TestGetClaimNotFound() {
	s.repo.getClaimByID = func(context.Context, int64) (*models.Claim, error) {
		return nil, nil
	}

	_, err := s.svc.GetClaim(context.Background(), 42)
	var nfe *claimserrors.NotFoundError
	assert.True(s.T(), errors.As(err, &nfe))
}

func (s *ServiceTestSuite) TestClaimHistoryEmptyIsNotAnError() {
	s.repo.getChangeLogByClaimID = func(context.Context, int64) ([]*models.ChangeLogEntry, error) {
		return nil, nil
	}

	entries, err := s.svc.ClaimHistory(context.Background(), 7)
	assert.NoError(s.T(), err)
	assert.NotNil(s.T(), entries)
	assert.Len(s.T(), entries, 0)
}

func (s *ServiceTestSuite) TestHistoryEmptyIsNotAnError() {
	s.repo.getChangeLog = func(context.Context, models.HistoryFilters) ([]*models.ChangeLogEntry, error) {
		return nil, nil
	}

	entries, err := s.svc.History(context.Background(), models.HistoryFilters{})
	assert.NoError(s.T(), err)
	assert.NotNil(s.T(), entries)
	assert.Len(s.T(), entries, 0)
}
