package client

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"

	"github.com/medtrack/claims-app/claims/models"
	"github.com/medtrack/claims-app/log"
)

// UpdateOutcome reports how an optimistic update resolved.
type UpdateOutcome int

const (
	OutcomeCommitted UpdateOutcome = iota
	OutcomeRolledBack
	OutcomeCanceled
)

var ErrUpdateInFlight = errors.New("an update for this claim is already in flight")

// StateManager keeps the UI's view of claims consistent across optimistic
// updates. A write is applied to the local copy immediately; when the server
// answers, the authoritative row replaces the guess, and on failure the
// manager re-fetches the row to roll back. At most one update per claim id
// may be in flight.
type StateManager struct {
	mu       sync.Mutex
	client   *ClaimsClient
	current  map[int64]*models.Claim
	inflight map[int64]context.CancelFunc
}

func NewStateManager(client *ClaimsClient) *StateManager {
	return &StateManager{
		client:   client,
		current:  make(map[int64]*models.Claim),
		inflight: make(map[int64]context.CancelFunc),
	}
}

// Load fetches a claim and installs it as the current copy.
func (m *StateManager) Load(ctx context.Context, claimID int64) (*models.Claim, error) {
	claim, err := m.client.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if claim != nil {
		m.current[claimID] = claim
	} else {
		delete(m.current, claimID)
	}
	return claim, nil
}

// Current returns the local copy of a claim, which may be an optimistic
// guess while an update is in flight.
func (m *StateManager) Current(claimID int64) (*models.Claim, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.current[claimID]
	return c, ok
}

// Update applies fields to the local copy immediately, then sends the write.
// On success the server's row wins; on failure the row is re-fetched and the
// local copy rolled back to it. If the re-fetch also fails, the copy held
// before the optimistic merge is restored.
func (m *StateManager) Update(ctx context.Context, claimID int64, fields map[string]interface{}, actor models.Actor) (UpdateOutcome, error) {
	m.mu.Lock()
	if _, busy := m.inflight[claimID]; busy {
		m.mu.Unlock()
		return OutcomeRolledBack, ErrUpdateInFlight
	}

	snapshot := m.current[claimID]
	optimistic, err := mergeFields(snapshot, fields)
	if err != nil {
		m.mu.Unlock()
		return OutcomeRolledBack, err
	}
	if optimistic != nil {
		m.current[claimID] = optimistic
	}

	updateCtx, cancel := context.WithCancel(ctx)
	m.inflight[claimID] = cancel
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.inflight, claimID)
		m.mu.Unlock()
		cancel()
	}()

	claim, err := m.client.UpdateClaim(updateCtx, claimID, fields, actor)
	if err == nil {
		m.mu.Lock()
		m.current[claimID] = claim
		m.mu.Unlock()
		return OutcomeCommitted, nil
	}

	if updateCtx.Err() != nil {
		// The view went away; restore the last known good copy and stop.
		m.restore(claimID, snapshot)
		return OutcomeCanceled, err
	}

	log.Client.WithField("claim_id", claimID).Warnf("update failed, rolling back: %s", err.Error())

	fresh, fetchErr := m.client.GetClaim(context.Background(), claimID)
	if fetchErr != nil || fresh == nil {
		m.restore(claimID, snapshot)
		return OutcomeRolledBack, err
	}

	m.mu.Lock()
	m.current[claimID] = fresh
	m.mu.Unlock()
	return OutcomeRolledBack, err
}

// Cancel aborts the in-flight update for a claim, if any.
func (m *StateManager) Cancel(claimID int64) {
	m.mu.Lock()
	cancel, ok := m.inflight[claimID]
	m.mu.Unlock()
	if ok {
		cancel()
	}
}

func (m *StateManager) restore(claimID int64, snapshot *models.Claim) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if snapshot != nil {
		m.current[claimID] = snapshot
	} else {
		delete(m.current, claimID)
	}
}

// mergeFields lays normalized fields over a claim without mutating the
// original. The merge goes through JSON so nulls clear fields the same way
// the server does.
func mergeFields(claim *models.Claim, fields map[string]interface{}) (*models.Claim, error) {
	if claim == nil {
		return nil, nil
	}

	normalized, _ := models.NormalizeFields(fields)

	encoded, err := json.Marshal(claim)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode claim for merge")
	}
	var asMap map[string]interface{}
	if err := json.Unmarshal(encoded, &asMap); err != nil {
		return nil, errors.Wrap(err, "could not decode claim for merge")
	}

	for k, v := range normalized {
		asMap[k] = v
	}

	merged, err := json.Marshal(asMap)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode merged claim")
	}
	var out models.Claim
	if err := json.Unmarshal(merged, &out); err != nil {
		return nil, errors.Wrap(err, "could not decode merged claim")
	}
	out.FillDerived()
	return &out, nil
}
