package client

import (
	"context"
	"encoding/json"
	"errors"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	claimserrors "github.com/medtrack/claims-app/claims/errors"
	"github.com/medtrack/claims-app/claims/models"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		RetryMax:  2,
		RetryWait: time.Millisecond,
		Timeout:   time.Second,
	}
}

var testActor = models.Actor{UserID: 3, Username: "jsmith"}

func writeEnvelope(w http.ResponseWriter, status int, success bool, data interface{}, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": success,
		"data":    data,
		"message": message,
	})
}

func TestUpdateClaimRetriesTransientFailures(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		assert.Equal(t, http.MethodPut, r.Method)
		assert.NotEmpty(t, r.URL.Query().Get("_ts"))

		body, _ := ioutil.ReadAll(r.Body)
		var payload map[string]interface{}
		assert.NoError(t, json.Unmarshal(body, &payload))
		// "150.00" was normalized to a number before the wire.
		assert.Equal(t, 150.0, payload["charge_amt"])
		assert.Equal(t, 3.0, payload["user_id"])
		assert.Equal(t, "jsmith", payload["username"])

		writeEnvelope(w, http.StatusOK, true, models.Claim{ID: 7}, "")
	}))
	defer server.Close()

	c := NewClaimsClient(testConfig(server.URL))
	claim, err := c.UpdateClaim(context.Background(), 7,
		map[string]interface{}{"charge_amt": "150.00"}, testActor)

	assert.NoError(t, err)
	assert.Equal(t, int64(7), claim.ID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestUpdateClaimExhaustsRetries(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClaimsClient(testConfig(server.URL))
	_, err := c.UpdateClaim(context.Background(), 7,
		map[string]interface{}{"notes": "x"}, testActor)

	var tne *claimserrors.TransientNetworkError
	assert.True(t, errors.As(err, &tne))
	// Initial attempt plus RetryMax retries.
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestUpdateClaimNotFoundIsNotRetried(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		writeEnvelope(w, http.StatusNotFound, false, nil, "not found")
	}))
	defer server.Close()

	c := NewClaimsClient(testConfig(server.URL))
	_, err := c.UpdateClaim(context.Background(), 999,
		map[string]interface{}{"notes": "x"}, testActor)

	var nfe *claimserrors.NotFoundError
	assert.True(t, errors.As(err, &nfe))
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestUpdateClaimValidationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusBadRequest, false, nil, "claim id is required")
	}))
	defer server.Close()

	c := NewClaimsClient(testConfig(server.URL))
	_, err := c.UpdateClaim(context.Background(), 7,
		map[string]interface{}{"notes": "x"}, testActor)

	var ve *claimserrors.ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, "claim id is required", ve.Msg)
}

func TestGetClaimNullDataMeansNoClaim(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, true, nil, "")
	}))
	defer server.Close()

	c := NewClaimsClient(testConfig(server.URL))
	claim, err := c.GetClaim(context.Background(), 999)
	assert.NoError(t, err)
	assert.Nil(t, claim)
}

func TestSearchClaimsSendsFiltersAndToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))
		assert.Equal(t, "1001", r.URL.Query().Get("patient_id"))
		assert.Equal(t, "2025-03-04", r.URL.Query().Get("service_end"))
		writeEnvelope(w, http.StatusOK, true, []models.Claim{{ID: 1}, {ID: 2}}, "")
	}))
	defer server.Close()

	c := NewClaimsClient(testConfig(server.URL))
	c.SetToken("token-123")

	patientID := int64(1001)
	serviceEnd := "2025-03-04"
	claims, err := c.SearchClaims(context.Background(), models.SearchFilters{
		PatientID:  &patientID,
		ServiceEnd: &serviceEnd,
	})
	assert.NoError(t, err)
	assert.Len(t, claims, 2)
}

func TestClaimHistoryDecodesEntries(t *testing.T) {
	oldVal := "150.00"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/claims/7/history", r.URL.Path)
		writeEnvelope(w, http.StatusOK, true, []models.ChangeLogEntry{
			{ID: 1, ClaimID: 7, FieldName: "charge_amt", OldValue: &oldVal},
		}, "")
	}))
	defer server.Close()

	c := NewClaimsClient(testConfig(server.URL))
	entries, err := c.ClaimHistory(context.Background(), 7)
	assert.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "charge_amt", entries[0].FieldName)
	assert.Equal(t, "150.00", *entries[0].OldValue)
}

func TestClaimHistoryCachedUntilUpdate(t *testing.T) {
	var historyGets int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			atomic.AddInt32(&historyGets, 1)
			writeEnvelope(w, http.StatusOK, true, []models.ChangeLogEntry{
				{ID: 1, ClaimID: 7, FieldName: "charge_amt"},
			}, "")
		case http.MethodPut:
			writeEnvelope(w, http.StatusOK, true, models.Claim{ID: 7}, "")
		}
	}))
	defer server.Close()

	c := NewClaimsClient(testConfig(server.URL))

	_, err := c.ClaimHistory(context.Background(), 7)
	assert.NoError(t, err)

	// A second read within the TTL is served from the cache.
	entries, err := c.ClaimHistory(context.Background(), 7)
	assert.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.EqualValues(t, 1, atomic.LoadInt32(&historyGets))

	// A committed update drops the cached copy so the next read refetches.
	_, err = c.UpdateClaim(context.Background(), 7,
		map[string]interface{}{"charge_amt": "175.50"}, testActor)
	assert.NoError(t, err)

	_, err = c.ClaimHistory(context.Background(), 7)
	assert.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&historyGets))
}

func TestLoginStoresToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		writeEnvelope(w, http.StatusOK, true, map[string]interface{}{
			"token": "issued-token",
			"user":  models.User{ID: 3, Username: "jsmith"},
		}, "")
	}))
	defer server.Close()

	c := NewClaimsClient(testConfig(server.URL))
	token, user, err := c.Login(context.Background(), "jsmith", "pw")
	assert.NoError(t, err)
	assert.Equal(t, "issued-token", token)
	assert.Equal(t, "jsmith", user.Username)
	assert.Equal(t, "issued-token", c.config.Token)
}
