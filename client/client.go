// Package client is the UI-side access layer for the claims API. It owns
// payload normalization before writes, bounded retry on claim updates, and
// the response envelope decoding shared by every endpoint.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	"github.com/medtrack/claims-app/claims/constants"
	claimserrors "github.com/medtrack/claims-app/claims/errors"
	"github.com/medtrack/claims-app/claims/models"
	"github.com/medtrack/claims-app/conf"
	"github.com/medtrack/claims-app/log"
)

type Config struct {
	BaseURL    string
	Token      string
	RetryMax   int
	RetryWait  time.Duration
	Timeout    time.Duration
	HistoryTTL time.Duration

	nowMillis func() int64
}

func NewConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		RetryMax:   conf.GetEnvInt("CLAIMS_CLIENT_RETRY_MAX", constants.DefaultRetryMax),
		RetryWait:  time.Duration(conf.GetEnvInt("CLAIMS_CLIENT_RETRY_WAIT_MS", constants.DefaultRetryWaitMS)) * time.Millisecond,
		Timeout:    time.Duration(conf.GetEnvInt("CLAIMS_CLIENT_TIMEOUT_MS", constants.DefaultTimeoutMS)) * time.Millisecond,
		HistoryTTL: time.Duration(conf.GetEnvInt("CLAIMS_CLIENT_HISTORY_TTL_MS", constants.DefaultHistoryTTLMS)) * time.Millisecond,
	}
}

type ClaimsClient struct {
	config     Config
	httpClient *http.Client
	retryer    *retryablehttp.Client
	history    *HistoryCache
}

func NewClaimsClient(config Config) *ClaimsClient {
	if config.nowMillis == nil {
		config.nowMillis = func() int64 { return time.Now().UnixNano() / int64(time.Millisecond) }
	}
	if config.HistoryTTL <= 0 {
		config.HistoryTTL = time.Duration(constants.DefaultHistoryTTLMS) * time.Millisecond
	}

	retryer := retryablehttp.NewClient()
	retryer.RetryMax = config.RetryMax
	// Equal min and max produce a fixed delay between attempts.
	retryer.RetryWaitMin = config.RetryWait
	retryer.RetryWaitMax = config.RetryWait
	retryer.HTTPClient.Timeout = config.Timeout
	retryer.Logger = nil
	retryer.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			log.Client.WithField("attempt", attempt).Warnf("retrying %s %s", req.Method, req.URL.Path)
		}
	}

	return &ClaimsClient{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		retryer:    retryer,
		history:    NewHistoryCache(config.HistoryTTL, nil),
	}
}

// SetToken stores the bearer token used on subsequent requests.
func (c *ClaimsClient) SetToken(token string) {
	c.config.Token = token
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func (c *ClaimsClient) GetClaim(ctx context.Context, claimID int64) (*models.Claim, error) {
	raw, err := c.get(ctx, fmt.Sprintf("/api/claims/%d", claimID), nil)
	if err != nil {
		return nil, err
	}

	// A read of an unknown id yields a successful null payload.
	if string(raw) == "null" || len(raw) == 0 {
		return nil, nil
	}

	var claim models.Claim
	if err := json.Unmarshal(raw, &claim); err != nil {
		return nil, errors.Wrap(err, "could not decode claim")
	}
	return &claim, nil
}

func (c *ClaimsClient) SearchClaims(ctx context.Context, filters models.SearchFilters) ([]*models.Claim, error) {
	params := url.Values{}
	if filters.PatientID != nil {
		params.Set("patient_id", strconv.FormatInt(*filters.PatientID, 10))
	}
	if filters.CPTID != nil {
		params.Set("cpt_id", strconv.FormatInt(*filters.CPTID, 10))
	}
	if filters.ServiceEnd != nil {
		params.Set("service_end", *filters.ServiceEnd)
	}

	raw, err := c.get(ctx, "/api/claims", params)
	if err != nil {
		return nil, err
	}

	claims := []*models.Claim{}
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil, errors.Wrap(err, "could not decode claim list")
	}
	return claims, nil
}

// UpdateClaim normalizes fields client-side, then issues the write with a
// cache-busting query parameter and a bounded fixed-delay retry. Transport
// failures and 5xx responses are retried; any 4xx answer is final and
// surfaces immediately.
func (c *ClaimsClient) UpdateClaim(ctx context.Context, claimID int64, fields map[string]interface{}, actor models.Actor) (*models.Claim, error) {
	normalized, warnings := models.NormalizeFields(fields)
	for _, w := range warnings {
		log.Client.WithField("claim_id", claimID).Warn(w)
	}

	body := make(map[string]interface{}, len(normalized)+2)
	for k, v := range normalized {
		body[k] = v
	}
	body["user_id"] = actor.UserID
	body["username"] = actor.Username

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode update payload")
	}

	endpoint := fmt.Sprintf("%s/api/claims/%d?_ts=%d", c.config.BaseURL, claimID, c.config.nowMillis())
	req, err := retryablehttp.NewRequest(http.MethodPut, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req.Header)

	resp, err := c.retryer.Do(req)
	if err != nil {
		return nil, &claimserrors.TransientNetworkError{Err: err, Attempts: c.config.RetryMax + 1}
	}
	defer resp.Body.Close()

	raw, err := decodeEnvelope(resp)
	if err != nil {
		return nil, err
	}

	var claim models.Claim
	if err := json.Unmarshal(raw, &claim); err != nil {
		return nil, errors.Wrap(err, "could not decode updated claim")
	}

	// The committed write grew this claim's change log.
	c.history.Invalidate(claimID)
	return &claim, nil
}

// ClaimHistory serves a claim's change log from the TTL cache when it holds a
// fresh copy, fetching otherwise.
func (c *ClaimsClient) ClaimHistory(ctx context.Context, claimID int64) ([]*models.ChangeLogEntry, error) {
	if entries, ok := c.history.Get(claimID); ok {
		return entries, nil
	}

	raw, err := c.get(ctx, fmt.Sprintf("/api/claims/%d/history", claimID), nil)
	if err != nil {
		return nil, err
	}

	entries := []*models.ChangeLogEntry{}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errors.Wrap(err, "could not decode change log")
	}

	c.history.Set(claimID, entries)
	return entries, nil
}

func (c *ClaimsClient) History(ctx context.Context, filters models.HistoryFilters) ([]*models.ChangeLogEntry, error) {
	params := url.Values{}
	if filters.UserID != nil {
		params.Set("user_id", strconv.FormatInt(*filters.UserID, 10))
	}
	if filters.CPTID != nil {
		params.Set("cpt_id", strconv.FormatInt(*filters.CPTID, 10))
	}
	if filters.StartDate != nil {
		params.Set("start_date", *filters.StartDate)
	}
	if filters.EndDate != nil {
		params.Set("end_date", *filters.EndDate)
	}
	if filters.Page > 0 {
		params.Set("page", strconv.Itoa(filters.Page))
	}
	if filters.Limit > 0 {
		params.Set("limit", strconv.Itoa(filters.Limit))
	}

	raw, err := c.get(ctx, "/api/claims/history/all", params)
	if err != nil {
		return nil, err
	}

	entries := []*models.ChangeLogEntry{}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errors.Wrap(err, "could not decode change log")
	}
	return entries, nil
}

func (c *ClaimsClient) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	payload, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return "", nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/auth/login", bytes.NewReader(payload))
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	raw, err := decodeEnvelope(resp)
	if err != nil {
		return "", nil, err
	}

	var result struct {
		Token string       `json:"token"`
		User  *models.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", nil, errors.Wrap(err, "could not decode login response")
	}

	c.SetToken(result.Token)
	return result.Token, result.User, nil
}

func (c *ClaimsClient) get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if params != nil {
		req.URL.RawQuery = params.Encode()
	}
	c.authorize(req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return decodeEnvelope(resp)
}

func (c *ClaimsClient) authorize(h http.Header) {
	if c.config.Token != "" {
		h.Set("Authorization", "Bearer "+c.config.Token)
	}
}

func decodeEnvelope(resp *http.Response) (json.RawMessage, error) {
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "could not read response body")
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &claimserrors.UnexpectedStatusCodeError{
			Err:        fmt.Errorf("unexpected response with status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}

	if env.Success {
		return env.Data, nil
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, &claimserrors.NotFoundError{Err: errors.New(env.Message)}
	case http.StatusBadRequest:
		return nil, &claimserrors.ValidationError{Err: errors.New(env.Message), Msg: env.Message}
	default:
		return nil, &claimserrors.UnexpectedStatusCodeError{
			Err:        fmt.Errorf("%s (status %d)", env.Message, resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}
}
