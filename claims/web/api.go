package web

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mitchellh/mapstructure"

	"github.com/medtrack/claims-app/claims/auth"
	"github.com/medtrack/claims-app/claims/constants"
	claimserrors "github.com/medtrack/claims-app/claims/errors"
	"github.com/medtrack/claims-app/claims/health"
	"github.com/medtrack/claims-app/claims/models"
	"github.com/medtrack/claims-app/claims/responseutils"
	"github.com/medtrack/claims-app/claims/service"
	"github.com/medtrack/claims-app/log"
)

type API struct {
	svc  service.Service
	repo models.Repository
	db   *sql.DB
}

func NewAPI(svc service.Service, repo models.Repository, db *sql.DB) *API {
	return &API{svc: svc, repo: repo, db: db}
}

func (a *API) SearchClaims(w http.ResponseWriter, r *http.Request) {
	var filters models.SearchFilters

	q := r.URL.Query()
	if v := q.Get("patient_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			responseutils.WriteError(w, r, http.StatusBadRequest, "patient_id must be numeric")
			return
		}
		filters.PatientID = &id
	}
	if v := q.Get("cpt_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			responseutils.WriteError(w, r, http.StatusBadRequest, "cpt_id must be numeric")
			return
		}
		filters.CPTID = &id
	}
	if v := q.Get("service_end"); v != "" {
		date, ok := models.NormalizeDate(v)
		if !ok {
			responseutils.WriteError(w, r, http.StatusBadRequest, "service_end must be a date")
			return
		}
		filters.ServiceEnd = &date
	}

	claims, err := a.svc.SearchClaims(r.Context(), filters)
	if err != nil {
		log.API.Errorf("claim search failed: %s", err.Error())
		responseutils.WriteError(w, r, http.StatusInternalServerError, constants.ServerErrMsg)
		return
	}

	if claims == nil {
		claims = []*models.Claim{}
	}
	for _, c := range claims {
		c.FillDerived()
	}
	responseutils.WriteSuccess(w, r, claims)
}

func (a *API) GetClaim(w http.ResponseWriter, r *http.Request) {
	claimID, ok := parseID(w, r, "claimID")
	if !ok {
		return
	}

	claim, err := a.svc.GetClaim(r.Context(), claimID)
	if err != nil {
		var nfe *claimserrors.NotFoundError
		if errors.As(err, &nfe) {
			// An unknown id on a read is not a failure; the UI renders an
			// empty detail view off the null.
			responseutils.WriteSuccess(w, r, nil)
			return
		}
		log.API.Errorf("claim read failed: %s", err.Error())
		responseutils.WriteError(w, r, http.StatusInternalServerError, constants.ServerErrMsg)
		return
	}

	claim.FillDerived()
	responseutils.WriteSuccess(w, r, claim)
}

func (a *API) UpdateClaim(w http.ResponseWriter, r *http.Request) {
	claimID, ok := parseID(w, r, "claimID")
	if !ok {
		return
	}

	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		responseutils.WriteError(w, r, http.StatusBadRequest, constants.InvalidRequestMsg)
		return
	}

	actor, err := actorFromRequest(r, body)
	if err != nil {
		responseutils.WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	delete(body, "user_id")
	delete(body, "username")

	claim, err := a.svc.UpdateClaim(r.Context(), claimID, body, actor)
	if err != nil {
		var (
			nfe *claimserrors.NotFoundError
			ve  *claimserrors.ValidationError
		)
		switch {
		case errors.As(err, &nfe):
			responseutils.WriteError(w, r, http.StatusNotFound, constants.NotFoundMsg)
		case errors.As(err, &ve):
			responseutils.WriteError(w, r, http.StatusBadRequest, ve.Msg)
		default:
			log.API.Errorf("claim update failed: %s", err.Error())
			responseutils.WriteError(w, r, http.StatusInternalServerError, constants.ServerErrMsg)
		}
		return
	}

	claim.FillDerived()
	responseutils.WriteSuccess(w, r, claim)
}

func (a *API) ClaimHistory(w http.ResponseWriter, r *http.Request) {
	claimID, ok := parseID(w, r, "claimID")
	if !ok {
		return
	}

	entries, err := a.svc.ClaimHistory(r.Context(), claimID)
	if err != nil {
		log.API.Errorf("claim history read failed: %s", err.Error())
		responseutils.WriteError(w, r, http.StatusInternalServerError, constants.ServerErrMsg)
		return
	}

	responseutils.WriteSuccess(w, r, entries)
}

func (a *API) GlobalHistory(w http.ResponseWriter, r *http.Request) {
	var filters models.HistoryFilters

	q := r.URL.Query()
	if v := q.Get("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			responseutils.WriteError(w, r, http.StatusBadRequest, "user_id must be numeric")
			return
		}
		filters.UserID = &id
	}
	if v := q.Get("cpt_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			responseutils.WriteError(w, r, http.StatusBadRequest, "cpt_id must be numeric")
			return
		}
		filters.CPTID = &id
	}
	if v := q.Get("start_date"); v != "" {
		date, okDate := models.NormalizeDate(v)
		if !okDate {
			responseutils.WriteError(w, r, http.StatusBadRequest, "start_date must be a date")
			return
		}
		filters.StartDate = &date
	}
	if v := q.Get("end_date"); v != "" {
		date, okDate := models.NormalizeDate(v)
		if !okDate {
			responseutils.WriteError(w, r, http.StatusBadRequest, "end_date must be a date")
			return
		}
		filters.EndDate = &date
	}
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.Limit, _ = strconv.Atoi(q.Get("limit"))

	entries, err := a.svc.History(r.Context(), filters)
	if err != nil {
		log.API.Errorf("change log read failed: %s", err.Error())
		responseutils.WriteError(w, r, http.StatusInternalServerError, constants.ServerErrMsg)
		return
	}

	responseutils.WriteSuccess(w, r, entries)
}

func (a *API) Version(w http.ResponseWriter, r *http.Request) {
	responseutils.WriteSuccess(w, r, map[string]string{"version": constants.Version})
}

func (a *API) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if msg, ok := health.NewHealthChecker(a.db).IsDatabaseOK(); !ok {
		responseutils.WriteError(w, r, http.StatusServiceUnavailable, msg)
		return
	}
	responseutils.WriteSuccess(w, r, map[string]string{"database": "ok"})
}

// actorFromRequest extracts the acting user from the payload. Older UI builds
// send user_id as a string, so the decode is weakly typed. When the payload
// omits the actor, the authenticated token identity is used.
func actorFromRequest(r *http.Request, body map[string]interface{}) (models.Actor, error) {
	var actor models.Actor

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &actor,
	})
	if err != nil {
		return actor, err
	}

	if err := dec.Decode(map[string]interface{}{
		"user_id":  body["user_id"],
		"username": body["username"],
	}); err != nil {
		return actor, errors.New("user_id and username must identify the acting user")
	}

	if actor.UserID == 0 || actor.Username == "" {
		if ad, ok := auth.GetAuthData(r.Context()); ok {
			actor.UserID = ad.UserID
			actor.Username = ad.Username
		}
	}

	return actor, nil
}

func parseID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		responseutils.WriteError(w, r, http.StatusBadRequest, param+" must be a positive integer")
		return 0, false
	}
	return id, true
}
