package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/medtrack/claims-app/claims/auth"
	"github.com/medtrack/claims-app/claims/constants"
	"github.com/medtrack/claims-app/claims/models"
	"github.com/medtrack/claims-app/claims/responseutils"
	"github.com/medtrack/claims-app/log"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		responseutils.WriteError(w, r, http.StatusBadRequest, constants.InvalidRequestMsg)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		responseutils.WriteError(w, r, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := auth.Authenticate(r.Context(), a.repo, req.Username, req.Password)
	if err != nil {
		log.Auth.WithField("username", req.Username).Infof("login rejected: %s", err.Error())
		responseutils.WriteError(w, r, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token, err := auth.GenerateToken(user)
	if err != nil {
		log.Auth.Errorf("token generation failed: %s", err.Error())
		responseutils.WriteError(w, r, http.StatusInternalServerError, constants.ServerErrMsg)
		return
	}

	log.Auth.WithField("user_id", user.ID).Info("login succeeded")
	responseutils.WriteSuccess(w, r, loginResponse{Token: token, User: user})
}

func (a *API) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.repo.ListUsers(r.Context())
	if err != nil {
		log.API.Errorf("user list failed: %s", err.Error())
		responseutils.WriteError(w, r, http.StatusInternalServerError, constants.ServerErrMsg)
		return
	}
	if users == nil {
		users = []*models.User{}
	}
	responseutils.WriteSuccess(w, r, users)
}

type userRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Password    string `json:"password"`
	Active      *bool  `json:"active"`
}

func (a *API) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		responseutils.WriteError(w, r, http.StatusBadRequest, constants.InvalidRequestMsg)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		responseutils.WriteError(w, r, http.StatusBadRequest, "username and password are required")
		return
	}
	if req.Role == "" {
		req.Role = "staff"
	}

	if existing, err := a.repo.GetUserByUsername(r.Context(), req.Username); err != nil {
		log.API.Errorf("user lookup failed: %s", err.Error())
		responseutils.WriteError(w, r, http.StatusInternalServerError, constants.ServerErrMsg)
		return
	} else if existing != nil {
		responseutils.WriteError(w, r, http.StatusBadRequest, "username is already taken")
		return
	}

	hash, err := auth.NewHash(req.Password)
	if err != nil {
		log.API.Errorf("password hashing failed: %s", err.Error())
		responseutils.WriteError(w, r, http.StatusInternalServerError, constants.ServerErrMsg)
		return
	}

	user := models.User{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		Role:         req.Role,
		PasswordHash: hash.String(),
		Active:       true,
	}
	id, err := a.repo.CreateUser(r.Context(), user)
	if err != nil {
		log.API.Errorf("user creation failed: %s", err.Error())
		responseutils.WriteError(w, r, http.StatusInternalServerError, constants.ServerErrMsg)
		return
	}
	user.ID = id

	log.API.WithField("user_id", user.ID).Info("user created")
	responseutils.WriteSuccess(w, r, user)
}

func (a *API) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseID(w, r, "userID")
	if !ok {
		return
	}

	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		responseutils.WriteError(w, r, http.StatusBadRequest, constants.InvalidRequestMsg)
		return
	}

	fields := make(map[string]interface{})
	if req.DisplayName != "" {
		fields["display_name"] = req.DisplayName
	}
	if req.Role != "" {
		fields["role"] = req.Role
	}
	if req.Active != nil {
		fields["active"] = *req.Active
	}
	if req.Password != "" {
		hash, err := auth.NewHash(req.Password)
		if err != nil {
			log.API.Errorf("password hashing failed: %s", err.Error())
			responseutils.WriteError(w, r, http.StatusInternalServerError, constants.ServerErrMsg)
			return
		}
		fields["password_hash"] = hash.String()
	}
	if len(fields) == 0 {
		responseutils.WriteError(w, r, http.StatusBadRequest, "no updatable fields in request")
		return
	}

	if existing, err := a.repo.GetUserByID(r.Context(), userID); err != nil {
		log.API.Errorf("user lookup failed: %s", err.Error())
		responseutils.WriteError(w, r, http.StatusInternalServerError, constants.ServerErrMsg)
		return
	} else if existing == nil {
		responseutils.WriteError(w, r, http.StatusNotFound, constants.NotFoundMsg)
		return
	}

	if err := a.repo.UpdateUser(r.Context(), userID, fields); err != nil {
		log.API.Errorf("user update failed: %s", err.Error())
		responseutils.WriteError(w, r, http.StatusInternalServerError, constants.ServerErrMsg)
		return
	}

	user, err := a.repo.GetUserByID(r.Context(), userID)
	if err != nil {
		log.API.Errorf("user lookup failed: %s", err.Error())
		responseutils.WriteError(w, r, http.StatusInternalServerError, constants.ServerErrMsg)
		return
	}
	if user == nil {
		responseutils.WriteError(w, r, http.StatusNotFound, constants.NotFoundMsg)
		return
	}

	responseutils.WriteSuccess(w, r, user)
}

func (a *API) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseID(w, r, "userID")
	if !ok {
		return
	}

	user, err := a.repo.GetUserByID(r.Context(), userID)
	if err != nil {
		log.API.Errorf("user lookup failed: %s", err.Error())
		responseutils.WriteError(w, r, http.StatusInternalServerError, constants.ServerErrMsg)
		return
	}
	if user == nil {
		responseutils.WriteError(w, r, http.StatusNotFound, constants.NotFoundMsg)
		return
	}

	if err := a.repo.UpdateUser(r.Context(), userID, map[string]interface{}{"active": false}); err != nil {
		log.API.Errorf("user deactivation failed: %s", err.Error())
		responseutils.WriteError(w, r, http.StatusInternalServerError, constants.ServerErrMsg)
		return
	}
	user.Active = false

	log.API.WithField("user_id", user.ID).Info("user deactivated")
	responseutils.WriteSuccess(w, r, user)
}
