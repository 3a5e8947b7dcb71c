package handler

import (
	"encoding/json"
	"net/http"

	"github.com/craftauth/yggdrasil/internal/domain"
	"github.com/craftauth/yggdrasil/internal/http/response"
	"github.com/craftauth/yggdrasil/internal/observability"
	"github.com/craftauth/yggdrasil/internal/service"
)

// AuthHandler serves the authserver endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type agentInfo struct {
	Name    string `json:"name"`
	Version int    `json:"version"`
}

type profileSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type userView struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Properties []any  `json:"properties"`
}

type authenticateRequest struct {
	Agent       agentInfo `json:"agent"`
	Username    string    `json:"username"`
	Password    string    `json:"password"`
	ClientToken string    `json:"clientToken"`
	RequestUser bool      `json:"requestUser"`
}

type authenticateResponse struct {
	AccessToken       string           `json:"accessToken"`
	ClientToken       string           `json:"clientToken"`
	AvailableProfiles []profileSummary `json:"availableProfiles"`
	SelectedProfile   *profileSummary  `json:"selectedProfile,omitempty"`
	User              *userView        `json:"user,omitempty"`
}

func (h *AuthHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req authenticateRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.auth.Authenticate(r.Context(), req.Username, req.Password, req.ClientToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "authenticate", "user_id", result.User.ID)
	response.JSON(w, r, http.StatusOK, buildAuthResponse(result, req.RequestUser))
}

type refreshRequest struct {
	AccessToken     string          `json:"accessToken"`
	ClientToken     string          `json:"clientToken"`
	RequestUser     bool            `json:"requestUser"`
	SelectedProfile *profileSummary `json:"selectedProfile"`
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}
	var selected *service.ProfileRef
	if req.SelectedProfile != nil {
		selected = &service.ProfileRef{ID: req.SelectedProfile.ID, Name: req.SelectedProfile.Name}
	}
	result, err := h.auth.Refresh(r.Context(), req.AccessToken, req.ClientToken, selected)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, buildAuthResponse(result, req.RequestUser))
}

type validateRequest struct {
	AccessToken string `json:"accessToken"`
	ClientToken string `json:"clientToken"`
}

func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.auth.Validate(r.Context(), req.AccessToken, req.ClientToken); err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.NoContent(w)
}

func (h *AuthHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.auth.Invalidate(r.Context(), req.AccessToken); err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.NoContent(w)
}

type signoutRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	var req signoutRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.auth.Signout(r.Context(), req.Username, req.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "signout", "username", req.Username)
	response.NoContent(w)
}

type registerRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Nickname   string `json:"nickname"`
	VerifyCode string `json:"verifyCode"`
}

type registerResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	user, err := h.auth.Register(r.Context(), req.Email, req.Password, req.Nickname, req.VerifyCode)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "register", "user_id", user.ID)
	nickname := ""
	if user.Nickname != nil {
		nickname = *user.Nickname
	}
	response.JSON(w, r, http.StatusOK, registerResponse{ID: user.ID, Email: user.Email, Nickname: nickname})
}

type verifyRequest struct {
	Email string `json:"email"`
}

func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.auth.RequestVerify(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.NoContent(w)
}

func buildAuthResponse(result *service.AuthResult, requestUser bool) authenticateResponse {
	resp := authenticateResponse{
		AccessToken:       result.AccessToken,
		ClientToken:       result.ClientToken,
		AvailableProfiles: summarize(result.AvailableProfiles),
	}
	if result.SelectedProfile != nil {
		resp.SelectedProfile = &profileSummary{ID: result.SelectedProfile.ID, Name: result.SelectedProfile.Name}
	}
	if requestUser {
		resp.User = &userView{ID: result.User.ID, Username: result.User.Email, Properties: []any{}}
	}
	return resp
}

func summarize(profiles []domain.Profile) []profileSummary {
	out := make([]profileSummary, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, profileSummary{ID: p.ID, Name: p.Name})
	}
	return out
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.IllegalArgument(w, r, "Invalid request body.")
		return false
	}
	return true
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case service.IsIllegalArgument(err):
		response.IllegalArgument(w, r, err.Error())
	case service.IsForbidden(err):
		response.Forbidden(w, r, err.Error())
	default:
		response.Internal(w, r, err)
	}
}
