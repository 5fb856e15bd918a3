package builtins

import (
	"encoding/json"
	"net/http"

	"github.com/arvindjonn09/dharma-mini/api"
	"github.com/arvindjonn09/dharma-mini/pkg/authflow"
)

// maxBodyBytes bounds the size of every JSON request body.
const maxBodyBytes = 1 << 16

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func (h *Handler) handleLoginPost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.LoginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			api.ReturnError(w, h.log, api.BadRequestInvalidJSON)
			return
		}

		res, err := h.flows.SignIn(r.Context(), authflow.SignInRequest{Username: req.Username, Password: req.Password})
		if err != nil {
			h.respondFlowError(w, r, err)
			return
		}
		h.startSession(w, http.StatusOK, res)
	}
}

func (h *Handler) handleAdminLoginPost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.LoginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			api.ReturnError(w, h.log, api.BadRequestInvalidJSON)
			return
		}

		res, err := h.flows.AdminSignIn(r.Context(), req.Username, req.Password)
		if err != nil {
			h.respondFlowError(w, r, err)
			return
		}
		h.startSession(w, http.StatusOK, res)
	}
}

func (h *Handler) handleSignupPost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authflow.SignUpRequest
		if err := decodeJSON(w, r, &req); err != nil {
			api.ReturnError(w, h.log, api.BadRequestInvalidJSON)
			return
		}

		res, err := h.flows.SignUp(r.Context(), req)
		if err != nil {
			h.respondFlowError(w, r, err)
			return
		}
		h.startSession(w, http.StatusCreated, res)
	}
}

func (h *Handler) handleLogoutPost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc := requestContext(r)

		res, err := h.flows.Logout(r.Context(), rc.Token())
		if err != nil {
			h.respondFlowError(w, r, err)
			return
		}
		h.enforcer.ExpireCookie(w)
		api.RespondJSONAndLog(w, h.log, http.StatusOK, api.LogoutResponse{View: res.View})
	}
}

func (h *Handler) handleMeGet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc := requestContext(r)
		api.RespondJSONAndLog(w, h.log, http.StatusOK, api.MeResponse{
			View:          rc.View,
			ExpiryWarning: rc.Warning,
			RequestID:     rc.RequestID,
		})
	}
}
