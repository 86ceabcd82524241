package httpserver

import (
	"net/http"

	"github.com/dmitrijs2005/rentdesk/internal/server/models"
)

type registerResponse struct {
	User    *models.User `json:"user"`
	Message string       `json:"message"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	result, err := s.users.Register(r.Context(), req.Email, req.Password, req.Language)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	msg := "registration successful, please check your email to verify your account"
	if result.VerificationResent {
		msg = "this email is registered but not verified, a new verification email has been sent"
	}
	s.logger.Info(r.Context(), "Registered", "email", req.Email, "resent", result.VerificationResent)
	writeJSON(w, r, http.StatusOK, registerResponse{User: result.User, Message: msg})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	token, err := s.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) adminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	token, err := s.users.AdminLogin(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if _, err := s.users.VerifyEmail(r.Context(), req.Token); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, message{Message: "email verified successfully"})
}

func (s *Server) resendVerification(w http.ResponseWriter, r *http.Request) {
	var req resendVerificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if err := s.users.ResendVerification(r.Context(), req.Email); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, message{Message: "verification email sent"})
}
