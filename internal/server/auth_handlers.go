package server

import (
	"encoding/json"
	"io"
	"net/http"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sendOTPRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type verifyOTPRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	OTP      string `json:"otp"`
}

type otpResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.limits.Register, "too many signup attempts") {
		return
	}
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.app.Register(req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.limits.Login, "too many login attempts") {
		return
	}
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSendOTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.limits.SendOTP, "too many code requests") {
		return
	}
	var req sendOTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.app.SendAdminCode(r.Context(), req.Email, req.Name); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, otpResponse{Success: true, Message: "OTP sent to the approver"})
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.limits.VerifyOTP, "too many verification attempts") {
		return
	}
	var req verifyOTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.app.VerifyAdminCode(req.Name, req.Email, req.Password, req.OTP)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, otpResponse{Success: true, Message: "Admin account created", Token: res.Token})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
