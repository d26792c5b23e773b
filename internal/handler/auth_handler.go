package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"verify-service/internal/service"
)

type AuthHandler struct {
	otpService *service.OTPService
	logger     *zap.Logger
}

func NewAuthHandler(otpService *service.OTPService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		otpService: otpService,
		logger:     logger,
	}
}

type issueOTPRequest struct {
	Type   string `json:"type"`
	Target string `json:"target"`
}

type verifyOTPRequest struct {
	OTPID string `json:"otpId"`
	OTP   string `json:"otp"`
}

// IssueOTP handles POST /auth/otp.
func (h *AuthHandler) IssueOTP(w http.ResponseWriter, r *http.Request) {
	var req issueOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, fmt.Errorf("%w: invalid request body", service.ErrInvalidInput))
		return
	}

	result, err := h.otpService.Issue(r.Context(), req.Type, req.Target)
	if err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// VerifyOTP handles POST /auth/otp/verify.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, fmt.Errorf("%w: invalid request body", service.ErrInvalidInput))
		return
	}

	result, err := h.otpService.Verify(r.Context(), req.OTPID, req.OTP)
	if err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}
