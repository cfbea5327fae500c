package httpapi

import (
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/dmitrijs2005/claimgate/internal/common"
	"github.com/dmitrijs2005/claimgate/internal/server/models"
	"github.com/dmitrijs2005/claimgate/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

var (
	phoneRe    = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
	nicknameRe = regexp.MustCompile(`^[A-Za-z]{1,20}$`)
)

type getOTPRequest struct {
	PhoneNumber string `json:"phone_number"`
	Nickname    string `json:"nickname"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type verifyOTPRequest struct {
	PhoneNumber string `json:"phone_number"`
	Code        string `json:"code"`
}

type verifyOTPResponse struct {
	OK    bool   `json:"ok"`
	Token string `json:"token"`
}

type submitClaimRequest struct {
	Address   string           `json:"address"`
	Nonce     *int64           `json:"nonce"`
	Amount    *decimal.Decimal `json:"amount"`
	Signature string           `json:"signature"`
}

type claimView struct {
	ID         string    `json:"id"`
	Address    string    `json:"address"`
	Nonce      int64     `json:"nonce"`
	Amount     string    `json:"amount"`
	Signatures []string  `json:"signatures"`
	Signers    []string  `json:"signers"`
	Required   int       `json:"required"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type submitClaimResponse struct {
	Status string    `json:"status"`
	Claim  claimView `json:"claim"`
}

func newClaimView(c *models.Claim) claimView {
	return claimView{
		ID:         c.ID,
		Address:    c.Address,
		Nonce:      c.Nonce,
		Amount:     c.Amount.String(),
		Signatures: c.Signatures,
		Signers:    c.Signers,
		Required:   c.Required,
		Status:     string(c.Status),
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetOTP handles POST /get_otp.
func (h *Handler) GetOTP(w http.ResponseWriter, r *http.Request) {
	var req getOTPRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Malformed request body")
		return
	}
	if !phoneRe.MatchString(req.PhoneNumber) {
		writeMessage(w, http.StatusBadRequest, "phone_number must be in E.164 format")
		return
	}
	if !nicknameRe.MatchString(req.Nickname) {
		writeMessage(w, http.StatusBadRequest, "nickname must be 1 to 20 letters")
		return
	}

	err := h.otps.RequestOTP(r.Context(), req.PhoneNumber, req.Nickname)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, okResponse{OK: true})
	case errors.Is(err, common.ErrorRateLimited):
		writeMessage(w, http.StatusBadRequest, msgAlreadyRequested)
	case errors.Is(err, common.ErrorConflict):
		writeMessage(w, http.StatusConflict, msgUserExists)
	default:
		// delivery failures land here too; the client only learns it failed
		h.logger.Error(r.Context(), "otp request failed", "phone_number", req.PhoneNumber, "error", err.Error())
		writeMessage(w, http.StatusInternalServerError, msgInternal)
	}
}

// VerifyOTP handles POST /verify_otp.
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Malformed request body")
		return
	}
	if !phoneRe.MatchString(req.PhoneNumber) {
		writeMessage(w, http.StatusBadRequest, "phone_number must be in E.164 format")
		return
	}
	if req.Code == "" {
		writeMessage(w, http.StatusBadRequest, "code is required")
		return
	}

	token, err := h.otps.VerifyOTP(r.Context(), req.PhoneNumber, req.Code)
	if err != nil {
		h.writeError(w, r, err, verifyErrors)
		return
	}
	writeJSON(w, http.StatusOK, verifyOTPResponse{OK: true, Token: token})
}

// SubmitClaim handles POST /claims.
func (h *Handler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Invalid authorization token")
		return
	}

	var req submitClaimRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Malformed request body")
		return
	}
	if req.Address == "" || req.Nonce == nil || req.Amount == nil || req.Signature == "" {
		writeMessage(w, http.StatusBadRequest, "address, nonce, amount and signature are required")
		return
	}

	claim, outcome, err := h.claims.SubmitClaim(r.Context(), p.PhoneNumber, p.TokenID, services.ClaimRequest{
		Address:   req.Address,
		Nonce:     *req.Nonce,
		Amount:    *req.Amount,
		Signature: req.Signature,
	})
	if err != nil {
		h.writeError(w, r, err, claimErrors)
		return
	}

	status := http.StatusOK
	if outcome == services.Accepted {
		status = http.StatusCreated
	}
	writeJSON(w, status, submitClaimResponse{Status: string(outcome), Claim: newClaimView(claim)})
}

// GetClaim handles GET /claims/{id}.
func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	claim, err := h.claims.GetClaim(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err, claimErrors)
		return
	}
	writeJSON(w, http.StatusOK, newClaimView(claim))
}

// FinalizeClaim handles POST /claims/{id}/finalize.
func (h *Handler) FinalizeClaim(w http.ResponseWriter, r *http.Request) {
	claim, err := h.claims.FinalizeClaim(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err, finalizeErrors)
		return
	}
	writeJSON(w, http.StatusOK, newClaimView(claim))
}
