package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/claimgate/internal/common"
)

const maxBodyBytes = 1 << 20

// Messages returned by POST /get_otp. Clients match on them.
const (
	msgAlreadyRequested = "You have already requested the OTP"
	msgUserExists       = "A user with the given phone number already exists."
	msgInternal         = "Internal server error"
)

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

var errBadBody = errors.New("malformed request body")

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errBadBody
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errBadBody
	}
	return nil
}

// errorMapping pairs a sentinel with the status and client message it maps to.
// Order matters: more specific sentinels come first.
type errorMapping struct {
	target  error
	status  int
	message string
}

var verifyErrors = []errorMapping{
	{common.ErrorNotFound, http.StatusNotFound, "No OTP was requested for this phone number"},
	{common.ErrorExpired, http.StatusGone, "The OTP has expired"},
	{common.ErrorCodeUsed, http.StatusBadRequest, "The OTP has already been used"},
	{common.ErrorCodeMismatch, http.StatusBadRequest, "The OTP is invalid"},
}

var claimErrors = []errorMapping{
	{common.ErrTokenUsed, http.StatusUnauthorized, "Authorization token already used"},
	{common.ErrInvalidToken, http.StatusUnauthorized, "Invalid authorization token"},
	{common.ErrTokenExpired, http.StatusUnauthorized, "Authorization token expired"},
	{common.ErrorDuplicateSigner, http.StatusBadRequest, "This signer has already signed the claim"},
	{common.ErrorAmountMismatch, http.StatusBadRequest, "Amount does not match the existing claim"},
	{common.ErrorInvalid, http.StatusBadRequest, "Invalid claim"},
	{common.ErrorLimitExceeded, http.StatusUnprocessableEntity, "Amount exceeds the claim limit for this address"},
	{common.ErrorClaimClosed, http.StatusConflict, "Claim is finalized"},
	{common.ErrorNotFound, http.StatusNotFound, "Claim not found"},
	{common.ErrorConflict, http.StatusConflict, "Claim changed concurrently, please retry"},
}

var finalizeErrors = []errorMapping{
	{common.ErrorNotFound, http.StatusNotFound, "Claim not found"},
	{common.ErrorClaimClosed, http.StatusConflict, "Claim is finalized"},
	{common.ErrorConflict, http.StatusConflict, "Claim has not reached the required signatures"},
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, mappings []errorMapping) {
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			writeMessage(w, m.status, m.message)
			return
		}
	}
	h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err.Error())
	writeMessage(w, http.StatusInternalServerError, msgInternal)
}
