package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/Nzyazin/settlement/internal/core/logger"
	"github.com/Nzyazin/settlement/internal/core/repository"
	"github.com/Nzyazin/settlement/internal/core/usecase"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

type Response struct {
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

var amountRegexp = regexp.MustCompile(`^\d{1,13}(\.\d{1,2})?$`)

// amountField accepts an amount sent either as a JSON string or a number.
type amountField string

func (a *amountField) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = amountField(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount must be a string or a number")
	}
	*a = amountField(n.String())
	return nil
}

// parseAmount normalizes "1 000,50" style input and enforces cents.
func parseAmount(raw amountField) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.ReplaceAll(string(raw), " ", ""), ",", ".")

	if !amountRegexp.MatchString(cleaned) {
		return decimal.Zero, fmt.Errorf("invalid amount format: %s", cleaned)
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("could not parse amount: %v", err)
	}

	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("amount must be positive")
	}

	return amount, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request payload")
	}
	return nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

func queryUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.URL.Query().Get(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// statusFor maps a usecase error onto an HTTP status and a client message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, usecase.ErrInsufficientFunds):
		return http.StatusBadRequest, "insufficient funds"
	case usecase.IsClientError(err):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, usecase.ErrWalletNotFound):
		return http.StatusNotFound, "wallet not found"
	case errors.Is(err, repository.ErrProductNotFound):
		return http.StatusNotFound, "product not found"
	case errors.Is(err, usecase.ErrWalletExists):
		return http.StatusConflict, "wallet already exists"
	case errors.Is(err, usecase.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "storage temporarily unavailable, retry the request"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func respondWithUsecaseError(w http.ResponseWriter, log logger.Logger, msg string, err error) {
	code, message := statusFor(err)
	if code >= http.StatusInternalServerError {
		log.Error(msg, logger.ErrorField("error", err))
	} else {
		log.Warn(msg, logger.ErrorField("error", err))
	}
	respondWithError(w, code, message)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, Response{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload Response) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Internal Server Error"}`)) // Fallback response
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
