package handler

import (
	"context"
	"net/http"

	"github.com/Nzyazin/settlement/internal/core/logger"
	"github.com/Nzyazin/settlement/internal/core/models"
	"github.com/Nzyazin/settlement/internal/core/usecase"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

type WalletHandler struct {
	usecase usecase.WalletUsecase
	log     logger.Logger
}

type openWalletRequest struct {
	UserID uuid.UUID `json:"user_id"`
}

type walletOperationRequest struct {
	Amount      amountField `json:"amount"`
	Description string      `json:"description"`
}

type balanceResponse struct {
	UserID  uuid.UUID `json:"user_id"`
	Balance string    `json:"balance"`
}

type walletOperationFunc func(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, description string) (*models.OperationResult, error)

func NewWalletHandler(usecase usecase.WalletUsecase, log logger.Logger) *WalletHandler {
	return &WalletHandler{usecase: usecase, log: log}
}

func (h *WalletHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/wallets", h.OpenWallet).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/wallets/{user_id}/topup", h.Topup).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/wallets/{user_id}/withdraw", h.Withdraw).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/wallets/{user_id}/balance", h.GetBalance).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/wallets/{user_id}/transactions", h.ListTransactions).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/wallets/{user_id}/reconcile", h.Reconcile).Methods(http.MethodGet)
}

func (h *WalletHandler) OpenWallet(w http.ResponseWriter, r *http.Request) {
	var req openWalletRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log.Warn("Failed to decode request body", logger.ErrorField("error", err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	wallet, err := h.usecase.OpenWallet(r.Context(), req.UserID)
	if err != nil {
		respondWithUsecaseError(w, h.log, "Failed to open wallet", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, Response{Data: wallet})
}

func (h *WalletHandler) Topup(w http.ResponseWriter, r *http.Request) {
	h.processOperation(w, r, h.usecase.Topup)
}

func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.processOperation(w, r, h.usecase.Withdraw)
}

func (h *WalletHandler) processOperation(w http.ResponseWriter, r *http.Request, operate walletOperationFunc) {
	userID, err := pathUUID(r, "user_id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req walletOperationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log.Warn("Failed to decode request body", logger.ErrorField("error", err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.log.Warn("Invalid amount", logger.StringField("amount", string(req.Amount)), logger.ErrorField("error", err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := operate(r.Context(), userID, amount, req.Description)
	if err != nil {
		respondWithUsecaseError(w, h.log, "Failed to process operation", err)
		return
	}

	h.log.Info("Wallet operation successful",
		logger.StringField("user_id", userID.String()),
		logger.StringField("kind", string(result.Transaction.Kind)),
		logger.StringField("amount", amount.String()),
		logger.StringField("new_balance", result.Balance.StringFixed(2)),
	)
	respondWithJSON(w, http.StatusCreated, Response{Data: result})
}

func (h *WalletHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "user_id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	balance, err := h.usecase.GetBalance(r.Context(), userID)
	if err != nil {
		respondWithUsecaseError(w, h.log, "Failed to get balance", err)
		return
	}
	respondWithJSON(w, http.StatusOK, Response{Data: balanceResponse{
		UserID:  userID,
		Balance: balance.StringFixed(2),
	}})
}

func (h *WalletHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "user_id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.usecase.ListTransactions(r.Context(), userID)
	if err != nil {
		respondWithUsecaseError(w, h.log, "Failed to list transactions", err)
		return
	}
	respondWithJSON(w, http.StatusOK, Response{Data: entries})
}

func (h *WalletHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "user_id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.usecase.Reconcile(r.Context(), userID)
	if err != nil {
		respondWithUsecaseError(w, h.log, "Failed to reconcile wallet", err)
		return
	}
	respondWithJSON(w, http.StatusOK, Response{Data: rec})
}
