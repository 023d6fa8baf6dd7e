package handler

import (
	"errors"
	"net/http"

	"github.com/Nzyazin/settlement/internal/core/logger"
	"github.com/Nzyazin/settlement/internal/core/models"
	"github.com/Nzyazin/settlement/internal/core/usecase"
	"github.com/gorilla/mux"
)

type PurchaseHandler struct {
	usecase usecase.SettlementUsecase
	log     logger.Logger
}

func NewPurchaseHandler(usecase usecase.SettlementUsecase, log logger.Logger) *PurchaseHandler {
	return &PurchaseHandler{usecase: usecase, log: log}
}

func (h *PurchaseHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/purchases", h.SettlePurchase).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/purchases", h.ListPurchases).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/purchases/{purchase_id}/distributions", h.ListDistributions).Methods(http.MethodGet)
}

func (h *PurchaseHandler) SettlePurchase(w http.ResponseWriter, r *http.Request) {
	var req models.PurchaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log.Warn("Failed to decode request body", logger.ErrorField("error", err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	settlement, err := h.usecase.SettlePurchase(r.Context(), req)
	if err != nil {
		// A payee without a wallet is our misconfiguration, not the buyer's.
		if errors.Is(err, usecase.ErrWalletNotFound) {
			h.log.Error("Settlement aborted", logger.ErrorField("error", err))
			respondWithError(w, http.StatusInternalServerError, "settlement configuration error")
			return
		}
		respondWithUsecaseError(w, h.log, "Failed to settle purchase", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, Response{Data: settlement})
}

func (h *PurchaseHandler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	buyerID, err := queryUUID(r, "buyer_user_id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	purchases, err := h.usecase.ListPurchasesByBuyer(r.Context(), buyerID)
	if err != nil {
		respondWithUsecaseError(w, h.log, "Failed to list purchases", err)
		return
	}
	respondWithJSON(w, http.StatusOK, Response{Data: purchases})
}

func (h *PurchaseHandler) ListDistributions(w http.ResponseWriter, r *http.Request) {
	purchaseID, err := pathUUID(r, "purchase_id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	distributions, err := h.usecase.ListDistributions(r.Context(), purchaseID)
	if err != nil {
		respondWithUsecaseError(w, h.log, "Failed to list distributions", err)
		return
	}
	respondWithJSON(w, http.StatusOK, Response{Data: distributions})
}
