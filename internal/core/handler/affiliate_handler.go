package handler

import (
	"net/http"

	"github.com/Nzyazin/settlement/internal/core/logger"
	"github.com/Nzyazin/settlement/internal/core/usecase"
	"github.com/gorilla/mux"
)

type AffiliateHandler struct {
	usecase usecase.AffiliateUsecase
	log     logger.Logger
}

func NewAffiliateHandler(usecase usecase.AffiliateUsecase, log logger.Logger) *AffiliateHandler {
	return &AffiliateHandler{usecase: usecase, log: log}
}

func (h *AffiliateHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/affiliates", h.Toggle).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/affiliates", h.List).Methods(http.MethodGet)
}

func (h *AffiliateHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	var req usecase.AffiliateToggle
	if err := decodeJSON(w, r, &req); err != nil {
		h.log.Warn("Failed to decode request body", logger.ErrorField("error", err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	link, created, err := h.usecase.Toggle(r.Context(), req)
	if err != nil {
		respondWithUsecaseError(w, h.log, "Failed to save affiliate link", err)
		return
	}

	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	respondWithJSON(w, code, Response{Data: link})
}

// List returns either one affiliate's links (affiliate_user_id) or the
// active links of a product (product_id).
func (h *AffiliateHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Has("product_id") {
		productID, err := queryUUID(r, "product_id")
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		links, err := h.usecase.ListActiveForProduct(r.Context(), productID)
		if err != nil {
			respondWithUsecaseError(w, h.log, "Failed to list affiliate links", err)
			return
		}
		respondWithJSON(w, http.StatusOK, Response{Data: links})
		return
	}

	userID, err := queryUUID(r, "affiliate_user_id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	links, err := h.usecase.ListByUser(r.Context(), userID)
	if err != nil {
		respondWithUsecaseError(w, h.log, "Failed to list affiliate links", err)
		return
	}
	respondWithJSON(w, http.StatusOK, Response{Data: links})
}
