package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/riteshkumar/bank-ledger/internal/models"
	"github.com/riteshkumar/bank-ledger/internal/service"
	u "github.com/riteshkumar/bank-ledger/internal/utils"
)

type BankHandler struct {
	bankService service.BankService
	logger      *slog.Logger
}

func NewBankHandler(bankService service.BankService, logger *slog.Logger) *BankHandler {
	return &BankHandler{
		bankService: bankService,
		logger:      logger,
	}
}

func (h *BankHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/banks", h.CreateBank).Methods(http.MethodPost)
	router.HandleFunc("/banks", h.ListBanks).Methods(http.MethodGet)
	router.HandleFunc("/banks/{id}", h.GetBank).Methods(http.MethodGet)
	router.HandleFunc("/banks/{id}", h.UpdateBank).Methods(http.MethodPut)
	router.HandleFunc("/banks/{id}", h.DeleteBank).Methods(http.MethodDelete)
}

func (h *BankHandler) CreateBank(w http.ResponseWriter, r *http.Request) {
	var req models.CreateBankRequest
	if err := u.DecodeJSON(w, r, &req); err != nil {
		handleDecodeError(w, h.logger, err, "create bank")
		return
	}

	bank, err := h.bankService.CreateBank(r.Context(), ActorFromContext(r.Context()), &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "create bank")
		return
	}

	u.WriteJSON(w, http.StatusCreated, models.NewBankResponse(bank))
}

func (h *BankHandler) GetBank(w http.ResponseWriter, r *http.Request) {
	bank, err := h.bankService.GetBank(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		handleServiceError(w, h.logger, err, "get bank")
		return
	}

	u.WriteJSON(w, http.StatusOK, models.NewBankResponse(bank))
}

// ListBanks returns every bank, or only the banks of ?client_id.
func (h *BankHandler) ListBanks(w http.ResponseWriter, r *http.Request) {
	banks, err := h.bankService.ListBanks(r.Context(), r.URL.Query().Get("client_id"))
	if err != nil {
		handleServiceError(w, h.logger, err, "list banks")
		return
	}

	response := make([]models.BankResponse, 0, len(banks))
	for _, bank := range banks {
		response = append(response, models.NewBankResponse(bank))
	}
	u.WriteJSON(w, http.StatusOK, response)
}

func (h *BankHandler) UpdateBank(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateBankRequest
	if err := u.DecodeJSON(w, r, &req); err != nil {
		handleDecodeError(w, h.logger, err, "update bank")
		return
	}

	bank, err := h.bankService.UpdateBank(r.Context(), ActorFromContext(r.Context()), mux.Vars(r)["id"], &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "update bank")
		return
	}

	u.WriteJSON(w, http.StatusOK, models.NewBankResponse(bank))
}

func (h *BankHandler) DeleteBank(w http.ResponseWriter, r *http.Request) {
	if err := h.bankService.DeleteBank(r.Context(), ActorFromContext(r.Context()), mux.Vars(r)["id"]); err != nil {
		handleServiceError(w, h.logger, err, "delete bank")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
