package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/riteshkumar/bank-ledger/internal/models"
	"github.com/riteshkumar/bank-ledger/internal/service"
	u "github.com/riteshkumar/bank-ledger/internal/utils"
)

type AccountHandler struct {
	accountService service.AccountService
	logger         *slog.Logger
}

func NewAccountHandler(accountService service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		logger:         logger,
	}
}

func (h *AccountHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/accounts", h.CreateAccount).Methods(http.MethodPost)
	router.HandleFunc("/accounts", h.ListAccounts).Methods(http.MethodGet)
	router.HandleFunc("/accounts/{id}", h.GetAccount).Methods(http.MethodGet)
	router.HandleFunc("/accounts/{id}", h.DeleteAccount).Methods(http.MethodDelete)
}

func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAccountRequest
	if err := u.DecodeJSON(w, r, &req); err != nil {
		handleDecodeError(w, h.logger, err, "create account")
		return
	}

	account, err := h.accountService.CreateAccount(r.Context(), ActorFromContext(r.Context()), &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "create account")
		return
	}

	u.WriteJSON(w, http.StatusCreated, models.NewAccountResponse(account))
}

func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	accountID := vars["id"]

	account, err := h.accountService.GetAccount(r.Context(), accountID)
	if err != nil {
		handleServiceError(w, h.logger, err, "get account")
		return
	}

	u.WriteJSON(w, http.StatusOK, models.NewAccountResponse(account))
}

// ListAccounts filters by ?client_id and ?bank_id; both must match when set.
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := models.AccountFilter{
		ClientID: query.Get("client_id"),
		BankID:   query.Get("bank_id"),
	}

	accounts, err := h.accountService.ListAccounts(r.Context(), filter)
	if err != nil {
		handleServiceError(w, h.logger, err, "list accounts")
		return
	}

	response := make([]models.AccountResponse, 0, len(accounts))
	for _, account := range accounts {
		response = append(response, models.NewAccountResponse(account))
	}
	u.WriteJSON(w, http.StatusOK, response)
}

func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.accountService.DeleteAccount(r.Context(), ActorFromContext(r.Context()), mux.Vars(r)["id"]); err != nil {
		handleServiceError(w, h.logger, err, "delete account")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
