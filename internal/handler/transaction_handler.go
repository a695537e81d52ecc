package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/riteshkumar/bank-ledger/internal/models"
	"github.com/riteshkumar/bank-ledger/internal/service"
	u "github.com/riteshkumar/bank-ledger/internal/utils"
)

type TransactionHandler struct {
	transactionService service.TransactionService
	limiter            RateLimiter
	logger             *slog.Logger
}

// NewTransactionHandler builds the handler. A nil limiter disables rate
// limiting of transfers.
func NewTransactionHandler(transactionService service.TransactionService, limiter RateLimiter, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		limiter:            limiter,
		logger:             logger,
	}
}

func (h *TransactionHandler) RegisterRoutes(router *mux.Router) {
	create := RateLimitMiddleware(h.limiter, h.logger)(http.HandlerFunc(h.CreateTransaction))
	router.Handle("/transactions", create).Methods(http.MethodPost)
	router.HandleFunc("/transactions", h.ListTransactions).Methods(http.MethodGet)
	router.HandleFunc("/transactions/{id}", h.GetTransaction).Methods(http.MethodGet)
	router.HandleFunc("/accounts/{id}/transactions", h.ListAccountTransactions).Methods(http.MethodGet)
	router.HandleFunc("/transactions/{id}", h.DeleteTransaction).Methods(http.MethodDelete)
}

func (h *TransactionHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTransactionRequest
	if err := u.DecodeJSON(w, r, &req); err != nil {
		handleDecodeError(w, h.logger, err, "create transaction")
		return
	}
	if key := r.Header.Get("Idempotency-Key"); key != "" && req.IdempotencyKey == "" {
		req.IdempotencyKey = key
	}

	transaction, err := h.transactionService.Transfer(r.Context(), ActorFromContext(r.Context()), &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "create transaction")
		return
	}

	u.WriteJSON(w, http.StatusCreated, models.NewTransactionResponse(transaction))
}

func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	transaction, err := h.transactionService.GetTransaction(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		handleServiceError(w, h.logger, err, "get transaction")
		return
	}

	u.WriteJSON(w, http.StatusOK, models.NewTransactionResponse(transaction))
}

// ListTransactions returns the transactions matching any of ?initializer_id,
// ?account_id and ?client_id.
func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := models.TransactionFilter{
		InitializerID: query.Get("initializer_id"),
		AccountID:     query.Get("account_id"),
		ClientID:      query.Get("client_id"),
	}

	h.listTransactions(w, r, filter)
}

// ListAccountTransactions returns the transactions the account is a party to.
func (h *TransactionHandler) ListAccountTransactions(w http.ResponseWriter, r *http.Request) {
	h.listTransactions(w, r, models.TransactionFilter{AccountID: mux.Vars(r)["id"]})
}

func (h *TransactionHandler) listTransactions(w http.ResponseWriter, r *http.Request, filter models.TransactionFilter) {
	transactions, err := h.transactionService.ListTransactions(r.Context(), filter)
	if err != nil {
		handleServiceError(w, h.logger, err, "list transactions")
		return
	}

	response := make([]models.TransactionResponse, 0, len(transactions))
	for _, transaction := range transactions {
		response = append(response, models.NewTransactionResponse(transaction))
	}
	u.WriteJSON(w, http.StatusOK, response)
}

func (h *TransactionHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := h.transactionService.DeleteTransaction(r.Context(), ActorFromContext(r.Context()), mux.Vars(r)["id"]); err != nil {
		handleServiceError(w, h.logger, err, "delete transaction")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
