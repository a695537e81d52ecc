package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/riteshkumar/bank-ledger/internal/models"
	"github.com/riteshkumar/bank-ledger/internal/service"
	u "github.com/riteshkumar/bank-ledger/internal/utils"
)

type ClientHandler struct {
	clientService service.ClientService
	logger        *slog.Logger
}

func NewClientHandler(clientService service.ClientService, logger *slog.Logger) *ClientHandler {
	return &ClientHandler{
		clientService: clientService,
		logger:        logger,
	}
}

func (h *ClientHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/clients", h.CreateClient).Methods(http.MethodPost)
	router.HandleFunc("/clients", h.ListClients).Methods(http.MethodGet)
	router.HandleFunc("/banks/{id}/clients", h.ListBankClients).Methods(http.MethodGet)
	router.HandleFunc("/clients/{id}", h.GetClient).Methods(http.MethodGet)
	router.HandleFunc("/clients/{id}", h.UpdateClient).Methods(http.MethodPut)
	router.HandleFunc("/clients/{id}", h.DeleteClient).Methods(http.MethodDelete)
}

func (h *ClientHandler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req models.CreateClientRequest
	if err := u.DecodeJSON(w, r, &req); err != nil {
		handleDecodeError(w, h.logger, err, "create client")
		return
	}

	client, err := h.clientService.CreateClient(r.Context(), ActorFromContext(r.Context()), &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "create client")
		return
	}

	u.WriteJSON(w, http.StatusCreated, models.NewClientResponse(client))
}

func (h *ClientHandler) GetClient(w http.ResponseWriter, r *http.Request) {
	client, err := h.clientService.GetClient(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		handleServiceError(w, h.logger, err, "get client")
		return
	}

	u.WriteJSON(w, http.StatusOK, models.NewClientResponse(client))
}

func (h *ClientHandler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.clientService.ListClients(r.Context(), r.URL.Query().Get("bank_id"))
	if err != nil {
		handleServiceError(w, h.logger, err, "list clients")
		return
	}
	h.writeClients(w, clients)
}

// ListBankClients returns the clients holding at least one account at the bank.
func (h *ClientHandler) ListBankClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.clientService.ListClients(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		handleServiceError(w, h.logger, err, "list bank clients")
		return
	}
	h.writeClients(w, clients)
}

func (h *ClientHandler) writeClients(w http.ResponseWriter, clients []*models.Client) {
	response := make([]models.ClientResponse, 0, len(clients))
	for _, client := range clients {
		response = append(response, models.NewClientResponse(client))
	}
	u.WriteJSON(w, http.StatusOK, response)
}

func (h *ClientHandler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateClientRequest
	if err := u.DecodeJSON(w, r, &req); err != nil {
		handleDecodeError(w, h.logger, err, "update client")
		return
	}

	client, err := h.clientService.UpdateClient(r.Context(), ActorFromContext(r.Context()), mux.Vars(r)["id"], &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "update client")
		return
	}

	u.WriteJSON(w, http.StatusOK, models.NewClientResponse(client))
}

func (h *ClientHandler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	if err := h.clientService.DeleteClient(r.Context(), ActorFromContext(r.Context()), mux.Vars(r)["id"]); err != nil {
		handleServiceError(w, h.logger, err, "delete client")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
