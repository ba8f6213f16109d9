package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"collegovibe/internal/chat/service"
	"collegovibe/internal/common"
)

type MessageHandlers struct {
	relay service.ChatService
	users Users
}

func NewMessageHandlers(relay service.ChatService, users Users) *MessageHandlers {
	return &MessageHandlers{relay: relay, users: users}
}

func (h *MessageHandlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/messages/{handle}", h.History).Methods(http.MethodGet)
	r.HandleFunc("/messages/{handle}", h.Send).Methods(http.MethodPost)
}

type sendRequest struct {
	Text string `json:"text"`
}

// History returns the conversation between the caller and {handle}, oldest first.
func (h *MessageHandlers) History(w http.ResponseWriter, r *http.Request) {
	me, err := callerHandle(r.Context(), h.users)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	messages, err := h.relay.GetHistory(r.Context(), me, mux.Vars(r)["handle"])
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, messages)
}

func (h *MessageHandlers) Send(w http.ResponseWriter, r *http.Request) {
	me, err := callerHandle(r.Context(), h.users)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteErr(w, common.Validationf("invalid request body"))
		return
	}
	msg, err := h.relay.Send(r.Context(), me, mux.Vars(r)["handle"], req.Text)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	common.WriteJSON(w, http.StatusCreated, msg)
}
