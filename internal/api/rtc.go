package api

import (
	"net/http"
)

// RTCHandler serves the ICE configuration clients need before opening peer
// connections.
type RTCHandler struct {
	stunServers []string
}

func NewRTCHandler(stunServers []string) *RTCHandler {
	return &RTCHandler{stunServers: stunServers}
}

type ICEServerResponse struct {
	URLs []string `json:"urls"`
}

type RTCConfigResponse struct {
	ICEServers []ICEServerResponse `json:"iceServers"`
}

func (h *RTCHandler) GetConfigHandler(w http.ResponseWriter, r *http.Request) error {
	servers := h.stunServers
	if len(servers) == 0 {
		servers = []string{"stun:stun.l.google.com:19302"}
	}
	return WriteJsonResponse(w, RTCConfigResponse{
		ICEServers: []ICEServerResponse{{URLs: servers}},
	})
}
