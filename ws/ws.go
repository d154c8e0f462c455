package ws

import (
	"net/http"

	"example.com/campus-chat/models"
)

type Hub interface {
	Connect(Conn)
	Disconnect(Conn)
	Start()
	// Close closes the hub and releases any resources with time out.
	// It should wait for the clean up to complete or until the time out.
	Close()
	// ServeHTTP handles the HTTP request and upgrades the connection to a websocket connection
	// then adds the connection to the hub.
	ServeHTTP(w http.ResponseWriter, r *http.Request)
	// pass passes a packet to the hub.
	pass(*InPacket)

	OnPacket(func(HubActions, *InPacket))

	OnConnect(func(HubActions, Conn))

	OnDisconnect(func(HubActions, Conn))
}

// HubActions define a collection of actions that a handler can perform on the hub.
// It is used to prevent the handler from directly accessing the hub.
type HubActions interface {
	// BroadcastToClients sends a packet to the connections with the given ids.
	// Unknown ids are skipped silently.
	BroadcastToClients(p *OutPacket, ids ...string)
}

type ConnFactory interface {
	// NewConn creates a new connection from the request and response.
	// If the connection is created successfully, it should return the connection and true.
	// If the connection is not created successfully, it should return nil and false.
	NewConn(w http.ResponseWriter, r *http.Request, hub Hub, id string, identity models.Identity) (Conn, bool)
}

type Conn interface {
	// pass returns a write-only channel that the hub can use to send messages to the client.
	pass() chan<- *OutPacket
	// close initiates the closing of the connection.
	// It should close the connection and release any resources.
	// It should be non-blocking.
	close()
	// ID returns the server-assigned identifier of the connection.
	// It is unique per websocket session.
	ID() string
	// Identity returns the authenticated user identity attached to the connection.
	Identity() models.Identity
	readLoop()
	writeLoop()
}

type Authenticator interface {
	// Authenticate authenticates the request and returns the identity of the client.
	// Authenticate should be safe to be called concurrently.
	Authenticate(w http.ResponseWriter, req *http.Request) (models.Identity, bool)
}
