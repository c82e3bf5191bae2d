// internal/handlers/ws_codes.go
package handlers

// Close codes sent when a veto stream is refused or torn down. They sit in the 3000-3999
// range registered for applications; 3002 is unassigned.
const (
	BadSubprotocolError   = 3000 // Client connected with an unsupported subprotocol.
	InvalidAuthTokenError = 3001 // Provided auth token was invalid or expired.
	InvalidMatchIDError   = 3003 // Target match in the WS URL does not exist.
	StreamUnavailable     = 3004 // Notifications for the match could not be subscribed to.
)
