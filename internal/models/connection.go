package models

import "time"

// ServerSummary is one entry of the read-only server catalog.
type ServerSummary struct {
	ID        int64
	Name      string
	Country   string
	IPAddress string
	IsActive  bool
}

// Connection is the most recent tunnel record for the current user.
// The local copy is a cache of server truth: it is replaced wholesale on
// every refresh and must never be treated as a lock.
type Connection struct {
	ID             int64
	UserID         int64
	ServerID       int64
	ConnectedAt    time.Time
	DisconnectedAt *time.Time

	// Server is denormalized from the catalog by the coordinator; absent
	// when the catalog has no matching entry.
	Server *ServerSummary
}

// Active reports whether the record describes a tunnel that has not been
// torn down yet. Safe to call on a nil receiver.
func (c *Connection) Active() bool {
	return c != nil && c.DisconnectedAt == nil
}

// ConnectionRecord is one row of the connection history, denormalized by
// the server.
type ConnectionRecord struct {
	ID             int64
	UserID         int64
	ServerID       int64
	ServerName     string
	Country        string
	ConnectedAt    time.Time
	DisconnectedAt *time.Time
}

// TunnelConfig is the exportable tunnel artifact for a server. The client
// hands ConfigText to the user verbatim and never parses it.
type TunnelConfig struct {
	ConfigText  string
	QRDataURL   string
	AllocatedIP string
}
