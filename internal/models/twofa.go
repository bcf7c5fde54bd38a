package models

import "time"

// TwoFAStatus mirrors the authoritative two-factor enrollment state. It is
// refreshed after every successful verify.
type TwoFAStatus struct {
	Enabled   bool
	RotatedAt *time.Time
}

// RotationAttempt is the transient secret/QR pair that exists between a
// setup or rotate request and its verification. It is never persisted; a
// fresh request replaces it, implicitly superseding the previous secret.
type RotationAttempt struct {
	Secret    string
	QRDataURL string
	Pending   bool
}

// RecoveryCodeSet is a write-once-display-once set of one-time fallback
// codes. The issuing call is the only place the codes ever exist on the
// client; issuing a new set invalidates the previous one server-side.
type RecoveryCodeSet struct {
	Codes []string
}
