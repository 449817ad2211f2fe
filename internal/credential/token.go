package credential

import "time"

// MaxTokenLifetime is the longest lifetime a bearer token may be issued with.
const MaxTokenLifetime = 24 * time.Hour

// BearerToken is a signed, short-lived credential. It is replaced wholesale
// on refresh and never mutated.
type BearerToken struct {
	IssuedAt  time.Time
	ExpiresAt time.Time

	// Signature is the compact JWS serialisation handed to the broker.
	Signature string
}

// UsableAt reports whether the token may still be presented at now,
// keeping driftMargin in reserve for clock skew.
func (t BearerToken) UsableAt(now time.Time, driftMargin time.Duration) bool {
	if t.Signature == "" {
		return false
	}
	return now.Before(t.ExpiresAt.Add(-driftMargin))
}

// Lifetime returns expiresAt - issuedAt.
func (t BearerToken) Lifetime() time.Duration {
	return t.ExpiresAt.Sub(t.IssuedAt)
}
