package domain

import "time"

// PersonalAccessToken is a hashed bearer token issued to a back-office user.
// This service only validates tokens; issuance lives in the admin tooling.
type PersonalAccessToken struct {
	ID        int64
	TokenHash string
	UserID    int64
	Abilities string
	ExpiresAt *time.Time
}
