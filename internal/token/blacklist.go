package token

// BlacklistEntry marks a revoked token id. Entries live only until the
// token's own expiry, after which the expired check makes them redundant.
type BlacklistEntry struct {
	JTI       string `redis:"jti"`
	RevokedAt int64  `redis:"revoked_at"`
	Reason    string `redis:"reason"`
}
