package domain

// IdentityRecord is the resolved social-graph identity for a player: a FID
// and its associated wallet addresses. It is derived per call, never stored.
type IdentityRecord struct {
	FID       int64    `json:"fid"`
	Addresses []string `json:"addresses"`
}

// PrimaryAddress is the first associated address. Resolution fails upstream
// if the address list is empty, so callers may assume it is non-empty.
func (r IdentityRecord) PrimaryAddress() string {
	return r.Addresses[0]
}
