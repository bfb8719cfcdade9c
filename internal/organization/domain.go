package organization

import "time"

// Organization is a participating party and the unit of encryption
// targeting: its public key is what task inputs get sealed to. The key is
// uploaded by the organization's node and may rotate at any time, which is
// why the relay re-fetches it on every task.
type Organization struct {
	ID        int64
	Name      string
	Address   string
	Domain    string
	PublicKey string
	CreatedAt time.Time
	UpdatedAt time.Time
}
