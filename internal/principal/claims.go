package principal

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT payload shared by all three credential kinds. The
// subject holds the persisted identity id for users and nodes; container
// credentials instead carry their full identity in the extra claims, since
// containers have no persisted record to look up.
type Claims struct {
	Kind           string `json:"kind"`
	OrganizationID int64  `json:"organization_id,omitempty"`
	NodeID         int64  `json:"node_id,omitempty"`
	TaskID         int64  `json:"task_id,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs and verifies HS256 credentials.
type Codec struct {
	secret []byte
	ttl    time.Duration
}

// NewCodec constructs a Codec. The secret must be non-empty; ttl bounds the
// lifetime of every credential it signs.
func NewCodec(secret string, ttl time.Duration) (*Codec, error) {
	if secret == "" {
		return nil, fmt.Errorf("principal: token secret must not be empty")
	}
	return &Codec{secret: []byte(secret), ttl: ttl}, nil
}

// Sign mints a credential for the given claims, filling in the registered
// temporal claims.
func (c *Codec) Sign(claims Claims, jti string) (string, error) {
	now := time.Now()
	claims.RegisteredClaims.ID = jti
	claims.RegisteredClaims.IssuedAt = jwt.NewNumericDate(now)
	claims.RegisteredClaims.ExpiresAt = jwt.NewNumericDate(now.Add(c.ttl))
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Parse verifies the credential signature and temporal claims and returns
// the decoded claims. Any failure is reported as ErrInvalidCredential.
func (c *Codec) Parse(raw string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	return &claims, nil
}

// SubjectID parses the subject claim as an identity id.
func (c *Claims) SubjectID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: non-numeric subject %q", ErrInvalidCredential, c.Subject)
	}
	return id, nil
}
