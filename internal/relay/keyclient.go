package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/consortia/consortia/internal/platform/httpx"
)

// KeyClient resolves an organization's public key from the coordinator.
// Results are never cached: key rotation must take effect on the very next
// task, so every invocation re-fetches.
type KeyClient interface {
	PublicKeyOf(ctx context.Context, organizationID int64, authorization string) (string, error)
}

// HTTPKeyClient implements KeyClient against the coordinator's
// GET /organization/{id} endpoint, using the caller's credential.
type HTTPKeyClient struct {
	BaseURL string
	Client  *http.Client
}

// PublicKeyOf fetches the organization's public key. Every failure mode
// (network, timeout, unknown organization, malformed body, empty key) is a
// lookup error that must abort the enclosing task forward.
func (c *HTTPKeyClient) PublicKeyOf(ctx context.Context, organizationID int64, authorization string) (string, error) {
	url := fmt.Sprintf("%s/organization/%d", c.BaseURL, organizationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: building key request: %v", httpx.ErrLookup, err)
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: fetching key of organization %d: %v", httpx.ErrLookup, organizationID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: organization %d key endpoint returned %d", httpx.ErrLookup, organizationID, resp.StatusCode)
	}
	var body struct {
		PublicKey string `json:"public_key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: decoding key of organization %d: %v", httpx.ErrLookup, organizationID, err)
	}
	if body.PublicKey == "" {
		return "", fmt.Errorf("%w: organization %d has no public key", httpx.ErrLookup, organizationID)
	}
	return body.PublicKey, nil
}

var _ KeyClient = (*HTTPKeyClient)(nil)
