package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultAPIURL is the provider's backend API.
const DefaultAPIURL = "https://api.clerk.com"

// MetadataUpdater writes public metadata onto a provider user. The
// reconciliation service uses it to store the local user id on the
// provider side after a user is created.
type MetadataUpdater interface {
	UpdatePublicMetadata(ctx context.Context, externalID string, metadata map[string]any) error
}

// ClerkClient calls the provider's backend API, authenticated with the
// secret key as a bearer token.
type ClerkClient struct {
	baseURL string
	http    *http.Client
}

var _ MetadataUpdater = (*ClerkClient)(nil)

// NewClerkClient returns a client for baseURL (DefaultAPIURL when empty).
func NewClerkClient(baseURL, secretKey string, timeout time.Duration) (*ClerkClient, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("identity: secret key is required")
	}
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}

	// oauth2.StaticTokenSource attaches "Authorization: Bearer <key>" to
	// every request; the key never expires so no refresh happens.
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: secretKey, TokenType: "Bearer"})
	client := oauth2.NewClient(context.Background(), src)
	client.Timeout = timeout

	return &ClerkClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    client,
	}, nil
}

// UpdatePublicMetadata merges metadata into the user's public_metadata.
func (c *ClerkClient) UpdatePublicMetadata(ctx context.Context, externalID string, metadata map[string]any) error {
	body, err := json.Marshal(map[string]any{"public_metadata": metadata})
	if err != nil {
		return fmt.Errorf("identity: encoding metadata: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/users/%s/metadata", c.baseURL, url.PathEscape(externalID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("identity: building metadata request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("identity: updating metadata of %s: %w", externalID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("identity: metadata update of %s returned status %d: %s",
			externalID, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}

// NoopMetadata is used when no provider secret key is configured.
type NoopMetadata struct{}

func (NoopMetadata) UpdatePublicMetadata(context.Context, string, map[string]any) error {
	return nil
}
