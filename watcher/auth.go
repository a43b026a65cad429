// Copyright 2025 Dynamous Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// serviceCredentials is the JSON shape of a service credential blob.
type serviceCredentials struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	TokenURL     string   `json:"token_url"`
	Scopes       []string `json:"scopes"`
}

// NewAuthenticatedClient builds the OAuth2 HTTP client for the drive API.
//
// Service credentials take precedence: when credentialsJSON is non-empty
// it must hold a client-credentials blob and tokens are fetched and
// refreshed automatically. Otherwise tokenFile must point to a stored
// oauth2.Token JSON from an earlier interactive authorization. Both paths
// yield the same client contract.
func NewAuthenticatedClient(ctx context.Context, credentialsJSON, tokenFile string) (*http.Client, error) {
	if credentialsJSON != "" {
		return serviceClient(ctx, []byte(credentialsJSON))
	}
	if tokenFile != "" {
		return tokenFileClient(ctx, tokenFile)
	}
	return nil, fmt.Errorf("drive auth: service credentials or token file required")
}

func serviceClient(ctx context.Context, blob []byte) (*http.Client, error) {
	var creds serviceCredentials
	if err := json.Unmarshal(blob, &creds); err != nil {
		return nil, fmt.Errorf("drive auth: parse service credentials: %w", err)
	}
	if creds.ClientID == "" || creds.ClientSecret == "" || creds.TokenURL == "" {
		return nil, fmt.Errorf("drive auth: service credentials need client_id, client_secret and token_url")
	}

	cfg := &clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     creds.TokenURL,
		Scopes:       creds.Scopes,
	}
	return cfg.Client(ctx), nil
}

func tokenFileClient(ctx context.Context, path string) (*http.Client, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("drive auth: read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("drive auth: parse token file: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("drive auth: token file has no access token")
	}

	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&token)), nil
}
