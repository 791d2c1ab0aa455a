package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/puffing-runner/internal/apperror"
	"github.com/sakif/puffing-runner/internal/auth"
	"github.com/sakif/puffing-runner/internal/model"
	"github.com/sakif/puffing-runner/internal/repository"
)

const invalidKeyMessage = "invalid API key"

type AuthService struct {
	clients repository.ClientRepository
	tokens  *auth.TokenService
	keys    *auth.KeyService
	logger  *slog.Logger
}

func NewAuthService(
	clients repository.ClientRepository,
	tokens *auth.TokenService,
	keys *auth.KeyService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		clients: clients,
		tokens:  tokens,
		keys:    keys,
		logger:  logger,
	}
}

// TokenResult is what a successful key exchange returns.
type TokenResult struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresAt time.Time `json:"expiresAt"`
	ClientID  string    `json:"clientId"`
}

// CreateClient registers a client and returns its API key. The key is not
// recoverable afterwards.
func (s *AuthService) CreateClient(ctx context.Context, name string) (*model.Client, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, "", apperror.ValidationFailed("name", "client name is required")
	}

	key, err := s.keys.NewKey()
	if err != nil {
		return nil, "", fmt.Errorf("service/auth: minting key: %w", err)
	}

	client := &model.Client{
		ID:         key.ClientID,
		Name:       name,
		SecretHash: key.SecretHash,
	}
	if err := s.clients.Create(ctx, client); err != nil {
		return nil, "", fmt.Errorf("service/auth: creating client: %w", err)
	}

	s.logger.Info("client created",
		slog.String("client_id", client.ID),
		slog.String("name", client.Name),
	)
	return client, key.Plaintext(), nil
}

// IssueToken exchanges an API key for a bearer token. Every key failure
// looks the same to the caller.
func (s *AuthService) IssueToken(ctx context.Context, apiKey string) (*TokenResult, error) {
	clientID, secret, err := auth.SplitKey(apiKey)
	if err != nil {
		return nil, apperror.Unauthorized(invalidKeyMessage)
	}

	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Warn("token requested for unknown client", slog.String("client_id", clientID))
			return nil, apperror.Unauthorized(invalidKeyMessage)
		}
		return nil, fmt.Errorf("service/auth: fetching client %s: %w", clientID, err)
	}

	if err := s.keys.Verify(client.SecretHash, secret); err != nil {
		if errors.Is(err, auth.ErrInvalidKey) {
			s.logger.Warn("token requested with wrong secret", slog.String("client_id", clientID))
			return nil, apperror.Unauthorized(invalidKeyMessage)
		}
		return nil, fmt.Errorf("service/auth: verifying key: %w", err)
	}

	token, err := s.tokens.Generate(client.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for client %s: %w", client.ID, err)
	}

	s.logger.Info("token issued", slog.String("client_id", client.ID))
	return &TokenResult{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: time.Now().Add(s.tokens.TTL()).UTC(),
		ClientID:  client.ID,
	}, nil
}
