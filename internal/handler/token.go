package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/puffing-runner/internal/service"
)

type TokenIssuer interface {
	IssueToken(ctx context.Context, apiKey string) (*service.TokenResult, error)
}

type TokenHandler struct {
	issuer TokenIssuer
	logger *slog.Logger
}

func NewTokenHandler(issuer TokenIssuer, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{issuer: issuer, logger: logger}
}

type tokenRequest struct {
	APIKey string `json:"api_key"`
}

// HandleToken serves POST /api/token. The key may arrive as an X-API-Key
// header or in the JSON body.
func (h *TokenHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.Header.Get("X-API-Key"))
	if key == "" {
		var req tokenRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		key = req.APIKey
	}

	res, err := h.issuer.IssueToken(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, res)
}
