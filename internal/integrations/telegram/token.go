package telegram

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// TokenProvider supplies the bot token.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a token known up front, e.g. from the environment.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	if strings.TrimSpace(string(t)) == "" {
		return "", errors.New("telegram: static token is empty")
	}
	return string(t), nil
}

// FileToken reads the token from a file holding only the token.
type FileToken string

func (p FileToken) Token(context.Context) (string, error) {
	raw, err := os.ReadFile(string(p))
	if err != nil {
		return "", fmt.Errorf("telegram: read token file: %w", err)
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", fmt.Errorf("telegram: token file %s is empty", string(p))
	}
	return token, nil
}
