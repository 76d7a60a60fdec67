package paramstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmAPI is the part of *ssm.Client the token source needs.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// TokenSource reads the bot token from an SSM parameter. The parameter may
// hold the bare token or a JSON object of the form {"token": "..."}.
type TokenSource struct {
	api  ssmAPI
	name string
}

// NewTokenSource creates a TokenSource for the named parameter.
func NewTokenSource(api ssmAPI, name string) (*TokenSource, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("paramstore: parameter name is required")
	}
	return &TokenSource{api: api, name: name}, nil
}

// Token fetches and decrypts the parameter.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	out, err := s.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(s.name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", s.name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("paramstore: parameter %q has no value", s.name)
	}
	return parseToken(*out.Parameter.Value)
}

func parseToken(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		var doc struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return "", fmt.Errorf("paramstore: decode token document: %w", err)
		}
		raw = strings.TrimSpace(doc.Token)
	}
	if raw == "" {
		return "", errors.New("paramstore: token is empty")
	}
	return raw, nil
}
