package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// StoreError is an error reported by the identity store itself, as opposed
// to a transport failure. Its message is what the store returned and is safe
// to surface in caller-facing responses.
type StoreError struct {
	StatusCode int
	Message    string
}

func (e *StoreError) Error() string {
	return e.Message
}

// GoTrueProvider talks to a GoTrue-style identity API (the auth component of
// hosted Supabase) using a service-role key for admin operations.
type GoTrueProvider struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

// NewGoTrueProvider creates a GoTrueProvider for the given base URL and
// service-role key.
func NewGoTrueProvider(baseURL, serviceKey string) *GoTrueProvider {
	return &GoTrueProvider{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type gotrueUser struct {
	ID               string            `json:"id"`
	Email            string            `json:"email"`
	EmailConfirmedAt *time.Time        `json:"email_confirmed_at"`
	UserMetadata     map[string]string `json:"user_metadata"`
	CreatedAt        time.Time         `json:"created_at"`
}

type gotrueError struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
}

func (e *gotrueError) text() string {
	switch {
	case e.Msg != "":
		return e.Msg
	case e.Message != "":
		return e.Message
	case e.ErrorDescription != "":
		return e.ErrorDescription
	}
	return "unknown identity store error"
}

func (p *GoTrueProvider) VerifyToken(ctx context.Context, accessToken string) (*Identity, error) {
	req, err := p.newRequest(ctx, http.MethodGet, "/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var user gotrueUser
	if err := p.do(req, &user); err != nil {
		return nil, err
	}

	if user.ID == "" {
		return nil, errors.New("gotrue: token resolved to no user")
	}

	return toIdentity(&user), nil
}

func (p *GoTrueProvider) CreateUser(ctx context.Context, params CreateUserParams) (*Identity, error) {
	body := map[string]any{
		"email":         params.Email,
		"password":      params.Password,
		"email_confirm": true,
		"user_metadata": map[string]string{
			"full_name": params.FullName,
			"phone":     params.Phone,
		},
	}

	req, err := p.newRequest(ctx, http.MethodPost, "/admin/users", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.serviceKey)

	var user gotrueUser
	if err := p.do(req, &user); err != nil {
		return nil, err
	}

	if user.ID == "" {
		return nil, nil
	}

	return toIdentity(&user), nil
}

func (p *GoTrueProvider) DeleteUser(ctx context.Context, id string) error {
	req, err := p.newRequest(ctx, http.MethodDelete, "/admin/users/"+id, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.serviceKey)

	return p.do(req, nil)
}

func (p *GoTrueProvider) Authenticate(ctx context.Context, email, password string) (*Token, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
	}

	req, err := p.newRequest(ctx, http.MethodPost, "/token?grant_type=password", body)
	if err != nil {
		return nil, err
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := p.do(req, &payload); err != nil {
		return nil, err
	}

	if payload.AccessToken == "" {
		return nil, errors.New("gotrue: empty access token in response")
	}

	return &Token{
		AccessToken: payload.AccessToken,
		TokenType:   payload.TokenType,
		ExpiresIn:   payload.ExpiresIn,
	}, nil
}

func (p *GoTrueProvider) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("gotrue: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("gotrue: new request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", p.serviceKey)

	return req, nil
}

func (p *GoTrueProvider) do(req *http.Request, out any) error {
	res, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gotrue: request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var payload gotrueError
		_ = json.NewDecoder(res.Body).Decode(&payload)
		return &StoreError{StatusCode: res.StatusCode, Message: payload.text()}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("gotrue: decode response: %w", err)
	}

	return nil
}

func toIdentity(user *gotrueUser) *Identity {
	return &Identity{
		ID:             user.ID,
		Email:          user.Email,
		EmailConfirmed: user.EmailConfirmedAt != nil,
		FullName:       user.UserMetadata["full_name"],
		Phone:          user.UserMetadata["phone"],
		CreatedAt:      user.CreatedAt,
	}
}
