package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Supabase authenticates against a Supabase (GoTrue) password grant.
type Supabase struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// NewSupabase creates a gateway with a short request timeout.
func NewSupabase(baseURL, apiKey string) *Supabase {
	return &Supabase{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

type supabaseUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	AppMetadata  map[string]any `json:"app_metadata"`
}

type supabaseTokenResponse struct {
	AccessToken string       `json:"access_token"`
	User        supabaseUser `json:"user"`
}

// Authenticate exchanges email and password for the provider's user record.
// The role is read from app_metadata, which users cannot edit themselves.
func (s *Supabase) Authenticate(ctx context.Context, email, password string) (Principal, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/auth/v1/token?grant_type=password", bytes.NewReader(body))
	if err != nil {
		return Principal{}, fmt.Errorf("supabase: create request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.APIKey)

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return Principal{}, fmt.Errorf("supabase: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		return Principal{}, fmt.Errorf("supabase: sign-in rejected (%d): %s", resp.StatusCode, string(raw))
	}
	var out supabaseTokenResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Principal{}, fmt.Errorf("supabase: decode response failed: %w", err)
	}
	return principalFromSupabase(out.User), nil
}

func principalFromSupabase(u supabaseUser) Principal {
	role := Role(stringField(u.AppMetadata, "role"))
	if !role.Valid() {
		role = RoleStudent
	}
	p := Principal{
		ID:         u.ID,
		Role:       role,
		Name:       stringField(u.UserMetadata, "name"),
		Email:      u.Email,
		RoomNumber: stringField(u.UserMetadata, "room_number"),
	}
	// user_metadata is writable by the user, so the student reference that
	// scopes complaint access only comes from app_metadata.
	if role == RoleStudent {
		if ref := stringField(u.AppMetadata, "student_id"); ref != "" {
			p.ID = ref
		}
	}
	return p
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
