package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/jjant/topmeals-frontend/models"
	"github.com/jjant/topmeals-frontend/session"
)

// UserService covers authentication, settings and profile endpoints.
// Every operation returning a Viewer hands the raw payload to the session
// codec, so credentials are only ever minted there.
type UserService struct {
	client *Client
}

func NewUserService(c *Client) *UserService {
	return &UserService{client: c}
}

// UserUpdate carries the optional settings fields for PUT /user. Nil
// fields are left untouched by the server.
type UserUpdate struct {
	Username         *string `json:"username,omitempty"`
	Email            *string `json:"email,omitempty"`
	Password         *string `json:"password,omitempty"`
	Image            *string `json:"image,omitempty"`
	ExpectedCalories *int    `json:"expectedCalories,omitempty"`
}

func (s *UserService) Login(ctx context.Context, email, password string) (session.Viewer, error) {
	body := map[string]any{
		"user": map[string]string{"email": email, "password": password},
	}
	return s.viewerRequest(ctx, http.MethodPost, "/users/login", nil, body)
}

func (s *UserService) Register(ctx context.Context, username, email, password string) (session.Viewer, error) {
	body := map[string]any{
		"user": map[string]string{"username": username, "email": email, "password": password},
	}
	return s.viewerRequest(ctx, http.MethodPost, "/users", nil, body)
}

// Current re-fetches the viewer behind cred, picking up server-side
// changes such as an updated calorie target.
func (s *UserService) Current(ctx context.Context, cred session.Credential) (session.Viewer, error) {
	return s.viewerRequest(ctx, http.MethodGet, "/user", &cred, nil)
}

func (s *UserService) Update(ctx context.Context, cred session.Credential, update UserUpdate) (session.Viewer, error) {
	body := map[string]any{"user": update}
	return s.viewerRequest(ctx, http.MethodPut, "/user", &cred, body)
}

func (s *UserService) Profile(ctx context.Context, cred *session.Credential, username string) (models.Profile, error) {
	var resp struct {
		Profile models.Profile `json:"profile"`
	}
	err := s.client.Do(ctx, http.MethodGet, "/profiles/"+url.PathEscape(username), nil, cred, nil, &resp)
	return resp.Profile, err
}

func (s *UserService) Follow(ctx context.Context, cred session.Credential, username string) (models.Profile, error) {
	var resp struct {
		Profile models.Profile `json:"profile"`
	}
	err := s.client.Do(ctx, http.MethodPost, "/profiles/"+url.PathEscape(username)+"/follow", nil, &cred, nil, &resp)
	return resp.Profile, err
}

func (s *UserService) Unfollow(ctx context.Context, cred session.Credential, username string) (models.Profile, error) {
	var resp struct {
		Profile models.Profile `json:"profile"`
	}
	err := s.client.Do(ctx, http.MethodDelete, "/profiles/"+url.PathEscape(username)+"/follow", nil, &cred, nil, &resp)
	return resp.Profile, err
}

func (s *UserService) viewerRequest(ctx context.Context, method, path string, cred *session.Credential, body any) (session.Viewer, error) {
	var raw json.RawMessage
	if err := s.client.Do(ctx, method, path, nil, cred, body, &raw); err != nil {
		return session.Viewer{}, err
	}
	v, err := session.DecodeViewer(raw)
	if err != nil {
		return session.Viewer{}, &BodyError{Detail: err.Error()}
	}
	return v, nil
}
