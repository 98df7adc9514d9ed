package session

import (
	"encoding/json"
	"fmt"
)

// DefaultAvatar is substituted when the server or the persisted blob has
// no image for the user.
const DefaultAvatar = "https://static.productionready.io/images/smiley-cyrus.jpg"

// legacyCalorieTarget backfills blobs written before expectedCalories
// existed. A present value always wins; this applies only when the field
// is entirely absent.
const legacyCalorieTarget = 2000

// DecodeError reports a persisted blob or user payload that could not be
// turned into a Viewer. Callers downgrade it to "logged out", never show it.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string { return "session: decode: " + e.Reason }

// userPayload is the wire shape shared by the persisted blob and the
// login/register/current-user responses.
type userPayload struct {
	User *struct {
		Token            string  `json:"token"`
		Username         string  `json:"username"`
		Image            *string `json:"image"`
		ExpectedCalories *int    `json:"expectedCalories"`
	} `json:"user"`
}

// DecodeViewer parses a {"user":{...}} payload. token and username are
// required; image defaults to DefaultAvatar; a missing expectedCalories
// takes the legacy default.
func DecodeViewer(raw []byte) (Viewer, error) {
	var p userPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Viewer{}, &DecodeError{Reason: err.Error()}
	}
	if p.User == nil {
		return Viewer{}, &DecodeError{Reason: "missing user object"}
	}
	if p.User.Token == "" {
		return Viewer{}, &DecodeError{Reason: "missing token"}
	}
	if p.User.Username == "" {
		return Viewer{}, &DecodeError{Reason: "missing username"}
	}

	avatar := DefaultAvatar
	if p.User.Image != nil && *p.User.Image != "" {
		avatar = *p.User.Image
	}
	target := legacyCalorieTarget
	if p.User.ExpectedCalories != nil {
		target = *p.User.ExpectedCalories
	}

	return Viewer{
		Cred:          Credential{token: p.User.Token, username: p.User.Username},
		Avatar:        avatar,
		CalorieTarget: target,
	}, nil
}

// EncodeViewer is the exact inverse of DecodeViewer.
func EncodeViewer(v Viewer) ([]byte, error) {
	if v.Cred.token == "" || v.Cred.username == "" {
		return nil, fmt.Errorf("session: encode: viewer has no credential")
	}
	var image *string
	if v.Avatar != "" {
		image = &v.Avatar
	}
	blob := map[string]any{
		"user": map[string]any{
			"token":            v.Cred.token,
			"username":         v.Cred.username,
			"image":            image,
			"expectedCalories": v.CalorieTarget,
		},
	}
	raw, err := json.Marshal(blob)
	if err != nil {
		return nil, fmt.Errorf("session: encode: %w", err)
	}
	return raw, nil
}
