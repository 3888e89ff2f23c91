package authmodel

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Plan is the subscription plan attached to a user profile.
type Plan struct {
	ID         string            `json:"id"`
	UserID     string            `json:"user_id"`
	Plan       string            `json:"plan"`
	PlanType   string            `json:"plan_type"`
	Expenses   []json.RawMessage `json:"expenses,omitempty"`
	CreatedAt  string            `json:"created_at"`
	ExpireDate string            `json:"expire_date,omitempty"`
}

// UserProfile is the /users/me record. Fields the schema does not know are
// kept in Extra and written back out on encode.
type UserProfile struct {
	ID              string `json:"id,omitempty"`
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
	Username        string `json:"username,omitempty"`
	PhotoURL        string `json:"photo_url,omitempty"`
	Avatar          string `json:"avatar,omitempty"`
	TelegramID      *int64 `json:"telegram_id,omitempty"`
	Language        string `json:"language,omitempty"`
	InterfaceLang   string `json:"interface_lang,omitempty"`
	InterfaceTheme  string `json:"interface_theme,omitempty"`
	Balance         *int64 `json:"balance,omitempty"`
	Points          *int64 `json:"points,omitempty"`
	IsUsedFreeTrial *bool  `json:"is_used_free_trial,omitempty"`
	ReferCount      *int64 `json:"refer_count,omitempty"`
	UniversityName  string `json:"university_name,omitempty"`
	GroupName       string `json:"group_name,omitempty"`
	PolicyAccepted  *bool  `json:"policy_accepted,omitempty"`
	IsAdmin         *bool  `json:"is_admin,omitempty"`
	InviterID       *int64 `json:"inviter_id,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
	UpdatedAt       string `json:"updated_at,omitempty"`
	Plan            *Plan  `json:"plan,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var knownProfileFields = map[string]struct{}{
	"id": {}, "first_name": {}, "last_name": {}, "username": {}, "photo_url": {},
	"avatar": {}, "telegram_id": {}, "language": {}, "interface_lang": {},
	"interface_theme": {}, "balance": {}, "points": {}, "is_used_free_trial": {},
	"refer_count": {}, "university_name": {}, "group_name": {}, "policy_accepted": {},
	"is_admin": {}, "inviter_id": {}, "created_at": {}, "updated_at": {}, "plan": {},
}

type profileFields UserProfile

func (u *UserProfile) UnmarshalJSON(data []byte) error {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	// Some endpoints send a numeric id.
	if raw, ok := all["id"]; ok && !isJSONString(raw) && string(bytes.TrimSpace(raw)) != "null" {
		id, err := json.Marshal(rawID(raw))
		if err != nil {
			return err
		}
		all["id"] = id
		if data, err = json.Marshal(all); err != nil {
			return err
		}
	}
	var known profileFields
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	for k := range knownProfileFields {
		delete(all, k)
	}
	known.Extra = nil
	if len(all) > 0 {
		known.Extra = all
	}
	*u = UserProfile(known)
	return nil
}

func (u UserProfile) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(profileFields(u))
	if err != nil {
		return nil, err
	}
	if len(u.Extra) == 0 {
		return data, nil
	}
	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, v := range u.Extra {
		if _, exists := merged[k]; !exists {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// Normalize returns the profile with a populated top-level ID.
// A set ID is never changed. Otherwise a {"user": {...}} wrapper is
// unwrapped, and "_id" is used when "id" is still absent.
func (u UserProfile) Normalize() UserProfile {
	if u.ID != "" {
		return u
	}
	if raw, ok := u.Extra["user"]; ok && isJSONObject(raw) {
		var nested UserProfile
		if err := json.Unmarshal(raw, &nested); err == nil {
			u = nested
		}
	}
	if u.ID == "" {
		if raw, ok := u.Extra["_id"]; ok {
			u.ID = rawID(raw)
		}
	}
	return u
}

// DisplayName is "first last", falling back to the username.
func (u UserProfile) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

func isJSONString(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '"'
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// rawID accepts both string and numeric identifiers.
func rawID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
