package gcal

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventTime is a wall-clock date-time paired with an IANA zone name
type EventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

// Event is the insert body of a calendar event
type Event struct {
	Summary     string    `json:"summary"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`
}

// CreatedEvent is the part of the insert response we keep
type CreatedEvent struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	HTMLLink string `json:"htmlLink"`
}

// apiError is the error envelope returned by the calendar API
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// describeError extracts a readable message from an error response body
func describeError(status int, body []byte) string {
	var envelope apiError
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return fmt.Sprintf("status %d: %s", status, envelope.Error.Message)
	}
	return fmt.Sprintf("status %d: %s", status, strings.TrimSpace(string(body)))
}

// tokenFile mirrors an authorized-user credentials file. Both "token" and
// "access_token" spellings are accepted for the access token.
type tokenFile struct {
	Token        string    `json:"token,omitempty"`
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ClientID     string    `json:"client_id,omitempty"`
	ClientSecret string    `json:"client_secret,omitempty"`
	TokenURI     string    `json:"token_uri,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

func (f tokenFile) accessToken() string {
	if f.Token != "" {
		return f.Token
	}
	return f.AccessToken
}

// refreshResponse is the token endpoint reply
type refreshResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Error       string `json:"error"`
	Description string `json:"error_description"`
}
