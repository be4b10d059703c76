package calendar

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// EncodeToken serializes an OAuth2 token for storage on the account row.
func EncodeToken(token *oauth2.Token) (string, error) {
	if token == nil {
		return "", errors.New("nil token")
	}
	data, err := json.Marshal(token)
	if err != nil {
		return "", fmt.Errorf("encode token: %w", err)
	}
	return string(data), nil
}

// DecodeToken parses a token blob produced by EncodeToken.
func DecodeToken(blob string) (*oauth2.Token, error) {
	var token oauth2.Token
	if err := json.Unmarshal([]byte(blob), &token); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	if token.AccessToken == "" && token.RefreshToken == "" {
		return nil, errors.New("decode token: no access or refresh token")
	}
	return &token, nil
}

// localDateLayouts carry no offset and are read as wall-clock time in the
// calendar's zone.
var localDateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate accepts the date formats browsers commonly send: full
// ISO 8601 timestamps, local date-times and bare dates. Values without an
// offset are taken as wall-clock time in loc (UTC when loc is nil).
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range localDateLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}
