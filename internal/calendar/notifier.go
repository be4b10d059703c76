package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/kekarecall/apiserver/config"
	"github.com/kekarecall/apiserver/types"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const (
	primaryCalendar       = "primary"
	reminderMethod        = "popup"
	reminderMinutesBefore = 10
)

// ErrNoCredential is returned when the account never granted calendar access.
var ErrNoCredential = errors.New("account has no calendar credential")

// Notifier schedules a reminder for a newly created review.
type Notifier interface {
	Notify(ctx context.Context, account types.Account, topic, isoDate string, cycle int) error
}

// NopNotifier is used when no calendar integration is configured.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, types.Account, string, string, int) error {
	return ErrNoCredential
}

// GoogleNotifier inserts review reminders into the account's primary
// Google Calendar using the stored OAuth2 token.
type GoogleNotifier struct {
	oauth    *oauth2.Config
	location *time.Location
	timeZone string
	endpoint string
}

// NewGoogleNotifier builds a notifier. oauthCfg is used to refresh expired
// access tokens.
func NewGoogleNotifier(oauthCfg *oauth2.Config, cfg config.CalendarConfig) (*GoogleNotifier, error) {
	if oauthCfg == nil {
		return nil, errors.New("oauth config is required")
	}
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load calendar time zone: %w", err)
	}
	return &GoogleNotifier{
		oauth:    oauthCfg,
		location: loc,
		timeZone: cfg.TimeZone,
		endpoint: cfg.Endpoint,
	}, nil
}

func (n *GoogleNotifier) Notify(ctx context.Context, account types.Account, topic, isoDate string, cycle int) error {
	if !account.HasCalendarAccess() {
		return ErrNoCredential
	}
	token, err := DecodeToken(account.CalendarToken)
	if err != nil {
		return err
	}
	start, err := ParseDate(isoDate, n.location)
	if err != nil {
		return err
	}

	opts := []option.ClientOption{option.WithHTTPClient(n.oauth.Client(ctx, token))}
	if n.endpoint != "" {
		opts = append(opts, option.WithEndpoint(n.endpoint))
	}
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return fmt.Errorf("init calendar client: %w", err)
	}

	event := NewReviewEvent(topic, cycle, start.In(n.location), n.timeZone)
	if _, err := svc.Events.Insert(primaryCalendar, event).Context(ctx).Do(); err != nil {
		return fmt.Errorf("insert calendar event: %w", err)
	}
	return nil
}

// NewReviewEvent builds a zero-duration event at start with a single popup
// reminder replacing the calendar defaults.
func NewReviewEvent(topic string, cycle int, start time.Time, timeZone string) *gcal.Event {
	at := &gcal.EventDateTime{
		DateTime: start.Format(time.RFC3339),
		TimeZone: timeZone,
	}
	return &gcal.Event{
		Summary: fmt.Sprintf("Review %d: %s", cycle, topic),
		Start:   at,
		End:     at,
		Reminders: &gcal.EventReminders{
			UseDefault: false,
			Overrides: []*gcal.EventReminder{
				{Method: reminderMethod, Minutes: reminderMinutesBefore},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}
}
