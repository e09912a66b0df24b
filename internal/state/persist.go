package state

import (
	"context"
	"encoding/json"
	"fmt"

	"expenso/internal/core"
)

// Keys under which a session's durable values are stored.
const (
	KeyTheme = "theme"
	KeyToken = "token"
	KeyUser  = "user"
)

// Persister is durable per-session key/value storage.
type Persister interface {
	Load(ctx context.Context, sessionID string) (map[string]string, error)
	Save(ctx context.Context, sessionID, key, value string) error
	Remove(ctx context.Context, sessionID string, keys ...string) error
}

// ActivityPublisher receives confirmed transaction changes.
type ActivityPublisher interface {
	PublishActivity(ctx context.Context, e core.ActivityEvent) error
}

type noopPublisher struct{}

func (noopPublisher) PublishActivity(context.Context, core.ActivityEvent) error { return nil }

// restoredState rebuilds what a reload would see from persisted values.
// A token without a readable user still restores the session; the profile
// page shows empty fields until the next login.
func restoredState(values map[string]string) (core.AuthSession, core.Theme, error) {
	theme := core.ParseTheme(values[KeyTheme])
	session := core.AuthSession{Token: values[KeyToken]}
	if raw := values[KeyUser]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &session.User); err != nil {
			return session, theme, fmt.Errorf("decode persisted user: %w", err)
		}
	}
	return session, theme, nil
}

func encodeUser(u core.User) (string, error) {
	b, err := json.Marshal(u)
	if err != nil {
		return "", fmt.Errorf("encode user: %w", err)
	}
	return string(b), nil
}
