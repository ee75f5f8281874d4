package session

import (
	"context"
	"maps"
)

type requestSessionKey struct{}

func withRequestSession(ctx context.Context, rs *requestSession) context.Context {
	return context.WithValue(ctx, requestSessionKey{}, rs)
}

func fromContext(ctx context.Context) (*requestSession, bool) {
	rs, ok := ctx.Value(requestSessionKey{}).(*requestSession)
	return rs, ok && rs != nil
}

// Preferences returns a copy of the session preferences.
func Preferences(ctx context.Context) map[string]string {
	rs, ok := fromContext(ctx)
	if !ok {
		return nil
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return maps.Clone(rs.prefs)
}

// SetPreference stores a preference on the request session. An empty value
// removes the key.
func SetPreference(ctx context.Context, key, value string) error {
	rs, ok := fromContext(ctx)
	if !ok {
		return ErrNotFound
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if value == "" {
		delete(rs.prefs, key)
		return nil
	}
	if rs.prefs == nil {
		rs.prefs = make(map[string]string)
	}
	rs.prefs[key] = value
	return nil
}
