// Package client talks to the fittrack API: an explicit session value, REST
// calls, the notification subscriber and the admin dashboard state.
package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/fittrack/apiserver/types"
	"github.com/golang-jwt/jwt/v5"
)

// Session is the client's authentication state. It is a value; every
// transition returns a new Session and never mutates the receiver.
type Session struct {
	Token     string
	User      types.User
	ExpiresAt time.Time
}

// Login builds a session from a token issued by the API. The expiry is read
// from the token without verifying its signature; the server remains the
// only authority on validity.
func Login(token string, user types.User) (Session, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return Session{}, fmt.Errorf("read token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return Session{}, errors.New("token has no expiry")
	}
	return Session{Token: token, User: user, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Logout returns the signed-out session.
func (s Session) Logout() Session {
	return Session{}
}

// CheckAuth returns s while it is valid at now and the signed-out session
// once it has expired.
func (s Session) CheckAuth(now time.Time) Session {
	if !s.Valid(now) {
		return Session{}
	}
	return s
}

// Valid reports whether s carries an unexpired token at now.
func (s Session) Valid(now time.Time) bool {
	return s.Token != "" && now.Before(s.ExpiresAt)
}

// IsAdmin reports whether the session belongs to an admin.
func (s Session) IsAdmin() bool {
	return s.Token != "" && s.User.IsAdmin
}
