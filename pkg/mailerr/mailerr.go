// Package mailerr carries the error taxonomy shared by the provider
// implementations and the email usecase. Callers branch on the kind to decide
// whether an operation may be retried (one token refresh for Unauthenticated,
// natural retry-on-next-fetch for Transient) or must be surfaced as-is.
package mailerr

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"
)

type Kind int

const (
	// KindUnknown is everything we couldn't classify. Treated like Transient
	// by background work and surfaced verbatim on request paths.
	KindUnknown Kind = iota
	// KindNotFound: user/email/column absent. Never retried.
	KindNotFound
	// KindUnauthenticated: token invalid or expired. The provider layer
	// retries once after a token refresh, then surfaces.
	KindUnauthenticated
	// KindInsufficientScope: the grant lacks the required scope. Fatal for
	// the operation; bulk sync stops for the user without marking complete.
	KindInsufficientScope
	// KindTransient: network errors and provider 5xx. Caller may retry.
	KindTransient
	// KindDecryption: stored credential could not be decrypted. Fatal
	// configuration error for the request.
	KindDecryption
	// KindInvalid: the request itself is malformed (bad column slug, empty
	// recipient list). Maps to a 400 at the HTTP layer.
	KindInvalid
)

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Errorf(kind Kind, op, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of err, unwrapping as needed.
func KindOf(err error) Kind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return KindUnknown
}

func IsNotFound(err error) bool          { return KindOf(err) == KindNotFound }
func IsUnauthenticated(err error) bool   { return KindOf(err) == KindUnauthenticated }
func IsInsufficientScope(err error) bool { return KindOf(err) == KindInsufficientScope }
func IsTransient(err error) bool         { return KindOf(err) == KindTransient }
func IsDecryption(err error) bool        { return KindOf(err) == KindDecryption }
func IsInvalid(err error) bool           { return KindOf(err) == KindInvalid }

// FromGmail classifies an error returned by the Gmail REST client.
func FromGmail(op string, err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == 404:
			return E(KindNotFound, op, err)
		case gerr.Code == 401:
			return E(KindUnauthenticated, op, err)
		case gerr.Code == 403 && looksLikeScopeError(gerr.Message):
			return E(KindInsufficientScope, op, err)
		case gerr.Code >= 500:
			return E(KindTransient, op, err)
		}
		return E(KindUnknown, op, err)
	}
	// oauth2 reports refresh failures as plain errors; a dead refresh token
	// means the user has to re-authorize.
	if strings.Contains(err.Error(), "invalid_grant") {
		return E(KindUnauthenticated, op, err)
	}
	return E(KindTransient, op, err)
}

func looksLikeScopeError(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "insufficient authentication scopes") ||
		strings.Contains(msg, "access_token_scope_insufficient") ||
		strings.Contains(msg, "insufficient permission")
}
