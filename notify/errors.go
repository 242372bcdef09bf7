package notify

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeChannelStarted = "NOTIFICATION_CHANNEL_STARTED"
	TextCodeChannelStopped = "NOTIFICATION_CHANNEL_STOPPED"
)

// ErrChannelStarted is returned when Start is called twice.
var ErrChannelStarted = goerrors.New("notification channel already started", goerrors.CategoryConflict).
	WithTextCode(TextCodeChannelStarted).
	WithCode(goerrors.CodeConflict)

// ErrChannelStopped is returned by calls made after Stop.
var ErrChannelStopped = goerrors.New("notification channel stopped", goerrors.CategoryOperation).
	WithTextCode(TextCodeChannelStopped).
	WithCode(goerrors.CodeConflict)

// IsChannelStopped reports calls made after Stop.
func IsChannelStopped(err error) bool {
	var richErr *goerrors.Error
	return goerrors.As(err, &richErr) && richErr != nil && richErr.TextCode == TextCodeChannelStopped
}
