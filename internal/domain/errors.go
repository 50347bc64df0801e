package domain

import "errors"

var (
	// ErrConfiguration indicates missing application credentials or datastore configuration.
	// It is fatal for the whole invocation.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidRequest indicates the sync request envelope could not be accepted
	ErrInvalidRequest = errors.New("invalid sync request")

	// ErrAuthAbandoned indicates token recovery failed; the integration's remaining work is dropped
	ErrAuthAbandoned = errors.New("authentication failed and could not be recovered")

	// ErrNoIntegrations indicates the selector matched no integration
	ErrNoIntegrations = errors.New("no integrations found")

	// ErrSyncInProgress indicates another sync holds the integration lock
	ErrSyncInProgress = errors.New("sync already running")
)
