package hub

import "errors"

// Hub lifecycle errors
var (
	ErrHubAlreadyRunning = errors.New("hub is already running")
	ErrHubNotRunning     = errors.New("hub is not running")
)

// ErrNotJoined rejects room events from a connection outside the room
var ErrNotJoined = errors.New("not joined to this session")
