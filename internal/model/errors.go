package model

import "errors"

// Common errors used across the application
var (
	// Account errors
	ErrInvalidClientClass = errors.New("client type must be developer or player")
	ErrDuplicateAccount   = errors.New("username is already taken")
	ErrWeakCredential     = errors.New("username or password too short")
	ErrAccountNotFound    = errors.New("account not found")
	ErrBadCredential      = errors.New("wrong password")
	ErrSessionNotFound    = errors.New("session not found")
	ErrNotLoggedIn        = errors.New("not logged in")

	// Port errors
	ErrPortsExhausted = errors.New("no free ports")

	// Room errors
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomFull            = errors.New("room is full")
	ErrAlreadyInRoom       = errors.New("already in this room")
	ErrInOtherRoom         = errors.New("already in another room")
	ErrNotInRoom           = errors.New("not in this room")
	ErrNotHost             = errors.New("only the host can do this")
	ErrGameInProgress      = errors.New("game is in progress")
	ErrNotPlaying          = errors.New("room is not playing")
	ErrInsufficientPlayers = errors.New("not enough players to start")
	ErrEmptyMessage        = errors.New("message is empty")
	ErrWorkerTokenMismatch = errors.New("worker token does not match")

	// Launch errors
	ErrNoLaunchSpec = errors.New("game has no server launch command")
	ErrLaunchFailed = errors.New("failed to start game server")

	// Game errors
	ErrGameNotFound     = errors.New("game not found")
	ErrGameNotActive    = errors.New("game is unpublished")
	ErrGameNameRequired = errors.New("game name is required")
	ErrGameNameTaken    = errors.New("game name already exists")
	ErrNotGameOwner     = errors.New("not the owner of this game")
	ErrVersionRequired  = errors.New("version is required")
	ErrSameVersion      = errors.New("version equals the current version")
	ErrActiveRooms      = errors.New("game has rooms in progress")
	ErrInvalidManifest  = errors.New("invalid game manifest")
	ErrBundleMissing    = errors.New("game files are missing")
	ErrInvalidBundle    = errors.New("game bundle must be a zip archive")
	ErrInvalidPlayers   = errors.New("invalid player count bounds")

	// Plugin errors
	ErrPluginNotFound = errors.New("plugin not found")
	ErrPluginMissing  = errors.New("plugin file is missing")
	ErrInvalidPlugin  = errors.New("plugin needs a name, version and plain filename")

	// Review errors
	ErrInvalidRating   = errors.New("rating must be an integer from 1 to 5")
	ErrCommentTooLong  = errors.New("comment is too long")
	ErrNotPlayed       = errors.New("game has not been played")
	ErrAlreadyReviewed = errors.New("game already reviewed")
)
