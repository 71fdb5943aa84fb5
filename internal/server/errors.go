package server

import (
	"errors"
	"io"
	"net"

	"github.com/mcoot/gamestore-lobby/internal/model"
	"github.com/mcoot/gamestore-lobby/internal/protocol"
)

// Failure messages for conditions that have no model error
const (
	msgUnknownAction  = "unknown action"
	msgInternalError  = "internal error"
	msgClientNotReady = "client not ready"
)

// clientErrors are reported to the client with their full message,
// including any detail wrapped around them
var clientErrors = []error{
	model.ErrInvalidClientClass,
	model.ErrDuplicateAccount,
	model.ErrWeakCredential,
	model.ErrAccountNotFound,
	model.ErrBadCredential,
	model.ErrSessionNotFound,
	model.ErrNotLoggedIn,
	model.ErrPortsExhausted,
	model.ErrRoomNotFound,
	model.ErrRoomFull,
	model.ErrAlreadyInRoom,
	model.ErrInOtherRoom,
	model.ErrNotInRoom,
	model.ErrNotHost,
	model.ErrGameInProgress,
	model.ErrNotPlaying,
	model.ErrInsufficientPlayers,
	model.ErrEmptyMessage,
	model.ErrWorkerTokenMismatch,
	model.ErrNoLaunchSpec,
	model.ErrLaunchFailed,
	model.ErrGameNotFound,
	model.ErrGameNotActive,
	model.ErrGameNameRequired,
	model.ErrGameNameTaken,
	model.ErrNotGameOwner,
	model.ErrVersionRequired,
	model.ErrSameVersion,
	model.ErrActiveRooms,
	model.ErrInvalidManifest,
	model.ErrBundleMissing,
	model.ErrInvalidBundle,
	model.ErrInvalidPlayers,
	model.ErrInvalidRating,
	model.ErrCommentTooLong,
	model.ErrNotPlayed,
	model.ErrAlreadyReviewed,
	model.ErrPluginNotFound,
	model.ErrPluginMissing,
	model.ErrInvalidPlugin,
	protocol.ErrBadRequest,
	protocol.ErrChecksumMismatch,
	protocol.ErrInvalidFileMeta,
	protocol.ErrTransferRejected,
}

// failureMessage converts a handler error into the message of a failed
// response. ok is false for errors the client should not see.
func failureMessage(err error) (msg string, ok bool) {
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			return err.Error(), true
		}
	}
	return msgInternalError, false
}

// isFatal reports whether err leaves the connection unusable
func isFatal(err error) bool {
	return errors.Is(err, protocol.ErrFraming) ||
		errors.Is(err, protocol.ErrMalformedPayload) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed)
}
