package domain

import "errors"

var (
	ErrUnknownCommand      = errors.New("unknown command")
	ErrPermissionNotFound  = errors.New("permission request not found")
	ErrPermissionExpired   = errors.New("permission request expired")
	ErrHandlerNotFound     = errors.New("handler not registered")
	ErrHandlerTimeout      = errors.New("handler timed out")
	ErrCollaboratorMissing = errors.New("required collaborator missing")
)
