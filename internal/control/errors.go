package control

import "errors"

var (
	// ErrInvalidCommand is returned for payloads that are not a usable command.
	ErrInvalidCommand = errors.New("control: invalid command")

	// ErrDriver is returned when the driver rejected the command.
	ErrDriver = errors.New("control: driver rejected command")
)
