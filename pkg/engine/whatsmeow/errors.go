package whatsmeow

import "errors"

var (
	ErrStoreUpgrade   = errors.New("whatsmeow: failed to upgrade device store")
	ErrDeviceLookup   = errors.New("whatsmeow: failed to load device")
	ErrDeviceNotFound = errors.New("whatsmeow: device not found")
	ErrInvalidJID     = errors.New("whatsmeow: invalid jid")
	ErrConnect        = errors.New("whatsmeow: connect failed")
	ErrSend           = errors.New("whatsmeow: send failed")
)
