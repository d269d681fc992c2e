package sio

import "fmt"

// IllegalNamespaceError indicates a namespace that does not begin with "/".
type IllegalNamespaceError struct {
	Namespace string
}

func (e *IllegalNamespaceError) Error() string {
	return fmt.Sprintf("sio: namespace %q must start with \"/\"", e.Namespace)
}

// InvalidPacketError indicates a Socket.IO frame could not be parsed.
type InvalidPacketError struct {
	Message string
}

func (e *InvalidPacketError) Error() string {
	return fmt.Sprintf("sio: invalid packet: %s", e.Message)
}

// ActionBeforeOpenError indicates an operation that requires an open
// connection was attempted first.
type ActionBeforeOpenError struct {
	Action string
}

func (e *ActionBeforeOpenError) Error() string {
	return fmt.Sprintf("sio: %s requires an open connection", e.Action)
}

// IllegalActionAfterOpenError indicates a registration-time call was
// attempted after Connect.
type IllegalActionAfterOpenError struct {
	Action string
}

func (e *IllegalActionAfterOpenError) Error() string {
	return fmt.Sprintf("sio: cannot %s after connect", e.Action)
}
