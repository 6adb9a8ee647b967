// Package servererrors turns facade and gateway errors into short messages for the UI.
package servererrors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/adcondev/brother-daemon/internal/brother"
)

// Gateway errors raised before a call reaches the facade.
var (
	ErrUnauthorized = errors.New("invalid or missing token")
	ErrLockedOut    = errors.New("too many failed token attempts")
	ErrRateLimited  = errors.New("print rate limit exceeded")
	ErrUnknownTipo  = errors.New("unknown message type")
	ErrBadDatos     = errors.New("invalid datos field")
)

// Native SDK error codes seen often enough to deserve a friendlier text.
var nativeCodeMessages = map[string]string{
	"ERROR_COMMUNICATION_ERROR":       "Cannot communicate with the printer - check cable, Wi-Fi or Bluetooth",
	"ERROR_PAPER_EMPTY":               "Printer is out of paper or labels",
	"ERROR_COVER_OPEN":                "Printer cover is open",
	"ERROR_BATTERY_EMPTY":             "Printer battery is empty",
	"ERROR_BUSY":                      "Printer is busy, retry when the current job finishes",
	"ERROR_WRONG_LABEL":               "Loaded media does not match the selected label",
	"ERROR_NOT_SAME_MODEL":            "Selected printer model does not match the connected device",
	"ERROR_BROTHER_PRINTER_NOT_FOUND": "No printer selected - call setPrinter first",
}

// UserMessage creates a clean error message for the UI
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return "AUTH: Invalid or missing token"
	case errors.Is(err, ErrLockedOut):
		return "AUTH: Too many failed attempts, try again later"
	case errors.Is(err, ErrRateLimited):
		return "LIMIT: Too many print requests, slow down"
	case errors.Is(err, ErrUnknownTipo):
		return fmt.Sprintf("COMMAND: %s", innerError(err.Error()))
	case errors.Is(err, ErrBadDatos):
		return fmt.Sprintf("VALIDATION: %s", innerError(err.Error()))
	}

	var be *brother.Error
	if errors.As(err, &be) {
		switch be.Kind {
		case brother.KindTransmission:
			return "TRANSMISSION: No response from the printer service, check the native host"
		case brother.KindPrecondition:
			return fmt.Sprintf("VALIDATION: %s", be.Message)
		default:
			if code, ok := be.Code.(string); ok {
				if msg, ok := nativeCodeMessages[strings.ToUpper(code)]; ok {
					return "PRINTER: " + msg
				}
			}
			return fmt.Sprintf("PRINTER: %s", be.Message)
		}
	}

	// Fallback:  return cleaned error
	return fmt.Sprintf("ERROR: %s", err.Error())
}

// innerError gets the innermost error message
func innerError(errStr string) string {
	parts := strings.Split(errStr, ": ")
	return parts[len(parts)-1]
}
