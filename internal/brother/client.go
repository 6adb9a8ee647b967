// Package brother is the facade over the native Brother printer SDK.
//
// Every operation forwards to an Invoker under the "BrotherPrinter" service
// and reports back through a success callback or a failure callback. Failure
// payloads are reshaped into *Error before they reach the caller.
package brother

import (
	"encoding/json"
	"log"
	"reflect"
)

// Client exposes printer discovery, selection and printing.
// It holds no state besides the invoker and is safe for concurrent use.
type Client struct {
	invoker Invoker
}

// NewClient creates a facade that delegates to invoker.
func NewClient(invoker Invoker) *Client {
	return &Client{invoker: invoker}
}

// FindNetworkPrinters discovers printers on the local network.
func (c *Client) FindNetworkPrinters(onSuccess SuccessFunc, onError ErrorFunc) {
	c.exec(onSuccess, onError, ActionFindNetworkPrinters)
}

// PairBluetoothPrinters asks the platform to pair nearby Bluetooth printers.
func (c *Client) PairBluetoothPrinters(onSuccess SuccessFunc, onError ErrorFunc) {
	c.exec(onSuccess, onError, ActionPairBluetoothPrinters)
}

// FindBluetoothPrinters lists paired Bluetooth printers.
func (c *Client) FindBluetoothPrinters(onSuccess SuccessFunc, onError ErrorFunc) {
	c.exec(onSuccess, onError, ActionFindBluetoothPrinters)
}

// FindPrinters discovers printers over every transport the SDK supports.
func (c *Client) FindPrinters(onSuccess SuccessFunc, onError ErrorFunc) {
	c.exec(onSuccess, onError, ActionFindPrinters)
}

// SetPrinter selects the printer used by later print calls. The descriptor
// is forwarded as-is; validating it is up to the native provider.
func (c *Client) SetPrinter(printer any, onSuccess SuccessFunc, onError ErrorFunc) {
	c.exec(onSuccess, onError, ActionSetPrinter, printer)
}

// PrintViaSDK prints an image bitmap on the selected printer.
func (c *Client) PrintViaSDK(data any, onSuccess SuccessFunc, onError ErrorFunc) {
	if err := CheckPayload(ActionPrintViaSDK, data); err != nil {
		log.Println("[BROTHER] ⚠️ No data passed in. Expects a bitmap.")
		if onError != nil {
			onError(err)
		}
		return
	}
	c.exec(onSuccess, onError, ActionPrintViaSDK, data)
}

// SendUSBConfig sends a raw print payload string to a USB-attached printer.
func (c *Client) SendUSBConfig(data any, onSuccess SuccessFunc, onError ErrorFunc) {
	if err := CheckPayload(ActionSendUSBConfig, data); err != nil {
		log.Println("[BROTHER] ⚠️ No data passed in. Expects print payload string.")
		if onError != nil {
			onError(err)
		}
		return
	}
	c.exec(onSuccess, onError, ActionSendUSBConfig, data)
}

// CheckPayload returns the precondition error action would report for data,
// or nil when the call would reach the provider. Actions without a payload
// requirement always pass.
func CheckPayload(action string, data any) *Error {
	var expecting string
	switch action {
	case ActionPrintViaSDK:
		expecting = "supported image data"
	case ActionSendUSBConfig:
		expecting = "print payload string"
	default:
		return nil
	}
	if hasData(data) {
		return nil
	}
	return newPreconditionError(action, expecting)
}

func (c *Client) exec(onSuccess SuccessFunc, onError ErrorFunc, action string, args ...any) {
	if onSuccess == nil {
		onSuccess = func(any) {}
	}
	if args == nil {
		args = []any{}
	}
	c.invoker.Invoke(onSuccess, HandleError(onError), ServiceName, action, args)
}

// hasData reports whether a print payload is present and non-empty.
func hasData(data any) bool {
	switch d := data.(type) {
	case nil:
		return false
	case string:
		return len(d) > 0
	case []byte:
		return len(d) > 0
	case json.RawMessage:
		return len(d) > 0 && string(d) != "null"
	}

	v := reflect.ValueOf(data)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return false
		}
		return hasData(v.Elem().Interface())
	case reflect.Slice, reflect.Array, reflect.String:
		return v.Len() > 0
	}
	// Objects and values without a length are not print data.
	return false
}
