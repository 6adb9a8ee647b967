package brother

// ServiceName is the native service every capability is addressed to.
const ServiceName = "BrotherPrinter"

// Capability names understood by the native provider.
const (
	ActionFindNetworkPrinters   = "findNetworkPrinters"
	ActionPairBluetoothPrinters = "pairBluetoothPrinters"
	ActionFindBluetoothPrinters = "findBluetoothPrinters"
	ActionFindPrinters          = "findPrinters"
	ActionSetPrinter            = "setPrinter"
	ActionPrintViaSDK           = "printViaSDK"
	ActionSendUSBConfig         = "sendUSBConfig"
)

// Actions lists every capability in the order the facade exposes them.
func Actions() []string {
	return []string{
		ActionFindNetworkPrinters,
		ActionPairBluetoothPrinters,
		ActionFindBluetoothPrinters,
		ActionFindPrinters,
		ActionSetPrinter,
		ActionPrintViaSDK,
		ActionSendUSBConfig,
	}
}

// SuccessFunc receives the native result. It may be nil for pure actions.
type SuccessFunc func(result any)

// ErrorFunc receives a normalized failure.
type ErrorFunc func(err error)

// FailureFunc receives the raw failure payload exactly as the provider produced it.
type FailureFunc func(payload any)

// Invoker is the single boundary to the native provider.
//
// Implementations must eventually call exactly one of onSuccess or onFailure,
// on any goroutine. Invoke itself must not block on the native work.
type Invoker interface {
	Invoke(onSuccess SuccessFunc, onFailure FailureFunc, service, action string, args []any)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(onSuccess SuccessFunc, onFailure FailureFunc, service, action string, args []any)

// Invoke calls f.
func (f InvokerFunc) Invoke(onSuccess SuccessFunc, onFailure FailureFunc, service, action string, args []any) {
	f(onSuccess, onFailure, service, action, args)
}
