package brother

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Fallback values used when a native failure payload omits a field.
const (
	UnknownMessage   = "unknown message"
	UnknownCode      = "unknown code"
	UnknownNamespace = "unknown namespace"

	// TransmissionMessage is reported when the provider fails without any payload.
	TransmissionMessage = "No Error received, possible error in transmission"
)

// Kind classifies where an Error originated.
type Kind int

const (
	// KindNative is a failure reported by the native provider with a payload.
	KindNative Kind = iota
	// KindTransmission is a failure reported with no payload at all.
	KindTransmission
	// KindPrecondition is a local fast-fail that never reached the provider.
	KindPrecondition
)

func (k Kind) String() string {
	switch k {
	case KindTransmission:
		return "transmission"
	case KindPrecondition:
		return "precondition"
	default:
		return "native"
	}
}

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrNative       = &Error{Kind: KindNative, Message: "native error"}
	ErrTransmission = &Error{Kind: KindTransmission, Message: TransmissionMessage}
	ErrPrecondition = &Error{Kind: KindPrecondition, Message: "precondition failed"}
)

// Error is the uniform shape every failure callback receives.
//
// Code and Namespace are whatever the native layer sent (strings or numbers).
// They stay nil for transmission and precondition errors.
type Error struct {
	Kind      Kind
	Op        string
	Message   string
	Code      any
	Namespace any
}

func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Details returns a loggable one-line description including code and namespace.
func (e *Error) Details() string {
	if e.Code == nil && e.Namespace == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s (code=%v, namespace=%v)", e.Kind, e.Message, e.Code, e.Namespace)
}

// NormalizeError reshapes a raw failure payload from the native provider.
//
// A nil payload (or nil map) yields a transmission error. A map or struct
// payload has its message, code and namespace read independently, each
// falling back to an "unknown ..." value when missing or empty. An error
// payload keeps its text as the message. Any other value is treated as an
// object without fields.
func NormalizeError(payload any) *Error {
	var fields map[string]any

	switch p := payload.(type) {
	case nil:
		return newTransmissionError()
	case *Error:
		if p == nil {
			return newTransmissionError()
		}
		return p
	case map[string]any:
		if p == nil {
			return newTransmissionError()
		}
		fields = p
	case error:
		fields = map[string]any{"message": p.Error()}
	default:
		var null bool
		fields, null = objectFields(p)
		if null {
			return newTransmissionError()
		}
	}

	msg := UnknownMessage
	if m, ok := field(fields, "message"); ok {
		msg = fmt.Sprint(m)
	}
	code := any(UnknownCode)
	if c, ok := field(fields, "code"); ok {
		code = c
	}
	namespace := any(UnknownNamespace)
	if ns, ok := field(fields, "namespace"); ok {
		namespace = ns
	}

	return &Error{
		Kind:      KindNative,
		Message:   msg,
		Code:      code,
		Namespace: namespace,
	}
}

// HandleError wraps onError so that it receives a normalized *Error.
func HandleError(onError ErrorFunc) FailureFunc {
	return func(payload any) {
		if onError == nil {
			return
		}
		onError(NormalizeError(payload))
	}
}

func newTransmissionError() *Error {
	return &Error{Kind: KindTransmission, Message: TransmissionMessage}
}

func newPreconditionError(op, expecting string) *Error {
	return &Error{
		Kind:    KindPrecondition,
		Op:      op,
		Message: fmt.Sprintf("No data passed into '%s'. Expecting %s.", op, expecting),
	}
}

// objectFields reads a string-keyed map or a struct as a field set. Map values
// keep their types; structs go through their JSON form so field tags apply.
// null reports a nil map or pointer.
func objectFields(payload any) (fields map[string]any, null bool) {
	v := reflect.ValueOf(payload)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, true
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Map:
		if v.IsNil() {
			return nil, true
		}
		if v.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		fields = make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			fields[iter.Key().String()] = iter.Value().Interface()
		}
		return fields, false
	case reflect.Struct:
		raw, err := json.Marshal(v.Interface())
		if err != nil {
			return nil, false
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, false
		}
		return lowerKeys(fields), false
	}
	return nil, false
}

// lowerKeys lets untagged struct fields (Message, Code) match.
func lowerKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		lk := strings.ToLower(k)
		if _, taken := out[lk]; !taken || k == lk {
			out[lk] = v
		}
	}
	return out
}

// field looks up key and treats empty values as absent.
func field(m map[string]any, key string) (any, bool) {
	v, ok := m[key]
	if !ok || isEmpty(v) {
		return nil, false
	}
	return v, true
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case float64:
		return x == 0
	case float32:
		return x == 0
	case int:
		return x == 0
	case int64:
		return x == 0
	case int32:
		return x == 0
	case uint:
		return x == 0
	case uint64:
		return x == 0
	case uint32:
		return x == 0
	}
	return false
}
