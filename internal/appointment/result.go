package appointment

import "encoding/json"

// Result is the shape every query and command takes across the boundary to a
// presentation layer: {ok: true, value} or {ok: false, errorKind, message}.
type Result[T any] struct {
	OK        bool      `json:"ok"`
	Value     T         `json:"value"`
	ErrorKind ErrorKind `json:"errorKind,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// MarshalJSON always writes value on success, even when it is empty or
// false, and never on failure.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	if !r.OK {
		return json.Marshal(struct {
			OK        bool      `json:"ok"`
			ErrorKind ErrorKind `json:"errorKind"`
			Message   string    `json:"message"`
		}{false, r.ErrorKind, r.Message})
	}
	return json.Marshal(struct {
		OK    bool `json:"ok"`
		Value T    `json:"value"`
	}{true, r.Value})
}

func ResultOf[T any](value T, err error) Result[T] {
	if err != nil {
		return Failure[T](err)
	}
	return Result[T]{OK: true, Value: value}
}

func Failure[T any](err error) Result[T] {
	kind := KindOf(err)
	msg := err.Error()
	if kind == KindInternal {
		msg = "internal error"
	}
	return Result[T]{OK: false, ErrorKind: kind, Message: msg}
}
