package multipost

import (
	"fmt"
	"unicode/utf8"

	"github.com/blacktop/multipost/internal/prefs"
)

// StatusKind is the posting eligibility of a service for the current draft.
type StatusKind int

const (
	StatusInvalid StatusKind = iota
	StatusPaused
	StatusValid
)

func (k StatusKind) String() string {
	switch k {
	case StatusPaused:
		return "Paused"
	case StatusValid:
		return "Valid"
	default:
		return "Invalid"
	}
}

// MarshalText renders the kind as its name in JSON.
func (k StatusKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name.
func (k *StatusKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "Invalid":
		*k = StatusInvalid
	case "Paused":
		*k = StatusPaused
	case "Valid":
		*k = StatusValid
	default:
		return fmt.Errorf("unknown status %q", b)
	}
	return nil
}

// Status is recomputed from the preference snapshot and draft on every call; it is never stored.
type Status struct {
	Kind    StatusKind  `json:"type"`
	Service ServiceName `json:"service"`
	Reason  string      `json:"reason,omitempty"`
}

// Limits bounds what a service accepts. Zero values mean unlimited.
type Limits struct {
	MaxChars  int
	MaxImages int
}

// Validate checks draft against the limits.
func (l Limits) Validate(service ServiceName, draft *Draft) error {
	if l.MaxChars > 0 {
		if n := utf8.RuneCountInString(draft.Text); n > l.MaxChars {
			return ValidationError{Service: service, Reason: fmt.Sprintf("text is %d characters, limit is %d", n, l.MaxChars)}
		}
	}
	if l.MaxImages > 0 && len(draft.ImageURLs) > l.MaxImages {
		return ValidationError{Service: service, Reason: fmt.Sprintf("%d images attached, limit is %d", len(draft.ImageURLs), l.MaxImages)}
	}
	return nil
}

// EvaluateStatus applies the shared precedence: missing draft, unloaded store
// or empty content is Invalid; then a paused service is Paused; then the
// service-specific validation decides between Invalid and Valid.
func EvaluateStatus(service ServiceName, pref prefs.Preference, loaded bool, draft *Draft, validate func(*Draft) error) Status {
	st := Status{Kind: StatusInvalid, Service: service}
	switch {
	case draft == nil:
		st.Reason = "no draft"
		return st
	case !loaded:
		st.Reason = "preferences not loaded"
		return st
	case !draft.HasContent():
		st.Reason = "draft is empty"
		return st
	}
	if pref.Paused {
		st.Kind = StatusPaused
		return st
	}
	if validate != nil {
		if err := validate(draft); err != nil {
			st.Reason = err.Error()
			return st
		}
	}
	st.Kind = StatusValid
	return st
}
