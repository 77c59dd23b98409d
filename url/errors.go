package url

import "errors"

// Kind classifies a conversion failure.
type Kind string

const (
	KindInvalidType            Kind = "invalid_type"
	KindEmptyInput             Kind = "empty_input"
	KindMalformedURL           Kind = "malformed_url"
	KindNotAPIURL              Kind = "not_api_url"
	KindNotScheduleEndpoint    Kind = "not_schedule_endpoint"
	KindNotExplorerURL         Kind = "not_explorer_url"
	KindNotExplorerScheduleURL Kind = "not_explorer_schedule_url"
	KindInvalidCourseURLShape  Kind = "invalid_course_url_shape"
	KindCourseNotFound         Kind = "course_not_found"
	KindMissingSectionsMarker  Kind = "missing_sections_marker"
	KindNetworkError           Kind = "network_error"
)

// Sentinels for use with errors.Is. They match any *Error of the same Kind.
var (
	ErrInvalidType            = &Error{Kind: KindInvalidType}
	ErrEmptyInput             = &Error{Kind: KindEmptyInput}
	ErrMalformedURL           = &Error{Kind: KindMalformedURL}
	ErrNotAPIURL              = &Error{Kind: KindNotAPIURL}
	ErrNotScheduleEndpoint    = &Error{Kind: KindNotScheduleEndpoint}
	ErrNotExplorerURL         = &Error{Kind: KindNotExplorerURL}
	ErrNotExplorerScheduleURL = &Error{Kind: KindNotExplorerScheduleURL}
	ErrInvalidCourseURLShape  = &Error{Kind: KindInvalidCourseURLShape}
	ErrCourseNotFound         = &Error{Kind: KindCourseNotFound}
	ErrMissingSectionsMarker  = &Error{Kind: KindMissingSectionsMarker}
	ErrNetworkError           = &Error{Kind: KindNetworkError}
)

const (
	exampleAPIURL      = "http(s)://courses.illinois.edu/cisapi/"
	exampleScheduleURL = "http(s)://courses.illinois.edu/cisapi/schedule/"
	exampleCourseURL   = "https://courses.illinois.edu/cisapp/explorer/schedule/2012/spring/AAS/120.xml"
)

var messages = map[Kind]string{
	KindInvalidType:            `The "url" parameter must be a string.`,
	KindEmptyInput:             `The "url" parameter must not be an empty string.`,
	KindMalformedURL:           `The "url" parameter must be a valid URL.`,
	KindNotAPIURL:              `The "url" parameter must be a UIUC CIS API URL (like ` + exampleAPIURL + `).`,
	KindNotScheduleEndpoint:    `The "url" parameter must use the schedule endpoint (like ` + exampleScheduleURL + `).`,
	KindNotExplorerURL:         `The "url" parameter must be a UIUC CIS API Explorer course URL (like ` + exampleCourseURL + `).`,
	KindNotExplorerScheduleURL: `The "url" parameter must be a UIUC CIS API Explorer course URL (like ` + exampleCourseURL + `).`,
	KindInvalidCourseURLShape:  `The "url" parameter must be a UIUC CIS API Explorer course URL (like /:year/:term/:department/:course.xml).`,
	KindCourseNotFound:         `URL returned a 404. The "url" parameter must be a UIUC CIS Explorer course URL (like ` + exampleCourseURL + `).`,
	KindMissingSectionsMarker:  `Didn't find "<sections>" tag inside the response. The "url" parameter must be a UIUC CIS Explorer course URL (like ` + exampleCourseURL + `).`,
	KindNetworkError:           `Request for the "url" parameter failed.`,
}

// Error is returned by every conversion in this module.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// NewError creates an Error of the given kind with its standard message.
// cause may be nil.
func NewError(kind Kind, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: messages[kind],
		Err:     cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = messages[e.Kind]
	}
	if e.Kind == KindNetworkError && e.Err != nil {
		return msg + " " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
