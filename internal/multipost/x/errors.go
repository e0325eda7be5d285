package x

import (
	"errors"
	"fmt"
	"strings"

	"github.com/michimani/gotwi"
	"github.com/michimani/gotwi/resources"
)

// apiError flattens X problem details into one line. The gotwi error, when
// there is one, stays reachable through errors.As.
type apiError struct {
	msgs []string
	err  error
}

func (e *apiError) Error() string { return strings.Join(e.msgs, "; ") }

func (e *apiError) Unwrap() error { return e.err }

func (e *apiError) add(msg string) {
	if msg != "" {
		e.msgs = append(e.msgs, msg)
	}
}

// fromPartials reports the partial errors attached to a 2xx response.
func fromPartials(partials []resources.PartialError) error {
	if len(partials) == 0 {
		return nil
	}
	e := &apiError{}
	for _, pe := range partials {
		switch {
		case gotwi.StringValue(pe.Detail) != "":
			e.add(*pe.Detail)
		case gotwi.StringValue(pe.Title) != "":
			e.add(*pe.Title)
		case pe.ResourceType != nil:
			e.add("partial failure on " + fmt.Sprint(*pe.ResourceType))
		}
	}
	if len(e.msgs) == 0 {
		e.add("unknown error")
	}
	return e
}

// fromResponse rewrites a gotwi error into its problem details and leaves
// other errors alone.
func fromResponse(err error) error {
	var gw *gotwi.GotwiError
	if !errors.As(err, &gw) || gw == nil {
		return err
	}
	e := &apiError{err: err}
	e.add(gw.Title)
	e.add(gw.Detail)
	for _, info := range gw.APIErrors {
		e.add(info.Message)
	}
	if len(e.msgs) == 0 {
		e.add(gw.Error())
	}
	if len(e.msgs) == 0 {
		e.add("X API request failed")
	}
	return e
}
