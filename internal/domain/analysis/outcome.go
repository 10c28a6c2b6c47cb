package analysis

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Source tells whether a result came from the upstream or was substituted.
type Source string

const (
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
)

// Reason classifies why a fallback was served.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonTransport Reason = "transport"
	ReasonStatus    Reason = "status"
	ReasonMalformed Reason = "malformed"
	ReasonQuota     Reason = "quota"
	ReasonRequest   Reason = "request"
	ReasonOversize  Reason = "oversize"
	ReasonCanceled  Reason = "canceled"
)

// Reasons lists every fallback reason.
var Reasons = []Reason{
	ReasonTransport, ReasonStatus, ReasonMalformed,
	ReasonQuota, ReasonRequest, ReasonOversize, ReasonCanceled,
}

// Classify maps an upstream error onto a fallback reason.
func Classify(err error) Reason {
	var se *StatusError
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrCanceled):
		return ReasonCanceled
	case errors.Is(err, ErrInvalidRequest):
		return ReasonRequest
	case errors.Is(err, ErrQuotaExceeded):
		return ReasonQuota
	case errors.As(err, &se):
		return ReasonStatus
	case errors.Is(err, ErrMalformedBody):
		return ReasonMalformed
	case errors.Is(err, ErrResponseTooLarge):
		return ReasonOversize
	default:
		return ReasonTransport
	}
}

// Outcome is the result of one relay call: either Live with the upstream bytes,
// or Fallback with a substituted result and the error that caused it.
type Outcome struct {
	Source Source
	Body   []byte
	Result *Result
	Reason Reason
	Err    error
}

// Live builds a pass-through outcome. result may be nil when the upstream body
// does not decode into the Result shape.
func Live(body []byte, result *Result) Outcome {
	return Outcome{Source: SourceLive, Body: body, Result: result}
}

// Fallback builds a substituted outcome.
func Fallback(body []byte, result *Result, err error) Outcome {
	return Outcome{Source: SourceFallback, Body: body, Result: result, Reason: Classify(err), Err: err}
}

func (o Outcome) IsFallback() bool { return o.Source == SourceFallback }

// ScenarioID returns the scenario id of the decoded result, if any.
func (o Outcome) ScenarioID() string {
	if o.Result == nil {
		return ""
	}
	return o.Result.ScenarioID
}

// ErrMessage is a short single-line description of the fallback cause.
func (o Outcome) ErrMessage() string {
	if o.Err == nil {
		return ""
	}
	msg := o.Err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return Clip(msg, 256)
}

// Clip returns s cut to at most n bytes of valid UTF-8. Invalid sequences are
// dropped and a cut never splits a rune.
func Clip(s string, n int) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
