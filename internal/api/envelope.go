package api

import (
	"github.com/danielgtaylor/huma/v2"
)

// EnvelopeVersion is the wire version reported in every response.
const EnvelopeVersion = 1

// Envelope wraps successful response bodies.
type Envelope struct {
	Version int  `json:"v"`
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// ErrorEnvelope wraps error responses.
type ErrorEnvelope struct {
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// EnvelopeTransformer is a huma transformer that wraps every body in the
// versioned envelope clients parse.
func EnvelopeTransformer(_ huma.Context, _ string, v any) (any, error) {
	switch body := v.(type) {
	case *APIError:
		return ErrorEnvelope{
			Version: EnvelopeVersion,
			Error:   body.Message,
			Code:    body.Code,
			Details: body.Details,
		}, nil
	case *huma.ErrorModel:
		msg := body.Detail
		if msg == "" {
			msg = body.Title
		}
		return ErrorEnvelope{
			Version: EnvelopeVersion,
			Error:   msg,
			Code:    statusToCode(body.Status),
			Details: body.Errors,
		}, nil
	case Envelope, ErrorEnvelope, *Envelope, *ErrorEnvelope:
		return v, nil
	}

	return Envelope{Version: EnvelopeVersion, Success: true, Data: v}, nil
}
