package pipeline

import (
	"errors"

	"github.com/joseph-ayodele/autofill/constants"
	"github.com/joseph-ayodele/autofill/internal/common"
	"github.com/joseph-ayodele/autofill/internal/llm"
)

// Envelope is the response contract returned to callers.
type Envelope struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Data    map[string]*string `json:"data"`
}

// EnvelopeFor renders a reconciled result. Partial results are reported as "success".
func EnvelopeFor(res llm.Result) Envelope {
	data := res.Values
	if data == nil {
		data = map[string]*string{}
	}
	msg := constants.MessageSuccess
	if res.Status == constants.StatusInvalid {
		msg = constants.MessageInvalidDoc
	}
	return Envelope{Success: true, Message: msg, Data: data}
}

// ErrorEnvelope maps a hard failure to the error shape. Data is always empty.
func ErrorEnvelope(err error) Envelope {
	var msg string
	switch {
	case errors.Is(err, common.ErrMalformedFieldSpec):
		msg = constants.MessageInvalidFieldsPrefix + common.Detail(err)
	case errors.Is(err, common.ErrUnsupportedFileType):
		msg = constants.MessageUnsupportedFileType
	default:
		msg = constants.MessageProcessingPrefix + common.Detail(err)
	}
	return Envelope{Success: false, Message: msg, Data: map[string]*string{}}
}
