package rpc

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
)

// PushID is the response id of wallet-originated pushes. Page RPC ids never
// take this value.
const PushID = "tallyHo"

var pushIDRaw = json.RawMessage(`"` + PushID + `"`)

var ErrMalformedEnvelope = errors.New("malformed rpc envelope")

// Inbound is a page message as forwarded by the extension.
type Inbound struct {
	ID      json.RawMessage `json:"id"`
	Request Request         `json:"request"`
}

type Request struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// Response carries either a method result or a *ProviderError in Result.
type Response struct {
	ID     json.RawMessage `json:"id"`
	Result any             `json:"result"`
}

func DecodeInbound(b []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(b, &in); err != nil {
		return Inbound{}, errors.Wrap(ErrMalformedEnvelope, err.Error())
	}
	id := bytes.TrimSpace(in.ID)
	if len(id) == 0 || bytes.Equal(id, []byte("null")) {
		return Inbound{}, errors.Wrap(ErrMalformedEnvelope, "missing id")
	}
	if bytes.Equal(id, pushIDRaw) {
		return Inbound{}, errors.Wrap(ErrMalformedEnvelope, "reserved id")
	}
	in.Request.Method = strings.TrimSpace(in.Request.Method)
	if in.Request.Method == "" {
		return Inbound{}, errors.Wrap(ErrMalformedEnvelope, "missing method")
	}
	return in, nil
}

func (in Inbound) Method() Method { return ParseMethod(in.Request.Method) }

// Reply builds the response to in.
func (in Inbound) Reply(result any) Response {
	return Response{ID: in.ID, Result: result}
}

// NewPush builds an unsolicited push. payload keys are merged next to method.
func NewPush(method string, payload map[string]any) Response {
	result := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		result[k] = v
	}
	result["method"] = method
	return Response{ID: pushIDRaw, Result: result}
}

func (r Response) IsPush() bool {
	return bytes.Equal(r.ID, pushIDRaw)
}
