package gateway

import (
	"fmt"
	"strings"

	"github.com/spawn-mcp/campaign-synth/pkg/json"
)

// Envelope is the response shape a capability answered with.
type Envelope int

const (
	// DirectInvocation is a bare result object.
	DirectInvocation Envelope = iota
	// WrappedBody carries the result under "body", as a string or an object.
	WrappedBody
	// AgentEnvelope is the agent-framework shape: messageVersion plus a
	// nested response with content-typed bodies or property lists.
	AgentEnvelope
)

func (e Envelope) String() string {
	switch e {
	case WrappedBody:
		return "wrapped_body"
	case AgentEnvelope:
		return "agent_envelope"
	default:
		return "direct"
	}
}

var (
	subjectIDAliases = []string{"subject_id", "product_id", "subjectId", "productId"}
	ownerIDAliases   = []string{"owner_id", "user_id", "ownerId", "userId"}
)

// detectEnvelope decides the response variant once, up front.
func detectEnvelope(m map[string]any) Envelope {
	if _, ok := m["messageVersion"]; ok {
		if _, ok := m["response"].(map[string]any); ok {
			return AgentEnvelope
		}
	}
	if _, ok := m["body"]; ok {
		return WrappedBody
	}
	return DirectInvocation
}

// parseResponse decodes raw and dispatches to the parser for its variant.
func parseResponse(raw []byte) (Result, Envelope, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return Result{}, DirectInvocation, fmt.Errorf("capability response is not a JSON object")
	}

	kind := detectEnvelope(m)
	var (
		res Result
		err error
	)
	switch kind {
	case AgentEnvelope:
		res, err = parseAgentEnvelope(m)
	case WrappedBody:
		res, err = parseWrappedBody(m)
	default:
		res = parseDirect(m)
	}
	return res, kind, err
}

func parseDirect(m map[string]any) Result {
	data, _ := m["data"].(map[string]any)

	res := Result{
		Success:   successOf(m),
		SubjectID: lookup(m, data, subjectIDAliases),
		OwnerID:   lookup(m, data, ownerIDAliases),
		Data:      data,
	}
	if res.Data == nil {
		res.Data = m
	}
	if !res.Success {
		res.Error = errorText(m)
	}
	return res
}

func parseWrappedBody(m map[string]any) (Result, error) {
	body, err := decodeObject(m["body"])
	if err != nil {
		return Result{}, fmt.Errorf("wrapped body: %w", err)
	}
	res := parseDirect(body)
	if code, ok := m["statusCode"].(float64); ok && code >= 400 {
		res.Success = false
		if res.Error == "" {
			res.Error = fmt.Sprintf("capability returned status %d", int(code))
		}
	}
	return res, nil
}

func parseAgentEnvelope(m map[string]any) (Result, error) {
	resp := m["response"].(map[string]any)

	if fr, ok := resp["functionResponse"].(map[string]any); ok {
		if state, _ := fr["responseState"].(string); state == "FAILURE" || state == "REPROMPT" {
			res := Result{Error: "capability reported " + strings.ToLower(state)}
			if body, err := agentBody(fr); err == nil {
				parsed := parseDirect(body)
				res.Data = parsed.Data
				if parsed.Error != "" {
					res.Error = parsed.Error
				}
			}
			return res, nil
		}
		resp = fr
	}

	body, err := agentBody(resp)
	if err != nil {
		return Result{}, fmt.Errorf("agent envelope: %w", err)
	}
	if _, nested := body["body"]; nested {
		return parseWrappedBody(body)
	}
	return parseDirect(body), nil
}

// agentBody finds the payload of an agent response. Content types are tried
// in order; a body may be a JSON string, an object, or a property list.
func agentBody(resp map[string]any) (map[string]any, error) {
	rb, ok := resp["responseBody"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("missing responseBody")
	}
	for _, ct := range []string{"application/json", "TEXT"} {
		content, ok := rb[ct].(map[string]any)
		if !ok {
			continue
		}
		if props, ok := content["properties"].([]any); ok {
			return propertiesToMap(props), nil
		}
		if body, ok := content["body"]; ok {
			return decodeObject(body)
		}
	}
	return nil, fmt.Errorf("responseBody has no readable content")
}

// propertiesToMap folds [{name, type, value}] into an object. String values
// that hold JSON are decoded.
func propertiesToMap(props []any) map[string]any {
	out := make(map[string]any, len(props))
	for _, p := range props {
		prop, ok := p.(map[string]any)
		if !ok {
			continue
		}
		name, _ := prop["name"].(string)
		if name == "" {
			continue
		}
		value := prop["value"]
		if s, ok := value.(string); ok {
			trimmed := strings.TrimSpace(s)
			if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
				var decoded any
				if json.Unmarshal([]byte(trimmed), &decoded) == nil {
					value = decoded
				}
			}
			if t, _ := prop["type"].(string); t == "boolean" {
				value = strings.EqualFold(trimmed, "true")
			}
		}
		out[name] = value
	}
	return out
}

func decodeObject(v any) (map[string]any, error) {
	switch b := v.(type) {
	case map[string]any:
		return b, nil
	case string:
		var m map[string]any
		if err := json.Unmarshal([]byte(b), &m); err != nil || m == nil {
			return nil, fmt.Errorf("body is not a JSON object")
		}
		return m, nil
	default:
		return nil, fmt.Errorf("body has unexpected type %T", v)
	}
}

func successOf(m map[string]any) bool {
	switch s := m["success"].(type) {
	case bool:
		return s
	case string:
		return strings.EqualFold(s, "true")
	}
	status, _ := m["status"].(string)
	return strings.EqualFold(status, "success")
}

func errorText(m map[string]any) string {
	switch e := m["error"].(type) {
	case string:
		if e != "" {
			return e
		}
	case map[string]any:
		if msg, ok := e["message"].(string); ok {
			return msg
		}
	}
	if msg, ok := m["message"].(string); ok && msg != "" {
		return msg
	}
	return "capability reported failure"
}

func lookup(m, data map[string]any, aliases []string) string {
	for _, src := range []map[string]any{m, data} {
		for _, k := range aliases {
			if s, ok := src[k].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
