package webchat

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const DirectionOutbound = "OUTBOUND"

// RemoteMessage is one message as the webchat API reports it.
type RemoteMessage struct {
	ID        string
	Direction string
	Content   string
	CreatedAt time.Time
	HasTime   bool
}

func (m RemoteMessage) Outbound() bool {
	return m.Direction == DirectionOutbound
}

// Envelope is a decoded webchat response.
type Envelope struct {
	SessionID string
	Messages  []RemoteMessage
	// ListMatched is set when a message list shape was found, even an empty one.
	ListMatched bool
	// MatchedRule names the rule that produced Messages or ReplyText.
	MatchedRule string
	ReplyText   string
	ReplyID     string
}

type object = map[string]any

// listRule locates message objects in a response body.
type listRule struct {
	name string
	find func(body object) ([]any, bool)
}

// textRule locates a bare reply string in a response body.
type textRule struct {
	name string
	find func(body object) (text, id string, ok bool)
}

var listRules = []listRule{
	{"messages", arrayField("messages")},
	{"responses", arrayField("responses")},
	{"data.messages", nestedArray("data", "messages")},
	{"data.responses", nestedArray("data", "responses")},
	{"data[]", arrayField("data")},
	{"result.messages", nestedArray("result", "messages")},
	{"result.responses", nestedArray("result", "responses")},
	{"result[]", arrayField("result")},
	{"message{}", singleObject("message")},
	{"data{}", singleObject("data")},
	{"result{}", singleObject("result")},
	{"direct", directFields},
}

var replyFields = []string{"message", "content", "reply", "text", "response", "answer"}

var textRules = buildTextRules()

func buildTextRules() []textRule {
	var rules []textRule
	for _, scope := range []string{"", "data", "result"} {
		for _, field := range replyFields {
			name := field
			if scope != "" {
				name = scope + "." + field
			}
			rules = append(rules, textRule{name, stringField(scope, field)})
		}
	}
	return rules
}

func arrayField(key string) func(object) ([]any, bool) {
	return func(body object) ([]any, bool) {
		arr, ok := body[key].([]any)
		return arr, ok
	}
}

func nestedArray(parent, key string) func(object) ([]any, bool) {
	return func(body object) ([]any, bool) {
		inner, ok := body[parent].(object)
		if !ok {
			return nil, false
		}
		arr, ok := inner[key].([]any)
		return arr, ok
	}
}

func singleObject(key string) func(object) ([]any, bool) {
	return func(body object) ([]any, bool) {
		inner, ok := body[key].(object)
		if !ok || !looksLikeMessage(inner) {
			return nil, false
		}
		return []any{inner}, true
	}
}

func directFields(body object) ([]any, bool) {
	if !looksLikeMessage(body) {
		return nil, false
	}
	return []any{body}, true
}

func looksLikeMessage(o object) bool {
	_, hasDir := o["direction"]
	_, hasContent := o["content"]
	return hasDir && hasContent
}

func stringField(scope, key string) func(object) (string, string, bool) {
	return func(body object) (string, string, bool) {
		src := body
		if scope != "" {
			inner, ok := body[scope].(object)
			if !ok {
				return "", "", false
			}
			src = inner
		}
		s, ok := src[key].(string)
		if !ok || strings.TrimSpace(s) == "" {
			return "", "", false
		}
		return s, idString(src["id"]), true
	}
}

// ParseEnvelope decodes a webchat response body. Message lists are probed
// first, in listRules order. Reply text is only probed when no list shape matched.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	env := &Envelope{}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return env, nil
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode webchat response: %w", err)
	}

	switch v := decoded.(type) {
	case []any:
		env.ListMatched = true
		env.MatchedRule = "[]"
		env.Messages = toMessages(v)
		return env, nil
	case object:
		extract(v, env)
		return env, nil
	default:
		return env, nil
	}
}

func extract(body object, env *Envelope) {
	env.SessionID = sessionID(body)

	for _, rule := range listRules {
		items, ok := rule.find(body)
		if !ok {
			continue
		}
		env.ListMatched = true
		env.MatchedRule = rule.name
		env.Messages = toMessages(items)
		return
	}

	for _, rule := range textRules {
		text, id, ok := rule.find(body)
		if !ok {
			continue
		}
		env.MatchedRule = rule.name
		env.ReplyText = text
		env.ReplyID = id
		return
	}
}

func sessionID(body object) string {
	if id := idString(body["sessionId"]); id != "" {
		return id
	}
	for _, scope := range []string{"data", "result"} {
		if inner, ok := body[scope].(object); ok {
			if id := idString(inner["sessionId"]); id != "" {
				return id
			}
		}
	}
	return ""
}

func toMessages(items []any) []RemoteMessage {
	out := make([]RemoteMessage, 0, len(items))
	for _, it := range items {
		o, ok := it.(object)
		if !ok {
			continue
		}
		m := RemoteMessage{
			ID:        idString(o["id"]),
			Direction: stringValue(o["direction"]),
			Content:   stringValue(o["content"]),
		}
		m.CreatedAt, m.HasTime = parseTimestamp(o["createdAt"])
		out = append(out, m)
	}
	return out
}

func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

// parseTimestamp accepts RFC 3339 strings, numeric strings and epoch numbers.
// Epoch values below 1e12 are seconds, otherwise milliseconds.
func parseTimestamp(v any) (time.Time, bool) {
	switch ts := v.(type) {
	case string:
		if ts == "" {
			return time.Time{}, false
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			return t, true
		}
		if f, err := strconv.ParseFloat(ts, 64); err == nil {
			return epoch(f)
		}
		return time.Time{}, false
	case float64:
		return epoch(ts)
	default:
		return time.Time{}, false
	}
}

func epoch(f float64) (time.Time, bool) {
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, false
	}
	if f < 1e12 {
		sec, frac := math.Modf(f)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
	}
	return time.UnixMilli(int64(f)).UTC(), true
}
