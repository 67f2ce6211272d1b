package router

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// normalizeContent folds heterogeneous backend outputs into plain text.
// Backends usually return a bare string; structured outputs carry a
// content field. Anything else degrades to a best-effort cast. Never
// fails: malformed output becomes text, not an error.
func normalizeContent(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any:
		if c, ok := v["content"]; ok {
			return normalizeContent(c)
		}
		return fmt.Sprintf("%v", v)
	case json.RawMessage:
		return contentFromJSON(v)
	case []byte:
		return contentFromJSON(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// contentFromJSON pulls the content field out of a raw JSON payload,
// falling back to the payload itself as text.
func contentFromJSON(data []byte) string {
	if res := gjson.GetBytes(data, "content"); res.Exists() {
		return res.String()
	}
	return string(data)
}
