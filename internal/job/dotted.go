package job

import "strings"

// DotGet resolves a dotted path like "result.ticketId" inside a decoded JSON
// document. An empty path returns the document itself. Lists are traversed
// through their first element, matching the API's single-result envelopes.
func DotGet(doc any, path string) (any, bool) {
	if path == "" {
		return doc, doc != nil
	}
	cur := doc
	for _, part := range strings.Split(path, ".") {
		if list, ok := cur.([]any); ok {
			if len(list) == 0 {
				return nil, false
			}
			cur = list[0]
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
