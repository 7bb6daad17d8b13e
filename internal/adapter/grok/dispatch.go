package grok

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/captured/llm-capture/internal/model"
)

// ParseInterceptedData routes an intercepted payload to the right
// x.com/grok.com endpoint-family parser based on url, then returns the
// (possibly partially updated) active conversation record for its id
// (spec.md §4.2.3). Endpoint families other than the conversation ones
// (e.g. title-only responses) return (nil, nil): they still mutate the
// active cache by identity for callers already holding a reference.
func (a *Adapter) ParseInterceptedData(raw any, apiURL string) (*model.Conversation, error) {
	var payload map[string]any
	switch v := raw.(type) {
	case map[string]any:
		payload = v
	case string:
		if err := json.Unmarshal([]byte(v), &payload); err != nil {
			return nil, fmt.Errorf("grok: decoding payload: %w", err)
		}
	default:
		return nil, fmt.Errorf("grok: unsupported payload type %T", raw)
	}

	u, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("grok: invalid url: %w", err)
	}
	host := strings.ToLower(u.Hostname())

	switch {
	case xcomHosts[host]:
		if m := xcomGraphQLRE.FindStringSubmatch(u.Path); m != nil {
			switch m[1] {
			case "GrokConversationItemsByRestId":
				restID, ok := a.ExtractConversationIDFromURL(apiURL)
				if !ok {
					return nil, fmt.Errorf("grok: ItemsByRestId request missing restId")
				}
				if err := a.parseItemsByRestID(payload, restID); err != nil {
					return nil, err
				}
				return a.Active(restID), nil
			case "GrokHistory":
				return nil, a.parseGrokHistory(payload)
			}
		}
		return nil, fmt.Errorf("grok: unrecognized x.com endpoint %q", u.Path)

	case grokComHosts[host]:
		m := grokComAPIRE.FindStringSubmatch(u.Path)
		if m == nil {
			return nil, fmt.Errorf("grok: unrecognized grok.com endpoint %q", u.Path)
		}
		id, family := m[1], m[2]
		switch family {
		case "":
			if err := a.parseConversationMeta(payload, id); err != nil {
				return nil, err
			}
		case "response-node":
			if err := a.parseResponseNode(payload, id); err != nil {
				return nil, err
			}
		case "load-responses":
			if err := a.parseLoadResponses(payload, id); err != nil {
				return nil, err
			}
		}
		return a.Active(id), nil

	default:
		return nil, fmt.Errorf("grok: unsupported host %q", host)
	}
}
