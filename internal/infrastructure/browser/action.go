package browser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

const (
	ActionNavigate = "navigate"
	ActionDone     = "done"
)

var ErrNoAction = errors.New("browser: model reply has no JSON action")

// Action is one decision of the collection agent.
type Action struct {
	Thought string                 `json:"thought"`
	Action  string                 `json:"action"`
	URL     string                 `json:"url,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// ParseAction reads the model's reply. Code fences, prose around the object
// and common JSON mistakes are tolerated.
func ParseAction(reply string) (*Action, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return nil, ErrNoAction
	}
	raw := reply[start : end+1]

	var a Action
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		fixed, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoAction, err)
		}
		if err := json.Unmarshal([]byte(fixed), &a); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoAction, err)
		}
	}

	a.Action = strings.ToLower(strings.TrimSpace(a.Action))
	if a.Action == ActionNavigate && a.URL == "" {
		if u, ok := a.Params["url"].(string); ok {
			a.URL = u
		}
	}
	switch a.Action {
	case ActionNavigate:
		if a.URL == "" {
			return nil, fmt.Errorf("%w: navigate without url", ErrNoAction)
		}
	case ActionDone:
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrNoAction, a.Action)
	}
	return &a, nil
}

// ParamsString renders the action parameters for the step log.
func (a *Action) ParamsString() string {
	params := a.Params
	if a.URL != "" {
		if params == nil {
			params = map[string]interface{}{}
		}
		if _, ok := params["url"]; !ok {
			params = copyParams(params)
			params["url"] = a.URL
		}
	}
	if len(params) == 0 {
		return ""
	}
	b, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprint(params)
	}
	return string(b)
}

func copyParams(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
