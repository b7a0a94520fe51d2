package klippy

import "encoding/json"

// Request ids. Responses echo them back.
const (
	idInfo     = "ksl-info"
	idStats    = "ksl-stats"
	idRegister = "ksl-register"
)

// ActionSetStatusLED is the push notification action of the remote method
const ActionSetStatusLED = "set_status_led"

// Request represents an outbound request
type Request struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params"`
}

var (
	infoRequest = Request{ID: idInfo, Method: "info", Params: struct{}{}}

	statsRequest = Request{ID: idStats, Method: "objects/query", Params: map[string]any{
		"objects": map[string][]string{"print_stats": {"state"}},
	}}

	registerRequest = Request{ID: idRegister, Method: "register_remote_method", Params: map[string]any{
		"response_template": map[string]string{"action": ActionSetStatusLED},
		"remote_method":     ActionSetStatusLED,
	}}
)

// inbound is any message from the daemon: a response carries id and result
// or error, a notification carries action and params
type inbound struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
	Action string          `json:"action"`
	Params json.RawMessage `json:"params"`
}

func (m *inbound) failed() bool {
	return len(m.Error) > 0 && string(m.Error) != "null"
}

type infoResult struct {
	State        string `json:"state"`
	StateMessage string `json:"state_message"`
}

type statsResult struct {
	Status struct {
		PrintStats struct {
			State string `json:"state"`
		} `json:"print_stats"`
	} `json:"status"`
}

type statusLEDParams struct {
	State   *string `json:"state"`
	Enabled *bool   `json:"enabled"`
}
