package schema

// Surface message types. Outbound messages go from the bridge to the
// presentation surface; inbound messages come back from it.
const (
	MsgShowPrompt = "show_prompt" // outbound: display a prompt
	MsgSetPort    = "set_port"    // outbound: announce the bridge port
	MsgReady      = "ready"       // inbound: surface finished initializing
	MsgContinue   = "continue"    // inbound: let the agent proceed
	MsgEnd        = "end"         // inbound: terminate the interaction
	MsgSubmit     = "submit"      // inbound: free-form text plus inline images
)

// SurfaceMessage is the JSON envelope for both directions of surface traffic.
// Only the fields relevant to the given Type are populated.
type SurfaceMessage struct {
	Type           string   `json:"type"`
	Prompt         string   `json:"prompt,omitempty"`
	RequestID      string   `json:"requestId,omitempty"`
	TimeoutMinutes float64  `json:"timeoutMinutes,omitempty"`
	Port           int      `json:"port,omitempty"`
	Text           string   `json:"text,omitempty"`
	Images         []string `json:"images,omitempty"`
}
