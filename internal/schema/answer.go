package schema

import "fmt"

// Action is the terminal disposition of a bridge request.
type Action string

const (
	ActionContinue    Action = "continue"
	ActionEnd         Action = "end"
	ActionInstruction Action = "instruction"
	ActionError       Action = "error"
)

// Answer is the terminal payload written back to the waiting agent. Images
// is never nil so the wire form is always a JSON array.
type Answer struct {
	Action Action   `json:"action"`
	Text   string   `json:"text"`
	Images []string `json:"images"`
	Error  string   `json:"error,omitempty"`
}

// Continue acknowledges the prompt without new input.
func Continue() Answer {
	return Answer{Action: ActionContinue, Images: []string{}}
}

// End terminates the interaction.
func End() Answer {
	return Answer{Action: ActionEnd, Images: []string{}}
}

// Instruction carries free-form human input and any saved image paths.
func Instruction(text string, images []string) Answer {
	if images == nil {
		images = []string{}
	}
	return Answer{Action: ActionInstruction, Text: text, Images: images}
}

// Errorf builds the synthetic terminal answer used for timeout, supersession,
// shutdown and abandonment.
func Errorf(format string, args ...any) Answer {
	return Answer{Action: ActionError, Images: []string{}, Error: fmt.Sprintf(format, args...)}
}
