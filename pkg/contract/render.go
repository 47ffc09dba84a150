package contract

import "strings"

// Display is a narrator reply split into what a front end shows the player.
type Display struct {
	Scene    string `json:"scene,omitempty"`
	Dialogue string `json:"dialogue,omitempty"`
	Feedback string `json:"feedback,omitempty"`
	// Raw is set when the reply could not be decoded and is shown as-is.
	Raw string `json:"raw,omitempty"`
}

// Render turns a parse result into display parts. A parse failure falls back
// to the raw narrator text.
func Render(r Result) Display {
	if !r.OK() {
		if r.Failure == nil {
			return Display{}
		}
		return Display{Raw: strings.TrimSpace(r.Failure.Raw)}
	}
	return Display{
		Scene:    strings.TrimSpace(r.Payload.Scene),
		Dialogue: strings.TrimSpace(r.Payload.NPCDialogue),
		Feedback: strings.TrimSpace(r.Payload.Evaluation),
	}
}

// Narration joins the scene and dialogue, or returns the raw text on failure.
func (d Display) Narration() string {
	if d.Raw != "" {
		return d.Raw
	}
	parts := make([]string, 0, 2)
	for _, p := range []string{d.Scene, d.Dialogue} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n\n")
}
