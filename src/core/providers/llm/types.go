package llm

import (
	"encoding/json"
	"fmt"
)

// ContentPart is one segment of a multi-part (vision) message.
type ContentPart struct {
	Type     string `json:"type"` // text/image_url
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
}

// Message is one chat turn. Parts, when set, takes precedence over Content
// on the wire (vision requests).
type Message struct {
	Role    string        `json:"role"`
	Content string        `json:"content"`
	Parts   []ContentPart `json:"-"`
}

// MarshalJSON emits either the plain string content or the multi-part
// array the providers expect.
func (m Message) MarshalJSON() ([]byte, error) {
	if len(m.Parts) > 0 {
		return json.Marshal(struct {
			Role    string        `json:"role"`
			Content []ContentPart `json:"content"`
		}{m.Role, m.Parts})
	}
	return json.Marshal(struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}{m.Role, m.Content})
}

// TextPart builds a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: "text", Text: text}
}

// ImagePart builds an image content part.
func ImagePart(url string) ContentPart {
	p := ContentPart{Type: "image_url"}
	p.ImageURL = &struct {
		URL string `json:"url"`
	}{URL: url}
	return p
}

// ProviderError carries the upstream HTTP status of a failed completion.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s completion failed with status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// completionResponse is the shared choices[0].message.content envelope.
type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// replyFrom extracts the assistant reply; a missing path degrades to an
// empty string rather than an error.
func replyFrom(resp completionResponse) string {
	if len(resp.Choices) == 0 {
		return ""
	}
	return resp.Choices[0].Message.Content
}
