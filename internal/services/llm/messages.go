package llm

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ternarybob/hunt/internal/interfaces"
	"google.golang.org/genai"
)

// convertMessagesToClaude converts provider-agnostic messages to the Claude
// wire format. System messages are lifted out and returned separately.
func convertMessagesToClaude(messages []interfaces.Message) ([]anthropic.MessageParam, string, error) {
	var claudeMessages []anthropic.MessageParam
	systemText := ""

	for _, message := range messages {
		switch message.Role {
		case "system":
			if systemText != "" {
				systemText += "\n"
			}
			systemText += message.Content
		case "user":
			claudeMessages = append(claudeMessages, anthropic.NewUserMessage(anthropic.NewTextBlock(message.Content)))
		case "assistant":
			claudeMessages = append(claudeMessages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(message.Content)))
		default:
			return nil, "", fmt.Errorf("unsupported message role: %s", message.Role)
		}
	}

	if len(claudeMessages) == 0 {
		return nil, "", fmt.Errorf("at least one user or assistant message is required")
	}

	return claudeMessages, systemText, nil
}

// convertMessagesToGemini converts provider-agnostic messages to the Gemini
// wire format. System messages are lifted out and returned separately.
func convertMessagesToGemini(messages []interfaces.Message) ([]*genai.Content, string, error) {
	var contents []*genai.Content
	systemText := ""

	for _, message := range messages {
		switch message.Role {
		case "system":
			if systemText != "" {
				systemText += "\n"
			}
			systemText += message.Content
		case "user":
			contents = append(contents, genai.NewContentFromText(message.Content, genai.RoleUser))
		case "assistant":
			contents = append(contents, genai.NewContentFromText(message.Content, genai.RoleModel))
		default:
			return nil, "", fmt.Errorf("unsupported message role: %s", message.Role)
		}
	}

	if len(contents) == 0 {
		return nil, "", fmt.Errorf("at least one user or assistant message is required")
	}

	return contents, systemText, nil
}
