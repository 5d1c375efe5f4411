package openai

import (
	"encoding/json"

	"github.com/voxloop/voxloop/core/llms"
)

type openAIMessage struct {
	Type messageType `json:"type"`

	Role    messageRole `json:"role,omitempty"`
	Content string      `json:"content,omitempty"`

	ToolCallID        string `json:"call_id,omitempty"`
	ToolCallName      string `json:"name,omitempty"`
	ToolCallArguments string `json:"arguments,omitempty"`
	ToolCallOutput    string `json:"output,omitempty"`
	ToolCallStatus    string `json:"status,omitempty"`
}

type messageRole string

const (
	messageRoleDeveloper messageRole = "developer"
	messageRoleUser      messageRole = "user"
	messageRoleAssistant messageRole = "assistant"
)

type messageType string

const (
	messageTypeMessage            messageType = "message"
	messageTypeFunctionCall       messageType = "function_call"
	messageTypeFunctionCallOutput messageType = "function_call_output"
)

func toOpenAIMessages(instructions string, history []llms.Utterance) []openAIMessage {
	messages := []openAIMessage{}
	if instructions != "" {
		messages = append(messages, openAIMessage{
			Role:    messageRoleDeveloper,
			Type:    messageTypeMessage,
			Content: instructions,
		})
	}

	for _, utterance := range history {
		role := messageRoleUser
		if utterance.Role == llms.RoleAssistant {
			role = messageRoleAssistant
		}

		messages = append(messages, openAIMessage{
			Type:    messageTypeMessage,
			Role:    role,
			Content: utterance.Content,
		})
	}
	return messages
}

type openAITool struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

func toOpenAITools(tools []llms.Tool) []openAITool {
	openAITools := make([]openAITool, 0, len(tools))
	for _, tool := range tools {
		parameters, err := json.Marshal(tool.Parameters)
		if err != nil {
			continue
		}
		openAITools = append(openAITools, openAITool{
			Type:        "function",
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  parameters,
		})
	}
	return openAITools
}
