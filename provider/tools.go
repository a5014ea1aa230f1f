package provider

import (
	"encoding/json"
	"fmt"
)

// HasToolCalls checks if a ChatRequest contains tool definitions.
func HasToolCalls(req *ChatRequest) bool {
	return len(req.Tools) > 0
}

// HasToolMessages checks if any messages in the request are tool responses.
func HasToolMessages(req *ChatRequest) bool {
	for _, msg := range req.Messages {
		if msg.Role == "tool" || msg.ToolCallID != "" {
			return true
		}
	}
	return false
}

// ValidateToolDefinitions checks that tool definitions are well-formed,
// before a request is handed to a provider connector. Anthropic's SDK and
// the OpenAI/Ollama OpenAI-compatible wire format all accept the same
// function-tool shape, so one validator serves every connector.
func ValidateToolDefinitions(tools []Tool) error {
	seen := make(map[string]bool)
	for i, t := range tools {
		if t.Type != "function" {
			return fmt.Errorf("tool[%d]: unsupported type %q (only 'function' is supported)", i, t.Type)
		}
		if t.Function.Name == "" {
			return fmt.Errorf("tool[%d]: function name is required", i)
		}
		if seen[t.Function.Name] {
			return fmt.Errorf("tool[%d]: duplicate function name %q", i, t.Function.Name)
		}
		seen[t.Function.Name] = true
		if len(t.Function.Parameters) > 0 {
			var js json.RawMessage
			if err := json.Unmarshal(t.Function.Parameters, &js); err != nil {
				return fmt.Errorf("tool[%d] %q: parameters is not valid JSON: %w", i, t.Function.Name, err)
			}
		}
	}
	return nil
}
