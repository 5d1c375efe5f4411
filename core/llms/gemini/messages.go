package gemini

import (
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/voxloop/voxloop/core/llms"
	"google.golang.org/genai"
)

func toGeminiContents(history []llms.Utterance) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, utterance := range history {
		role := genai.RoleUser
		if utterance.Role == llms.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(utterance.Content)},
		})
	}
	return contents
}

func toGeminiTools(tools []llms.Tool) []*genai.Tool {
	geminiTools := make([]*genai.Tool, 0, len(tools))
	for _, tool := range tools {
		geminiTools = append(geminiTools, &genai.Tool{
			FunctionDeclarations: []*genai.FunctionDeclaration{
				{
					Name:        tool.Name,
					Description: tool.Description,
					Parameters:  convertSchema(tool.Parameters),
				},
			},
		})
	}
	return geminiTools
}

func convertSchema(schema *jsonschema.Schema) *genai.Schema {
	if schema == nil {
		return nil
	}

	enums := make([]string, 0, len(schema.Enum))
	for _, v := range schema.Enum {
		enums = append(enums, fmt.Sprintf("%v", v))
	}

	converted := genai.Schema{
		Format:      schema.Format,
		Description: schema.Description,
		Enum:        enums,
		Items:       convertSchema(schema.Items),
		Required:    schema.Required,
	}

	if schema.Properties != nil && schema.Properties.Len() > 0 {
		converted.Properties = make(map[string]*genai.Schema, schema.Properties.Len())
		for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
			converted.Properties[pair.Key] = convertSchema(pair.Value)
		}
	}

	switch schema.Type {
	case "object":
		converted.Type = genai.TypeObject
	case "array":
		converted.Type = genai.TypeArray
	case "string":
		converted.Type = genai.TypeString
	case "number":
		converted.Type = genai.TypeNumber
	case "integer":
		converted.Type = genai.TypeInteger
	case "boolean":
		converted.Type = genai.TypeBoolean
	}
	return &converted
}
