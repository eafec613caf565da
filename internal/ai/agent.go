package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"

	"stockdesk/internal/core"
)

// AgentService interprets a natural-language back-office request into a typed
// action proposal, or a clarification question when the request is ambiguous.
// Proposals are never executed here; the caller confirms and runs them through
// the core services.
type AgentService interface {
	InterpretRequest(ctx context.Context, naturalLanguage string, catalogContext string) (*core.AssistantResponse, error)
}

type Agent struct {
	client *openai.Client
}

func NewAgent(apiKey string) *Agent {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Agent{client: &client}
}

func (a *Agent) InterpretRequest(ctx context.Context, naturalLanguage string, catalogContext string) (*core.AssistantResponse, error) {
	prompt := fmt.Sprintf(`You are a back-office assistant for an inventory and order management system.
Your goal is to interpret a request described in natural language and propose exactly one action:
create_order, create_import, create_payment, or reconcile.
Rules:
1. Use ONLY product, staff, customer, supplier and order ids from the catalog below.
2. Amounts must be exact decimal strings (e.g. "40.00").
3. Dates are YYYY-MM-DD; use today's date if the request does not state one.
4. Provide a confidence score (0.0-1.0) and explain your reasoning.
5. If critical information is missing or ambiguous, return a clarification request instead of guessing.

Catalog:
%s

Request: %s`, catalogContext, naturalLanguage)

	// Dynamically generate the JSON schema from the Go struct
	schemaStruct := generateSchema()
	schemaJSON, err := json.Marshal(schemaStruct)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(shared.ChatModelGPT4o),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(prompt),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "back_office_action",
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt("A proposed back-office action or a clarification request"),
				},
			},
		},
	}

	resp, err := a.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses error: %w", err)
	}

	content := resp.OutputText()
	if content == "" {
		return nil, fmt.Errorf("empty response content")
	}

	var response core.AssistantResponse
	if err := json.Unmarshal([]byte(content), &response); err != nil {
		return nil, fmt.Errorf("failed to parse completion: %w", err)
	}

	if response.IsClarificationRequest {
		if response.Clarification == nil {
			return nil, fmt.Errorf("clarification response missing message")
		}
		return &response, nil
	}
	if response.Proposal == nil {
		return nil, fmt.Errorf("response contains neither proposal nor clarification")
	}

	response.Proposal.Normalize()
	if err := response.Proposal.Validate(); err != nil {
		return nil, fmt.Errorf("proposal validation failed: %w", err)
	}

	return &response, nil
}

func generateSchema() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v core.AssistantResponse
	return reflector.Reflect(v)
}
