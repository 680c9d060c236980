package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// BedrockConverseAPI is the subset of the Bedrock runtime client the chat
// client needs; tests substitute a stub.
type BedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockClient implements Client using the AWS Bedrock Converse API.
type BedrockClient struct {
	api     BedrockConverseAPI
	modelID string
}

// NewBedrockClient wraps an already-configured Bedrock runtime client.
func NewBedrockClient(api BedrockConverseAPI, modelID string) (*BedrockClient, error) {
	if api == nil {
		return nil, errors.New("llm: bedrock converse client cannot be nil")
	}
	if strings.TrimSpace(modelID) == "" {
		return nil, errors.New("llm: bedrock model id is required")
	}
	return &BedrockClient{api: api, modelID: modelID}, nil
}

// Chat sends the conversation through the Converse API.
func (c *BedrockClient) Chat(ctx context.Context, messages []ChatMessage) (*ChatResponse, error) {
	var systemBlocks []brtypes.SystemContentBlock
	converseMessages := make([]brtypes.Message, 0, len(messages))

	for _, msg := range messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}

		switch msg.Role {
		case RoleSystem:
			systemBlocks = append(systemBlocks, &brtypes.SystemContentBlockMemberText{Value: content})
		case RoleUser:
			converseMessages = append(converseMessages, brtypes.Message{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: content},
				},
			})
		case RoleAssistant:
			converseMessages = append(converseMessages, brtypes.Message{
				Role: brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: content},
				},
			})
		default:
			return nil, fmt.Errorf("llm: unsupported role %q", msg.Role)
		}
	}

	if len(converseMessages) == 0 {
		return nil, errors.New("llm: bedrock requires at least one user message")
	}

	out, err := c.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:  aws.String(c.modelID),
		System:   systemBlocks,
		Messages: converseMessages,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: bedrock converse failed: %w", err)
	}

	text, err := extractConverseText(out)
	if err != nil {
		return nil, err
	}

	resp := &ChatResponse{
		Content: strings.TrimSpace(text),
		Model:   c.modelID,
	}
	if out.Usage != nil {
		resp.Usage = Usage{
			PromptTokens:     intOrZero(out.Usage.InputTokens),
			CompletionTokens: intOrZero(out.Usage.OutputTokens),
			TotalTokens:      intOrZero(out.Usage.TotalTokens),
		}
	}
	return resp, nil
}

func extractConverseText(out *bedrockruntime.ConverseOutput) (string, error) {
	if out == nil || out.Output == nil {
		return "", errors.New("llm: bedrock returned no output")
	}
	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("llm: bedrock returned unexpected output type")
	}
	var sb strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*brtypes.ContentBlockMemberText); ok {
			sb.WriteString(text.Value)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("llm: bedrock returned empty content")
	}
	return sb.String(), nil
}

func intOrZero(v *int32) int {
	if v == nil {
		return 0
	}
	return int(*v)
}

// TestConnection sends a minimal probe message.
func (c *BedrockClient) TestConnection(ctx context.Context) bool {
	_, err := c.Chat(ctx, []ChatMessage{{Role: RoleUser, Content: "ping"}})
	return err == nil
}

// HealthCheck reports provider reachability and configuration.
func (c *BedrockClient) HealthCheck(ctx context.Context) map[string]any {
	status := map[string]any{
		"provider": "bedrock",
		"model":    c.modelID,
	}
	if c.TestConnection(ctx) {
		status["status"] = "ok"
	} else {
		status["status"] = "unreachable"
	}
	return status
}

func (c *BedrockClient) Provider() string { return "bedrock" }
func (c *BedrockClient) Model() string    { return c.modelID }
