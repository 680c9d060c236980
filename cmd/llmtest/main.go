package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/joho/godotenv"

	"github.com/shopchat-ai/shopchat/cmd/mainconfig"
	appconfig "github.com/shopchat-ai/shopchat/internal/config"
	"github.com/shopchat-ai/shopchat/internal/llm"
)

// Smoke-tests the configured LLM providers with a short shopping exchange.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	factory := llm.NewFactory(bedrockruntime.NewFromConfig(awsCfg))

	messages := []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: "You are a friendly shop assistant. Keep responses under 50 words."},
		{Role: llm.RoleUser, Content: "Do you have any waterproof hiking boots?"},
	}

	fmt.Println("LLM Provider Test")
	fmt.Println("-----------------")

	tests := []struct {
		provider string
		config   llm.Config
		skip     string
	}{
		{
			provider: "openai",
			config:   llm.Config{APIKey: os.Getenv("OPENAI_API_KEY"), Model: "gpt-4o-mini", BaseURL: cfg.OpenAIBaseURL},
			skip:     skipUnless("OPENAI_API_KEY"),
		},
		{
			provider: "gemini",
			config:   llm.Config{APIKey: os.Getenv("GEMINI_API_KEY"), Model: cfg.GeminiModelID},
			skip:     skipUnless("GEMINI_API_KEY"),
		},
		{
			provider: "bedrock",
			config:   llm.Config{Model: cfg.BedrockModelID},
			skip:     skipIf(cfg.BedrockModelID == "", "BEDROCK_MODEL_ID not set"),
		},
	}

	for i, tc := range tests {
		fmt.Printf("\n[%d] %s\n", i+1, tc.provider)
		if tc.skip != "" {
			fmt.Printf("    skipped: %s\n", tc.skip)
			continue
		}

		client, err := factory.Create(ctx, tc.provider, tc.config)
		if err != nil {
			fmt.Printf("    create client failed: %v\n", err)
			continue
		}

		if !client.TestConnection(ctx) {
			fmt.Printf("    connection test failed (health: %v)\n", client.HealthCheck(ctx))
			continue
		}

		start := time.Now()
		resp, err := client.Chat(ctx, messages)
		elapsed := time.Since(start)
		if err != nil {
			fmt.Printf("    chat failed: %v\n", err)
			continue
		}
		fmt.Printf("    ok (%v, model %s)\n", elapsed.Round(time.Millisecond), resp.Model)
		fmt.Printf("    %s\n", resp.Content)
		fmt.Printf("    tokens: prompt=%d completion=%d\n",
			resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}
}

func skipUnless(envKey string) string {
	if os.Getenv(envKey) == "" {
		return envKey + " not set"
	}
	return ""
}

func skipIf(cond bool, reason string) string {
	if cond {
		return reason
	}
	return ""
}
