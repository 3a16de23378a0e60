package cmd

import (
	"os"

	"github.com/spf13/viper"

	"github.com/joescharf/civic/internal/llm"
)

// newLLMClient returns a summary client from config or ANTHROPIC_API_KEY, or
// nil when no key is configured.
func newLLMClient() *llm.Client {
	apiKey := viper.GetString("anthropic.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil
	}
	return llm.NewClient(apiKey, viper.GetString("anthropic.model"))
}
