package conversation

import "errors"

// ErrMerchantNotFound indicates the merchant has no configuration. Fatal for
// the call, surfaced distinctly so entrypoints can 404; never defaulted.
var ErrMerchantNotFound = errors.New("conversation: merchant not found")

// ErrLLMProvider is the single error kind the pipeline exposes for internal
// failures. Auth errors, timeouts, and rate limits from any provider all
// collapse into this before reaching the caller.
var ErrLLMProvider = errors.New("conversation: llm provider failure")
