package llm

import (
	"github.com/pkoukk/tiktoken-go"
)

// perMessageOverhead approximates the wrapping tokens the chat format adds
// around each message.
const perMessageOverhead = 4

// estimateTokens gives a rough prompt size for logging. Best effort: returns
// 0 when no encoding is available for the model.
func estimateTokens(model string, messages []Message) int {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return 0
		}
	}

	total := 0
	for _, m := range messages {
		total += len(enc.Encode(m.Content, nil, nil)) + perMessageOverhead
	}
	return total
}
