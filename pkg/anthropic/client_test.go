package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponseText(t *testing.T) {
	t.Parallel()

	resp := &MessageResponse{
		Content: []ContentBlock{
			{Type: "text", Text: "jane.doe@acme.io\n"},
			{Type: "thinking", Text: "ignored"},
			{Type: "text", Text: "jdoe@acme.io"},
		},
	}
	assert.Equal(t, "jane.doe@acme.io\njdoe@acme.io", resp.Text())
}

func TestEstimateCostKnownModel(t *testing.T) {
	t.Parallel()

	u := TokenUsage{InputTokens: 1_000_000, OutputTokens: 500_000}
	cost := u.EstimateCost("claude-haiku-4-5-20251001")
	assert.InDelta(t, 0.80+2.00, cost, 1e-9)
}

func TestEstimateCostUnknownModelIsZero(t *testing.T) {
	t.Parallel()

	u := TokenUsage{InputTokens: 1000}
	assert.Zero(t, u.EstimateCost("not-a-model"))
}

func TestEstimateCostCacheTokens(t *testing.T) {
	t.Parallel()

	u := TokenUsage{
		CacheCreationInputTokens: 1_000_000,
		CacheReadInputTokens:     1_000_000,
	}
	cost := u.EstimateCost("claude-haiku-4-5-20251001")
	// cache write at 1.25x input rate, cache read at 0.1x
	assert.InDelta(t, 0.80*1.25+0.80*0.1, cost, 1e-9)
}

func TestToSDKMessagesRoles(t *testing.T) {
	t.Parallel()

	out := toSDKMessages([]Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	})
	assert.Len(t, out, 2)
	assert.Equal(t, "user", string(out[0].Role))
	assert.Equal(t, "assistant", string(out[1].Role))
}

func TestBuildCachedSystemBlocks(t *testing.T) {
	t.Parallel()

	blocks := BuildCachedSystemBlocks("you generate emails")
	assert.Len(t, blocks, 1)
	assert.Equal(t, "you generate emails", blocks[0].Text)
	assert.Equal(t, "1h", blocks[0].CacheControl.TTL)
}
