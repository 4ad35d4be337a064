package llm

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/spa-concierge/pkg/logging"
)

type fakeChatAPI struct {
	got  openai.ChatCompletionRequest
	resp openai.ChatCompletionResponse
	err  error
}

func (f *fakeChatAPI) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.got = req
	return f.resp, f.err
}

type fakeConverseAPI struct {
	got *bedrockruntime.ConverseInput
	out *bedrockruntime.ConverseOutput
	err error
}

func (f *fakeConverseAPI) Converse(_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.got = in
	return f.out, f.err
}

type stubClient struct {
	text  string
	err   error
	calls int
	wait  bool
}

func (s *stubClient) Complete(ctx context.Context, _ Request) (Response, error) {
	s.calls++
	if s.wait {
		<-ctx.Done()
		return Response{}, ctx.Err()
	}
	if s.err != nil {
		return Response{}, s.err
	}
	return Response{Text: s.text}, nil
}

func TestOpenAIClientComplete(t *testing.T) {
	api := &fakeChatAPI{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message:      openai.ChatCompletionMessage{Role: "assistant", Content: "  We open at 9.  "},
			FinishReason: openai.FinishReasonStop,
		}},
		Usage: openai.Usage{PromptTokens: 12, CompletionTokens: 5, TotalTokens: 17},
	}}
	client := newOpenAIClient(api, "")

	resp, err := client.Complete(context.Background(), Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "be nice"},
			{Role: RoleUser, Content: "hours?"},
		},
		MaxTokens: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, "We open at 9.", resp.Text)
	assert.Equal(t, "stop", resp.StopReason)
	assert.Equal(t, int32(17), resp.Usage.TotalTokens)

	assert.Equal(t, DefaultOpenAIModel, api.got.Model)
	assert.Equal(t, 100, api.got.MaxTokens)
	require.Len(t, api.got.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, api.got.Messages[0].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, api.got.Messages[1].Role)
}

func TestOpenAIClientErrors(t *testing.T) {
	client := newOpenAIClient(&fakeChatAPI{err: errors.New("boom")}, "gpt-test")
	_, err := client.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.Error(t, err)

	client = newOpenAIClient(&fakeChatAPI{}, "gpt-test")
	_, err = client.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.ErrorIs(t, err, ErrEmptyResponse)

	_, err = client.Complete(context.Background(), Request{Messages: []Message{{Role: "tool", Content: "hi"}}})
	require.Error(t, err)

	_, err = client.Complete(context.Background(), Request{})
	require.Error(t, err)
}

func TestNewOpenAIClientRequiresKey(t *testing.T) {
	_, err := NewOpenAIClient(" ", "", "")
	require.Error(t, err)
}

func TestBedrockClientMovesSystemMessages(t *testing.T) {
	api := &fakeConverseAPI{out: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: "Hello there"}},
		}},
		StopReason: brtypes.StopReasonEndTurn,
		Usage:      &brtypes.TokenUsage{InputTokens: aws.Int32(3), OutputTokens: aws.Int32(2), TotalTokens: aws.Int32(5)},
	}}
	client := NewBedrockClient(api, "anthropic.test")

	resp, err := client.Complete(context.Background(), Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "system prompt"},
			{Role: RoleUser, Content: "hi"},
			{Role: RoleAssistant, Content: "hello"},
			{Role: RoleUser, Content: "again"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there", resp.Text)
	assert.Equal(t, int32(5), resp.Usage.TotalTokens)

	require.Len(t, api.got.System, 1)
	require.Len(t, api.got.Messages, 3)
	assert.Equal(t, "anthropic.test", aws.ToString(api.got.ModelId))
}

func TestBedrockClientStartsWithUserTurn(t *testing.T) {
	api := &fakeConverseAPI{out: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: "Sure."}},
		}},
	}}
	client := NewBedrockClient(api, "anthropic.test")

	_, err := client.Complete(context.Background(), Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "system prompt"},
			{Role: RoleAssistant, Content: "We are open 9 to 7."},
			{Role: RoleUser, Content: "And on Sunday?"},
			{Role: RoleUser, Content: "Also holidays?"},
		},
	})
	require.NoError(t, err)

	require.Len(t, api.got.Messages, 1)
	assert.Equal(t, brtypes.ConversationRoleUser, api.got.Messages[0].Role)
	text, ok := api.got.Messages[0].Content[0].(*brtypes.ContentBlockMemberText)
	require.True(t, ok)
	assert.Equal(t, "And on Sunday?\n\nAlso holidays?", text.Value)
	assert.Nil(t, api.got.InferenceConfig.Temperature)
	assert.Nil(t, api.got.InferenceConfig.TopP)
}

func TestBedrockClientRejectsAssistantOnlyTranscript(t *testing.T) {
	api := &fakeConverseAPI{}
	client := NewBedrockClient(api, "anthropic.test")
	_, err := client.Complete(context.Background(), Request{Messages: []Message{
		{Role: RoleSystem, Content: "system prompt"},
		{Role: RoleAssistant, Content: "hello"},
	}})
	require.Error(t, err)
	assert.Nil(t, api.got)
}

func TestBedrockClientPassesExplicitTemperature(t *testing.T) {
	api := &fakeConverseAPI{out: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: "ok"}},
		}},
	}}
	client := NewBedrockClient(api, "anthropic.test")
	_, err := client.Complete(context.Background(), Request{
		Messages:    []Message{{Role: RoleUser, Content: "hi"}},
		Temperature: 0.4,
	})
	require.NoError(t, err)
	require.NotNil(t, api.got.InferenceConfig.Temperature)
	assert.InDelta(t, 0.4, *api.got.InferenceConfig.Temperature, 0.0001)
}

func TestBedrockClientRequiresModel(t *testing.T) {
	client := NewBedrockClient(&fakeConverseAPI{}, "")
	_, err := client.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.Error(t, err)
}

func TestBedrockClientEmptyOutput(t *testing.T) {
	client := NewBedrockClient(&fakeConverseAPI{out: &bedrockruntime.ConverseOutput{}}, "m")
	_, err := client.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.Error(t, err)
}

func TestGeminiTranscript(t *testing.T) {
	system, history, last, err := geminiTranscript([]Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "one"},
		{Role: RoleAssistant, Content: "two"},
		{Role: RoleUser, Content: "three"},
	})
	require.NoError(t, err)
	assert.Equal(t, "sys", system)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "model", history[1].Role)
	assert.Equal(t, "three", last)

	_, _, _, err = geminiTranscript([]Message{{Role: RoleSystem, Content: "only"}})
	require.Error(t, err)
}

func TestGeminiTranscriptStartsWithUserTurn(t *testing.T) {
	system, history, last, err := geminiTranscript([]Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleAssistant, Content: "We are open 9 to 7."},
		{Role: RoleUser, Content: "And on Sunday?"},
		{Role: RoleAssistant, Content: "Closed."},
		{Role: RoleUser, Content: "Book Monday then."},
	})
	require.NoError(t, err)
	assert.Equal(t, "sys", system)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "model", history[1].Role)
	assert.Equal(t, "Book Monday then.", last)

	_, history, last, err = geminiTranscript([]Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "hi"},
	})
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Equal(t, "hi", last)

	_, _, _, err = geminiTranscript([]Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
	})
	require.Error(t, err)
}

func TestConversationTurnsMergesRepeatedRoles(t *testing.T) {
	system, turns := conversationTurns([]Message{
		{Role: RoleSystem, Content: "a"},
		{Role: RoleAssistant, Content: "dropped"},
		{Role: RoleUser, Content: "one"},
		{Role: RoleUser, Content: "  "},
		{Role: RoleUser, Content: "two"},
		{Role: RoleAssistant, Content: "reply"},
		{Role: RoleSystem, Content: "b"},
		{Role: RoleUser, Content: "three"},
	})
	assert.Equal(t, []string{"a", "b"}, system)
	assert.Equal(t, []Message{
		{Role: RoleUser, Content: "one\n\ntwo"},
		{Role: RoleAssistant, Content: "reply"},
		{Role: RoleUser, Content: "three"},
	}, turns)
}

func TestFallbackClient(t *testing.T) {
	logger := logging.NewWithWriter("error", &bytes.Buffer{})

	primary := &stubClient{text: "primary"}
	secondary := &stubClient{text: "secondary"}
	resp, err := NewFallbackClient(primary, secondary, logger).Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "primary", resp.Text)
	assert.Zero(t, secondary.calls)

	primary = &stubClient{err: errors.New("down")}
	resp, err = NewFallbackClient(primary, secondary, logger).Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "secondary", resp.Text)

	_, err = NewFallbackClient(primary, nil, logger).Complete(context.Background(), Request{})
	require.EqualError(t, err, "down")

	failing := &stubClient{err: errors.New("also down")}
	_, err = NewFallbackClient(primary, failing, logger).Complete(context.Background(), Request{})
	require.EqualError(t, err, "also down")
}

func TestWithTimeout(t *testing.T) {
	slow := &stubClient{wait: true}
	client := WithTimeout(slow, 10*time.Millisecond)

	_, err := client.Complete(context.Background(), Request{})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	fast := &stubClient{text: "ok"}
	assert.Same(t, Client(fast), WithTimeout(fast, 0))
}
