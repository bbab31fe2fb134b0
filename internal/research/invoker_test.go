package research

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fedresearch-cli/internal/model"
	"github.com/sells-group/fedresearch-cli/pkg/anthropic"
)

type fakeClient struct {
	resp    *anthropic.MessageResponse
	err     error
	lastReq anthropic.MessageRequest
	calls   int
}

func (f *fakeClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		ID:      "msg-1",
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

func testEntity() model.Entity {
	return model.Entity{
		Kind:         model.KindContact,
		Name:         "Jane Smith",
		Title:        "Contracting Officer",
		Agency:       "GSA",
		Contracts:    []string{"47QTCA-26-R-0001"},
		Agencies:     []string{"GSA"},
	}
}

func TestInvokeFreshProfile(t *testing.T) {
	client := &fakeClient{resp: textResponse(
		`{"overview":"20-year GSA contracting veteran","certifications":["FAC-C III"],` +
			`"agencies":["GSA"],"sources":["https://gsa.gov"],"confidence":"high"}`,
	)}
	iv := NewInvoker(client, InvokerOpts{Model: "claude-sonnet-4-5-20250929"}).WithNow(fixedNow)

	p := iv.Invoke(context.Background(), testEntity())
	require.NotNil(t, p)
	assert.Equal(t, model.MethodFresh, p.Method)
	assert.Equal(t, model.ConfidenceHigh, p.Confidence)
	assert.Equal(t, fixedNow(), p.ResearchedAt)

	var f model.Findings
	require.NoError(t, json.Unmarshal(p.Payload, &f))
	assert.Equal(t, "20-year GSA contracting veteran", f.Overview)
}

func TestInvokeRequestShape(t *testing.T) {
	client := &fakeClient{resp: textResponse(`{"overview":"x"}`)}
	iv := NewInvoker(client, InvokerOpts{
		Model:         "claude-sonnet-4-5-20250929",
		MaxTokens:     2048,
		MaxSearchUses: 3,
	})

	iv.Invoke(context.Background(), testEntity())

	req := client.lastReq
	assert.Equal(t, "claude-sonnet-4-5-20250929", req.Model)
	assert.Equal(t, int64(2048), req.MaxTokens)
	assert.Equal(t, int64(3), req.MaxSearchUses)
	assert.NotEmpty(t, req.System)
	require.Len(t, req.Messages, 1)
	assert.Contains(t, req.Messages[0].Content, "Jane Smith")
	assert.Contains(t, req.Messages[0].Content, "Contracting Officer")
	assert.Contains(t, req.Messages[0].Content, "47QTCA-26-R-0001")
}

func TestInvokeFocusInPrompt(t *testing.T) {
	client := &fakeClient{resp: textResponse(`{"overview":"x"}`)}
	iv := NewInvoker(client, InvokerOpts{
		Model: "claude-sonnet-4-5-20250929",
		Focus: &Focus{
			Emphasis:  []string{"8(a) certification status"},
			Questions: []string{"Do they hold a GWAC seat?"},
			Agencies:  []string{"GSA", "VA"},
		},
	})

	iv.Invoke(context.Background(), testEntity())
	prompt := client.lastReq.Messages[0].Content
	assert.Contains(t, prompt, "8(a) certification status")
	assert.Contains(t, prompt, "Do they hold a GWAC seat?")
	assert.Contains(t, prompt, "GSA; VA")
}

func TestInvokeFencedJSON(t *testing.T) {
	client := &fakeClient{resp: textResponse(
		"Here is the profile:\n```json\n{\"overview\":\"fenced\",\"confidence\":\"medium\"}\n```",
	)}
	iv := NewInvoker(client, InvokerOpts{Model: "m"})

	p := iv.Invoke(context.Background(), testEntity())
	assert.Equal(t, model.MethodFresh, p.Method)
	assert.Equal(t, model.ConfidenceMedium, p.Confidence)
	assert.True(t, strings.HasPrefix(string(p.Payload), "{"))
}

func TestInvokeNilClientFallsBack(t *testing.T) {
	iv := NewInvoker(nil, InvokerOpts{Model: "m"}).WithNow(fixedNow)

	p := iv.Invoke(context.Background(), testEntity())
	require.NotNil(t, p)
	assert.True(t, p.IsFallback())
	assert.Equal(t, model.ConfidenceLow, p.Confidence)

	var f model.Findings
	require.NoError(t, json.Unmarshal(p.Payload, &f))
	assert.Equal(t, []string{"47QTCA-26-R-0001"}, f.Contracts)
	assert.Equal(t, []string{"GSA"}, f.Agencies)
	assert.NotEmpty(t, f.Notes)
}

func TestInvokeAPIErrorFallsBack(t *testing.T) {
	client := &fakeClient{err: assert.AnError}
	iv := NewInvoker(client, InvokerOpts{Model: "m"})

	p := iv.Invoke(context.Background(), testEntity())
	assert.True(t, p.IsFallback())
	assert.Equal(t, 1, client.calls)
}

func TestInvokeUnparseableResponseFallsBack(t *testing.T) {
	client := &fakeClient{resp: textResponse("I could not find anything useful.")}
	iv := NewInvoker(client, InvokerOpts{Model: "m"})

	p := iv.Invoke(context.Background(), testEntity())
	assert.True(t, p.IsFallback())
}

func TestInvokeDefaults(t *testing.T) {
	iv := NewInvoker(&fakeClient{resp: textResponse(`{"overview":"x"}`)}, InvokerOpts{Model: "m"})
	assert.Equal(t, 2*time.Minute, iv.timeout)
	assert.Equal(t, int64(4096), iv.maxTok)
	assert.Equal(t, int64(5), iv.maxUses)
}

func TestConfidenceInference(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want model.Confidence
	}{
		{"explicit high", `{"confidence":"high"}`, model.ConfidenceHigh},
		{"explicit uppercased", `{"confidence":"Medium"}`, model.ConfidenceMedium},
		{
			"inferred high from rich payload",
			`{"overview":"x","certifications":["a"],"agencies":["b"],"sources":["c"]}`,
			model.ConfidenceHigh,
		},
		{
			"inferred medium",
			`{"overview":"x","sources":["c"]}`,
			model.ConfidenceMedium,
		},
		{"inferred low from sparse payload", `{"overview":"x"}`, model.ConfidenceLow},
		{"empty arrays do not count", `{"overview":"x","agencies":[],"sources":[]}`, model.ConfidenceLow},
		{"invalid value falls back to inference", `{"confidence":"certain","overview":"x"}`, model.ConfidenceLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw map[string]any
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &raw))
			assert.Equal(t, tt.want, confidenceFrom(raw))
		})
	}
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding prose", `Sure! {"a":1} Hope that helps.`, `{"a":1}`},
		{"no object", "nothing here", "nothing here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSON(tt.in))
		})
	}
}
