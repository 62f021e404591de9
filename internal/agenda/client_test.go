package agenda_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discussion-room/internal/agenda"
)

// geminiReply 构造一个 generateContent 成功响应，text 为模型输出
func geminiReply(text, finishReason string) map[string]interface{} {
	return map[string]interface{}{
		"candidates": []interface{}{
			map[string]interface{}{
				"content": map[string]interface{}{
					"role":  "model",
					"parts": []interface{}{map[string]interface{}{"text": text}},
				},
				"finishReason": finishReason,
			},
		},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *agenda.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := agenda.NewClient(context.Background(), agenda.Config{
		APIKey:  "test-key",
		Model:   "test-model",
		BaseURL: srv.URL,
		Timeout: timeout,
	})
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_Generate_ThreeSteps(t *testing.T) {
	const stepsJSON = `[
		{"step_name":"Diverge","prompt_question":"List five ideas each.","allocated_time":10},
		{"step_name":"Group","prompt_question":"Cluster similar ideas.","allocated_time":12},
		{"step_name":"Decide","prompt_question":"Pick one idea to pursue.","allocated_time":8}
	]`

	var captured map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/test-model:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		writeJSON(w, http.StatusOK, geminiReply(stepsJSON, "STOP"))
	}, time.Second)

	steps, err := client.Generate(context.Background(), "X", 30)
	require.NoError(t, err)
	assert.Equal(t, []agenda.Step{
		{StepName: "Diverge", PromptQuestion: "List five ideas each.", AllocatedTime: 10},
		{StepName: "Group", PromptQuestion: "Cluster similar ideas.", AllocatedTime: 12},
		{StepName: "Decide", PromptQuestion: "Pick one idea to pursue.", AllocatedTime: 8},
	}, steps)

	// 请求要求 JSON 输出并附带 schema
	genCfg, ok := captured["generationConfig"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "application/json", genCfg["responseMimeType"])
	assert.NotNil(t, genCfg["responseSchema"])

	contents := captured["contents"].([]interface{})
	prompt := contents[0].(map[string]interface{})["parts"].([]interface{})[0].(map[string]interface{})["text"].(string)
	assert.Contains(t, prompt, "X")
	assert.Contains(t, prompt, "30 minutes")
}

func TestClient_Generate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "malformed JSON payload",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, geminiReply(`[{"step_name": "Diverge", `, "STOP"))
			},
			wantErr: agenda.ErrParse,
		},
		{
			name: "payload is not an array",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, geminiReply(`{"steps": "none"}`, "STOP"))
			},
			wantErr: agenda.ErrParse,
		},
		{
			// 外层响应本身不是 JSON，属于服务端故障而不是模型输出格式错误
			name: "undecodable envelope",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("<html>not json</html>"))
			},
			wantErr: agenda.ErrServiceError,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "boom"})
			},
			wantErr: agenda.ErrServiceError,
		},
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
					"error": map[string]interface{}{"code": 429, "message": "quota", "status": "RESOURCE_EXHAUSTED"},
				})
			},
			wantErr: agenda.ErrServiceError,
		},
		{
			name: "prompt blocked",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]interface{}{
					"promptFeedback": map[string]string{"blockReason": "SAFETY"},
				})
			},
			wantErr: agenda.ErrRejected,
		},
		{
			name: "safety finish reason",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, geminiReply("", "SAFETY"))
			},
			wantErr: agenda.ErrRejected,
		},
		{
			name: "no candidates",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]interface{}{"candidates": []interface{}{}})
			},
			wantErr: agenda.ErrRejected,
		},
		{
			name: "step missing fields",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, geminiReply(`[{"step_name":"Diverge","allocated_time":10}]`, "STOP"))
			},
			wantErr: agenda.ErrRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler, time.Second)
			steps, err := client.Generate(context.Background(), "X", 30)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, steps)
		})
	}
}

func TestClient_Generate_Timeout(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)
	defer close(release)

	_, err := client.Generate(context.Background(), "X", 30)
	assert.ErrorIs(t, err, agenda.ErrServiceError)
}

func TestClient_Generate_WithoutAPIKey(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits++ }))
	defer srv.Close()

	client, err := agenda.NewClient(context.Background(), agenda.Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "X", 30)
	assert.ErrorIs(t, err, agenda.ErrServiceError)
	assert.Zero(t, hits)
}
