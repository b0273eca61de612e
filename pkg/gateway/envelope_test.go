package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponseVariants(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		envelope Envelope
		want     Result
	}{
		{
			name:     "direct",
			raw:      `{"success": true, "product_id": "p-1", "user_id": "u-1", "data": {"labels": ["Mug"]}}`,
			envelope: DirectInvocation,
			want: Result{
				Success: true, SubjectID: "p-1", OwnerID: "u-1",
				Data: map[string]any{"labels": []any{"Mug"}},
			},
		},
		{
			name:     "direct ids under data",
			raw:      `{"success": true, "data": {"product_id": "p-2", "user_id": "u-2"}}`,
			envelope: DirectInvocation,
			want: Result{
				Success: true, SubjectID: "p-2", OwnerID: "u-2",
				Data: map[string]any{"product_id": "p-2", "user_id": "u-2"},
			},
		},
		{
			name:     "wrapped string body",
			raw:      `{"statusCode": 200, "body": "{\"success\": true, \"subject_id\": \"p-3\", \"owner_id\": \"u-3\"}"}`,
			envelope: WrappedBody,
			want: Result{
				Success: true, SubjectID: "p-3", OwnerID: "u-3",
				Data: map[string]any{"success": true, "subject_id": "p-3", "owner_id": "u-3"},
			},
		},
		{
			name:     "wrapped object body with error status",
			raw:      `{"statusCode": 500, "body": {"success": true}}`,
			envelope: WrappedBody,
			want: Result{
				Success: false,
				Error:   "capability returned status 500",
				Data:    map[string]any{"success": true},
			},
		},
		{
			name: "agent envelope json body",
			raw: `{"messageVersion": "1.0", "response": {"actionGroup": "image-analysis",
				"responseBody": {"application/json": {"body": "{\"success\": true, \"product_id\": \"p-4\"}"}}}}`,
			envelope: AgentEnvelope,
			want: Result{
				Success: true, SubjectID: "p-4",
				Data: map[string]any{"success": true, "product_id": "p-4"},
			},
		},
		{
			name: "agent envelope function response text",
			raw: `{"messageVersion": "1.0", "response": {"functionResponse": {
				"responseBody": {"TEXT": {"body": "{\"success\": false, \"error\": \"no image\"}"}}}}}`,
			envelope: AgentEnvelope,
			want: Result{
				Success: false, Error: "no image",
				Data: map[string]any{"success": false, "error": "no image"},
			},
		},
		{
			name: "agent envelope property list",
			raw: `{"messageVersion": "1.0", "response": {"responseBody": {"application/json": {"properties": [
				{"name": "success", "type": "boolean", "value": "true"},
				{"name": "product_id", "type": "string", "value": "p-5"},
				{"name": "data", "type": "string", "value": "{\"labels\": [\"Lamp\"]}"}
			]}}}}`,
			envelope: AgentEnvelope,
			want: Result{
				Success: true, SubjectID: "p-5",
				Data: map[string]any{"labels": []any{"Lamp"}},
			},
		},
		{
			name: "agent envelope failure state",
			raw: `{"messageVersion": "1.0", "response": {"functionResponse": {"responseState": "FAILURE",
				"responseBody": {"TEXT": {"body": "{\"error\": \"quota\"}"}}}}}`,
			envelope: AgentEnvelope,
			want: Result{
				Success: false, Error: "quota",
				Data: map[string]any{"error": "quota"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, kind, err := parseResponse([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.envelope, kind)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseResponseRejectsGarbage(t *testing.T) {
	for _, raw := range []string{`not json`, `[1,2]`, `{"body": 12}`, `{"messageVersion": "1.0", "response": {}}`} {
		_, _, err := parseResponse([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestDirectFailureMessages(t *testing.T) {
	res := parseDirect(map[string]any{"success": false, "error": map[string]any{"message": "bad key"}})
	assert.Equal(t, "bad key", res.Error)

	res = parseDirect(map[string]any{"status": "error", "message": "denied"})
	assert.False(t, res.Success)
	assert.Equal(t, "denied", res.Error)

	res = parseDirect(map[string]any{"status": "success"})
	assert.True(t, res.Success)
}
