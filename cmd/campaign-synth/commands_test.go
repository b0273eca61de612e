package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spawn-mcp/campaign-synth/pkg/campaign"
	"github.com/spawn-mcp/campaign-synth/pkg/json"
	"github.com/spawn-mcp/campaign-synth/pkg/types"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestValidateAcceptsBuiltCampaign(t *testing.T) {
	doc, err := json.Marshal(map[string]any{
		"success":  true,
		"campaign": campaign.Build(types.SubjectRecord{types.FieldProductName: "Lamp"}),
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "outcome.json")
	require.NoError(t, os.WriteFile(path, doc, 0o644))

	out, err := execute(t, "", "validate", "--campaign", path)
	require.NoError(t, err)
	assert.Contains(t, out, "campaign is valid")
}

func TestValidateRejectsPartialCampaignFromStdin(t *testing.T) {
	_, err := execute(t, `{"product":{},"campaigns":{}}`, "validate", "--campaign", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "campaigns")
}

func TestSchemaPrintsLayout(t *testing.T) {
	out, err := execute(t, "", "schema")
	require.NoError(t, err)

	var layout map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &layout))
	assert.Len(t, layout, len(types.ResultKeys))
}

func TestSynthesizeRejectsBadRequest(t *testing.T) {
	_, err := execute(t, `{"budget_range":"1-2"}`, "synthesize")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "product name is required")
}
