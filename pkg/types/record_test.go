package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubjectRecordStrings(t *testing.T) {
	r := SubjectRecord{
		FieldImageLabels:   []any{map[string]any{"name": "Headphones", "confidence": 98.1}, "Audio", 7},
		FieldTargetMarkets: "japan",
		"empty":            "  ",
	}

	assert.Equal(t, []string{"Headphones", "Audio"}, r.Strings(FieldImageLabels))
	assert.Equal(t, []string{"japan"}, r.Strings(FieldTargetMarkets))
	assert.Nil(t, r.Strings("empty"))
	assert.Nil(t, r.Strings("missing"))
}

func TestSubjectRecordMarkets(t *testing.T) {
	r := SubjectRecord{
		FieldTargetMarkets: []any{"japan", "Japan", "germany"},
		FieldMarketInsights: map[string]any{
			"japan":  map[string]any{},
			"brazil": map[string]any{},
			"canada": map[string]any{},
		},
	}

	assert.Equal(t, []string{"japan", "germany", "brazil", "canada"}, r.Markets())
}

func TestSubjectRecordString(t *testing.T) {
	r := SubjectRecord{"product_name": " Bottle ", "count": 3}
	assert.Equal(t, "Bottle", r.String(FieldProductName))
	assert.Equal(t, "3", r.String("count"))
	assert.Equal(t, "", r.String("nope"))
}
