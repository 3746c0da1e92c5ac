package planstore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kimhsiao/tripplanner/backend/internal/errors"
	"github.com/kimhsiao/tripplanner/backend/internal/models"
)

func TestEncodePlan_PreservesContent(t *testing.T) {
	plan := &models.Plan{
		ID:      "p",
		Content: json.RawMessage(`{"days":[],"note":"<b>&</b>"}`),
	}

	data, err := EncodePlan(plan)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"<b>&</b>"`)
	assert.NotContains(t, string(data), "\n")

	res := DecodePlan(data)
	require.True(t, res.OK)
	assert.Equal(t, string(plan.Content), string(res.Plan.Content))
}

func TestEncodePlan_CompactsContent(t *testing.T) {
	plan := &models.Plan{
		ID:      "p",
		Name:    "Porto",
		Content: json.RawMessage("{\n  \"days\": [ {\"day_number\": 1, \"attractions\": []} ]\n}"),
	}

	data, err := EncodePlan(plan)
	require.NoError(t, err)
	res := DecodePlan(data)
	require.True(t, res.OK)
	assert.JSONEq(t, string(plan.Content), string(res.Plan.Content))
	assert.Equal(t, `{"days":[{"day_number":1,"attractions":[]}]}`, string(res.Plan.Content))

	// The compact form is a fixed point.
	again, err := EncodePlan(res.Plan)
	require.NoError(t, err)
	assert.Equal(t, res.Plan, DecodePlan(again).Plan)
}

func TestEncodePlan_RejectsInvalidContent(t *testing.T) {
	_, err := EncodePlan(&models.Plan{ID: "p", Content: json.RawMessage(`{"days":`)})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestDecodePlan_Failures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "{"},
		{"wrong type", `{"id":42}`},
		{"missing id", `{"name":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := DecodePlan([]byte(tt.raw))
			assert.False(t, res.OK)
			assert.Nil(t, res.Plan)
			assert.True(t, apperrors.Is(res.Err, apperrors.ErrSerialization))
		})
	}
}

func TestDecodeContent(t *testing.T) {
	res := DecodeContent(json.RawMessage(`{"days":[{"day_number":1,"attractions":[{"name":"a","order":0}]}]}`))
	require.True(t, res.OK)
	require.Len(t, res.Content.Days, 1)
	assert.Equal(t, "a", res.Content.Days[0].Attractions[0].Name)

	assert.False(t, DecodeContent(nil).OK)
	assert.False(t, DecodeContent(json.RawMessage(`null`)).OK)
	assert.False(t, DecodeContent(json.RawMessage(`[1,2]`)).OK)
	assert.False(t, DecodeContent(json.RawMessage(`{"days":[{"day_number":-1,"attractions":[]}]}`)).OK)
}

func TestExtractImageURLs(t *testing.T) {
	assert.Equal(t,
		[]string{"https://img.example.com/a.jpg", "https://img.example.com/b.jpg"},
		ExtractImageURLs(samplePlan("x")))

	assert.Empty(t, ExtractImageURLs(nil))
	assert.Empty(t, ExtractImageURLs(&models.Plan{ID: "x", Content: json.RawMessage(`"text"`)}))
	assert.Empty(t, ExtractImageURLs(&models.Plan{ID: "x", Content: json.RawMessage(`{"days":[]}`)}))
}
