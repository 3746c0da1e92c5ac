package planstore

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/kimhsiao/tripplanner/backend/internal/errors"
	"github.com/kimhsiao/tripplanner/backend/internal/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// PlanResult is the outcome of decoding a stored plan.
// OK is false for corrupt or non-conforming entries; Err then says why.
type PlanResult struct {
	OK   bool
	Plan *models.Plan
	Err  error
}

// ContentResult is the outcome of decoding Plan.Content into its expected shape.
type ContentResult struct {
	OK      bool
	Content models.PlanContent
	Err     error
}

// EncodePlan validates plan and serializes it for storage.
// Content is stored compacted, with HTML escaping disabled, so a plan
// whose Content is already compact decodes to an identical value.
func EncodePlan(plan *models.Plan) ([]byte, error) {
	if plan == nil {
		return nil, apperrors.New(apperrors.ErrInvalid, "plan is nil")
	}
	if err := validate.Struct(plan); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "plan failed validation", err)
	}

	stored := *plan
	if len(plan.Content) > 0 {
		var compact bytes.Buffer
		if err := json.Compact(&compact, plan.Content); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrValidation, "plan content is not valid JSON", err)
		}
		stored.Content = compact.Bytes()
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(&stored); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSerialization, "failed to serialize plan", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// DecodePlan deserializes and validates a stored plan. It never panics.
func DecodePlan(raw []byte) PlanResult {
	var plan models.Plan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return PlanResult{Err: apperrors.Wrap(apperrors.ErrSerialization, "corrupt plan entry", err)}
	}
	if err := validate.Struct(&plan); err != nil {
		return PlanResult{Err: apperrors.Wrap(apperrors.ErrSerialization, "plan entry does not conform", err)}
	}
	return PlanResult{OK: true, Plan: &plan}
}

// DecodeContent decodes plan content into days and attractions.
func DecodeContent(raw json.RawMessage) ContentResult {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ContentResult{Err: apperrors.New(apperrors.ErrSerialization, "plan has no content")}
	}

	var content models.PlanContent
	if err := json.Unmarshal(trimmed, &content); err != nil {
		return ContentResult{Err: apperrors.Wrap(apperrors.ErrSerialization, "content does not match plan shape", err)}
	}
	if err := validate.Struct(&content); err != nil {
		return ContentResult{Err: apperrors.Wrap(apperrors.ErrSerialization, "content failed validation", err)}
	}
	return ContentResult{OK: true, Content: content}
}

// ExtractImageURLs returns the distinct attraction image URLs of a plan in
// day/attraction order. Content that does not have the plan shape yields nil.
func ExtractImageURLs(plan *models.Plan) []string {
	if plan == nil {
		return nil
	}
	res := DecodeContent(plan.Content)
	if !res.OK {
		return nil
	}

	seen := make(map[string]bool)
	var urls []string
	for _, day := range res.Content.Days {
		for _, a := range day.Attractions {
			if a.ImageURL == "" || seen[a.ImageURL] {
				continue
			}
			seen[a.ImageURL] = true
			urls = append(urls, a.ImageURL)
		}
	}
	return urls
}

func planKey(planID string) string {
	return fmt.Sprintf("%s%s", PlanKeyPrefix, planID)
}
