package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxNameLength   = 255
	MaxSMSLength    = 160
	MinCallDuration = 1
	MaxCallDuration = 60
	MinAudienceAge  = 18
	MaxAudienceAge  = 100
)

func ParseCampaignType(v string) (CampaignType, error) {
	t := CampaignType(strings.TrimSpace(v))
	if !slices.Contains(CampaignTypes, t) {
		return "", fmt.Errorf("%w: Invalid campaign type", ErrInvalidInput)
	}
	return t, nil
}

// ParseCampaignStatus falls back to draft when v is blank.
func ParseCampaignStatus(v string) (CampaignStatus, error) {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return CampaignStatusDraft, nil
	}
	s := CampaignStatus(trimmed)
	if !slices.Contains(CampaignStatuses, s) {
		return "", fmt.Errorf("%w: Invalid campaign status", ErrInvalidInput)
	}
	return s, nil
}

func ValidateName(v string) (string, error) {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return "", fmt.Errorf("%w: Name and type are required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(trimmed) > MaxNameLength {
		return "", fmt.Errorf("%w: Name must be at most %d characters", ErrInvalidInput, MaxNameLength)
	}
	return trimmed, nil
}

// NormalizeDescription trims v and turns an empty result into nil.
func NormalizeDescription(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// ParseJSONObject accepts either a JSON object or a JSON string whose
// content is an object. Missing, null and empty inputs yield an empty map.
func ParseJSONObject(raw json.RawMessage) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]any{}, nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, invalidJSONError()
		}
		inner = strings.TrimSpace(inner)
		if inner == "" {
			return map[string]any{}, nil
		}
		raw = json.RawMessage(inner)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, invalidJSONError()
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func invalidJSONError() error {
	return fmt.Errorf("%w: Invalid JSON format in target_audience or settings", ErrInvalidInput)
}

// StatusTimestamps returns the lifecycle timestamps a transition to status
// stamps. Only running and completed carry one.
func StatusTimestamps(status CampaignStatus, now time.Time) (startedAt, completedAt *time.Time) {
	switch status {
	case CampaignStatusRunning:
		t := now.UTC()
		return &t, nil
	case CampaignStatusCompleted:
		t := now.UTC()
		return nil, &t
	default:
		return nil, nil
	}
}

func ValidateTypeSettings(t CampaignType, settings map[string]any) error {
	if err := validateCommonSettings(settings); err != nil {
		return err
	}
	switch t {
	case CampaignTypeSMS:
		if msg, ok := settings["sms_message"].(string); ok && utf8.RuneCountInString(msg) > MaxSMSLength {
			return fmt.Errorf("%w: sms_message must be at most %d characters", ErrInvalidInput, MaxSMSLength)
		}
	case CampaignTypePhone:
		raw, present := settings["call_duration"]
		if !present || raw == nil || raw == "" {
			return nil
		}
		d, ok := numberValue(raw)
		if !ok || d < MinCallDuration || d > MaxCallDuration {
			return fmt.Errorf("%w: call_duration must be between %d and %d minutes", ErrInvalidInput, MinCallDuration, MaxCallDuration)
		}
	case CampaignTypeSocial:
		raw, present := settings["social_platform"]
		if !present || raw == nil || raw == "" {
			return nil
		}
		platform, ok := raw.(string)
		if !ok || !slices.Contains(SocialPlatforms, strings.ToLower(platform)) {
			return fmt.Errorf("%w: social_platform must be one of %s", ErrInvalidInput, strings.Join(SocialPlatforms, ", "))
		}
	}
	return nil
}

func validateCommonSettings(settings map[string]any) error {
	for _, key := range []string{"budget", "daily_limit"} {
		raw, present := settings[key]
		if !present || raw == nil || raw == "" {
			continue
		}
		n, ok := numberValue(raw)
		if !ok || n < 0 {
			return fmt.Errorf("%w: %s must be a non-negative number", ErrInvalidInput, key)
		}
	}
	return nil
}

func ValidateTargetAudience(audience map[string]any) error {
	minAge, hasMin := optionalNumber(audience, "age_min")
	maxAge, hasMax := optionalNumber(audience, "age_max")
	for _, v := range []struct {
		key   string
		value float64
		ok    bool
	}{{"age_min", minAge, hasMin}, {"age_max", maxAge, hasMax}} {
		if v.ok && (v.value < MinAudienceAge || v.value > MaxAudienceAge) {
			return fmt.Errorf("%w: %s must be between %d and %d", ErrInvalidInput, v.key, MinAudienceAge, MaxAudienceAge)
		}
	}
	if hasMin && hasMax && minAge > maxAge {
		return fmt.Errorf("%w: age_min must not exceed age_max", ErrInvalidInput)
	}
	return nil
}

func optionalNumber(m map[string]any, key string) (float64, bool) {
	raw, present := m[key]
	if !present || raw == nil || raw == "" {
		return 0, false
	}
	n, ok := numberValue(raw)
	if !ok {
		return -1, true
	}
	return n, true
}

func numberValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
