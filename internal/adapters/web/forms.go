package web

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/application"
)

const datetimeLocalLayout = "2006-01-02T15:04"

// CampaignForm holds the campaign form fields as submitted, so a rejected
// submission can be shown again unchanged.
type CampaignForm struct {
	Name           string
	Description    string
	Type           string
	Status         string
	ScheduledAt    string
	AgeMin         string
	AgeMax         string
	Location       string
	Interests      string
	Budget         string
	DailyLimit     string
	AutoFollowup   bool
	EmailTemplate  string
	SubjectLine    string
	SMSMessage     string
	CallScript     string
	CallDuration   string
	SocialPlatform string
	SocialMessage  string
}

func ParseCampaignForm(values url.Values) CampaignForm {
	get := func(key string) string { return strings.TrimSpace(values.Get(key)) }
	return CampaignForm{
		Name:           get("name"),
		Description:    get("description"),
		Type:           get("type"),
		Status:         get("status"),
		ScheduledAt:    get("scheduled_at"),
		AgeMin:         get("age_min"),
		AgeMax:         get("age_max"),
		Location:       get("location"),
		Interests:      get("interests"),
		Budget:         get("budget"),
		DailyLimit:     get("daily_limit"),
		AutoFollowup:   values.Get("auto_followup") != "",
		EmailTemplate:  get("email_template"),
		SubjectLine:    get("subject_line"),
		SMSMessage:     get("sms_message"),
		CallScript:     get("call_script"),
		CallDuration:   get("call_duration"),
		SocialPlatform: get("social_platform"),
		SocialMessage:  get("social_message"),
	}
}

// FormFromCampaign fills the form from a stored campaign for editing.
func FormFromCampaign(c application.CampaignResponse) CampaignForm {
	f := CampaignForm{
		Name:   c.Name,
		Type:   c.Type,
		Status: c.Status,
	}
	if c.Description != nil {
		f.Description = *c.Description
	}
	if c.ScheduledAt != nil {
		f.ScheduledAt = c.ScheduledAt.UTC().Format(datetimeLocalLayout)
	}
	a := c.TargetAudience
	f.AgeMin = numberString(a["age_min"])
	f.AgeMax = numberString(a["age_max"])
	f.Location = stringValue(a["location"])
	if list, ok := a["interests"].([]any); ok {
		parts := make([]string, 0, len(list))
		for _, v := range list {
			if s := stringValue(v); s != "" {
				parts = append(parts, s)
			}
		}
		f.Interests = strings.Join(parts, ", ")
	}
	s := c.Settings
	f.Budget = numberString(s["budget"])
	f.DailyLimit = numberString(s["daily_limit"])
	f.AutoFollowup, _ = s["auto_followup"].(bool)
	f.EmailTemplate = stringValue(s["email_template"])
	f.SubjectLine = stringValue(s["subject_line"])
	f.SMSMessage = stringValue(s["sms_message"])
	f.CallScript = stringValue(s["call_script"])
	f.CallDuration = numberString(s["call_duration"])
	f.SocialPlatform = stringValue(s["social_platform"])
	f.SocialMessage = stringValue(s["social_message"])
	return f
}

// BuildTargetAudience returns nil when no audience field was filled in.
// Interests are split on commas with blanks dropped.
func BuildTargetAudience(f CampaignForm) map[string]any {
	audience := map[string]any{}
	if n, ok := parseInt(f.AgeMin); ok {
		audience["age_min"] = n
	}
	if n, ok := parseInt(f.AgeMax); ok {
		audience["age_max"] = n
	}
	if f.Location != "" {
		audience["location"] = f.Location
	}
	if f.Interests != "" {
		interests := []string{}
		for _, part := range strings.Split(f.Interests, ",") {
			if part = strings.TrimSpace(part); part != "" {
				interests = append(interests, part)
			}
		}
		audience["interests"] = interests
	}
	if len(audience) == 0 {
		return nil
	}
	return audience
}

// BuildSettings collects the common settings and merges in the fields that
// belong to the selected campaign type.
func BuildSettings(f CampaignForm) map[string]any {
	settings := map[string]any{}
	if f.Budget != "" {
		if v, err := strconv.ParseFloat(f.Budget, 64); err == nil {
			settings["budget"] = v
		}
	}
	if n, ok := parseInt(f.DailyLimit); ok {
		settings["daily_limit"] = n
	}
	if f.AutoFollowup {
		settings["auto_followup"] = true
	}
	switch f.Type {
	case "email":
		setIfPresent(settings, "email_template", f.EmailTemplate)
		setIfPresent(settings, "subject_line", f.SubjectLine)
	case "sms":
		setIfPresent(settings, "sms_message", f.SMSMessage)
	case "phone":
		setIfPresent(settings, "call_script", f.CallScript)
		if n, ok := parseInt(f.CallDuration); ok {
			settings["call_duration"] = n
		}
	case "social":
		setIfPresent(settings, "social_platform", f.SocialPlatform)
		setIfPresent(settings, "social_message", f.SocialMessage)
	}
	return settings
}

// Request converts the form into the REST body the service validates.
func (f CampaignForm) Request() (application.CampaignRequest, error) {
	req := application.CampaignRequest{
		Name:        f.Name,
		Description: &f.Description,
		Type:        f.Type,
		Status:      f.Status,
	}
	if f.ScheduledAt != "" {
		req.ScheduledAt = &f.ScheduledAt
	}
	if audience := BuildTargetAudience(f); audience != nil {
		raw, err := json.Marshal(audience)
		if err != nil {
			return application.CampaignRequest{}, fmt.Errorf("encode target audience: %w", err)
		}
		req.TargetAudience = raw
	}
	raw, err := json.Marshal(BuildSettings(f))
	if err != nil {
		return application.CampaignRequest{}, fmt.Errorf("encode settings: %w", err)
	}
	req.Settings = raw
	return req, nil
}

func setIfPresent(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

// parseInt accepts a leading integer the way a browser number field would
// send it; "25.5" yields 25.
func parseInt(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n, true
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return int(v), true
	}
	return 0, false
}

func numberString(v any) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case int:
		return strconv.Itoa(n)
	case string:
		return n
	default:
		return ""
	}
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func formatDate(t time.Time) string {
	return t.Format("Jan 2, 2006")
}
