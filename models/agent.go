package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// AgentConfig holds a user's Facebook agent configuration. The page API
// credential is stored encrypted; handlers decrypt it on read.
type AgentConfig struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	UserID          uint           `json:"user_id" gorm:"uniqueIndex;not null"`
	User            User           `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	IsActive        bool           `json:"is_active" gorm:"default:true"`
	FacebookPageID  string         `json:"facebook_page_id"`
	FacebookPageAPI string         `json:"-"`
	SystemPrompt    string         `json:"system_prompt"`
	GoogleSheetID   string         `json:"google_sheet_id"`
	BlockedPostIDs  string         `json:"blocked_post_ids"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`
}

// WebhookURL derives the webhook endpoint for the owning user from the
// email local part. Stable as long as the local part is unchanged.
func (c *AgentConfig) WebhookURL(base string, user *User) string {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + user.EmailPrefix()
}

// BlockedPostIDList parses the stored newline-delimited blob into an
// ordered list of trimmed, non-empty IDs. Blank lines are dropped.
func (c *AgentConfig) BlockedPostIDList() []string {
	ids := []string{}
	for _, line := range strings.Split(strings.TrimSpace(c.BlockedPostIDs), "\n") {
		if id := strings.TrimSpace(line); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// EffectiveActive combines the raw on/off flag with the subscription
// state. This is the value third parties must observe. A missing profile
// counts as an inactive subscription.
func (c *AgentConfig) EffectiveActive(profile *Profile) bool {
	if profile == nil {
		return false
	}
	return c.IsActive && profile.IsSubscriptionActive()
}
