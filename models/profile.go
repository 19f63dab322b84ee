package models

import (
	"time"

	"gorm.io/gorm"
)

// KYC status values. Transitions: NONE -> PENDING -> VERIFIED or REJECTED,
// and REJECTED -> PENDING on resubmission.
const (
	KYCStatusNone     = "NONE"
	KYCStatusPending  = "PENDING"
	KYCStatusVerified = "VERIFIED"
	KYCStatusRejected = "REJECTED"
)

// KYCStatusLabel maps a status value to its display name.
func KYCStatusLabel(status string) string {
	switch status {
	case KYCStatusNone:
		return "Not Submitted"
	case KYCStatusPending:
		return "Under Review"
	case KYCStatusVerified:
		return "Verified"
	case KYCStatusRejected:
		return "Rejected"
	}
	return status
}

// Profile holds per-user portal information, KYC state and subscription state.
type Profile struct {
	ID                 uint           `json:"id" gorm:"primaryKey"`
	UserID             uint           `json:"user_id" gorm:"uniqueIndex;not null"`
	User               User           `json:"user" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Name               string         `json:"name"`
	ProfilePicture     string         `json:"profile_picture"`
	MobileNumber       string         `json:"mobile_number"`
	HomeAddress        string         `json:"home_address"`
	BusinessInfo       string         `json:"business_info"`
	KYCFrontImage      string         `json:"kyc_front_image"`
	KYCBackImage       string         `json:"kyc_back_image"`
	KYCStatus          string         `json:"kyc_status" gorm:"default:NONE"`
	KYCRejectionReason string         `json:"kyc_rejection_reason"`
	SubscriptionExpiry *time.Time     `json:"subscription_expiry"`
	PackageName        string         `json:"package_name" gorm:"default:Free Trial"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `json:"-" gorm:"index"`
}

// IsComplete reports whether the essential profile fields are filled.
// Completeness gates KYC document submission.
func (p *Profile) IsComplete() bool {
	return p.Name != "" && p.MobileNumber != "" && p.HomeAddress != "" &&
		p.BusinessInfo != "" && p.ProfilePicture != ""
}

// IsSubscriptionActive reports whether the subscription allows access.
// A nil expiry means never restricted. An expiry equal to now counts as
// expired.
func (p *Profile) IsSubscriptionActive() bool {
	return p.IsSubscriptionActiveAt(time.Now())
}

func (p *Profile) IsSubscriptionActiveAt(now time.Time) bool {
	if p.SubscriptionExpiry == nil {
		return true
	}
	return now.Before(*p.SubscriptionExpiry)
}

// SubscriptionHistory is an append-only log of subscription assignments,
// newest first. Rows are never mutated after creation.
type SubscriptionHistory struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	ProfileID   uint      `json:"profile_id" gorm:"index;not null"`
	Profile     Profile   `json:"-" gorm:"foreignKey:ProfileID;constraint:OnDelete:CASCADE"`
	PackageName string    `json:"package_name" gorm:"not null"`
	StartDate   time.Time `json:"start_date" gorm:"autoCreateTime"`
	ExpiryDate  time.Time `json:"expiry_date" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`
}
