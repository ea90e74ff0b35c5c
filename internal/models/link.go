// Package models contains domain models and entities.
package models

import (
	"net/url"
	"strings"
	"time"
)

// Link represents a base shortened URL owned by a user.
type Link struct {
	ID         string    `json:"id"`
	ShortCode  string    `json:"short_code"`
	LongURL    string    `json:"long_url"`
	OwnerID    string    `json:"owner_id"`
	ClickCount int64     `json:"click_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Variants   []Variant `json:"variants,omitempty"`
}

// Variant is a secondary short code attached to a Link. It redirects to the
// parent's long URL with its UTM parameters merged in. A variant never has a
// target of its own.
type Variant struct {
	ID          string    `json:"id"`
	ShortCode   string    `json:"short_code"`
	LinkID      string    `json:"link_id"`
	UTMSource   string    `json:"utm_source,omitempty"`
	UTMMedium   string    `json:"utm_medium,omitempty"`
	UTMCampaign string    `json:"utm_campaign,omitempty"`
	UTMTerm     string    `json:"utm_term,omitempty"`
	UTMContent  string    `json:"utm_content,omitempty"`
	ClickCount  int64     `json:"click_count"`
	CreatedAt   time.Time `json:"created_at"`

	// Parent is populated by code lookups so resolution never needs a
	// second round-trip. Not serialized.
	Parent *Link `json:"-"`
}

// UTMTags returns the non-empty UTM parameters as a query-key map.
func (v *Variant) UTMTags() map[string]string {
	tags := make(map[string]string, 5)
	if v.UTMSource != "" {
		tags["utm_source"] = v.UTMSource
	}
	if v.UTMMedium != "" {
		tags["utm_medium"] = v.UTMMedium
	}
	if v.UTMCampaign != "" {
		tags["utm_campaign"] = v.UTMCampaign
	}
	if v.UTMTerm != "" {
		tags["utm_term"] = v.UTMTerm
	}
	if v.UTMContent != "" {
		tags["utm_content"] = v.UTMContent
	}
	return tags
}

// TargetKind distinguishes which namespace a resolved code belongs to.
type TargetKind string

const (
	KindBase    TargetKind = "base"
	KindVariant TargetKind = "variant"
)

// ResolvedTarget is the transient outcome of resolving an inbound short
// code. It is recomputed per request and never persisted.
type ResolvedTarget struct {
	Kind     TargetKind
	Code     string
	FinalURL string
	Tags     map[string]string
}

// ClickKey identifies a click counter bucket across both namespaces.
type ClickKey struct {
	Kind TargetKind
	Code string
}

// Validate checks a Link before persistence.
func (l *Link) Validate() error {
	if l.ShortCode == "" {
		return ErrEmptyShortCode
	}
	if l.LongURL == "" {
		return ErrEmptyURL
	}
	if !IsValidURL(l.LongURL) {
		return ErrInvalidURL
	}
	if l.OwnerID == "" {
		return ErrMissingOwner
	}
	return nil
}

// Validate checks a Variant before persistence.
func (v *Variant) Validate() error {
	if v.ShortCode == "" {
		return ErrEmptyShortCode
	}
	if v.LinkID == "" {
		return ErrMissingParent
	}
	return nil
}

// IsValidURL reports whether s is an absolute http(s) URL with a host.
func IsValidURL(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}
