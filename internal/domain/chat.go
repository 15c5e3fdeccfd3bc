package domain

import (
	"strings"
	"time"
)

// ChatType mirrors the destination kinds the delivery channel reports.
type ChatType string

const (
	ChatTypeGroup      ChatType = "group"
	ChatTypeSupergroup ChatType = "supergroup"
	ChatTypeChannel    ChatType = "channel"
)

// Valid reports whether the chat type is known.
func (t ChatType) Valid() bool {
	switch t {
	case ChatTypeGroup, ChatTypeSupergroup, ChatTypeChannel:
		return true
	}
	return false
}

// Chat is an external broadcast target.
type Chat struct {
	ChatID      int64
	Name        string
	Type        ChatType
	Category    []string
	Language    []string
	Label       []string
	Active      bool
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Destination returns the chat as a delivery target.
func (c Chat) Destination() Destination {
	return Destination{ChatID: c.ChatID, ChatName: c.Name}
}

// ChatPatch lists mutable chat fields. Nil fields are left untouched.
type ChatPatch struct {
	Name        *string
	Type        *ChatType
	Category    *[]string
	Language    *[]string
	Label       *[]string
	Active      *bool
	Description *string
}

// IsEmpty reports whether the patch changes nothing.
func (p ChatPatch) IsEmpty() bool {
	return p.Name == nil && p.Type == nil && p.Category == nil && p.Language == nil &&
		p.Label == nil && p.Active == nil && p.Description == nil
}

// Apply copies the set fields of the patch onto c.
func (p ChatPatch) Apply(c *Chat) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Type != nil {
		c.Type = *p.Type
	}
	if p.Category != nil {
		c.Category = append([]string{}, (*p.Category)...)
	}
	if p.Language != nil {
		c.Language = append([]string{}, (*p.Language)...)
	}
	if p.Label != nil {
		c.Label = append([]string{}, (*p.Label)...)
	}
	if p.Active != nil {
		c.Active = *p.Active
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
}

// OthersCategory routes a selector through label and name matching.
const OthersCategory = "others"

// Selector names a set of destinations symbolically.
type Selector struct {
	Category string
	Language string
	Labels   []string
	Names    []string
}

// IsFallback reports whether the selector resolves by labels and names
// instead of category and language.
func (s Selector) IsFallback() bool {
	return len(s.Labels) > 0 || len(s.Names) > 0 || strings.EqualFold(s.Category, OthersCategory)
}
