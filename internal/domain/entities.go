package domain

import (
	"fmt"
	"strings"
	"time"
)

// ProjectColor is the accent color assigned to a project.
type ProjectColor string

const (
	ColorBlush  ProjectColor = "blush"
	ColorSky    ProjectColor = "sky"
	ColorLime   ProjectColor = "lime"
	ColorAmber  ProjectColor = "amber"
	ColorRose   ProjectColor = "rose"
	ColorIndigo ProjectColor = "indigo"
)

// ProjectColors lists every valid project color.
var ProjectColors = []ProjectColor{ColorBlush, ColorSky, ColorLime, ColorAmber, ColorRose, ColorIndigo}

// IsValid reports whether c is one of the known project colors.
func (c ProjectColor) IsValid() bool {
	for _, known := range ProjectColors {
		if c == known {
			return true
		}
	}
	return false
}

// Project is a user-defined collection grouping zero or more memories.
type Project struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Color       ProjectColor `json:"color"`
	Tags        []string     `json:"tags,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`

	// MemoryCount is denormalized; it is recomputed whenever a memory
	// referencing this project is created, deleted, or moved.
	MemoryCount int `json:"memoryCount"`
}

// Memory is a single journaled entry: narrative text plus photos.
type Memory struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	ImageURLs   []string  `json:"imageUrls"`
	Tags        []string  `json:"tags,omitempty"`
	Favorite    bool      `json:"favorite"`
	Location    string    `json:"location,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`

	// ProjectID is a weak reference: a dangling ID after project deletion
	// means "unfiled", never an error.
	ProjectID string `json:"projectId,omitempty"`
}

// HasTag reports whether the memory carries the given tag (case-insensitive).
func (m Memory) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// ProjectPatch is a partial update for a project. Nil fields are untouched.
type ProjectPatch struct {
	Name        *string       `json:"name,omitempty"`
	Description *string       `json:"description,omitempty"`
	Color       *ProjectColor `json:"color,omitempty"`
	Tags        *[]string     `json:"tags,omitempty"`
}

// MemoryPatch is a partial update for a memory. Nil fields are untouched.
type MemoryPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Date        *time.Time `json:"date,omitempty"`
	ImageURLs   *[]string  `json:"imageUrls,omitempty"`
	Tags        *[]string  `json:"tags,omitempty"`
	Favorite    *bool      `json:"favorite,omitempty"`
	Location    *string    `json:"location,omitempty"`
	ProjectID   *string    `json:"projectId,omitempty"`
}

// Apply merges the patch into a copy of p and returns it.
func (patch ProjectPatch) Apply(p Project) Project {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Color != nil {
		p.Color = *patch.Color
	}
	if patch.Tags != nil {
		p.Tags = *patch.Tags
	}
	return p
}

// Apply merges the patch into a copy of m and returns it.
func (patch MemoryPatch) Apply(m Memory) Memory {
	if patch.Title != nil {
		m.Title = *patch.Title
	}
	if patch.Description != nil {
		m.Description = *patch.Description
	}
	if patch.Date != nil {
		m.Date = *patch.Date
	}
	if patch.ImageURLs != nil {
		m.ImageURLs = *patch.ImageURLs
	}
	if patch.Tags != nil {
		m.Tags = *patch.Tags
	}
	if patch.Favorite != nil {
		m.Favorite = *patch.Favorite
	}
	if patch.Location != nil {
		m.Location = *patch.Location
	}
	if patch.ProjectID != nil {
		m.ProjectID = *patch.ProjectID
	}
	return m
}

// ListEntry is the polymorphic interface for items rendered in browse lists.
// Project and Memory implement it directly.
type ListEntry interface {
	// GetID returns the unique identifier for this entry
	GetID() string

	// GetTitle returns the display title
	GetTitle() string

	// GetDescription returns secondary info for display
	GetDescription() string

	// GetItemType returns "project" or "memory"
	GetItemType() string

	// GetCreatedAt returns the creation timestamp
	GetCreatedAt() time.Time
}

// ListEntry interface implementation for Project

func (p *Project) GetID() string    { return p.ID }
func (p *Project) GetTitle() string { return p.Name }
func (p *Project) GetDescription() string {
	if p.MemoryCount == 1 {
		return "1 memory"
	}
	return fmt.Sprintf("%d memories", p.MemoryCount)
}
func (p *Project) GetItemType() string     { return "project" }
func (p *Project) GetCreatedAt() time.Time { return p.CreatedAt }

// ListEntry interface implementation for Memory

func (m *Memory) GetID() string    { return m.ID }
func (m *Memory) GetTitle() string { return m.Title }
func (m *Memory) GetDescription() string {
	if m.Date.IsZero() {
		return ""
	}
	return m.Date.Format("Jan 2, 2006")
}
func (m *Memory) GetItemType() string     { return "memory" }
func (m *Memory) GetCreatedAt() time.Time { return m.CreatedAt }
