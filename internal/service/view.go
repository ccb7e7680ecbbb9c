package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/timestitch/timestitch/internal/domain"
)

// Filter is the user-entered browse state. The zero value matches
// everything.
type Filter struct {
	Query         string
	Tags          []string
	FavoritesOnly bool
	ProjectID     string
}

// TimelineGroup is one month of memories for the timeline view.
type TimelineGroup struct {
	Year     int
	Month    time.Month
	Memories []domain.Memory
}

// Label returns the group heading, e.g. "March 2024".
func (g TimelineGroup) Label() string {
	return fmt.Sprintf("%s %d", g.Month, g.Year)
}

// GalleryImage is one photo flattened out of a memory for the gallery
// view.
type GalleryImage struct {
	ID       string
	URL      string
	Title    string
	MemoryID string
	Favorite bool
}

// FilterProjects derives the project list for display: query filtered,
// newest first. The input slice is never modified.
func FilterProjects(projects []domain.Project, f Filter) []domain.Project {
	var out []domain.Project
	for _, p := range projects {
		if f.Query != "" && !matchesProject(p, f.Query) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// FilterMemories derives the memory list for display: filtered by query,
// tags, favorites, and project, newest date first. The input slice is
// never modified.
func FilterMemories(memories []domain.Memory, f Filter) []domain.Memory {
	var out []domain.Memory
	for _, m := range memories {
		if f.Query != "" && !matchesMemory(m, f.Query) {
			continue
		}
		if f.FavoritesOnly && !m.Favorite {
			continue
		}
		if f.ProjectID != "" && m.ProjectID != f.ProjectID {
			continue
		}
		if len(f.Tags) > 0 && !hasAllTags(m, f.Tags) {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out
}

// TimelineGroups buckets memories by calendar month, newest group first,
// newest memory first within each group.
func TimelineGroups(memories []domain.Memory) []TimelineGroup {
	type key struct {
		year  int
		month time.Month
	}
	buckets := make(map[key][]domain.Memory)
	for _, m := range memories {
		k := key{m.Date.Year(), m.Date.Month()}
		buckets[k] = append(buckets[k], m)
	}

	groups := make([]TimelineGroup, 0, len(buckets))
	for k, items := range buckets {
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Date.After(items[j].Date)
		})
		groups = append(groups, TimelineGroup{Year: k.year, Month: k.month, Memories: items})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Year != groups[j].Year {
			return groups[i].Year > groups[j].Year
		}
		return groups[i].Month > groups[j].Month
	})
	return groups
}

// GalleryImages flattens every photo out of the memories, preserving
// memory order. Each image ID combines the memory ID and its position.
func GalleryImages(memories []domain.Memory, favoritesOnly bool) []GalleryImage {
	var out []GalleryImage
	for _, m := range memories {
		if favoritesOnly && !m.Favorite {
			continue
		}
		for i, url := range m.ImageURLs {
			out = append(out, GalleryImage{
				ID:       fmt.Sprintf("%s-%d", m.ID, i),
				URL:      url,
				Title:    m.Title,
				MemoryID: m.ID,
				Favorite: m.Favorite,
			})
		}
	}
	return out
}

// AllTags returns every distinct tag across the memories, sorted.
func AllTags(memories []domain.Memory) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range memories {
		for _, tag := range m.Tags {
			key := strings.ToLower(tag)
			if !seen[key] {
				seen[key] = true
				out = append(out, key)
			}
		}
	}
	sort.Strings(out)
	return out
}

// matchesProject checks a query against name and description. Titles get
// fuzzy matching, longer text plain substring.
func matchesProject(p domain.Project, query string) bool {
	if fuzzy.MatchFold(query, p.Name) {
		return true
	}
	return containsFold(p.Description, query)
}

func matchesMemory(m domain.Memory, query string) bool {
	if fuzzy.MatchFold(query, m.Title) {
		return true
	}
	if containsFold(m.Description, query) || containsFold(m.Location, query) {
		return true
	}
	for _, tag := range m.Tags {
		if containsFold(tag, query) {
			return true
		}
	}
	return false
}

func hasAllTags(m domain.Memory, tags []string) bool {
	for _, tag := range tags {
		if !m.HasTag(tag) {
			return false
		}
	}
	return true
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
