package remote

import (
	"time"

	"github.com/timestitch/timestitch/internal/domain"
)

// tokenResponse represents the response from the token endpoint
type tokenResponse struct {
	AccessToken string  `json:"access_token"`
	User        userDTO `json:"user"`
}

// userDTO represents an account record
type userDTO struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// projectDTO mirrors the projects table
type projectDTO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	Tags        []string  `json:"tags,omitempty"`
	MemoryCount int       `json:"memory_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// memoryDTO mirrors the memories table
type memoryDTO struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	ImageURLs   []string  `json:"image_urls"`
	Tags        []string  `json:"tags,omitempty"`
	Favorite    bool      `json:"favorite"`
	Location    string    `json:"location,omitempty"`
	ProjectID   string    `json:"project_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// uploadResponse represents the response from the image upload endpoint
type uploadResponse struct {
	URL string `json:"url"`
}

// errorResponse represents an error body from the backend
type errorResponse struct {
	Message string `json:"message"`
}

func mapProject(dto projectDTO) domain.Project {
	return domain.Project{
		ID:          dto.ID,
		Name:        dto.Name,
		Description: dto.Description,
		Color:       domain.ProjectColor(dto.Color),
		Tags:        dto.Tags,
		MemoryCount: dto.MemoryCount,
		CreatedAt:   dto.CreatedAt,
	}
}

func mapProjects(dtos []projectDTO) []domain.Project {
	projects := make([]domain.Project, len(dtos))
	for i, dto := range dtos {
		projects[i] = mapProject(dto)
	}
	return projects
}

func toProjectDTO(p domain.Project) projectDTO {
	return projectDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Color:       string(p.Color),
		Tags:        p.Tags,
		MemoryCount: p.MemoryCount,
		CreatedAt:   p.CreatedAt,
	}
}

func mapMemory(dto memoryDTO) domain.Memory {
	return domain.Memory{
		ID:          dto.ID,
		Title:       dto.Title,
		Description: dto.Description,
		Date:        dto.Date,
		ImageURLs:   dto.ImageURLs,
		Tags:        dto.Tags,
		Favorite:    dto.Favorite,
		Location:    dto.Location,
		ProjectID:   dto.ProjectID,
		CreatedAt:   dto.CreatedAt,
	}
}

func mapMemories(dtos []memoryDTO) []domain.Memory {
	memories := make([]domain.Memory, len(dtos))
	for i, dto := range dtos {
		memories[i] = mapMemory(dto)
	}
	return memories
}

func toMemoryDTO(m domain.Memory) memoryDTO {
	return memoryDTO{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Date:        m.Date,
		ImageURLs:   m.ImageURLs,
		Tags:        m.Tags,
		Favorite:    m.Favorite,
		Location:    m.Location,
		ProjectID:   m.ProjectID,
		CreatedAt:   m.CreatedAt,
	}
}
