package tui

// Category is one section of the configuration file. Its ID is the section
// name and prefixes the keys it holds.
type Category struct {
	ID          string
	Name        string
	Description string
	Summary     func(*ConfigValues) string
}

var Categories = []Category{
	{ID: "storage", Name: "Storage", Description: "S3 endpoint and credentials", Summary: storageSummary},
	{ID: "concurrency", Name: "Concurrency", Description: "Workers and timeout", Summary: concurrencySummary},
	{ID: "cache", Name: "Cache", Description: "Archive statistics cache", Summary: cacheSummary},
	{ID: "git", Name: "Git Mirror", Description: "Manifest mirror repository and author", Summary: gitSummary},
	{ID: "logging", Name: "Logging", Description: "Log level and format", Summary: loggingSummary},
	{ID: "retry", Name: "Retry", Description: "Backoff for storage and git operations", Summary: retrySummary},
}

func GetCategoryByID(id string) *Category {
	for i := range Categories {
		if Categories[i].ID == id {
			return &Categories[i]
		}
	}
	return nil
}

func categoryIndex(id string) int {
	for i := range Categories {
		if Categories[i].ID == id {
			return i
		}
	}
	return -1
}
