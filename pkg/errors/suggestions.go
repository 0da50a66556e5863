package errors

import "fmt"

// SuggestionGenerator generates actionable suggestions based on error category.
type SuggestionGenerator interface {
	Generate(category ErrorCategory, affectedPath string) []string
}

// NewSuggestionGenerator creates a new SuggestionGenerator.
func NewSuggestionGenerator() SuggestionGenerator {
	return &suggestionGenerator{}
}

// suggestionGenerator is the concrete implementation of SuggestionGenerator.
type suggestionGenerator struct{}

// Generate returns actionable suggestions based on the error category and affected path.
func (g *suggestionGenerator) Generate(category ErrorCategory, affectedPath string) []string {
	switch category {
	case CategoryPermission:
		return g.permission(affectedPath)
	case CategoryDiskSpace:
		return g.diskSpace(affectedPath)
	case CategoryPath:
		return g.path(affectedPath)
	case CategoryCopy:
		return g.copy()
	case CategoryWatermark:
		return g.watermark(affectedPath)
	case CategoryUnknown:
		return g.unknown(affectedPath)
	default:
		return g.unknown(affectedPath)
	}
}

func (g *suggestionGenerator) copy() []string {
	return []string{
		"Verify the card reader or source media is still connected",
		"Run again - the file is offered again unless a higher ID was committed",
	}
}

func (g *suggestionGenerator) diskSpace(path string) []string {
	suggestions := []string{
		"Free up space on the destination device",
		"Check available space with 'df -h'",
	}

	if path != "" {
		suggestions = append(suggestions, "Verify disk usage for the filesystem containing "+path)
	}

	return suggestions
}

func (g *suggestionGenerator) path(path string) []string {
	suggestions := []string{
		"The file disappeared during the run; check whether the source was unmounted",
	}

	if path != "" {
		suggestions = append(suggestions, "Check if the path still exists: "+path)
	}

	return suggestions
}

func (g *suggestionGenerator) permission(path string) []string {
	suggestions := []string{
		"Ensure you can read the source and write the destination directory",
	}

	if path != "" {
		suggestions = append(suggestions, fmt.Sprintf("Check permissions with 'ls -la %s'", path))
	}

	return suggestions
}

func (g *suggestionGenerator) unknown(path string) []string {
	suggestions := []string{
		"Check the error message for more details",
	}

	if path != "" {
		suggestions = append(suggestions, "Verify the path is accessible: "+path)
	}

	return suggestions
}

func (g *suggestionGenerator) watermark(path string) []string {
	suggestions := []string{
		"The copied files are intact, but the next run will copy them again",
	}

	if path != "" {
		suggestions = append(suggestions, "Make sure the watermark location is writable: "+path)
	}

	return suggestions
}
