package entity

import (
	"fmt"
	"net/url"
)

const (
	// maxURLLength defines the maximum allowed length for feed URLs.
	maxURLLength = 2048

	maxCategoryNameLength = 32
)

// Filter values that select every category. They can never be category names.
const (
	CategoryAll      = "all"
	CategoryAllAlias = "tous"
)

// ValidateFeedURL checks that a feed URL is well-formed and uses http or
// https. No DNS lookup is performed; registry validation must work offline.
func ValidateFeedURL(rawURL string) error {
	if rawURL == "" {
		return &ValidationError{Field: "url", Message: "URL is required"}
	}
	if len(rawURL) > maxURLLength {
		return &ValidationError{
			Field:   "url",
			Message: fmt.Sprintf("url must not exceed %d characters", maxURLLength),
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return &ValidationError{Field: "url", Message: fmt.Sprintf("invalid URL: %v", err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{Field: "url", Message: "URL must use http or https scheme"}
	}
	if u.Hostname() == "" {
		return &ValidationError{Field: "url", Message: "URL must have a valid host"}
	}
	return nil
}

// ValidateCategoryName checks a category identifier: lowercase ASCII letters,
// digits, '-' and '_', at most 32 characters, and not a reserved filter value.
func ValidateCategoryName(name string) error {
	if name == "" {
		return &ValidationError{Field: "category", Message: "category is required"}
	}
	if len(name) > maxCategoryNameLength {
		return &ValidationError{
			Field:   "category",
			Message: fmt.Sprintf("category must not exceed %d characters", maxCategoryNameLength),
		}
	}
	if name == CategoryAll || name == CategoryAllAlias {
		return &ValidationError{Field: "category", Message: fmt.Sprintf("%q is reserved", name)}
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return &ValidationError{
				Field:   "category",
				Message: fmt.Sprintf("invalid character %q in %q", r, name),
			}
		}
	}
	return nil
}
