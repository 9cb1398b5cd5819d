package entity

// FeedSource is one configured upstream feed. Sources are immutable once the
// registry is loaded.
type FeedSource struct {
	URL             string `yaml:"url" json:"url"`
	Name            string `yaml:"name" json:"name"`
	DefaultCategory string `yaml:"default_category" json:"default_category"`
}

// Validate checks the source fields. An empty DefaultCategory is allowed and
// resolves to the registry default at categorization time.
func (s FeedSource) Validate() error {
	if err := ValidateFeedURL(s.URL); err != nil {
		return err
	}
	if s.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if s.DefaultCategory != "" {
		if err := ValidateCategoryName(s.DefaultCategory); err != nil {
			return err
		}
	}
	return nil
}
