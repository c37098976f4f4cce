package config

// DomainConfig holds all configurable business rules and constraints
type DomainConfig struct {
	// Memo constraints
	MaxTagsPerMemo   int
	MaxTagLength     int
	MaxTitleLength   int
	MaxContentLength int

	// Validation settings
	AllowEmptyTitle   bool
	AllowEmptyContent bool
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxTagsPerMemo:   10,
		MaxTagLength:     50,
		MaxTitleLength:   200,
		MaxContentLength: 50000,

		AllowEmptyTitle:   false,
		AllowEmptyContent: true,
	}
}
