package domain

// CacheLocator identifies a cached artifact. DisplayName is carried only for
// logging; InputHash is the sole field that matters for tier lookup.
type CacheLocator struct {
	InputHash   string
	DisplayName string
}
