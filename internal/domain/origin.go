package domain

// AuthOrigin records how an account was first created.
type AuthOrigin string

// AuthOrigin constants define the supported account origins.
const (
	AuthOriginLocal  AuthOrigin = "LOCAL"
	AuthOriginGoogle AuthOrigin = "GOOGLE"
)

// ValidAuthOrigins returns the set of valid account origins.
func ValidAuthOrigins() []AuthOrigin {
	return []AuthOrigin{AuthOriginLocal, AuthOriginGoogle}
}

// IsValidAuthOrigin checks whether the given string names a known origin.
func IsValidAuthOrigin(origin string) bool {
	for _, o := range ValidAuthOrigins() {
		if string(o) == origin {
			return true
		}
	}
	return false
}
