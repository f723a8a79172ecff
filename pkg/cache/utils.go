package cache

import "fmt"

// GenerateKey joins a namespace and an id.
func GenerateKey(prefix string, id string) string {
	if prefix == "" {
		return id
	}
	return fmt.Sprintf("%s:%s", prefix, id)
}
