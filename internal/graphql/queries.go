package graphql

import (
	"fmt"
	"os"
	"strings"
)

// LoadQuery reads a GraphQL query document from disk. An absent or empty
// file is a configuration problem, reported before any request is made.
func LoadQuery(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("query file %s: %w", path, err)
	}
	query := strings.TrimSpace(string(data))
	if query == "" {
		return "", fmt.Errorf("query file %s is empty", path)
	}
	return query, nil
}
