package staticserver

import (
	"fmt"
	"os"
	"strings"
)

// ListAvailable returns a browsable URL for every immediate entry of `root`
// whose name ends in one of `exts`. Entries come back sorted by name.
func ListAvailable(root string, port int, exts []string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read dir: %s: %w", root, err)
	}

	var urls []string
	for _, entry := range entries {
		name := entry.Name()
		for _, ext := range exts {
			if strings.HasSuffix(name, ext) {
				urls = append(urls, fmt.Sprintf("http://localhost:%d/%s", port, name))
				break
			}
		}
	}
	return urls, nil
}
