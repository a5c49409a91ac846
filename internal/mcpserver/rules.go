package mcpserver

import (
	"fmt"
	"strings"

	"github.com/starford/folio/internal/storage"
)

// NamingRules describes the file names folio accepts, for LLM consumers
// creating or uploading files.
func NamingRules() string {
	return fmt.Sprintf(`# folio Naming Rules

Every file lives directly in the content directory. There are no folders.

## Names

1. A name is a base name plus an extension, e.g. `+"`meeting-notes.md`"+`.
2. The base name is required and may only contain letters, digits,
   underscores and hyphens.
3. The extension is required and compared case-insensitively.
4. Names are unique. Creating or uploading onto an existing name fails.

## Extensions

- Documents: %s
- Images: %s

## Documents

Markdown documents (`+"`.md`"+`) are rendered to HTML when viewed. Text
documents (`+"`.txt`"+`) are shown as-is. Every edit keeps the previous
content as an earlier version.
`, strings.Join(storage.DocumentExtensions(), ", "), strings.Join(storage.ImageExtensions(), ", "))
}
