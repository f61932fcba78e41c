// Package collab coordinates role-scoped agents through a phased
// development workflow against a shared repository.
package collab

import "strings"

// Block is a fenced code block extracted from an agent response.
type Block struct {
	Language string
	Content  string
}

// ExtractBlock parses the first fenced code block from text. The fence is
// three backticks with an optional language tag on the opening line; the
// block ends at the next fence line. The bool result distinguishes "no
// block" from an empty block.
func ExtractBlock(text string) (Block, bool) {
	lines := strings.Split(text, "\n")

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "```") {
			continue
		}
		lang := strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))

		for j := i + 1; j < len(lines); j++ {
			if strings.TrimSpace(lines[j]) == "```" {
				content := strings.Join(lines[i+1:j], "\n")
				return Block{Language: lang, Content: strings.TrimSpace(content)}, true
			}
		}
		// Opening fence without a closing one.
		return Block{}, false
	}
	return Block{}, false
}

// fileNameFor maps a fence language tag to the file the generated code is
// committed as.
func fileNameFor(language string) string {
	switch strings.ToLower(language) {
	case "python", "py":
		return "main.py"
	case "javascript", "js", "jsx":
		return "main.js"
	case "go", "golang":
		return "main.go"
	default:
		return "main.txt"
	}
}
