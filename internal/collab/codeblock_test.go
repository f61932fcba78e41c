package collab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBlock(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		found    bool
		language string
		content  string
	}{
		{
			name:     "python block",
			text:     "Here you go:\n```python\ndef f():\n    return 1\n```\nDone.",
			found:    true,
			language: "python",
			content:  "def f():\n    return 1",
		},
		{
			name:     "no language tag",
			text:     "```\nplain\n```",
			found:    true,
			language: "",
			content:  "plain",
		},
		{
			name:     "empty block is found",
			text:     "```python\n```",
			found:    true,
			language: "python",
			content:  "",
		},
		{
			name:  "no fence",
			text:  "just prose, nothing fenced",
			found: false,
		},
		{
			name:  "unclosed fence",
			text:  "```python\ndef f():\n    return 1",
			found: false,
		},
		{
			name:     "only first block extracted",
			text:     "```js\none\n```\n```python\ntwo\n```",
			found:    true,
			language: "js",
			content:  "one",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block, found := ExtractBlock(tt.text)
			require.Equal(t, tt.found, found)
			if found {
				assert.Equal(t, tt.language, block.Language)
				assert.Equal(t, tt.content, block.Content)
			}
		})
	}
}

func TestFileNameFor(t *testing.T) {
	assert.Equal(t, "main.py", fileNameFor("python"))
	assert.Equal(t, "main.py", fileNameFor("py"))
	assert.Equal(t, "main.js", fileNameFor("javascript"))
	assert.Equal(t, "main.go", fileNameFor("go"))
	assert.Equal(t, "main.txt", fileNameFor(""))
	assert.Equal(t, "main.txt", fileNameFor("rust"))
}
