package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Frontmatter is the YAML header written above an exported entry.
type Frontmatter struct {
	Title    string `yaml:"title"`
	Exported string `yaml:"exported"`
	Source   string `yaml:"source,omitempty"`
}

// block is the subset of the editor's block format the exporter understands.
type block struct {
	Type     string          `json:"type"`
	Props    blockProps      `json:"props"`
	Content  json.RawMessage `json:"content"`
	Children []block         `json:"children"`
}

type blockProps struct {
	Level    int    `json:"level"`
	Checked  bool   `json:"checked"`
	Language string `json:"language"`
}

type inline struct {
	Type    string          `json:"type"`
	Text    string          `json:"text"`
	Href    string          `json:"href"`
	Styles  inlineStyles    `json:"styles"`
	Content json.RawMessage `json:"content"`
}

type inlineStyles struct {
	Bold   bool `json:"bold"`
	Italic bool `json:"italic"`
	Strike bool `json:"strike"`
	Code   bool `json:"code"`
}

// Body renders an entry as markdown: a "# name" heading followed by the
// content. String content is copied through; block content is converted
// block by block. Blocks of unknown types contribute their text as a paragraph.
func Body(name string, content json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", name)

	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return buf.Bytes(), nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, fmt.Errorf("decode string content: %w", err)
		}
		buf.WriteString(s)
		if s != "" && !strings.HasSuffix(s, "\n") {
			buf.WriteByte('\n')
		}
	case '[':
		var blocks []block
		if err := json.Unmarshal(trimmed, &blocks); err != nil {
			return nil, fmt.Errorf("decode block content: %w", err)
		}
		writeBlocks(&buf, blocks, "")
	default:
		return nil, fmt.Errorf("unsupported content shape")
	}
	return buf.Bytes(), nil
}

// Document renders Body with an optional YAML frontmatter header.
func Document(name string, content json.RawMessage, fm *Frontmatter) ([]byte, error) {
	body, err := Body(name, content)
	if err != nil {
		return nil, err
	}
	if fm == nil {
		return body, nil
	}
	header, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("encode frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(header)
	buf.WriteString("---\n\n")
	buf.Write(body)
	return buf.Bytes(), nil
}

// NewFrontmatter returns the header for an entry exported at now.
func NewFrontmatter(title string, now time.Time) *Frontmatter {
	return &Frontmatter{Title: title, Exported: now.UTC().Format(time.RFC3339)}
}

func writeBlocks(buf *bytes.Buffer, blocks []block, indent string) {
	number := 0
	for i, b := range blocks {
		if b.Type == "numberedListItem" {
			number++
		} else {
			number = 0
		}
		text := inlineText(b.Content)

		switch b.Type {
		case "heading":
			level := b.Props.Level
			if level < 1 || level > 6 {
				level = 1
			}
			fmt.Fprintf(buf, "%s%s %s\n\n", indent, strings.Repeat("#", level), text)
		case "bulletListItem":
			fmt.Fprintf(buf, "%s- %s\n", indent, text)
		case "numberedListItem":
			fmt.Fprintf(buf, "%s%d. %s\n", indent, number, text)
		case "checkListItem":
			mark := " "
			if b.Props.Checked {
				mark = "x"
			}
			fmt.Fprintf(buf, "%s- [%s] %s\n", indent, mark, text)
		case "quote":
			fmt.Fprintf(buf, "%s> %s\n\n", indent, text)
		case "codeBlock":
			fmt.Fprintf(buf, "%s```%s\n%s\n%s```\n\n", indent, b.Props.Language, rawText(b.Content), indent)
		default:
			if text == "" && len(b.Children) == 0 {
				continue
			}
			if text != "" {
				fmt.Fprintf(buf, "%s%s\n\n", indent, text)
			}
		}

		if len(b.Children) > 0 {
			writeBlocks(buf, b.Children, indent+"  ")
		}
		// A list ends with a blank line once the next block is not a list item.
		if isListItem(b.Type) && (i == len(blocks)-1 || !isListItem(blocks[i+1].Type)) {
			buf.WriteByte('\n')
		}
	}
}

func isListItem(t string) bool {
	return t == "bulletListItem" || t == "numberedListItem" || t == "checkListItem"
}

// inlineText renders inline content with markdown emphasis.
func inlineText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	if raw[0] == '"' {
		var s string
		_ = json.Unmarshal(raw, &s)
		return s
	}
	var items []inline
	if err := json.Unmarshal(raw, &items); err != nil {
		return ""
	}
	var sb strings.Builder
	for _, it := range items {
		switch it.Type {
		case "link":
			fmt.Fprintf(&sb, "[%s](%s)", inlineText(it.Content), it.Href)
		default:
			sb.WriteString(styled(it.Text, it.Styles))
		}
	}
	return sb.String()
}

// rawText concatenates inline text without markup, for code blocks.
func rawText(raw json.RawMessage) string {
	var items []inline
	if err := json.Unmarshal(raw, &items); err != nil {
		return inlineText(raw)
	}
	var sb strings.Builder
	for _, it := range items {
		sb.WriteString(it.Text)
	}
	return sb.String()
}

func styled(text string, s inlineStyles) string {
	if text == "" {
		return ""
	}
	if s.Code {
		return "`" + text + "`"
	}
	if s.Bold {
		text = "**" + text + "**"
	}
	if s.Italic {
		text = "*" + text + "*"
	}
	if s.Strike {
		text = "~~" + text + "~~"
	}
	return text
}
