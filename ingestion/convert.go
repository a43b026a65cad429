package ingestion

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// textConverter turns raw document bytes into chunkable text.
// Plain text and markdown pass through; HTML is converted to markdown so
// chunk boundaries respect document structure instead of tag soup.
type textConverter struct {
	md *converter.Converter
}

func newTextConverter() *textConverter {
	return &textConverter{
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// toText converts content of the given mime type to text.
// Returns ErrUnsupportedFormat for mime types with no converter.
func (c *textConverter) toText(mimeType string, content []byte) (string, error) {
	// Parameters like "; charset=utf-8" don't change the converter choice.
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}

	switch mimeType {
	case "text/plain", "text/markdown":
		return string(content), nil
	case "text/html":
		md, err := c.md.ConvertString(string(content))
		if err != nil {
			return "", fmt.Errorf("convert html: %w", err)
		}
		return md, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mimeType)
	}
}
