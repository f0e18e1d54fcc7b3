package extract

import (
	"html"
	"os"
	"regexp"
	"strings"

	"tender-rag/internal/models"
)

type htmlExtractor struct{}

func (e *htmlExtractor) Name() string { return "html" }

func (e *htmlExtractor) Supports(ext string) bool {
	return ext == ".html" || ext == ".htm"
}

// Pre-compiled regular expressions for HTML stripping.
var (
	scriptTag     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptTag   = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	headTag       = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	htmlComments  = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockTags     = regexp.MustCompile(`(?i)</?(p|div|br|hr|h[1-6]|li|tr|blockquote|pre|table|section|article)[^>]*>`)
	allTags       = regexp.MustCompile(`<[^>]+>`)
	imgTags       = regexp.MustCompile(`(?i)<img[^>]*>`)
	tableOpenTags = regexp.MustCompile(`(?i)<table[^>]*>`)
	multiSpaces   = regexp.MustCompile(`[ \t]+`)
)

func (e *htmlExtractor) Extract(filePath string) (*models.ExtractionResult, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	content := string(data)

	tables := len(tableOpenTags.FindAllString(content, -1))
	figures := len(imgTags.FindAllString(content, -1))

	content = scriptTag.ReplaceAllString(content, "")
	content = styleTag.ReplaceAllString(content, "")
	content = noscriptTag.ReplaceAllString(content, "")
	content = headTag.ReplaceAllString(content, "")
	content = htmlComments.ReplaceAllString(content, "")
	content = blockTags.ReplaceAllString(content, "\n")
	content = allTags.ReplaceAllString(content, "")
	content = html.UnescapeString(content)
	content = multiSpaces.ReplaceAllString(content, " ")

	var lines []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}

	return &models.ExtractionResult{
		Text:        strings.Join(lines, "\n"),
		PageCount:   1,
		TableCount:  tables,
		FigureCount: figures,
	}, nil
}
