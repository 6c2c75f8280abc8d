package retrieval

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"hybrid_copilot/pkg"
)

var paragraphBreak = regexp.MustCompile(`\n\n+`)

// SplitDocument cuts a markdown document into paragraph passages.
// Paragraphs shorter than minChars are skipped and do not consume a
// sequence number, so ids stay stable while the document is unchanged.
func SplitDocument(source, content string, minChars int) []pkg.Passage {
	base := strings.TrimSuffix(source, filepath.Ext(source))

	var passages []pkg.Passage
	seq := 1
	for _, para := range paragraphBreak.Split(content, -1) {
		para = strings.TrimSpace(para)
		if utf8.RuneCountInString(para) < minChars {
			continue
		}
		passages = append(passages, pkg.Passage{
			ID:      fmt.Sprintf("%s::chunk%d", base, seq),
			Source:  source,
			Content: para,
		})
		seq++
	}
	return passages
}

// LoadDocuments reads the named files from dir, or every *.md file in
// dir sorted by name when names is empty. Missing named files are skipped.
func LoadDocuments(dir string, names []string, minChars int) ([]pkg.Passage, error) {
	if len(names) == 0 {
		matches, err := filepath.Glob(filepath.Join(dir, "*.md"))
		if err != nil {
			return nil, fmt.Errorf("failed to list documents in %s: %w", dir, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			names = append(names, filepath.Base(m))
		}
	}

	var passages []pkg.Passage
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read document %s: %w", name, err)
		}
		// CRLF files would otherwise never match the paragraph break
		content := strings.ReplaceAll(string(data), "\r\n", "\n")
		passages = append(passages, SplitDocument(name, content, minChars)...)
	}
	return passages, nil
}
