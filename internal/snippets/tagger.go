package snippets

import (
	"regexp"
	"strings"
)

// TagSuggester proposes tags and a description for a snippet. The store calls
// it when a caller supplies none; swapping the strategy (heuristic today, a
// model-backed service later) never touches storage or ranking code.
type TagSuggester interface {
	Suggest(content, title string) (tags []string, description string)
}

type tagPattern struct {
	tag     string
	pattern *regexp.Regexp
}

var heuristicPatterns = []tagPattern{
	{"react", regexp.MustCompile(`(?i)react|usestate|useeffect|jsx`)},
	{"vue", regexp.MustCompile(`(?i)\bvue\b|v-model|v-if|v-for`)},
	{"express", regexp.MustCompile(`(?i)express|app\.(get|post|use)\(`)},
	{"database", regexp.MustCompile(`(?i)sqlite|postgres|mysql|mongodb|redis`)},
	{"query", regexp.MustCompile(`(?i)\b(select|insert|update|delete)\b.*\b(from|into|set|where)\b`)},
	{"testing", regexp.MustCompile(`(?i)describe\(|it\(|test\(|expect\(|assert`)},
	{"api", regexp.MustCompile(`(?i)axios|fetch\(|endpoint|http\.`)},
	{"graphql", regexp.MustCompile(`(?i)graphql|apollo|mutation`)},
	{"error-handling", regexp.MustCompile(`(?i)\b(try|catch|finally|throw)\b`)},
	{"validation", regexp.MustCompile(`(?i)validat|\brequired\b|\bregex\b`)},
	{"auth", regexp.MustCompile(`(?i)\b(auth|jwt|token|session|login|oauth)\b`)},
	{"async", regexp.MustCompile(`(?i)\basync\b|\bawait\b`)},
	{"promise", regexp.MustCompile(`(?i)\bpromise\b|\.then\(`)},
	{"caching", regexp.MustCompile(`(?i)\bcache\b|memcached|\bttl\b`)},
	{"docker", regexp.MustCompile(`(?i)dockerfile|container|docker-compose`)},
	{"logging", regexp.MustCompile(`(?i)console\.(log|error)|winston|zap\.`)},
	{"filesystem", regexp.MustCompile(`(?i)readfile|writefile|\bfs\.|mkdir`)},
	{"class", regexp.MustCompile(`(?i)\bclass\b|\bconstructor\b`)},
	{"function", regexp.MustCompile(`(?i)\bfunction\b|=>|\bfunc\b`)},
	{"configuration", regexp.MustCompile(`(?i)\bconfig\b|\bsettings\b|dotenv|\benv\b`)},
}

const maxSuggestedTags = 5

// HeuristicTagSuggester infers tags from recognizable framework, language,
// and concern markers in the content and title.
type HeuristicTagSuggester struct{}

// Suggest implements TagSuggester.
func (HeuristicTagSuggester) Suggest(content, title string) ([]string, string) {
	haystack := content + "\n" + title

	tags := make([]string, 0, maxSuggestedTags)
	for _, candidate := range heuristicPatterns {
		if candidate.pattern.MatchString(haystack) {
			tags = append(tags, candidate.tag)
			if len(tags) == maxSuggestedTags {
				break
			}
		}
	}

	return tags, describeSnippet(title, tags)
}

func describeSnippet(title string, tags []string) string {
	trimmedTitle := strings.TrimSpace(title)
	if trimmedTitle == "" {
		return ""
	}
	if len(tags) == 0 {
		return trimmedTitle
	}
	return trimmedTitle + " (" + strings.Join(tags, ", ") + ")"
}
