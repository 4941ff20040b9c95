package multiagent

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cheerhou/DevoLight/internal/domain"
)

// Scripture rule names, in evaluation order.
const (
	RuleCJKBook   = "cjk-book"
	RuleCJKShort  = "cjk-short"
	RuleLatinBook = "latin-book"
	RuleCJKAbbrev = "cjk-abbrev"
)

// ScriptureRule is one pattern in the ordered rule list.
// Pattern groups: 1 = book, 2 = chapter, 3 = verse (optional). The reference
// starts at group 1; anything the pattern consumes before it is context.
// Accept, when set, vetoes a match; the rule then tries its next match.
type ScriptureRule struct {
	Name    string
	Pattern *regexp.Regexp
	Accept  func(groups []string) bool
}

const (
	arabicNum  = `([1-9][0-9]*)`
	chapterNum = `([1-9][0-9]*|[一二三四五六七八九十百零〇]+)`
)

var defaultScriptureRules = []ScriptureRule{
	{
		Name: RuleCJKBook,
		Pattern: regexp.MustCompile(`(` + alternation(cjkBookNames) + `)\s*` + chapterNum +
			`\s*(?:(?:[:：]|章)\s*` + chapterNum + `\s*节?|章|篇)?`),
		Accept: cjkChapterMarked,
	},
	{
		// Short forms are single words like 约 or 来, so they only count at
		// the start of a word: 大约3:30 is a time, not John.
		Name: RuleCJKShort,
		Pattern: regexp.MustCompile(`(?:^|[^\p{Han}])(` + alternation(cjkBookShortNames) + `)\s*` +
			arabicNum + `\s*[:：]\s*` + arabicNum),
	},
	{
		Name: RuleLatinBook,
		Pattern: regexp.MustCompile(`(?i)\b((?:[1-3]\s?)?(?:` + alternation(latinBookNames) + `))\.?\s*` +
			arabicNum + `(?:\s*:\s*` + arabicNum + `)?`),
	},
	{
		Name:    RuleCJKAbbrev,
		Pattern: regexp.MustCompile(`(\p{Han}{2}福音|` + alternation(cjkAbbrevBooks) + `)\s*` + arabicNum),
	},
}

// DefaultScriptureRules returns the built-in rules in evaluation order.
func DefaultScriptureRules() []ScriptureRule {
	out := make([]ScriptureRule, len(defaultScriptureRules))
	copy(out, defaultScriptureRules)
	return out
}

// ScriptureParser extracts the first scripture reference in a message.
// Rules are tried in order and the first one that matches wins, even when a
// later rule would have matched earlier in the text.
type ScriptureParser struct {
	rules []ScriptureRule
}

// NewScriptureParser creates a parser. With no rules, DefaultScriptureRules is used.
func NewScriptureParser(rules ...ScriptureRule) *ScriptureParser {
	if len(rules) == 0 {
		rules = DefaultScriptureRules()
	}
	return &ScriptureParser{rules: rules}
}

// Parse returns the first reference found, or nil.
func (p *ScriptureParser) Parse(message string) *domain.ScriptureReference {
	ref, _ := p.Match(message)
	return ref
}

// Match is Parse that also reports which rule matched ("" when none did).
func (p *ScriptureParser) Match(message string) (*domain.ScriptureReference, string) {
	for _, rule := range p.rules {
		for _, idx := range rule.Pattern.FindAllStringSubmatchIndex(message, -1) {
			groups := submatches(message, idx)
			if rule.Accept != nil && !rule.Accept(groups) {
				continue
			}
			ref := &domain.ScriptureReference{
				Book:     strings.TrimSpace(groups[1]),
				Chapter:  normalizeNumeral(groups[2]),
				RawMatch: message[idx[2]:idx[1]],
			}
			if len(groups) > 3 && groups[3] != "" {
				verse := normalizeNumeral(groups[3])
				ref.Verse = &verse
			}
			return ref, rule.Name
		}
	}
	return nil, ""
}

func submatches(s string, idx []int) []string {
	out := make([]string, len(idx)/2)
	for i := range out {
		if start := idx[2*i]; start >= 0 {
			out[i] = s[start:idx[2*i+1]]
		}
	}
	return out
}

// cjkChapterMarked rejects a bare CJK-numeral chapter: 约翰福音十分感人 is
// prose, while 约翰福音十章 or 诗篇二十三篇 is a reference.
func cjkChapterMarked(groups []string) bool {
	chapter := groups[2]
	if chapter == "" || (chapter[0] >= '1' && chapter[0] <= '9') {
		return true
	}
	if len(groups) > 3 && groups[3] != "" {
		return true
	}
	return !strings.HasSuffix(strings.TrimSpace(groups[0]), chapter)
}

// RuleNames lists the parser's rules in evaluation order.
func (p *ScriptureParser) RuleNames() []string {
	names := make([]string, len(p.rules))
	for i, r := range p.rules {
		names[i] = r.Name
	}
	return names
}

var cjkDigits = map[rune]int{
	'零': 0, '〇': 0, '一': 1, '二': 2, '三': 3, '四': 4,
	'五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
}

// normalizeNumeral converts CJK numerals (up to the hundreds) to Arabic digits.
// Arabic input and unparseable numerals are returned unchanged.
func normalizeNumeral(s string) string {
	if _, err := strconv.Atoi(s); err == nil {
		return s
	}
	total, cur := 0, 0
	for _, r := range s {
		if d, ok := cjkDigits[r]; ok {
			cur = d
			continue
		}
		var unit int
		switch r {
		case '十':
			unit = 10
		case '百':
			unit = 100
		default:
			return s
		}
		if cur == 0 {
			cur = 1
		}
		total += cur * unit
		cur = 0
	}
	return strconv.Itoa(total + cur)
}

// alternation builds a regexp alternation with longer names first, so that
// leftmost-first matching prefers 约翰一书 over 约 and Psalms over Ps.
func alternation(names []string) string {
	sorted := append([]string(nil), names...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return utf8.RuneCountInString(sorted[i]) > utf8.RuneCountInString(sorted[j])
	})
	quoted := make([]string, len(sorted))
	for i, n := range sorted {
		quoted[i] = regexp.QuoteMeta(n)
	}
	return strings.Join(quoted, "|")
}
