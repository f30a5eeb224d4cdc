package main

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tags understood in oracle replies. A tag is written in square brackets,
// ASCII or full-width, followed by its value on the same line:
//
//	[NEXT SPEAKER] hanna
//	【VOTE】coco
const (
	tagNextSpeaker      = "NEXT SPEAKER"
	tagTopic            = "TOPIC"
	tagStartVoting      = "START VOTING"
	tagVote             = "VOTE"
	tagReason           = "REASON"
	tagNewlyCompleted   = "NEWLY COMPLETED"
	tagNextStep         = "NEXT STEP"
	tagSuggestedSpeaker = "SUGGESTED SPEAKER"
)

const defaultVoteReason = "intuition"

var (
	tagPattern      = regexp.MustCompile(`[\[【]\s*([A-Za-z][A-Za-z _-]*?)\s*[\]】]`)
	idTokenPattern  = regexp.MustCompile(`^[\p{L}\p{N}_-]+`)
	numberPattern   = regexp.MustCompile(`\d+`)
	leadingIDList   = regexp.MustCompile(`(?i)^(?:points?\s*)?#?\d+(?:(?:\s*(?:[,，、;/&]|and)\s*|\s+)#?\d+)*`)
	noneValue       = regexp.MustCompile(`(?i)^(?:none|nothing|no\b|n/a|-)`)
	sentenceBreaks  = regexp.MustCompile(`[.!?。！？\n]`)
	labelSeparators = ":："
)

type taggedField struct {
	label      string
	value      string
	start, end int
}

// scanTags finds every bracketed tag. A value runs to the end of its line
// or to the next tag on the same line.
func scanTags(text string) []taggedField {
	matches := tagPattern.FindAllStringSubmatchIndex(text, -1)
	fields := make([]taggedField, 0, len(matches))
	for i, m := range matches {
		end := len(text)
		if nl := strings.IndexByte(text[m[1]:], '\n'); nl >= 0 {
			end = m[1] + nl
		}
		if i+1 < len(matches) && matches[i+1][0] < end {
			end = matches[i+1][0]
		}
		value := strings.TrimSpace(text[m[1]:end])
		value = strings.TrimSpace(strings.TrimLeft(value, labelSeparators))
		fields = append(fields, taggedField{
			label: normalizeLabel(text[m[2]:m[3]]),
			value: value,
			start: m[0],
			end:   end,
		})
	}
	return fields
}

func normalizeLabel(s string) string {
	s = strings.NewReplacer("_", " ", "-", " ").Replace(strings.ToUpper(s))
	return strings.Join(strings.Fields(s), " ")
}

func taggedValue(text, tag string) (string, bool) {
	for _, f := range scanTags(text) {
		if f.label == tag {
			return f.value, true
		}
	}
	return "", false
}

func hasTag(text, tag string) bool {
	_, ok := taggedValue(text, tag)
	return ok
}

var (
	labelledPatterns = map[string]*regexp.Regexp{}
	// labelStart finds where any bracketless label begins inside a value
	labelStart *regexp.Regexp
)

func init() {
	var alts []string
	for _, tag := range []string{tagNextSpeaker, tagTopic, tagVote, tagReason, tagNewlyCompleted, tagNextStep, tagSuggestedSpeaker, tagStartVoting} {
		label := strings.Join(strings.Fields(tag), `[\s_-]*`)
		alts = append(alts, label)
		labelledPatterns[tag] = regexp.MustCompile(`(?im)(?:^|[^\p{L}\]】])` + label + `\s*[:：]\s*([^\n]*)`)
	}
	labelStart = regexp.MustCompile(`(?i)(?:^|[^\p{L}])((?:` + strings.Join(alts, "|") + `)\s*[:：])`)
}

// labelledValue reads the bracketless form "vote: hanna". A value runs to
// the end of its line or to the next label or tag on the same line.
func labelledValue(text, tag string) (string, bool) {
	re, ok := labelledPatterns[tag]
	if !ok {
		return "", false
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	v := m[1]
	if loc := labelStart.FindStringSubmatchIndex(v); loc != nil {
		v = v[:loc[2]]
	}
	if loc := tagPattern.FindStringIndex(v); loc != nil {
		v = v[:loc[0]]
	}
	return strings.TrimSpace(v), true
}

// fieldValue prefers the tagged form and falls back to the labelled form.
func fieldValue(text, tag string) (string, bool) {
	if v, ok := taggedValue(text, tag); ok {
		return v, true
	}
	return labelledValue(text, tag)
}

// stripTags removes every tag together with its value.
func stripTags(text string) string {
	fields := scanTags(text)
	if len(fields) == 0 {
		return strings.TrimSpace(text)
	}
	var b strings.Builder
	prev := 0
	for _, f := range fields {
		b.WriteString(text[prev:f.start])
		prev = f.end
	}
	b.WriteString(text[prev:])
	lines := strings.Split(b.String(), "\n")
	kept := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}

// Id resolution rules, tried in order. The first rule that yields a
// candidate wins; when none does the field is unresolved.
type idRule struct {
	name  string
	match func(text, tag string, candidates []Character) (string, bool)
}

const ruleUnresolved = "unresolved"

var idRules = []idRule{
	{name: "tagged", match: matchTagged},
	{name: "labelled", match: matchLabelled},
	{name: "id-substring", match: matchIDSubstring},
	{name: "name-substring", match: matchNameSubstring},
}

// resolveID maps an id-bearing field to a candidate id and names the rule used.
func resolveID(text, tag string, candidates []Character) (string, string) {
	for _, r := range idRules {
		if id, ok := r.match(text, tag, candidates); ok {
			return id, r.name
		}
	}
	return "", ruleUnresolved
}

func matchTagged(text, tag string, candidates []Character) (string, bool) {
	v, ok := taggedValue(text, tag)
	if !ok {
		return "", false
	}
	return matchValue(v, candidates)
}

func matchLabelled(text, tag string, candidates []Character) (string, bool) {
	v, ok := labelledValue(text, tag)
	if !ok {
		return "", false
	}
	return matchValue(v, candidates)
}

// matchValue accepts a field value that starts with an id or a display name.
func matchValue(v string, candidates []Character) (string, bool) {
	token := strings.ToLower(idTokenPattern.FindString(v))
	for _, c := range candidates {
		if token != "" && token == strings.ToLower(c.ID) {
			return c.ID, true
		}
	}
	for _, c := range candidates {
		if strings.HasPrefix(v, c.Name) {
			return c.ID, true
		}
	}
	return "", false
}

// matchIDSubstring finds an id standing as a whole word, so "dilemma"
// never names emma.
func matchIDSubstring(text, _ string, candidates []Character) (string, bool) {
	lower := strings.ToLower(text)
	for _, c := range candidates {
		if containsWord(lower, strings.ToLower(c.ID)) {
			return c.ID, true
		}
	}
	return "", false
}

func containsWord(text, word string) bool {
	if word == "" {
		return false
	}
	for off := 0; ; {
		i := strings.Index(text[off:], word)
		if i < 0 {
			return false
		}
		start, end := off+i, off+i+len(word)
		if !isWordRune(lastRune(text[:start])) && !isWordRune(firstRune(text[end:])) {
			return true
		}
		off = start + 1
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

func lastRune(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}

func matchNameSubstring(text, _ string, candidates []Character) (string, bool) {
	for _, c := range candidates {
		if strings.Contains(text, c.Name) {
			return c.ID, true
		}
	}
	return "", false
}

// HostReply is the parsed decision of the discussion host.
type HostReply struct {
	Summary     string
	NextSpeaker string
	SpeakerRule string
	Topic       string
	StartVoting bool
}

func ParseHostReply(text string, candidates []Character) HostReply {
	r := HostReply{
		Summary:     stripTags(text),
		StartVoting: hasTag(text, tagStartVoting),
	}
	r.Topic, _ = fieldValue(text, tagTopic)
	r.NextSpeaker, r.SpeakerRule = resolveID(text, tagNextSpeaker, candidates)
	return r
}

// VoteReply is a parsed character ballot. Target is empty when unresolved.
type VoteReply struct {
	Target string
	Rule   string
	Reason string
}

func ParseVoteReply(text string, candidates []Character) VoteReply {
	r := VoteReply{}
	r.Target, r.Rule = resolveID(text, tagVote, candidates)
	if reason, ok := fieldValue(text, tagReason); ok && reason != "" {
		r.Reason = reason
	} else {
		r.Reason = firstSentence(stripTags(text))
	}
	if r.Reason == "" {
		r.Reason = defaultVoteReason
	}
	return r
}

func firstSentence(text string) string {
	for _, s := range sentenceBreaks.Split(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// ProgressReply is the parsed verdict of the plot progression judge.
type ProgressReply struct {
	NewlyCompleted   []int
	NextStep         string
	SuggestedSpeaker string
	SpeakerRule      string
}

func ParseProgressReply(text string, candidates []Character) ProgressReply {
	r := ProgressReply{}
	if v, ok := fieldValue(text, tagNewlyCompleted); ok {
		r.NewlyCompleted = parseIDList(v)
	}
	r.NextStep, _ = fieldValue(text, tagNextStep)
	r.SuggestedSpeaker, r.SpeakerRule = resolveID(text, tagSuggestedSpeaker, candidates)
	return r
}

// parseIDList reads the list of integers a value starts with, such as
// "1, 3" or "2 and 4". Prose after the list is ignored, and a value that
// starts with "none" yields no ids.
func parseIDList(v string) []int {
	v = strings.TrimSpace(v)
	if noneValue.MatchString(v) {
		return nil
	}
	var ids []int
	for _, s := range numberPattern.FindAllString(leadingIDList.FindString(v), -1) {
		n, err := strconv.Atoi(s)
		if err != nil || slices.Contains(ids, n) {
			continue
		}
		ids = append(ids, n)
	}
	return ids
}
