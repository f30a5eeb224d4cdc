package main

import (
	"slices"
	"testing"
)

func TestParseHostReply(t *testing.T) {
	reg := testRegistry(t)
	cast := reg.All()

	tests := []struct {
		name        string
		text        string
		wantSpeaker string
		wantRule    string
		wantTopic   string
		wantVoting  bool
		wantSummary string
	}{
		{
			name:        "tagged",
			text:        "Hiro's alibi needs checking.\n[NEXT SPEAKER] hiro\n[TOPIC] the shower room",
			wantSpeaker: "hiro",
			wantRule:    "tagged",
			wantTopic:   "the shower room",
			wantSummary: "Hiro's alibi needs checking.",
		},
		{
			name:        "full-width brackets and colon",
			text:        "【NEXT SPEAKER】: Coco\n【TOPIC】：the missing bottle",
			wantSpeaker: "coco",
			wantRule:    "tagged",
			wantTopic:   "the missing bottle",
		},
		{
			name:        "tag value is a display name",
			text:        "[NEXT SPEAKER] Sherii Tachibana, she knows something",
			wantSpeaker: "sherii",
			wantRule:    "tagged",
		},
		{
			name:        "labelled without brackets",
			text:        "Let us hear from someone new.\nNext speaker: anan",
			wantSpeaker: "anan",
			wantRule:    "labelled",
		},
		{
			name:        "id substring",
			text:        "I think MILLIA should talk about the corridor.",
			wantSpeaker: "millia",
			wantRule:    "id-substring",
		},
		{
			// no tag, only a display name that contains the id
			name:        "display name substring",
			text:        "The one who should answer now is Nayeka Kurobe.",
			wantSpeaker: "nayeka",
			wantRule:    "id-substring",
		},
		{
			name:        "ids only match whole words",
			text:        "That leaves us with a dilemma. Perhaps noah can help.",
			wantSpeaker: "noah",
			wantRule:    "id-substring",
		},
		{
			name:       "start voting",
			text:       "Everyone has spoken.\n[START VOTING]",
			wantRule:   ruleUnresolved,
			wantVoting: true,
		},
		{
			name:     "nothing recognisable",
			text:     "Let us continue.",
			wantRule: ruleUnresolved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseHostReply(tt.text, cast)
			if got.NextSpeaker != tt.wantSpeaker || got.SpeakerRule != tt.wantRule {
				t.Errorf("speaker = %q via %s, want %q via %s", got.NextSpeaker, got.SpeakerRule, tt.wantSpeaker, tt.wantRule)
			}
			if got.Topic != tt.wantTopic {
				t.Errorf("topic = %q, want %q", got.Topic, tt.wantTopic)
			}
			if got.StartVoting != tt.wantVoting {
				t.Errorf("start voting = %v, want %v", got.StartVoting, tt.wantVoting)
			}
			if tt.wantSummary != "" && got.Summary != tt.wantSummary {
				t.Errorf("summary = %q, want %q", got.Summary, tt.wantSummary)
			}
		})
	}
}

func TestNameSubstringRule(t *testing.T) {
	// ids that never appear in the text leave the display name as the only clue
	cast := []Character{
		{ID: "c1", Name: "Hanna"},
		{ID: "c2", Name: "Coco"},
	}
	got := ParseHostReply("Perhaps Coco should explain herself.", cast)
	if got.NextSpeaker != "c2" || got.SpeakerRule != "name-substring" {
		t.Errorf("got %q via %s, want c2 via name-substring", got.NextSpeaker, got.SpeakerRule)
	}
}

func TestResolveIDRuleOrder(t *testing.T) {
	reg := testRegistry(t)
	// The tag wins over names mentioned earlier in the text
	text := "Hanna keeps repeating herself.\n[NEXT SPEAKER] sherii"
	id, rule := resolveID(text, tagNextSpeaker, reg.All())
	if id != "sherii" || rule != "tagged" {
		t.Errorf("got %s via %s, want sherii via tagged", id, rule)
	}

	// An unknown tagged value falls through to the substring rules
	text = "[NEXT SPEAKER] the warden\nMaybe Margo has the list."
	id, rule = resolveID(text, tagNextSpeaker, reg.All())
	if id != "margo" || rule != "id-substring" {
		t.Errorf("got %s via %s, want margo via id-substring", id, rule)
	}
}

func TestParseVoteReply(t *testing.T) {
	reg := testRegistry(t)
	targets := validVoteTargets(reg, "reia", "hanna")

	tests := []struct {
		name       string
		text       string
		wantTarget string
		wantReason string
	}{
		{"tagged", "[VOTE] noah\n[REASON] She had a view of the tower.", "noah", "She had a view of the tower."},
		{"full width", "【VOTE】coco【REASON】the potion was hers", "coco", "the potion was hers"},
		{"labelled", "vote: arisa\nreason: she knows too much", "arisa", "she knows too much"},
		{"name only, reason from first sentence", "I am sure it was Hiro Nikaido. Nobody else argued with her.", "hiro", "I am sure it was Hiro Nikaido"},
		{"unresolved", "I cannot decide.", "", "I cannot decide"},
		{"empty", "", "", defaultVoteReason},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseVoteReply(tt.text, targets)
			if got.Target != tt.wantTarget {
				t.Errorf("target = %q, want %q", got.Target, tt.wantTarget)
			}
			if got.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", got.Reason, tt.wantReason)
			}
		})
	}
}

func TestParseVoteReplyIgnoresVictimAndSelf(t *testing.T) {
	reg := testRegistry(t)
	targets := validVoteTargets(reg, "reia", "hanna")
	got := ParseVoteReply("[VOTE] hanna", targets)
	if got.Target != "" {
		t.Errorf("self vote resolved to %q, want unresolved", got.Target)
	}
}

func TestParseProgressReply(t *testing.T) {
	reg := testRegistry(t)
	text := "[NEWLY COMPLETED] 2, 3 and 3\n[NEXT STEP] Arisa says she was outside on her own.\n[SUGGESTED SPEAKER] arisa"
	got := ParseProgressReply(text, reg.All())
	if !slices.Equal(got.NewlyCompleted, []int{2, 3}) {
		t.Errorf("newly completed = %v, want [2 3]", got.NewlyCompleted)
	}
	if got.NextStep != "Arisa says she was outside on her own." {
		t.Errorf("next step = %q", got.NextStep)
	}
	if got.SuggestedSpeaker != "arisa" || got.SpeakerRule != "tagged" {
		t.Errorf("suggested = %q via %s", got.SuggestedSpeaker, got.SpeakerRule)
	}

	none := ParseProgressReply("[NEWLY COMPLETED] none\n[NEXT STEP] none", reg.All())
	if len(none.NewlyCompleted) != 0 {
		t.Errorf("none should parse to no ids, got %v", none.NewlyCompleted)
	}
}

// Numbers in prose around the list must never count as completed points.
func TestParseProgressReplyIgnoresProse(t *testing.T) {
	reg := testRegistry(t)
	tests := []struct {
		name     string
		text     string
		want     []int
		nextStep string
	}{
		{
			name:     "labelled fields on one line",
			text:     "Newly completed: none. Next step: point 2, Hanna explains the corridor.",
			nextStep: "point 2, Hanna explains the corridor.",
		},
		{
			name: "tagged none with a remark",
			text: "[NEWLY COMPLETED] none (point 3 is still pending)",
		},
		{
			name: "list followed by a remark",
			text: "[NEWLY COMPLETED] 1, 4 (point 5 is close)",
			want: []int{1, 4},
		},
		{
			name:     "labelled list followed by another label",
			text:     "newly completed: 2 and 6 next step: ask Coco",
			want:     []int{2, 6},
			nextStep: "ask Coco",
		},
		{
			name: "prose before any number",
			text: "[NEWLY COMPLETED] I think 3 happened",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseProgressReply(tt.text, reg.All())
			if !slices.Equal(got.NewlyCompleted, tt.want) {
				t.Errorf("newly completed = %v, want %v", got.NewlyCompleted, tt.want)
			}
			if got.NextStep != tt.nextStep {
				t.Errorf("next step = %q, want %q", got.NextStep, tt.nextStep)
			}
		})
	}
}

func TestLabelledValueStopsAtNextLabel(t *testing.T) {
	text := "vote: coco reason: she hid the potion [TOPIC] the tower"
	if v, _ := labelledValue(text, tagVote); v != "coco" {
		t.Errorf("vote = %q, want coco", v)
	}
	if v, _ := labelledValue(text, tagReason); v != "she hid the potion" {
		t.Errorf("reason = %q", v)
	}
}

func TestStripTags(t *testing.T) {
	got := stripTags("Hanna is hiding something.\n[NEXT SPEAKER] sherii\n[TOPIC] the tower\n")
	if got != "Hanna is hiding something." {
		t.Errorf("stripTags = %q", got)
	}
}
