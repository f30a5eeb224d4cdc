package main

import (
	"fmt"
	"regexp"
	"strings"
)

const emptyTranscript = "(the discussion has just begun)"

// hiddenNotePattern matches parenthesised stage directions inside clue text.
var hiddenNotePattern = regexp.MustCompile(`（[^）]*）|\([^)]*\)`)

func publicClue(clue string) string {
	return strings.TrimSpace(hiddenNotePattern.ReplaceAllString(clue, ""))
}

func transcript(state *GameState, reg *Registry) string {
	if state.Ledger.Len() == 0 {
		return emptyTranscript
	}
	return state.Ledger.Render(reg)
}

func progressSystemPrompt(script *Script, state *GameState, points []PlotPoint, reg *Registry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the plot judge of a witch trial about %q. ", script.Case.Title)
	b.WriteString("You track which scripted plot points have already happened in the discussion.\n\n")
	fmt.Fprintf(&b, "[CURRENT CLUE PHASE] %d\n\n", state.CluePhase)
	b.WriteString("Plot points of this phase, in order:\n")
	for _, p := range points {
		mark := "pending"
		if state.IsCompleted(state.CluePhase, p.ID) {
			mark = "done"
		}
		fmt.Fprintf(&b, "%d. [%s] (%s) %s\n", p.ID, mark, reg.Name(p.Speaker), p.Description)
	}
	b.WriteString(`
Rules:
- A point counts as happened when its content appears in the transcript, whoever said it.
- Only report points that are still pending. Never repeat a point marked done.
- The next step is the first point that is still pending after your update.

Output format, nothing else:
[NEWLY COMPLETED] comma separated point numbers, or none
[NEXT STEP] description of the next pending point, or none
[SUGGESTED SPEAKER] character id best placed to bring up the next step`)
	return b.String()
}

func progressUserPrompt(state *GameState, reg *Registry) string {
	return fmt.Sprintf("[ROUND] %d/%d\n\n[TRANSCRIPT]\n%s\n\nWhich pending plot points have now happened?",
		state.Round(), state.MaxRounds, transcript(state, reg))
}

// hostHints are the per-turn constraints surfaced to the host.
type hostHints struct {
	stalemated   string
	breaker      string
	lastSpeaker  string
	playerLast   *Message
	playerFocus  *Message
	barredOpener string
	progress     Progress
}

func hostSystemPrompt(script *Script, state *GameState, reg *Registry, h hostHints) string {
	var b strings.Builder
	player := reg.Player()
	b.WriteString("You are the host of a witch trial. You do not know the truth. You decide who speaks next.\n\n")
	b.WriteString("Your duties:\n")
	b.WriteString("1. Pick the next speaker based on the discussion.\n")
	fmt.Fprintf(&b, "2. Respect the line of reasoning of the player, %s (%s).\n", player.Name, player.ID)
	b.WriteString("3. When the player asks something, let the character who knows the answer reply.\n")
	b.WriteString("4. Steer the discussion towards its conclusion.\n\n")

	b.WriteString("[PARTICIPANTS]\n")
	for _, c := range reg.All() {
		if c.ID == script.Case.Victim {
			continue
		}
		fmt.Fprintf(&b, "- %s (%s)\n", c.ID, c.Name)
	}

	b.WriteString("\n[WHAT EACH CHARACTER KNOWS]\n")
	clues := script.Case.CluesFor(state.CluePhase)
	for _, c := range reg.All() {
		clue, ok := clues[c.ID]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", c.Name, publicClue(clue))
	}

	if h.breaker != "" {
		fmt.Fprintf(&b, "\n[BREAK THE STALEMATE] %s has spoken too often and the discussion is going in circles. "+
			"You must let %s (%s) speak next.\n", reg.Name(h.stalemated), reg.Name(h.breaker), h.breaker)
	}
	if h.playerLast != nil {
		fmt.Fprintf(&b, "\n[TOP PRIORITY] %s just said: %q\n", player.Name, h.playerLast.Content)
		b.WriteString("Work out who the player wants to hear from:\n")
		b.WriteString("- If a character is named, let that character speak.\n")
		b.WriteString("- If a question is asked, pick whoever most likely knows the answer.\n")
		b.WriteString("- If someone is accused, let them defend themselves.\n")
	}
	if h.progress.NextStep != "" {
		fmt.Fprintf(&b, "\n[NEXT STEP] %s\n", h.progress.NextStep)
		if h.progress.SuggestedSpeaker != "" {
			fmt.Fprintf(&b, "The character best placed for this is %s (%s).\n",
				reg.Name(h.progress.SuggestedSpeaker), h.progress.SuggestedSpeaker)
		}
	}

	b.WriteString("\nSpeaking rules:\n")
	b.WriteString("- Never let the same character speak twice in a row.\n")
	b.WriteString("- A stalemate break always comes first.\n")
	b.WriteString("- If the player just spoke, answer the player.\n")
	b.WriteString("- If there is no clear direction, choose someone who can move the story forward.\n")
	if h.lastSpeaker != "" {
		fmt.Fprintf(&b, "- The previous speaker was %s. Choose somebody else.\n", h.lastSpeaker)
	}
	if h.playerFocus != nil {
		fmt.Fprintf(&b, "- Earlier the player said: %q. Follow that line of thought.\n", h.playerFocus.Content)
	}
	if h.barredOpener != "" {
		fmt.Fprintf(&b, "- This is the first turn. %s (%s) may not open the discussion.\n", reg.Name(h.barredOpener), h.barredOpener)
	}

	fmt.Fprintf(&b, "\nStart the vote only when %d rounds have passed or the player explicitly asks to vote.\n", state.MaxRounds)
	b.WriteString(`
Output format: one short sentence summarising the situation, then either
[NEXT SPEAKER] character id
[TOPIC] what they should address
or
[START VOTING]`)
	return b.String()
}

func hostUserPrompt(script *Script, state *GameState, reg *Registry) string {
	c := &script.Case
	return fmt.Sprintf(`[CASE]
Victim: %s
Location: %s
Time: %s

[ROUND] %d/%d
[CLUE PHASE] %d

[TRANSCRIPT]
%s

Decide who speaks next.`,
		reg.Name(c.Victim), c.Location, c.Time,
		state.Round(), state.MaxRounds, state.CluePhase,
		transcript(state, reg))
}

const noClue = "You have no particular clue."
const noTask = "Do your best to find the culprit."

func characterSystemPrompt(script *Script, reg *Registry, id string, cluePhase int) string {
	ch, _ := reg.Get(id)
	clue, ok := script.Case.CluesFor(cluePhase)[id]
	if !ok {
		clue = noClue
	}
	task, ok := script.Case.HiddenTasks[id]
	if !ok {
		task = noTask
	}
	return fmt.Sprintf(`You are %s, a magical girl taking part in a witch trial.

[PERSONALITY]
%s

[SPEAKING STYLE]
%s

[CLUE PHASE] %d

[WHAT YOU KNOW]
%s

[YOUR SECRET TASK]
%s

Rules:
1. Talk naturally, in character.
2. Do not reveal everything you know at once. Share a clue when asked directly.
3. You may express emotions or say something beside the point.
4. If you are suspected, defend yourself.
5. Keep your secrets unless you are cornered.
6. Keep it to one to three sentences, like a real conversation.
7. You may challenge others and cast suspicion on them.`,
		ch.Name, ch.Personality, ch.SpeakStyle, cluePhase, clue, task)
}

func characterUserPrompt(script *Script, state *GameState, reg *Registry, cluePhase int, topic string) string {
	c := &script.Case
	var b strings.Builder
	fmt.Fprintf(&b, "[CASE]\nVictim: %s\n%s\n", reg.Name(c.Victim), c.PublicInfo)
	if c.MisleadingInfo != "" {
		fmt.Fprintf(&b, "[BACKGROUND] %s\n", c.MisleadingInfo)
	}
	fmt.Fprintf(&b, "\n[CLUE PHASE] %d\n\n[TRANSCRIPT]\n%s\n\n", cluePhase, transcript(state, reg))
	if topic != "" {
		fmt.Fprintf(&b, "The host asks you to address: %s\n", topic)
	}
	b.WriteString("It is your turn to speak.")
	return b.String()
}

func voteSystemPrompt(script *Script, reg *Registry, voter string) string {
	ch, _ := reg.Get(voter)
	task, ok := script.Case.HiddenTasks[voter]
	if !ok {
		task = noTask
	}
	var targets []string
	for _, c := range validVoteTargets(reg, script.Case.Victim, voter) {
		targets = append(targets, fmt.Sprintf("%s (%s)", c.ID, c.Name))
	}
	return fmt.Sprintf(`You are %s. The discussion is over and the witch vote begins.

[YOUR SECRET TASK]
%s

[YOU MAY VOTE FOR]
%s

Vote for the character you believe is the culprit. You must pick one of the characters above.
You cannot vote for the victim or for yourself.

Output format, exactly:
[VOTE] character id
[REASON] one sentence

Example:
[VOTE] hanna
[REASON] Her alibi has a hole in it.`,
		ch.Name, task, strings.Join(targets, ", "))
}

func voteUserPrompt(state *GameState, reg *Registry) string {
	return fmt.Sprintf("[TRANSCRIPT]\n%s\n\nCast your vote.", transcript(state, reg))
}
