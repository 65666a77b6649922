package merge

import (
	"fmt"
	"strings"
)

// buildSystemPrompt frames the synthesis task for the model. The no-name
// prefix rule is a formatting instruction only; the engine does not
// re-validate the model's output against it.
func buildSystemPrompt(partyName, companionName string) string {
	partyName = strings.TrimSpace(partyName)
	if partyName == "" {
		partyName = "the party"
	}
	var b strings.Builder
	b.WriteString("You merge many audience suggestions into a single short action for ")
	b.WriteString(partyName)
	if companionName = strings.TrimSpace(companionName); companionName != "" {
		b.WriteString(", who travels with ")
		b.WriteString(companionName)
		b.WriteString(",")
	}
	b.WriteString(" in an ongoing interactive story.\n")
	b.WriteString("Blend the intent of the suggestions, weighing popular ones more heavily.\n")
	b.WriteString("Reply with exactly one action, written in second person, and do not begin the reply with ")
	b.WriteString(partyName)
	b.WriteString("'s own name.")
	return b.String()
}

// buildUserPrompt assembles story context, the optional most recent action,
// and the enumerated submissions into one prompt.
func buildUserPrompt(req Request) string {
	var b strings.Builder

	story := buildStoryContext(req.Story, req.LastKnownAction)
	if story != "" {
		b.WriteString("Story so far:\n")
		b.WriteString(story)
		b.WriteString("\n\n")
	}

	b.WriteString("Audience suggestions:\n")
	for i, submission := range req.Submissions {
		fmt.Fprintf(&b, "%d. (%d votes) %s\n", i+1, submission.Votes, submission.Text)
	}

	partyName := strings.TrimSpace(req.PartyName)
	if partyName == "" {
		partyName = "the party"
	}
	fmt.Fprintf(&b, "\nWrite the single action %s takes next.", partyName)
	return b.String()
}

// buildStoryContext concatenates story sections in order, skipping
// instruction-class sections, and appends the most recent known action as a
// trailing labeled block when present.
func buildStoryContext(sections []Section, lastKnownAction string) string {
	var parts []string
	for _, section := range sections {
		if section.Kind == SectionKindInstructions || section.Kind == SectionKindAuthorsNote {
			continue
		}
		text := strings.TrimSpace(section.Text)
		if text == "" {
			continue
		}
		parts = append(parts, text)
	}

	lastKnownAction = strings.TrimSpace(lastKnownAction)
	if lastKnownAction != "" {
		parts = append(parts, "Most recent action:\n"+lastKnownAction)
	}
	return strings.Join(parts, "\n\n")
}
