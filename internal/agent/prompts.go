package agent

import (
	"fmt"
	"strings"
)

// proposePrompt asks the collaborator for the opening command.
func proposePrompt(goal, cwd string) string {
	var b strings.Builder
	b.WriteString("You are a Linux shell expert. Propose exactly one safe, single-line command that achieves the goal below.\n")
	fmt.Fprintf(&b, "- Working directory: %s\n", cwd)
	b.WriteString("- Output only the command, no code fences. A leading \"$ \" marker is acceptable.\n")
	b.WriteString("- Avoid sudo. If it is truly unavoidable, include \"sudo \" explicitly.\n")
	b.WriteString("- Never delete destructively. Rename instead: mv <path> <path>.bak.\n")
	b.WriteString("- No redirection (>, >>, tee) and no permission changes (chmod/chown).\n")
	fmt.Fprintf(&b, "\nGoal: %s\n", goal)
	return b.String()
}

// reproposePrompt asks for a sudo-free equivalent after the user
// declined a sudo confirmation.
func reproposePrompt(goal, cwd, declined string) string {
	var b strings.Builder
	b.WriteString("You are a Linux shell expert. The user declined to run the command below with sudo.\n")
	b.WriteString("Propose exactly one equivalent single-line command that works without sudo.\n")
	fmt.Fprintf(&b, "- Working directory: %s\n", cwd)
	b.WriteString("- Output only the command, no code fences. Do not use sudo.\n")
	b.WriteString("- No destructive operations, no redirection, no permission changes.\n")
	fmt.Fprintf(&b, "\nGoal: %s\n", goal)
	fmt.Fprintf(&b, "Declined command: $ %s\n", declined)
	return b.String()
}
