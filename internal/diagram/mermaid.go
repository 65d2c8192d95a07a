// Package diagram produces mermaid diagrams from model output and from plans.
package diagram

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rahul/sentinel/internal/agent"
)

// StartToken opens every diagram that does not already declare its type.
const StartToken = "graph TD"

var (
	// an opener is ``` followed by a language tag on its own line, or by
	// mermaid/mmd and the diagram on the same line
	openFence  = regexp.MustCompile("^```(?:[A-Za-z0-9_-]+[ \t]*\n|(?:mermaid|mmd)\\b)?")
	closeFence = regexp.MustCompile("\\s*```$")
	fenceLine  = regexp.MustCompile("^\\s*```[A-Za-z0-9_-]*\\s*$")
)

// Clean normalises model-written mermaid: line endings become LF, fence lines
// are dropped and a graph declaration is prepended when missing. fixed reports
// whether anything had to change.
func Clean(raw string) (code string, fixed bool) {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	s = strings.TrimSpace(s)
	s = openFence.ReplaceAllString(s, "")
	s = closeFence.ReplaceAllString(s, "")

	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if fenceLine.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	s = strings.TrimSpace(strings.Join(kept, "\n"))

	if !hasDeclaration(s) {
		s = StartToken + "\n" + s
	}
	return s, s != raw
}

func hasDeclaration(s string) bool {
	first := strings.TrimSpace(strings.SplitN(s, "\n", 2)[0])
	return strings.HasPrefix(first, "graph") || strings.HasPrefix(first, "flowchart")
}

// PlanGraph renders a task list as a left-to-right chain.
func PlanGraph(tasks []agent.Task) string {
	var b strings.Builder
	b.WriteString("flowchart LR\n")
	b.WriteString("    start((goal))\n")
	prev := "start"
	for i, t := range tasks {
		node := fmt.Sprintf("t%d", i+1)
		fmt.Fprintf(&b, "    %s[\"%d. %s\"]\n", node, i+1, label(t))
		fmt.Fprintf(&b, "    %s --> %s\n", prev, node)
		prev = node
	}
	b.WriteString("    done((done))\n")
	fmt.Fprintf(&b, "    %s --> done\n", prev)
	return b.String()
}

func label(t agent.Task) string {
	text := t.ID
	if text == "" {
		text = t.Description
	}
	text = strings.NewReplacer("\"", "'", "\n", " ", "[", "(", "]", ")").Replace(text)
	if r := []rune(text); len(r) > 60 {
		text = string(r[:60]) + "..."
	}
	return text
}
