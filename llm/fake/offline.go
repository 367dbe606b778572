package fake

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"

	"github.com/KamdynS/agentlab/llm"
)

// Offline answers the prompt shapes used across the repo with plausible,
// deterministic replies so the CLI and server run without a provider.
func Offline() Responder {
	return func(req *llm.ChatRequest) (string, error) {
		prompt := ""
		if req != nil {
			for _, m := range req.Messages {
				prompt += m.Content + "\n"
			}
		}
		lower := strings.ToLower(prompt)
		seed := hash(prompt)

		switch {
		case strings.Contains(lower, "action: respond or search"):
			return "ACTION: respond\nREASON: " + field(prompt, "Input"), nil
		case strings.Contains(lower, "reply with the tool name only"):
			return pickTool(field(prompt, "Tools"), field(prompt, "Input")), nil
		case strings.Contains(lower, "numbered plan"):
			return fmt.Sprintf("1. Search for information on %s\n2. Calculate 6 * 7\n3. Summarise the findings", field(prompt, "Goal")), nil
		case strings.Contains(lower, "score:"):
			return fmt.Sprintf("Score: %d\nJustification: offline heuristic rating.", 5+seed%5), nil
		case strings.Contains(lower, "only with the number"):
			return fmt.Sprintf("%d", 5+seed%5), nil
		case strings.Contains(lower, `"complexity_level"`):
			return offlineAnalysis, nil
		case strings.Contains(lower, `"subtasks"`):
			return offlineSubtasks, nil
		case strings.Contains(lower, `"strategic"`):
			return offlineHierarchy, nil
		case strings.Contains(lower, "json"):
			return "{}", nil
		case strings.Contains(lower, "comma"):
			n := max(len(numbered.FindAllString(prompt, -1)), 1)
			parts := make([]string, n)
			for i := range parts {
				parts[i] = fmt.Sprintf("%d", (seed+uint32(i)*3)%11)
			}
			return strings.Join(parts, ", "), nil
		case strings.Contains(lower, "yes or no"), strings.Contains(lower, "yes/no"):
			if seed%2 == 0 {
				return "Yes", nil
			}
			return "No", nil
		case strings.Contains(lower, "related queries"), strings.Contains(lower, "rephrase"):
			q := firstLine(prompt)
			if m := quoted.FindStringSubmatch(prompt); m != nil {
				q = m[1]
			}
			return fmt.Sprintf("%s explained\n%s overview\n%s examples", q, q, q), nil
		}
		return "Offline answer: " + firstLine(prompt), nil
	}
}

const (
	offlineAnalysis = `{"complexity_level": "high", "estimated_hours": 24, "requires_decomposition": true,
"main_challenges": ["scope", "integration"], "required_skills": ["planning", "engineering"],
"suggested_approach": "iterative delivery"}`

	offlineSubtasks = `{"subtasks": [
{"id": "subtask_1", "title": "Gather requirements", "description": "Collect and agree on requirements", "estimated_hours": 6, "priority": "high", "dependencies": [], "skills_required": ["analysis"]},
{"id": "subtask_2", "title": "Design", "description": "Design the solution", "estimated_hours": 3, "priority": "high", "dependencies": ["subtask_1"], "skills_required": ["design"]},
{"id": "subtask_3", "title": "Build", "description": "Implement the solution", "estimated_hours": 8, "priority": "medium", "dependencies": ["subtask_2"], "skills_required": ["engineering"]},
{"id": "subtask_4", "title": "Review", "description": "Review and hand over", "estimated_hours": 2, "priority": "low", "dependencies": ["subtask_3"], "skills_required": ["communication"]}
]}`

	offlineHierarchy = `{"strategic": ["Plan", "Deliver"],
"tactical": ["Define scope", "Build increments", "Validate"],
"operational": ["Write brief", "Set up repository", "Run tests", "Publish"]}`
)

var (
	numbered = regexp.MustCompile(`(?m)^\d+\. `)
	quoted   = regexp.MustCompile(`"([^"]+)"`)
)

func hash(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 80 {
		s = s[:80]
	}
	return s
}

// field returns the rest of the first line starting with "<name>:".
func field(prompt, name string) string {
	for _, line := range strings.Split(prompt, "\n") {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(line), name+":"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

// pickTool chooses the listed tool sharing a word with input, else the first.
func pickTool(list, input string) string {
	names := strings.Split(list, ",")
	lower := strings.ToLower(input)
	for _, n := range names {
		n = strings.TrimSpace(n)
		for _, w := range strings.Split(n, "_") {
			if len(w) > 3 && strings.Contains(lower, w) {
				return n
			}
		}
	}
	return strings.TrimSpace(names[0])
}
