package orchestration

import (
	"fmt"
	"sort"
	"strings"
)

// RenderASCII renders the orchestration level by level, followed by the
// step dependencies. Only portable ASCII characters are used.
func RenderASCII(o *Orchestration) string {
	if o.Len() == 0 {
		return "Orchestration has no steps to visualize."
	}

	var sb strings.Builder
	sb.WriteString(renderHeader(o))
	sb.WriteString("\n")

	depth := o.Depth()
	for k := 1; k <= depth; k++ {
		sb.WriteString(renderLevel(k, o.StepsAtLevel(k)))
		if k < depth {
			sb.WriteString(renderLevelConnector())
		}
	}

	sb.WriteString("\n")
	sb.WriteString(renderDependencies(o))
	sb.WriteString("\n")
	sb.WriteString(renderLegend())

	return sb.String()
}

func renderHeader(o *Orchestration) string {
	var sb strings.Builder
	title := fmt.Sprintf("Orchestration: %s v%d", o.Name, o.Version)
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("=", len(title)) + "\n")

	undo := 0
	for _, s := range o.steps {
		if s.undo {
			undo++
		}
	}
	fmt.Fprintf(&sb, "Levels: %d  |  Steps: %d  |  Rollback: %d\n", o.Depth(), o.Len(), undo)
	if targets := o.Target(); len(targets) > 0 {
		fmt.Fprintf(&sb, "Targets: %s\n", strings.Join(targets, ", "))
	}
	return sb.String()
}

func renderLevel(k int, steps []*Step) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[L%d]\n", k)
	for i, s := range steps {
		prefix := "  |-"
		if i == len(steps)-1 {
			prefix = "  +-"
		}
		sb.WriteString(renderStepLine(prefix, s))
	}
	return sb.String()
}

func renderStepLine(prefix string, s *Step) string {
	marker := ""
	if s.undo {
		marker = " (undo)"
	}
	label := s.id
	if name := s.Name(); name != s.id {
		label = fmt.Sprintf("%s (%s)", s.id, name)
	}
	return fmt.Sprintf("%s %s%s\n", prefix, label, marker)
}

func renderLevelConnector() string {
	return "    |\n    v\n"
}

func renderDependencies(o *Orchestration) string {
	var lines []string
	for _, s := range o.steps {
		parents := o.graph.Predecessors(s.id)
		if len(parents) == 0 {
			continue
		}
		sort.Strings(parents)
		lines = append(lines, fmt.Sprintf("  %s --> %s\n", s.id, strings.Join(parents, ", ")))
	}
	if len(lines) == 0 {
		return ""
	}
	sort.Strings(lines)

	var sb strings.Builder
	sb.WriteString("Step Dependencies:\n")
	sb.WriteString("------------------\n")
	for _, line := range lines {
		sb.WriteString(line)
	}
	return sb.String()
}

func renderLegend() string {
	var sb strings.Builder
	sb.WriteString("Legend:\n")
	sb.WriteString("  (undo) = rollback step\n")
	sb.WriteString("  --> = depends on\n")
	return sb.String()
}

// RenderCompact renders a single line such as "L1: [a, b] -> L2: [c]".
func RenderCompact(o *Orchestration) string {
	if o.Len() == 0 {
		return "Empty orchestration"
	}
	depth := o.Depth()
	parts := make([]string, 0, depth)
	for k := 1; k <= depth; k++ {
		var ids []string
		for _, s := range o.StepsAtLevel(k) {
			ids = append(ids, s.id)
		}
		parts = append(parts, fmt.Sprintf("L%d: [%s]", k, strings.Join(ids, ", ")))
	}
	return strings.Join(parts, " -> ")
}
