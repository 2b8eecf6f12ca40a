package diagram

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// RenderASCIIAuto tries to render using the mermaid-ascii CLI binary at
// binPath if it exists, falling back to the built-in RenderASCII renderer.
func RenderASCIIAuto(ctx context.Context, model *DiagramModel, binPath string) string {
	if binPath != "" {
		if _, err := os.Stat(binPath); err == nil {
			result, err := RenderASCIIViaCLI(ctx, model, binPath)
			if err == nil {
				return result
			}
		}
	}
	return RenderASCII(model)
}

// RenderASCIIViaCLI pipes simplified Mermaid syntax through the mermaid-ascii binary.
func RenderASCIIViaCLI(ctx context.Context, model *DiagramModel, binPath string) (string, error) {
	mermaid := RenderMermaidForCLI(model)

	cmd := exec.CommandContext(ctx, binPath)
	cmd.Stdin = strings.NewReader(mermaid)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("mermaid-ascii: %w: %s", err, stderr.String())
	}
	return stdout.String(), nil
}

// RenderMermaidForCLI generates simplified Mermaid syntax compatible with the
// mermaid-ascii CLI tool. Unlike RenderMermaid, this avoids node declarations
// with ["label"] syntax (which mermaid-ascii cannot parse) and instead uses
// the label itself, badge included, as the node ID. Groups are dropped since
// mermaid-ascii silently ignores subgraph blocks.
func RenderMermaidForCLI(model *DiagramModel) string {
	var b strings.Builder
	dir := model.Direction
	if dir == "" {
		dir = "TD"
	}
	fmt.Fprintf(&b, "graph %s\n", dir)

	displayID := make(map[string]string, len(model.Nodes))
	linked := make(map[string]bool, len(model.Nodes))
	for _, node := range model.Nodes {
		displayID[node.ID] = cliNodeID(node)
	}
	resolve := func(id string) string {
		if d, ok := displayID[id]; ok {
			return d
		}
		return mermaidSafeID(id)
	}

	for _, edge := range model.Edges {
		label := ""
		if edge.Label != "" {
			label = fmt.Sprintf("|%s|", edge.Label)
		}
		fmt.Fprintf(&b, "    %s -->%s %s\n", resolve(edge.From), label, resolve(edge.To))
		linked[edge.From], linked[edge.To] = true, true
	}

	// Isolated nodes still need a line of their own.
	for _, node := range model.Nodes {
		if !linked[node.ID] {
			fmt.Fprintf(&b, "    %s\n", resolve(node.ID))
		}
	}

	return b.String()
}

// cliNodeID builds a display ID for the mermaid-ascii CLI from the node's
// label and badge.
func cliNodeID(node *Node) string {
	id := firstLine(node.Label)
	if id == "" {
		id = node.ID
	}
	if node.Badge != "" {
		id += "-" + node.Badge
	}

	// Replace spaces with dashes for valid Mermaid IDs.
	r := strings.NewReplacer(" ", "-", "[", "", "]", "", "(", "", ")", "", "{", "", "}", "", "|", "")
	return r.Replace(id)
}
