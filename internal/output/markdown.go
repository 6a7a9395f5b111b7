package output

import (
	"fmt"
	"strings"
)

// MarkdownFormatter outputs the document as a human-readable architecture
// report.
type MarkdownFormatter struct{}

// NewMarkdownFormatter creates a new MarkdownFormatter.
func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

// Extension returns the file extension for Markdown output.
func (f *MarkdownFormatter) Extension() string {
	return "md"
}

// Format renders the document as Markdown.
func (f *MarkdownFormatter) Format(doc *Document) ([]byte, error) {
	m := doc.Model
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", m.ProjectName)
	fmt.Fprintf(&b, "Version: %s\n", m.ProjectVersion)
	for _, repo := range m.Repositories {
		fmt.Fprintf(&b, "Repository: %s\n", repo)
	}

	if len(m.Components) > 0 {
		b.WriteString("\n## Components\n\n")
		b.WriteString("| ID | Name | Type | Technology |\n")
		b.WriteString("|----|------|------|------------|\n")
		for _, c := range m.Components {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", c.ID, c.Name, c.Type, c.Technology)
		}
	}

	if len(m.Dependencies) > 0 {
		b.WriteString("\n## Dependencies\n\n")
		b.WriteString("| Component | Artifact | Version | Scope | Direct |\n")
		b.WriteString("|-----------|----------|---------|-------|--------|\n")
		for _, d := range m.Dependencies {
			artifact := d.Artifact
			if d.Group != "" {
				artifact = d.Group + "/" + d.Artifact
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %t |\n",
				d.SourceComponentID, artifact, d.Version, d.Scope, d.Direct)
		}
	}

	if len(m.ApiEndpoints) > 0 {
		b.WriteString("\n## API Endpoints\n\n")
		b.WriteString("| Component | Method | Path | Handler |\n")
		b.WriteString("|-----------|--------|------|--------|\n")
		for _, ep := range m.ApiEndpoints {
			method := ep.Method
			if ep.Type != "rest" {
				method = string(ep.Type)
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", ep.ComponentID, method, ep.Path, ep.Handler)
		}
	}

	if len(m.DataEntities) > 0 {
		b.WriteString("\n## Data Entities\n\n")
		for _, e := range m.DataEntities {
			fmt.Fprintf(&b, "### %s (%s)\n\n", e.Name, e.Kind)
			fmt.Fprintf(&b, "Owned by %s", e.ComponentID)
			if e.PrimaryKey != "" {
				fmt.Fprintf(&b, ", primary key `%s`", e.PrimaryKey)
			}
			b.WriteString("\n\n")
			for _, field := range e.Fields {
				nullable := ""
				if field.Nullable {
					nullable = " (nullable)"
				}
				fmt.Fprintf(&b, "- `%s` %s%s\n", field.Name, field.DataType, nullable)
			}
		}
	}

	if len(m.MessageFlows) > 0 {
		b.WriteString("\n## Message Flows\n\n")
		for _, flow := range m.MessageFlows {
			switch {
			case flow.PublisherComponentID != "":
				fmt.Fprintf(&b, "- %s publishes to `%s`\n", flow.PublisherComponentID, flow.Topic)
			case flow.SubscriberComponentID != "":
				fmt.Fprintf(&b, "- %s subscribes to `%s`\n", flow.SubscriberComponentID, flow.Topic)
			}
		}
	}

	if len(m.Relationships) > 0 {
		b.WriteString("\n## Relationships\n\n")
		for _, rel := range m.Relationships {
			fmt.Fprintf(&b, "- %s %s %s\n", rel.SourceID, rel.Type, rel.TargetID)
		}
	}

	if len(doc.Statistics) > 0 {
		b.WriteString("\n## Scan Statistics\n\n")
		b.WriteString("| Plugin | Discovered | Scanned | Structural | Fallback | Failed | Success |\n")
		b.WriteString("|--------|-----------|---------|-----------|----------|--------|--------|\n")
		for _, id := range pluginIDs(doc.Statistics) {
			s := doc.Statistics[id]
			fmt.Fprintf(&b, "| %s | %d | %d | %d | %d | %d | %.0f%% |\n",
				id, s.FilesDiscovered, s.FilesScanned, s.Structural, s.Fallback,
				s.Failed, s.SuccessRate()*100)
		}
	}

	if len(doc.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range doc.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	fmt.Fprintf(&b, "\n---\n*Generated at %s*\n", doc.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	return []byte(b.String()), nil
}
