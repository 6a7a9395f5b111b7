package scanner

import (
	"context"
	"encoding/xml"
	"errors"
	"path"
	"regexp"
	"strings"

	"github.com/julianshen/archscan/internal/model"
	"github.com/julianshen/archscan/internal/scan"
)

var errNoArtifactID = errors.New("pom.xml declares no artifactId")

// mavenPlugin extracts one component plus its declared dependencies from
// every pom.xml in the tree. Tier 1 decodes the POM as XML, resolving
// ${...} property placeholders and parent coordinates; Tier 2 pattern-
// matches <dependency> blocks so a malformed POM still yields what is
// intact.
type mavenPlugin struct {
	descriptor
}

func newMavenPlugin() *mavenPlugin {
	return &mavenPlugin{descriptor{
		id:         "maven",
		name:       "Maven Dependency Scanner",
		ecosystems: []string{"java"},
		patterns:   []string{"**/pom.xml"},
		priority:   10,
	}}
}

func (p *mavenPlugin) Scan(ctx context.Context, sc *scan.Context) (*scan.Result, error) {
	pipe := scan.Pipeline[manifestFacts]{
		Structural:  p.extractPom,
		Fallback:    p.extractPatterns,
		Timeout:     fileTimeout,
		Concurrency: concurrency(),
	}

	stats := scan.NewStatsBuilder()
	frs := pipe.Run(ctx, sc, sc.FindFiles(p.patterns...), stats)

	res := &scan.Result{PluginID: p.id, Success: true}
	collect(res, frs, func(f manifestFacts) {
		if f.component != nil {
			res.Components = append(res.Components, *f.component)
		}
		res.Dependencies = append(res.Dependencies, f.dependencies...)
	})
	res.Stats = stats.Build()
	return res, nil
}

type pomDependency struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
	Scope      string `xml:"scope"`
}

type pomParent struct {
	GroupID string `xml:"groupId"`
	Version string `xml:"version"`
}

type pomFile struct {
	GroupID      string          `xml:"groupId"`
	ArtifactID   string          `xml:"artifactId"`
	Version      string          `xml:"version"`
	Packaging    string          `xml:"packaging"`
	Parent       pomParent       `xml:"parent"`
	Properties   pomProperties   `xml:"properties"`
	Dependencies []pomDependency `xml:"dependencies>dependency"`
	Managed      []pomDependency `xml:"dependencyManagement>dependencies>dependency"`
}

// pomProperties captures the free-form <properties> section, whose child
// element names are the property keys.
type pomProperties map[string]string

func (p *pomProperties) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	props := map[string]string{}
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var v string
			if err := d.DecodeElement(&v, &t); err != nil {
				return err
			}
			props[t.Name.Local] = strings.TrimSpace(v)
		case xml.EndElement:
			if t.Name == start.Name {
				*p = props
				return nil
			}
		}
	}
}

func (p *mavenPlugin) extractPom(file string, content []byte) ([]manifestFacts, error) {
	var pom pomFile
	if err := xml.Unmarshal(content, &pom); err != nil {
		return nil, err
	}
	if pom.ArtifactID == "" {
		return nil, errNoArtifactID
	}

	// groupId and version inherit from the parent POM when omitted.
	groupID := pom.GroupID
	if groupID == "" {
		groupID = pom.Parent.GroupID
	}
	version := pom.Version
	if version == "" {
		version = pom.Parent.Version
	}

	props := map[string]string{
		"project.groupId":    groupID,
		"project.artifactId": pom.ArtifactID,
		"project.version":    version,
	}
	for k, v := range pom.Properties {
		props[k] = v
	}

	comp := p.pomComponent(groupID, pom.ArtifactID, pom.Packaging, file)
	if version != "" {
		comp.Metadata["version"] = version
	}

	facts := manifestFacts{component: comp}
	for _, dep := range append(pom.Dependencies, pom.Managed...) {
		if dep.GroupID == "" || dep.ArtifactID == "" {
			continue
		}
		scope := dep.Scope
		if scope == "" {
			scope = "compile"
		}
		facts.dependencies = append(facts.dependencies, model.Dependency{
			SourceComponentID: comp.ID,
			Group:             resolvePomProps(dep.GroupID, props),
			Artifact:          dep.ArtifactID,
			Version:           cleanVersion(resolvePomProps(dep.Version, props)),
			Scope:             scope,
			Direct:            true,
		})
	}
	return []manifestFacts{facts}, nil
}

var (
	mavenDepBlock    = regexp.MustCompile(`(?s)<dependency>(.*?)</dependency>`)
	mavenParentBlock = regexp.MustCompile(`(?s)<parent>(.*?)</parent>`)
	mavenGroupID     = regexp.MustCompile(`<groupId>\s*([^<]+?)\s*</groupId>`)
	mavenArtifactID  = regexp.MustCompile(`<artifactId>\s*([^<]+?)\s*</artifactId>`)
	mavenVersionTag  = regexp.MustCompile(`<version>\s*([^<]+?)\s*</version>`)
	mavenScopeTag    = regexp.MustCompile(`<scope>\s*([^<]+?)\s*</scope>`)
	pomProperty      = regexp.MustCompile(`\$\{([^}]+)\}`)
)

// extractPatterns is the Tier 2 reading of a pom.xml the XML decoder
// rejected: project coordinates are the first groupId/artifactId outside
// any <dependency> or <parent> block, dependencies whatever blocks closed
// cleanly.
func (p *mavenPlugin) extractPatterns(file string, content []byte) ([]manifestFacts, error) {
	text := string(content)

	spans := mavenDepBlock.FindAllStringIndex(text, -1)
	spans = append(spans, mavenParentBlock.FindAllStringIndex(text, -1)...)
	outside := func(i int) bool {
		for _, s := range spans {
			if i >= s[0] && i < s[1] {
				return false
			}
		}
		return true
	}

	artifact := firstTagOutside(mavenArtifactID, text, outside)
	if artifact == "" {
		return nil, nil
	}
	group := firstTagOutside(mavenGroupID, text, outside)

	comp := p.pomComponent(group, artifact, "", file)
	facts := manifestFacts{component: comp}
	for _, m := range mavenDepBlock.FindAllStringSubmatch(text, -1) {
		block := m[1]
		g := firstTag(mavenGroupID, block)
		a := firstTag(mavenArtifactID, block)
		if g == "" || a == "" {
			continue
		}
		scope := firstTag(mavenScopeTag, block)
		if scope == "" {
			scope = "compile"
		}
		facts.dependencies = append(facts.dependencies, model.Dependency{
			SourceComponentID: comp.ID,
			Group:             g,
			Artifact:          a,
			Version:           cleanVersion(firstTag(mavenVersionTag, block)),
			Scope:             scope,
			Direct:            true,
		})
	}
	return []manifestFacts{facts}, nil
}

func (p *mavenPlugin) pomComponent(groupID, artifactID, packaging, file string) *model.Component {
	coord := artifactID
	if groupID != "" {
		coord = groupID + ":" + artifactID
	}
	typ := model.ComponentLibrary
	if packaging != "" && packaging != "jar" {
		typ = model.ComponentService
	}
	comp := &model.Component{
		ID:         slug(coord),
		Name:       artifactID,
		Type:       typ,
		Technology: "maven",
		Metadata:   map[string]string{"dir": path.Dir(file)},
	}
	if groupID != "" {
		comp.Metadata["group_id"] = groupID
	}
	return comp
}

// resolvePomProps substitutes ${...} placeholders from the collected
// property map; unknown properties are left as written.
func resolvePomProps(v string, props map[string]string) string {
	return pomProperty.ReplaceAllStringFunc(v, func(m string) string {
		if val, ok := props[m[2:len(m)-1]]; ok {
			return val
		}
		return m
	})
}

func firstTag(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

func firstTagOutside(re *regexp.Regexp, text string, outside func(int) bool) string {
	for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
		if outside(m[0]) {
			return text[m[2]:m[3]]
		}
	}
	return ""
}
