package scanner

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/julianshen/archscan/internal/model"
	"github.com/julianshen/archscan/internal/scan"
)

const kafkaBrokerID = "kafka"

// kafkaFact is one directed topic usage found in a source file.
type kafkaFact struct {
	topic     string
	publish   bool
	component string
}

var (
	kafkaListenerAnn  = regexp.MustCompile(`@KafkaListener\s*\(`)
	kafkaTopicsAttr   = regexp.MustCompile(`topics\s*=\s*`)
	kafkaTemplateSend = regexp.MustCompile(`[kK]afkaTemplate\.send\s*\(`)
	kafkaProducerRec  = regexp.MustCompile(`new\s+ProducerRecord<[^>]*>\s*\(`)
	kafkaGoWriter     = regexp.MustCompile(`kafka\.(NewWriter|WriterConfig)\s*[({]`)
	kafkaGoReader     = regexp.MustCompile(`kafka\.(NewReader|ReaderConfig)\s*[({]`)
	kafkaGoTopic      = regexp.MustCompile(`Topic:\s*"([^"]+)"`)
	kafkaPyProducer   = regexp.MustCompile(`\.send\s*\(`)
	kafkaPyConsumer   = regexp.MustCompile(`KafkaConsumer\s*\(`)
)

// kafkaPlugin extracts message flows from Kafka producer and consumer call
// sites in Java, Go, and Python sources. There is no structural grammar for
// "uses Kafka", so this plugin is pattern-only and every finding is medium
// confidence. It also contributes the broker pseudo-component so publish and
// subscribe relationships have a resolvable target.
type kafkaPlugin struct {
	descriptor
}

func newKafkaPlugin() *kafkaPlugin {
	return &kafkaPlugin{descriptor{
		id:         "kafka",
		name:       "Kafka Flow Scanner",
		ecosystems: []string{"java", "go", "python"},
		patterns:   []string{"**/*.java", "**/*.go", "**/*.py"},
		priority:   70,
	}}
}

func (p *kafkaPlugin) Scan(ctx context.Context, sc *scan.Context) (*scan.Result, error) {
	pipe := scan.Pipeline[kafkaFact]{
		PreFilter: func(file string, content []byte) bool {
			if strings.HasSuffix(file, "_test.go") {
				return false
			}
			return hasMarker(content, "kafka", "Kafka")
		},
		Fallback: func(file string, content []byte) ([]kafkaFact, error) {
			return p.extract(sc, file, content)
		},
		Timeout:     fileTimeout,
		Concurrency: concurrency(),
	}

	stats := scan.NewStatsBuilder()
	frs := pipe.Run(ctx, sc, sc.FindFiles(p.patterns...), stats)

	res := &scan.Result{PluginID: p.id, Success: true}
	seenFlow := make(map[string]bool)
	seenRel := make(map[string]bool)
	for _, fr := range frs {
		if fr.Failure != nil {
			res.Failures = append(res.Failures, *fr.Failure)
		}
		for _, f := range fr.Facts {
			key := fmt.Sprintf("%s|%s|%t", f.component, f.topic, f.publish)
			if seenFlow[key] {
				continue
			}
			seenFlow[key] = true

			flow := model.MessageFlow{Topic: f.topic, Broker: kafkaBrokerID}
			rel := model.Relationship{SourceID: f.component, TargetID: kafkaBrokerID, Technology: "kafka"}
			if f.publish {
				flow.PublisherComponentID = f.component
				rel.Type = model.RelPublishes
			} else {
				flow.SubscriberComponentID = f.component
				rel.Type = model.RelSubscribes
			}
			res.Flows = append(res.Flows, flow)

			relKey := f.component + "|" + string(rel.Type)
			if !seenRel[relKey] {
				seenRel[relKey] = true
				res.Relationships = append(res.Relationships, rel)
			}
		}
	}

	if len(res.Flows) > 0 {
		res.Components = append(res.Components, model.Component{
			ID:         kafkaBrokerID,
			Name:       "Apache Kafka",
			Type:       model.ComponentMessageBroker,
			Technology: "kafka",
		})
	}
	res.Stats = stats.Build()
	return res, nil
}

func (p *kafkaPlugin) extract(sc *scan.Context, file string, content []byte) ([]kafkaFact, error) {
	text := string(content)
	owner := ownerComponent(sc, file)

	var facts []kafkaFact
	add := func(topic string, publish bool) {
		if topic != "" {
			facts = append(facts, kafkaFact{topic: topic, publish: publish, component: owner})
		}
	}

	switch {
	case strings.HasSuffix(file, ".java"):
		for _, m := range kafkaListenerAnn.FindAllStringIndex(text, -1) {
			args := balancedSpan(text, m[1]-1)
			for _, topic := range listenerTopics(args) {
				add(topic, false)
			}
		}
		for _, re := range []*regexp.Regexp{kafkaTemplateSend, kafkaProducerRec} {
			for _, m := range re.FindAllStringIndex(text, -1) {
				args := balancedSpan(text, m[1]-1)
				if lits := stringLiterals(args); len(lits) > 0 {
					add(lits[0], true)
				}
			}
		}

	case strings.HasSuffix(file, ".go"):
		for _, m := range kafkaGoWriter.FindAllStringIndex(text, -1) {
			add(goKafkaTopic(text, m[1]-1), true)
		}
		for _, m := range kafkaGoReader.FindAllStringIndex(text, -1) {
			add(goKafkaTopic(text, m[1]-1), false)
		}

	case strings.HasSuffix(file, ".py"):
		if strings.Contains(text, "KafkaProducer") {
			for _, m := range kafkaPyProducer.FindAllStringIndex(text, -1) {
				args := balancedSpan(text, m[1]-1)
				if lits := stringLiterals(args); len(lits) > 0 {
					add(lits[0], true)
				}
			}
		}
		for _, m := range kafkaPyConsumer.FindAllStringIndex(text, -1) {
			args := balancedSpan(text, m[1]-1)
			for _, lit := range stringLiterals(args) {
				if looksLikeTopic(lit) {
					add(lit, false)
				}
			}
		}
	}
	return facts, nil
}

// listenerTopics reads the topics attribute of a @KafkaListener argument
// list, handling both a single literal and a brace-delimited array. Without
// a topics attribute the first literal is taken.
func listenerTopics(args string) []string {
	m := kafkaTopicsAttr.FindStringIndex(args)
	if m == nil {
		lits := stringLiterals(args)
		if len(lits) > 0 {
			return lits[:1]
		}
		return nil
	}
	rest := args[m[1]:]
	if strings.HasPrefix(rest, "{") {
		return stringLiterals(balancedSpan(rest, 0))
	}
	lits := stringLiterals(rest)
	if len(lits) > 0 {
		return lits[:1]
	}
	return nil
}

// goKafkaTopic finds the Topic field inside a writer or reader config
// literal, whose brace or paren starts at or after pos.
func goKafkaTopic(text string, pos int) string {
	span := balancedSpan(text, pos)
	if span == "" {
		return ""
	}
	if m := kafkaGoTopic.FindStringSubmatch(span); m != nil {
		return m[1]
	}
	return ""
}

// looksLikeTopic filters KafkaConsumer constructor literals down to topic
// names, excluding connection strings and option values.
func looksLikeTopic(s string) bool {
	if s == "" || strings.Contains(s, ":") || strings.Contains(s, "=") {
		return false
	}
	return !strings.Contains(s, " ")
}
