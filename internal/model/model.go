// Package model defines the intermediate architecture representation that
// bridges scanner plugins and output formatters. Scanners populate partial
// views of this model; the assembler in internal/scan merges them into a
// single ArchitectureModel consumed by formatters and the diff engine.
package model

// ComponentType classifies an architectural component.
type ComponentType string

const (
	ComponentService       ComponentType = "service"
	ComponentModule        ComponentType = "module"
	ComponentLibrary       ComponentType = "library"
	ComponentExternal      ComponentType = "external"
	ComponentDatabase      ComponentType = "database"
	ComponentMessageBroker ComponentType = "message-broker"
	ComponentCache         ComponentType = "cache"
	ComponentUnknown       ComponentType = "unknown"
)

// ApiType classifies an API endpoint.
type ApiType string

const (
	ApiREST                ApiType = "rest"
	ApiGraphQLQuery        ApiType = "graphql-query"
	ApiGraphQLMutation     ApiType = "graphql-mutation"
	ApiGraphQLSubscription ApiType = "graphql-subscription"
	ApiGRPC                ApiType = "grpc"
	ApiWebSocket           ApiType = "websocket"
)

// RelationshipType classifies a directed edge between two components.
type RelationshipType string

const (
	RelCalls      RelationshipType = "calls"
	RelUses       RelationshipType = "uses"
	RelPublishes  RelationshipType = "publishes"
	RelSubscribes RelationshipType = "subscribes"
	RelDependsOn  RelationshipType = "depends-on"
	RelReadsFrom  RelationshipType = "reads-from"
	RelWritesTo   RelationshipType = "writes-to"
)

// Component is a unit of architecture: a service, module, library, external
// system, database, or broker. IDs must be unique within a model; components
// are never mutated after creation.
type Component struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Type        ComponentType     `json:"type"`
	Description string            `json:"description,omitempty"`
	Technology  string            `json:"technology,omitempty"`
	Repository  string            `json:"repository,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Dependency is a reference from a component to an external package.
// SourceComponentID should resolve to a Component produced in the same or an
// earlier plugin pass; unresolved references are tolerated and rendered by id.
type Dependency struct {
	SourceComponentID string `json:"source_component_id"`
	Group             string `json:"group,omitempty"`
	Artifact          string `json:"artifact"`
	Version           string `json:"version,omitempty"`
	Scope             string `json:"scope,omitempty"`
	Direct            bool   `json:"direct"`
}

// ApiEndpoint is an interface point exposed by a component.
type ApiEndpoint struct {
	ComponentID    string  `json:"component_id"`
	Type           ApiType `json:"type"`
	Path           string  `json:"path"`
	Method         string  `json:"method,omitempty"`
	Handler        string  `json:"handler,omitempty"`
	Description    string  `json:"description,omitempty"`
	RequestSchema  string  `json:"request_schema,omitempty"`
	ResponseSchema string  `json:"response_schema,omitempty"`
	Authentication string  `json:"authentication,omitempty"`
}

// Field is a single column or attribute of a DataEntity.
type Field struct {
	Name        string `json:"name"`
	DataType    string `json:"data_type"`
	Nullable    bool   `json:"nullable"`
	Description string `json:"description,omitempty"`
}

// DataEntity is a persisted or transmitted data shape (table, collection,
// document) owned by a component.
type DataEntity struct {
	ComponentID string  `json:"component_id"`
	Name        string  `json:"name"`
	Kind        string  `json:"kind"` // table, collection, view, ...
	Fields      []Field `json:"fields,omitempty"`
	PrimaryKey  string  `json:"primary_key,omitempty"`
	Description string  `json:"description,omitempty"`
}

// MessageFlow is an asynchronous communication edge over a topic or channel.
// At least one of the publisher and subscriber sides is usually known.
type MessageFlow struct {
	PublisherComponentID  string `json:"publisher_component_id,omitempty"`
	SubscriberComponentID string `json:"subscriber_component_id,omitempty"`
	Topic                 string `json:"topic"`
	MessageType           string `json:"message_type,omitempty"`
	Schema                string `json:"schema,omitempty"`
	Broker                string `json:"broker,omitempty"`
}

// Relationship is a directed edge between two components.
type Relationship struct {
	SourceID    string           `json:"source_id"`
	TargetID    string           `json:"target_id"`
	Type        RelationshipType `json:"type"`
	Description string           `json:"description,omitempty"`
	Technology  string           `json:"technology,omitempty"`
}

// ArchitectureModel is the terminal, read-only aggregate of a full scan.
// It is assembled once, after all plugins complete, and never mutated
// afterwards. Consumers must treat every collection as possibly empty and
// must not assume any ordering beyond first-seen-wins for components.
type ArchitectureModel struct {
	ProjectName    string         `json:"project_name"`
	ProjectVersion string         `json:"project_version"`
	Repositories   []string       `json:"repositories,omitempty"`
	Components     []Component    `json:"components,omitempty"`
	Dependencies   []Dependency   `json:"dependencies,omitempty"`
	Relationships  []Relationship `json:"relationships,omitempty"`
	ApiEndpoints   []ApiEndpoint  `json:"api_endpoints,omitempty"`
	MessageFlows   []MessageFlow  `json:"message_flows,omitempty"`
	DataEntities   []DataEntity   `json:"data_entities,omitempty"`
}

// IsEmpty reports whether the model contains no extracted facts at all.
func (m *ArchitectureModel) IsEmpty() bool {
	return len(m.Components) == 0 &&
		len(m.Dependencies) == 0 &&
		len(m.Relationships) == 0 &&
		len(m.ApiEndpoints) == 0 &&
		len(m.MessageFlows) == 0 &&
		len(m.DataEntities) == 0
}
