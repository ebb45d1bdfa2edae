package instance

import "time"

// ConfigInstance is one document of the integrationconfiginstance collection, as
// written by the integration bridge when an integration instance is configured.
type ConfigInstance struct {
	ID                 interface{}            `json:"id" bson:"_id,omitempty"`
	InstanceID         string                 `json:"instanceId" bson:"instanceId"`
	ConfigurationID    string                 `json:"configurationId" bson:"configurationId"`
	Name               string                 `json:"name" bson:"name"`
	Description        string                 `json:"description,omitempty" bson:"description,omitempty"`
	CreatorID          *string                `json:"creatorId,omitempty" bson:"creatorId,omitempty"`
	OptionalProperties string                 `json:"optionalProperties,omitempty" bson:"optionalProperties,omitempty"`
	CreatedDate        time.Time              `json:"createdDate" bson:"createdDate"`
	LastModifiedDate   time.Time              `json:"lastModifiedDate" bson:"lastModifiedDate"`
	Extra              map[string]interface{} `json:"-" bson:",inline"`
}

// Snapshot records the creatorId of one document before the fix touched it.
// Present is false when the field did not exist at all.
type Snapshot struct {
	ID        interface{} `json:"id" bson:"_id"`
	CreatorID interface{} `json:"creatorId,omitempty" bson:"creatorId,omitempty"`
	Present   bool        `json:"present" bson:"present"`
}

// UpdateResult counts what a bulk update matched and changed.
type UpdateResult struct {
	Matched  int64 `json:"matched"`
	Modified int64 `json:"modified"`
}
