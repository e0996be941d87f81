package config

const (
	// TopicDiscoveryTask carries queued price-discovery cascades. The search
	// coordinator publishes one message per claimed (query, location, radius)
	// key; the discovery consumer runs the cascade off the request path.
	TopicDiscoveryTask = "discovery.task"
)
