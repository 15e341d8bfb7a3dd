package core

// HandlerRule routes messages whose subject matches Subject to the job
// registered under Job. When IsPattern is set, Subject is a regular
// expression that must match the whole message subject.
type HandlerRule struct {
	Subject   string `yaml:"subject" json:"subject"`
	IsPattern bool   `yaml:"is_pattern" json:"is_pattern"`
	Job       string `yaml:"job" json:"job"`
}

// SubscriptionConfig binds one broker subscription to its ordered handler rules.
type SubscriptionConfig struct {
	TopicName        string        `yaml:"topic_name" json:"topic_name"`
	SubscriptionName string        `yaml:"subscription_name" json:"subscription_name"`
	ConnectionTarget string        `yaml:"connection_target" json:"connection_target"`
	Handlers         []HandlerRule `yaml:"handlers" json:"handlers"`
}

// TopicPublishConfig holds the credentials used when publishing to a topic.
type TopicPublishConfig struct {
	TopicName string `yaml:"topic_name" json:"topic_name"`
	Key       string `yaml:"key" json:"-"`
}
