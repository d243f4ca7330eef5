package config

const (
	// TopicProcessRequest is the NSQ topic carrying inbound process requests.
	TopicProcessRequest = "content.process.request"

	// TopicProcessResponse is the NSQ topic for success and failure events.
	TopicProcessResponse = "content.process.response"
)
