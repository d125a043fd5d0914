package config

// NotificationConfig defines configuration for webhook notifications
type NotificationConfig struct {
	WebhookURL      string   `json:"webhook_url,omitempty" yaml:"webhook_url,omitempty" validate:"omitempty,url"`
	MentionRoleIDs  []string `json:"mention_role_ids,omitempty" yaml:"mention_role_ids,omitempty"`
	NotifyOnFailure bool     `json:"notify_on_failure" yaml:"notify_on_failure"`
	NotifyOnSuccess bool     `json:"notify_on_success" yaml:"notify_on_success"`
}

// NewDefaultNotificationConfig creates default notification configuration
func NewDefaultNotificationConfig() NotificationConfig {
	return NotificationConfig{
		WebhookURL:      "",
		MentionRoleIDs:  []string{},
		NotifyOnFailure: true,
		NotifyOnSuccess: false,
	}
}
