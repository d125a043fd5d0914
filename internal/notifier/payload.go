package notifier

import (
	"fmt"
	"strings"
	"time"
)

// Embed colors, decimal RGB as required by the webhook API.
const (
	colorSuccess = 3066993  // green
	colorWarning = 15105570 // orange
	colorFailure = 15158332 // red
)

// maxListedFiles caps how many updated files one embed names before the
// rest collapse into a count.
const maxListedFiles = 15

// WebhookPayload is the JSON body posted to a Discord-compatible webhook.
type WebhookPayload struct {
	Content  string  `json:"content,omitempty"`
	Username string  `json:"username,omitempty"`
	Embeds   []Embed `json:"embeds,omitempty"`
}

// Embed is one rich block inside a webhook message.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// EmbedField is a labeled value inside an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// RunSummary carries the outcome of one update pass to the notifier.
// It is a plain value so the notifier stays decoupled from the
// orchestrator's types.
type RunSummary struct {
	Status          string
	Message         string
	ManifestVersion string
	UpdatedFiles    []string
	RequiresRestart bool
	Error           string
	Duration        time.Duration
}

// Succeeded reports whether the run reached a successful terminal state.
func (rs *RunSummary) Succeeded() bool {
	return rs.Status == "completed" || rs.Status == "restart_required"
}

// buildRunPayload renders a run summary into a webhook payload.
func buildRunPayload(summary RunSummary, mentionRoleIDs []string) WebhookPayload {
	embed := Embed{
		Title:     embedTitle(summary),
		Color:     embedColor(summary),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if summary.Message != "" {
		embed.Description = summary.Message
	}
	if summary.ManifestVersion != "" {
		embed.Fields = append(embed.Fields, EmbedField{Name: "Version", Value: summary.ManifestVersion, Inline: true})
	}
	embed.Fields = append(embed.Fields, EmbedField{
		Name:   "Files Updated",
		Value:  fmt.Sprintf("%d", len(summary.UpdatedFiles)),
		Inline: true,
	})
	if summary.Duration > 0 {
		embed.Fields = append(embed.Fields, EmbedField{
			Name:   "Duration",
			Value:  summary.Duration.Round(time.Millisecond).String(),
			Inline: true,
		})
	}
	if len(summary.UpdatedFiles) > 0 {
		embed.Fields = append(embed.Fields, EmbedField{Name: "Files", Value: formatFileList(summary.UpdatedFiles)})
	}
	if summary.Error != "" {
		embed.Fields = append(embed.Fields, EmbedField{Name: "Error", Value: truncate(summary.Error, 1000)})
	}

	return WebhookPayload{
		Content:  formatMentions(mentionRoleIDs),
		Username: "hotpatch",
		Embeds:   []Embed{embed},
	}
}

func embedTitle(summary RunSummary) string {
	switch summary.Status {
	case "restart_required":
		return "✅ Update applied — restart required"
	case "completed":
		return "✅ Update applied"
	case "failed":
		return "❌ Update failed"
	default:
		return "Update " + summary.Status
	}
}

func embedColor(summary RunSummary) int {
	switch {
	case summary.Status == "failed":
		return colorFailure
	case summary.RequiresRestart:
		return colorWarning
	default:
		return colorSuccess
	}
}

func formatFileList(files []string) string {
	listed := files
	overflow := 0
	if len(listed) > maxListedFiles {
		overflow = len(listed) - maxListedFiles
		listed = listed[:maxListedFiles]
	}

	var sb strings.Builder
	for _, file := range listed {
		sb.WriteString("`")
		sb.WriteString(file)
		sb.WriteString("`\n")
	}
	if overflow > 0 {
		sb.WriteString(fmt.Sprintf("… and %d more", overflow))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatMentions(roleIDs []string) string {
	if len(roleIDs) == 0 {
		return ""
	}
	mentions := make([]string, 0, len(roleIDs))
	for _, id := range roleIDs {
		if id == "" {
			continue
		}
		mentions = append(mentions, "<@&"+id+">")
	}
	return strings.Join(mentions, " ")
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
