// Package notify pushes operator-facing events (failed runs,
// non-schedulable rules) to a Slack channel.
package notify

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/careops/reportd/internal/models"
)

type SlackNotifier struct {
	client  *slack.Client
	channel string
	log     zerolog.Logger
}

func NewSlackNotifier(token, channel string, log zerolog.Logger) *SlackNotifier {
	return &SlackNotifier{
		client:  slack.New(token),
		channel: channel,
		log:     log,
	}
}

// NotifyRunFailed posts a failed-run summary. Notification failures
// are logged and swallowed; the engine never depends on Slack.
func (n *SlackNotifier) NotifyRunFailed(schedule *models.ScheduledReport, errSummary string) {
	attachment := slack.Attachment{
		Color: "#ff0000",
		Title: fmt.Sprintf("Report run failed: %s", schedule.Name),
		Text:  errSummary,
		Fields: []slack.AttachmentField{
			{Title: "Schedule", Value: schedule.Name, Short: true},
			{Title: "Template", Value: schedule.TemplateID, Short: true},
		},
		Footer: "CareOps report scheduler",
	}
	n.post(attachment)
}

// NotifyConfigError posts a configuration problem that parks the
// schedule (bad frequency, broken timezone).
func (n *SlackNotifier) NotifyConfigError(schedule *models.ScheduledReport, err error) {
	attachment := slack.Attachment{
		Color: "#ffcc00",
		Title: fmt.Sprintf("Schedule not schedulable: %s", schedule.Name),
		Text:  err.Error(),
		Fields: []slack.AttachmentField{
			{Title: "Schedule", Value: schedule.Name, Short: true},
			{Title: "Frequency", Value: string(schedule.Rule.Frequency), Short: true},
		},
		Footer: "CareOps report scheduler",
	}
	n.post(attachment)
}

func (n *SlackNotifier) post(attachment slack.Attachment) {
	_, _, err := n.client.PostMessage(n.channel, slack.MsgOptionAttachments(attachment))
	if err != nil {
		n.log.Warn().Err(err).Msg("slack notification failed")
	}
}
