// internal/notify/alerts.go
package notify

import (
	"context"
	"fmt"

	commonaws "builder-licensing/internal/common/aws"
	"builder-licensing/internal/common/logger"
	"builder-licensing/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Alerter surfaces dead jobs to operators. Delivery is best-effort; a dead
// job already sits in the table for audit either way.
type Alerter interface {
	DeadJob(ctx context.Context, job *models.NotificationJob)
}

// SNSAlerter publishes dead-job alerts to an SNS topic.
type SNSAlerter struct {
	client   *commonaws.SNSClient
	topicARN string
	logger   logger.Logger
}

func NewSNSAlerter(client *commonaws.SNSClient, topicARN string, log logger.Logger) *SNSAlerter {
	return &SNSAlerter{
		client:   client,
		topicARN: topicARN,
		logger:   log.WithFields(map[string]interface{}{"component": "sns-alerter"}),
	}
}

func (a *SNSAlerter) DeadJob(ctx context.Context, job *models.NotificationJob) {
	msg := fmt.Sprintf(
		"Notification job %s (%s to %s) exhausted its retry budget after %d attempts and needs operator attention.",
		job.ID, job.Type, job.ToEmail, job.Retries,
	)
	_, err := a.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(a.topicARN),
		Subject:  aws.String("Dead notification job"),
		Message:  aws.String(msg),
	})
	if err != nil {
		a.logger.WithError(err).Error("failed to publish dead-job alert", map[string]interface{}{
			"jobId": job.ID,
		})
	}
}
