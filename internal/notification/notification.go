/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/blnkfinance/vault/config"
	"github.com/blnkfinance/vault/internal/request"
)

// Message is a plain email-style notification.
type Message struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// Sink delivers notifications on a best-effort basis. Notify never fails the
// operation that triggered it.
type Sink interface {
	Notify(ctx context.Context, msg Message)
}

// LogSink only logs messages. It is used when no queue is configured.
type LogSink struct{}

func (LogSink) Notify(_ context.Context, msg Message) {
	logrus.WithFields(logrus.Fields{
		"recipient": msg.Recipient,
		"subject":   msg.Subject,
	}).Info("notification")
}

// Enqueuer is the part of *asynq.Client the queue sink needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueSink hands messages to the notification worker through asynq.
type QueueSink struct {
	client   Enqueuer
	queue    string
	maxRetry int
}

func NewQueueSink(client Enqueuer, queue string, maxRetry int) *QueueSink {
	return &QueueSink{client: client, queue: queue, maxRetry: maxRetry}
}

// NewTask builds the asynq task carrying msg.
func NewTask(queue string, msg Message) (*asynq.Task, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(queue, payload), nil
}

func (q *QueueSink) Notify(ctx context.Context, msg Message) {
	if msg.Recipient == "" {
		return
	}
	task, err := NewTask(q.queue, msg)
	if err != nil {
		logrus.WithError(err).Error("failed to encode notification")
		return
	}
	info, err := q.client.EnqueueContext(ctx, task, asynq.Queue(q.queue), asynq.MaxRetry(q.maxRetry))
	if err != nil {
		logrus.WithError(err).WithField("recipient", msg.Recipient).Error("failed to enqueue notification")
		return
	}
	logrus.WithField("task_id", info.ID).Debug("notification enqueued")
}

// Relay delivers queued messages to the configured mail relay.
type Relay struct {
	URL     string
	From    string
	Headers map[string]string
}

func NewRelay(conf *config.Configuration) *Relay {
	return &Relay{
		URL:     conf.Notification.Mail.RelayURL,
		From:    conf.Notification.Mail.From,
		Headers: conf.Notification.Mail.Headers,
	}
}

type relayPayload struct {
	From    string `json:"from,omitempty"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// ProcessNotification is the asynq handler for the notification queue. A
// returned error makes asynq retry the task.
func (r *Relay) ProcessNotification(ctx context.Context, t *asynq.Task) error {
	var msg Message
	if err := json.Unmarshal(t.Payload(), &msg); err != nil {
		return fmt.Errorf("decode notification: %v: %w", err, asynq.SkipRetry)
	}
	if r.URL == "" {
		LogSink{}.Notify(ctx, msg)
		return nil
	}

	_, err := request.PostJSON(ctx, r.URL, r.Headers, relayPayload{
		From:    r.From,
		To:      msg.Recipient,
		Subject: msg.Subject,
		Text:    msg.Body,
	}, nil)
	if err != nil {
		logrus.WithError(err).WithField("recipient", msg.Recipient).Warn("mail relay rejected notification")
		return err
	}
	return nil
}
