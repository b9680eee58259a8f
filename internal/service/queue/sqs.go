package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/kingrain94/entitlement-api/internal/config"
	"github.com/kingrain94/entitlement-api/internal/domain"
)

type MessageType string

const (
	MessageTypeFlagChange MessageType = "FLAG_CHANGE"
	MessageTypeArchive    MessageType = "ARCHIVE"
)

type Message struct {
	Type      MessageType         `json:"type"`
	Changes   []domain.FlagChange `json:"changes,omitempty"`
	Timestamp time.Time           `json:"timestamp"`

	// Archive requests move every change recorded before this date
	BeforeDate time.Time `json:"before_date,omitempty"`
}

type ReceivedMessage struct {
	Message       Message
	ReceiptHandle *string
}

// API is the subset of the SQS client the service uses.
type API interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type SQSService struct {
	client          API
	historyQueueURL string
	archiveQueueURL string
}

func NewSQSService(client API, config *config.SQSConfig) *SQSService {
	return &SQSService{
		client:          client,
		historyQueueURL: config.HistoryQueueURL,
		archiveQueueURL: config.ArchiveQueueURL,
	}
}

func (s *SQSService) HistoryQueueURL() string { return s.historyQueueURL }
func (s *SQSService) ArchiveQueueURL() string { return s.archiveQueueURL }

// SendFlagChange enqueues a change for the history index.
func (s *SQSService) SendFlagChange(ctx context.Context, change *domain.FlagChange) error {
	msg := Message{
		Type:      MessageTypeFlagChange,
		Changes:   []domain.FlagChange{*change},
		Timestamp: change.Timestamp,
	}

	return s.sendMessage(ctx, msg, s.historyQueueURL)
}

func (s *SQSService) SendArchiveMessage(ctx context.Context, beforeDate time.Time) error {
	msg := Message{
		Type:       MessageTypeArchive,
		BeforeDate: beforeDate,
		Timestamp:  time.Now().UTC(),
	}

	return s.sendMessage(ctx, msg, s.archiveQueueURL)
}

func (s *SQSService) sendMessage(ctx context.Context, msg Message, queueURL string) error {
	msgBody, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	input := &sqs.SendMessageInput{
		MessageBody: aws.String(string(msgBody)),
		QueueUrl:    aws.String(queueURL),
	}

	_, err = s.client.SendMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// ReceiveMessages long-polls queueURL. Bodies that do not decode are returned with their
// receipt handle and a zero Message so the caller can delete them.
func (s *SQSService) ReceiveMessages(ctx context.Context, queueURL string, maxMessages int32, waitTimeSeconds int32) ([]ReceivedMessage, error) {
	input := &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(queueURL),
		MaxNumberOfMessages: maxMessages,
		WaitTimeSeconds:     waitTimeSeconds,
	}

	output, err := s.client.ReceiveMessage(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to receive messages: %w", err)
	}

	messages := make([]ReceivedMessage, 0, len(output.Messages))
	for _, msg := range output.Messages {
		var message Message
		if msg.Body != nil {
			if err := json.Unmarshal([]byte(*msg.Body), &message); err != nil {
				message = Message{}
			}
		}
		messages = append(messages, ReceivedMessage{
			Message:       message,
			ReceiptHandle: msg.ReceiptHandle,
		})
	}

	return messages, nil
}

func (s *SQSService) DeleteMessage(ctx context.Context, queueURL string, receiptHandle *string) error {
	input := &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: receiptHandle,
	}

	_, err := s.client.DeleteMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	return nil
}
