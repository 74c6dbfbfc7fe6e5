// Package notification turns Gmail Pub/Sub push events into SSE updates and
// FCM device pushes for the affected account.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	authrepo "mailboard-backend/internal/auth/repository"
	"mailboard-backend/internal/email/usecase"
	"mailboard-backend/pkg/fcm"
	"mailboard-backend/pkg/sse"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// GmailNotification is the payload Gmail publishes on the watch topic.
type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

type Service struct {
	pubsubClient *pubsub.Client
	sseManager   *sse.Manager
	userRepo     authrepo.UserRepository
	fcmRepo      authrepo.FCMTokenRepository
	fcmClient    *fcm.Client
	emailService usecase.EmailService
	topicName    string
	subName      string

	// Gmail redelivers aggressively; remember the last historyId per user
	// so repeats don't fan out twice.
	mu            sync.Mutex
	lastHistoryID map[string]uint64
}

func NewService(projectID, topicName string, sseManager *sse.Manager, userRepo authrepo.UserRepository, fcmRepo authrepo.FCMTokenRepository, fcmClient *fcm.Client, emailService usecase.EmailService, credentialsFile string) (*Service, error) {
	ctx := context.Background()

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	return &Service{
		pubsubClient:  client,
		sseManager:    sseManager,
		userRepo:      userRepo,
		fcmRepo:       fcmRepo,
		fcmClient:     fcmClient,
		emailService:  emailService,
		topicName:     topicName,
		subName:       topicName + "-sub",
		lastHistoryID: make(map[string]uint64),
	}, nil
}

// Start ensures the subscription exists and blocks receiving messages until
// ctx is cancelled. Run it in its own goroutine.
func (s *Service) Start(ctx context.Context) {
	log.Printf("[PubSub] Starting notification service, topic=%s sub=%s", s.topicName, s.subName)

	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		log.Printf("[PubSub] Error checking subscription: %v", err)
		return
	}

	if !exists {
		topic := s.pubsubClient.Topic(s.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			log.Printf("[PubSub] Error checking topic: %v", err)
			return
		}
		if !topicExists {
			log.Printf("[PubSub] Topic %s does not exist, cannot subscribe", s.topicName)
			return
		}

		sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 10 * time.Second,
		})
		if err != nil {
			log.Printf("[PubSub] Failed to create subscription: %v", err)
			return
		}
		log.Printf("[PubSub] Created subscription %s", s.subName)
	}

	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.handleMessage(ctx, msg)
		msg.Ack()
	})
	if err != nil {
		log.Printf("[PubSub] Receive stopped: %v", err)
	}
}

func (s *Service) handleMessage(ctx context.Context, msg *pubsub.Message) {
	var notification GmailNotification
	if err := json.Unmarshal(msg.Data, &notification); err != nil {
		log.Printf("[PubSub] Failed to unmarshal notification: %v", err)
		return
	}

	user, err := s.userRepo.FindByEmail(notification.EmailAddress)
	if err != nil {
		log.Printf("[PubSub] Error finding user %s: %v", notification.EmailAddress, err)
		return
	}
	if user == nil {
		log.Printf("[PubSub] No account for %s", notification.EmailAddress)
		return
	}

	if s.seenHistory(user.ID, notification.HistoryID) {
		return
	}

	s.sseManager.SendToUser(user.ID, "email_update", map[string]interface{}{
		"action":    "new_email",
		"email":     notification.EmailAddress,
		"historyId": notification.HistoryID,
		"timestamp": time.Now(),
	})

	if s.fcmClient != nil && s.fcmRepo != nil {
		go s.pushToDevices(user.ID, notification)
	}
}

func (s *Service) seenHistory(userID string, historyID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastHistoryID[userID]; ok && historyID <= last {
		return true
	}
	s.lastHistoryID[userID] = historyID
	return false
}

// pushToDevices sends an FCM push for the newest inbox message. Fetching it
// through the engine also refreshes the suggestion cache and schedules the
// vector embed for the new mail.
func (s *Service) pushToDevices(userID string, notification GmailNotification) {
	tokens, err := s.fcmRepo.GetTokensByUserID(userID)
	if err != nil {
		log.Printf("[FCM] Error loading tokens for user %s: %v", userID, err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	tokenStrings := make([]string, 0, len(tokens))
	for _, t := range tokens {
		tokenStrings = append(tokenStrings, t.Token)
	}

	title := "New email"
	body := "You have new mail in your inbox"
	messageID := ""

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	emails, _, err := s.emailService.EmailsByMailbox(ctx, userID, "INBOX", 1, 0, "")
	if err == nil && len(emails) > 0 {
		latest := emails[0]
		messageID = latest.ID

		sender := latest.FromName
		if sender == "" {
			sender = latest.From
		}
		subject := latest.Subject
		if len(subject) > 100 {
			subject = subject[:97] + "..."
		}

		title = fmt.Sprintf("Email from %s", sender)
		body = subject
		if body == "" {
			body = "(no subject)"
		}
	} else if err != nil {
		log.Printf("[FCM] Could not fetch email details for user %s: %v", userID, err)
	}

	failedTokens, err := s.fcmClient.SendToDevices(context.Background(), tokenStrings, fcm.Notification{
		Title: title,
		Body:  body,
		Data: map[string]string{
			"type":         "email_update",
			"email":        notification.EmailAddress,
			"historyId":    fmt.Sprintf("%d", notification.HistoryID),
			"messageId":    messageID,
			"click_action": clickAction(messageID),
		},
	})
	if err != nil {
		log.Printf("[FCM] Error sending notifications: %v", err)
		return
	}

	for _, token := range failedTokens {
		if err := s.fcmRepo.DeleteToken(token); err != nil {
			log.Printf("[FCM] Failed to prune token: %v", err)
		}
	}
}

func clickAction(messageID string) string {
	if messageID == "" {
		return "/inbox"
	}
	return "/inbox/" + messageID
}
