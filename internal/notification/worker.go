package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"parking-status-monitor/internal/model"
)

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is the real Sender backed by the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Job is one alert to fan out to a branch's subscribers.
type Job struct {
	BranchID int64
	Alert    model.ParkingAlert
}

// payload is the JSON body delivered to subscribers.
type payload struct {
	BranchID int64  `json:"branchId"`
	Level    string `json:"level"`
	Title    string `json:"title"`
	Message  string `json:"message"`
}

// WorkerPool fans alert notifications out to push subscribers.
type WorkerPool struct {
	size    int
	jobs    chan Job
	db      *gorm.DB
	webpush *webpush.Options
	sender  Sender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Job, size*4),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case job := <-wp.jobs:
			log.Printf("Notification worker %d processing alert for branch %d", id, job.BranchID)
			wp.notifyBranchSubscribers(ctx, job)
		case <-ctx.Done():
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues a job. It must never stall the polling loop, so when the
// queue is full the job is dropped with a log line instead of blocking.
func (wp *WorkerPool) Dispatch(branchID int64, alert model.ParkingAlert) {
	select {
	case wp.jobs <- Job{BranchID: branchID, Alert: alert}:
	default:
		log.Printf("Notification queue full, dropping alert for branch %d", branchID)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Job {
	return wp.jobs
}

// notifyBranchSubscribers fetches the branch's subscriptions and sends one
// notification each.
func (wp *WorkerPool) notifyBranchSubscribers(ctx context.Context, job Job) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_branch_mapping sbm ON sbm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("sbm.branch_id = ?", job.BranchID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for branch %d: %v", job.BranchID, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	log.Printf("Sending %d notifications for branch %d", len(subscriptions), job.BranchID)

	body, err := json.Marshal(payload{
		BranchID: job.BranchID,
		Level:    string(job.Alert.Level),
		Title:    fmt.Sprintf("Parking alert: %s", job.Alert.Level.Label()),
		Message:  job.Alert.Message,
	})
	if err != nil {
		log.Printf("Error marshaling notification payload for branch %d: %v", job.BranchID, err)
		return
	}

	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, body)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, body []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(body, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
