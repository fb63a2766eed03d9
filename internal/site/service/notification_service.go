package service

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/repository"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/sse"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/workflow"
	"go.uber.org/zap"
)

// SSE event names
const (
	EventNotifications = "notifications"
	EventChange        = "change"
)

// NotificationEvent is the payload of a notifications push.
type NotificationEvent struct {
	Count int                         `json:"count"`
	Items []workflow.NotificationItem `json:"items"`
	// Alert is set when the count rose since the client's last push.
	Alert bool `json:"alert"`
}

// NotificationService derives notifications and pushes them to SSE clients.
type NotificationService struct {
	*base
	mu       sync.Mutex
	trackers map[string]*workflow.AlertTracker
}

// NewNotificationService 创建通知服务
func NewNotificationService(b *base) *NotificationService {
	return &NotificationService{base: b, trackers: make(map[string]*workflow.AlertTracker)}
}

// For returns the current notifications of a user.
func (s *NotificationService) For(ctx context.Context, userID string) (workflow.Notifications, error) {
	actor, err := s.actor(ctx, userID)
	if err != nil {
		return workflow.Notifications{}, err
	}
	swos, reports, err := s.snapshot(ctx)
	if err != nil {
		return workflow.Notifications{}, err
	}
	return workflow.NotificationsFor(actor, swos, reports), nil
}

// snapshot loads the SWOs and the reports awaiting someone.
func (s *NotificationService) snapshot(ctx context.Context) ([]entity.SiteWorkOrder, []entity.DailyReport, error) {
	swos, err := s.stores.SWOs.List(ctx, repository.SWOFilter{})
	if err != nil {
		return nil, nil, err
	}
	var reports []entity.DailyReport
	for _, status := range []string{entity.ReportStatusPendingCM, entity.ReportStatusPendingPM, entity.ReportStatusRejected} {
		rs, err := s.stores.Reports.List(ctx, repository.ReportFilter{Status: status})
		if err != nil {
			return nil, nil, err
		}
		reports = append(reports, rs...)
	}
	return swos, reports, nil
}

// Push sends the current notifications to one connected client.
func (s *NotificationService) Push(ctx context.Context, hub *sse.Hub, client *sse.Client) {
	swos, reports, err := s.snapshot(ctx)
	if err != nil {
		s.logger.Error("load notification snapshot failed", zap.Error(err))
		return
	}
	s.pushTo(ctx, hub, client, swos, reports)
}

// Forget drops the alert state of a disconnected client.
func (s *NotificationService) Forget(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.trackers, clientID)
}

// Run fans bus changes out to hub clients until ctx is done. Bursts of
// changes are coalesced into one snapshot.
func (s *NotificationService) Run(ctx context.Context, hub *sse.Hub) {
	changes, cancel := s.bus.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			batch := []sse.Change{c}
		drain:
			for {
				select {
				case more, ok := <-changes:
					if !ok {
						break drain
					}
					batch = append(batch, more)
				default:
					break drain
				}
			}
			s.fanOut(ctx, hub, batch)
		}
	}
}

func (s *NotificationService) fanOut(ctx context.Context, hub *sse.Hub, batch []sse.Change) {
	clients := hub.Clients()
	if len(clients) == 0 {
		return
	}
	swos, reports, err := s.snapshot(ctx)
	if err != nil {
		s.logger.Error("load notification snapshot failed", zap.Error(err))
		return
	}
	for _, client := range clients {
		actor, err := s.actor(ctx, client.UserID)
		if err != nil {
			s.logger.Debug("skip notifications for client",
				zap.String("client_id", client.ID),
				zap.Error(err))
			continue
		}
		for _, c := range batch {
			if !changeVisible(actor, c, swos) {
				continue
			}
			data, err := json.Marshal(c)
			if err != nil {
				continue
			}
			hub.SendToClient(client.ID, sse.Event{EventType: EventChange, Data: string(data)})
		}
		s.notify(hub, client, actor, swos, reports)
	}
}

// changeVisible reports whether actor may see change c. Changes without a
// project reach tiered roles and the user they describe. A supervisor also
// sees projects where an SWO is addressed to them.
func changeVisible(actor *entity.User, c sse.Change, swos []entity.SiteWorkOrder) bool {
	if c.ProjectID == "" {
		return workflow.IsTiered(actor.Role) || (c.Collection == sse.CollectionUsers && c.ID == actor.ID)
	}
	if workflow.InScope(actor, c.ProjectID, "", "") {
		return true
	}
	for i := range swos {
		if swos[i].ProjectID == c.ProjectID && workflow.SWOInScope(actor, &swos[i]) {
			return true
		}
	}
	return false
}

func (s *NotificationService) pushTo(ctx context.Context, hub *sse.Hub, client *sse.Client, swos []entity.SiteWorkOrder, reports []entity.DailyReport) {
	actor, err := s.actor(ctx, client.UserID)
	if err != nil {
		s.logger.Debug("skip notifications for client",
			zap.String("client_id", client.ID),
			zap.Error(err))
		return
	}
	s.notify(hub, client, actor, swos, reports)
}

func (s *NotificationService) notify(hub *sse.Hub, client *sse.Client, actor *entity.User, swos []entity.SiteWorkOrder, reports []entity.DailyReport) {
	n := workflow.NotificationsFor(actor, swos, reports)

	s.mu.Lock()
	tracker, ok := s.trackers[client.ID]
	if !ok {
		tracker = &workflow.AlertTracker{}
		s.trackers[client.ID] = tracker
	}
	alert := tracker.Observe(n.Count)
	s.mu.Unlock()

	data, err := json.Marshal(NotificationEvent{Count: n.Count, Items: n.Items, Alert: alert})
	if err != nil {
		s.logger.Error("marshal notifications failed", zap.Error(err))
		return
	}
	hub.SendToClient(client.ID, sse.Event{EventType: EventNotifications, Data: string(data)})
}
