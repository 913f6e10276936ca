package workflow

import (
	"context"
	"time"

	"bitbucket.org/domeotech/doors_backend/config"
	"bitbucket.org/domeotech/doors_backend/models"
	"bitbucket.org/domeotech/doors_backend/utils"
)

// NotifyStatusChange fans a committed status change out to interested
// parties. Every failure in here is logged and swallowed; a status change
// whose notifications failed is still a successful status change.
func NotifyStatusChange(ctx context.Context, ref *models.DocumentRef, oldStatus, newStatus string) {
	logger := config.GetLogger()

	if config.NotificationsDisabled() {
		return
	}

	roles := models.RolesForStatusChange(ref.Kind, newStatus)
	if len(roles) == 0 {
		return
	}

	var recipientIds []string
	for _, role := range roles {
		// Clients have no in-app inbox; they are reached via the external
		// channel below.
		if role == models.RecipientRoleClient {
			continue
		}
		users, err := resolveRecipients(ctx, ref, role)
		if err != nil {
			config.LogError(logger, "notifications.go", "NotifyStatusChange", "resolveRecipients", string(role), err)
			continue
		}
		for _, user := range users {
			n := models.Notification{
				UserId:       user.ID,
				DocumentId:   ref.ID,
				DocumentKind: ref.Kind,
				Number:       ref.Number,
				OldStatus:    oldStatus,
				NewStatus:    newStatus,
				Message:      models.StatusChangeMessage(ref.Kind, ref.Number, oldStatus, newStatus),
				IsRead:       utils.NewFalse(),
			}
			if err := models.CreateNotification(ctx, &n); err != nil {
				config.LogError(logger, "notifications.go", "NotifyStatusChange", "CreateNotification", user.ID, err)
				continue
			}
			recipientIds = append(recipientIds, user.ID)
		}
	}

	// the event lists each recipient once even when a user matched two roles
	recipientIds = utils.UniqueSlice(recipientIds)

	if config.StatusEventsEnabled() {
		correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
		event := config.StatusEvent{
			DocumentId:    ref.ID,
			DocumentKind:  string(ref.Kind),
			Number:        ref.Number,
			OldStatus:     oldStatus,
			NewStatus:     newStatus,
			ClientId:      ref.ClientId,
			RecipientIds:  recipientIds,
			ChangedAt:     time.Now(),
			CorrelationId: correlationId,
		}
		if err := config.PublishStatusEvent(event); err != nil {
			config.LogError(logger, "notifications.go", "NotifyStatusChange", "PublishStatusEvent", ref.ID, err)
		}
	}
}

// resolveRecipients expands a recipient role into users. Orders with an
// assigned complectator or executor notify that user alone; otherwise the
// whole role hears about it.
func resolveRecipients(ctx context.Context, ref *models.DocumentRef, role models.NotificationRecipientRole) ([]*models.User, error) {
	if ref.Kind == models.DocumentKindOrder {
		order, err := models.GetOrder(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		var assignedId *string
		switch role {
		case models.RecipientRoleComplectator:
			assignedId = order.ComplectatorId
		case models.RecipientRoleExecutor:
			assignedId = order.ExecutorId
		}
		if assignedId != nil && *assignedId != "" {
			user, err := models.GetUser(ctx, *assignedId)
			if err != nil {
				return nil, err
			}
			return []*models.User{user}, nil
		}
	}

	var userRole models.UserRole
	switch role {
	case models.RecipientRoleManager:
		userRole = models.UserRoleManager
	case models.RecipientRoleComplectator:
		userRole = models.UserRoleComplectator
	case models.RecipientRoleExecutor:
		userRole = models.UserRoleExecutor
	default:
		return nil, nil
	}
	return models.GetActiveUsersByRole(ctx, userRole)
}
