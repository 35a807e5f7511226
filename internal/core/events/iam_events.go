package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeUserLoggedIn      = "auth.login"
	EventTypeSessionRevoked    = "auth.session_revoked"
	EventTypeRoleAssigned      = "iam.role_assigned"
	EventTypeRoleRevoked       = "iam.role_revoked"
	EventTypePermissionGranted = "iam.permission_granted"
	EventTypePermissionRevoked = "iam.permission_revoked"
)

type UserLoggedInEvent struct {
	BaseEvent
	UserID    int64  `json:"user_id"`
	SessionID string `json:"session_id"`
	IPAddress string `json:"ip_address"`
}

func NewUserLoggedInEvent(userID int64, sessionID, ipAddress string) *UserLoggedInEvent {
	return &UserLoggedInEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeUserLoggedIn,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id":    userID,
				"session_id": sessionID,
				"ip_address": ipAddress,
			},
		},
		UserID:    userID,
		SessionID: sessionID,
		IPAddress: ipAddress,
	}
}

type SessionRevokedEvent struct {
	BaseEvent
	UserID    int64  `json:"user_id"`
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

func NewSessionRevokedEvent(userID int64, sessionID, reason string) *SessionRevokedEvent {
	return &SessionRevokedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeSessionRevoked,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id":    userID,
				"session_id": sessionID,
				"reason":     reason,
			},
		},
		UserID:    userID,
		SessionID: sessionID,
		Reason:    reason,
	}
}

type RoleAssignedEvent struct {
	BaseEvent
	UserID   int64             `json:"user_id"`
	RoleCode string            `json:"role_code"`
	Params   map[string]string `json:"params"`
}

func NewRoleAssignedEvent(userID int64, roleCode string, params map[string]string) *RoleAssignedEvent {
	return &RoleAssignedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeRoleAssigned,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id":   userID,
				"role_code": roleCode,
			},
		},
		UserID:   userID,
		RoleCode: roleCode,
		Params:   params,
	}
}

type RoleRevokedEvent struct {
	BaseEvent
	UserID   int64  `json:"user_id"`
	RoleCode string `json:"role_code"`
}

func NewRoleRevokedEvent(userID int64, roleCode string) *RoleRevokedEvent {
	return &RoleRevokedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeRoleRevoked,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id":   userID,
				"role_code": roleCode,
			},
		},
		UserID:   userID,
		RoleCode: roleCode,
	}
}

type PermissionGrantEvent struct {
	BaseEvent
	UserID    int64  `json:"user_id"`
	Directive string `json:"directive"`
	GrantedBy int64  `json:"granted_by"`
}

func NewPermissionGrantedEvent(userID int64, directive string, grantedBy int64) *PermissionGrantEvent {
	return newGrantEvent(EventTypePermissionGranted, userID, directive, grantedBy)
}

func NewPermissionRevokedEvent(userID int64, directive string, revokedBy int64) *PermissionGrantEvent {
	return newGrantEvent(EventTypePermissionRevoked, userID, directive, revokedBy)
}

func newGrantEvent(eventType string, userID int64, directive string, actor int64) *PermissionGrantEvent {
	return &PermissionGrantEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id":   userID,
				"directive": directive,
				"actor":     actor,
			},
		},
		UserID:    userID,
		Directive: directive,
		GrantedBy: actor,
	}
}
