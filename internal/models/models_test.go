package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestUserToResponse(t *testing.T) {
	user := &User{
		ID:           1,
		Phone:        "+233241234567",
		DisplayName:  "Ama",
		PasswordHash: "secret-hash",
		IsBanned:     true,
	}

	response := user.ToResponse()

	if response.ID != user.ID {
		t.Errorf("ToResponse ID = %d, want %d", response.ID, user.ID)
	}
	if response.Phone != user.Phone {
		t.Errorf("ToResponse Phone = %q, want %q", response.Phone, user.Phone)
	}
	if response.DisplayName != user.DisplayName {
		t.Errorf("ToResponse DisplayName = %q, want %q", response.DisplayName, user.DisplayName)
	}

	raw, err := json.Marshal(user)
	if err != nil {
		t.Fatalf("marshal user: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unmarshal user: %v", err)
	}
	for _, hidden := range []string{"PasswordHash", "password_hash", "PhoneSuffix", "is_banned"} {
		if _, ok := fields[hidden]; ok {
			t.Errorf("user JSON exposes %q", hidden)
		}
	}
}

func TestUserBeforeSaveSetsSuffix(t *testing.T) {
	user := &User{Phone: "+233241234567"}
	if err := user.BeforeSave(nil); err != nil {
		t.Fatalf("BeforeSave: %v", err)
	}
	if user.PhoneSuffix != "241234567" {
		t.Errorf("PhoneSuffix = %q, want %q", user.PhoneSuffix, "241234567")
	}
}

func TestCanonicalPair(t *testing.T) {
	tests := []struct {
		a, b      uint
		low, high uint
	}{
		{1, 2, 1, 2},
		{9, 3, 3, 9},
		{5, 5, 5, 5},
	}
	for _, tt := range tests {
		low, high := CanonicalPair(tt.a, tt.b)
		if low != tt.low || high != tt.high {
			t.Errorf("CanonicalPair(%d, %d) = (%d, %d), want (%d, %d)", tt.a, tt.b, low, high, tt.low, tt.high)
		}
	}
}

func TestConversationMembership(t *testing.T) {
	conv := &Conversation{ID: 4, UserLowID: 2, UserHighID: 7}

	if !conv.HasMember(2) || !conv.HasMember(7) {
		t.Error("HasMember should accept both participants")
	}
	if conv.HasMember(3) || conv.HasMember(0) {
		t.Error("HasMember should reject outsiders and zero")
	}
	if got := conv.Other(2); got != 7 {
		t.Errorf("Other(2) = %d, want 7", got)
	}
	if got := conv.Other(7); got != 2 {
		t.Errorf("Other(7) = %d, want 2", got)
	}

	resp := conv.ToResponse()
	if resp.ID != 4 || len(resp.Participants) != 2 {
		t.Errorf("ToResponse = %+v", resp)
	}
}

func TestMessageToResponse(t *testing.T) {
	createdAt := time.Now()
	senderID := uint(1)
	body := "hello"
	ref := "order-42"
	clientID := uint(3)

	message := &Message{
		ID:               1,
		ConversationID:   10,
		SenderID:         &senderID,
		SenderType:       SenderPlatform,
		Body:             &body,
		Attachments:      []string{"a/b.jpg"},
		Metadata:         map[string]any{"k": "v"},
		ExternalRef:      &ref,
		PlatformClientID: &clientID,
		CreatedAt:        createdAt,
	}

	response := message.ToResponse()

	if response.ID != message.ID || response.ConversationID != message.ConversationID {
		t.Errorf("ToResponse ids = (%d, %d)", response.ID, response.ConversationID)
	}
	if response.SenderID == nil || *response.SenderID != senderID {
		t.Errorf("ToResponse SenderID = %v, want %d", response.SenderID, senderID)
	}
	if response.SenderType != SenderPlatform {
		t.Errorf("ToResponse SenderType = %q", response.SenderType)
	}
	if response.Body == nil || *response.Body != body {
		t.Errorf("ToResponse Body = %v", response.Body)
	}
	if response.ExternalRef == nil || *response.ExternalRef != ref {
		t.Errorf("ToResponse ExternalRef = %v", response.ExternalRef)
	}
	if !response.CreatedAt.Equal(createdAt) {
		t.Errorf("ToResponse CreatedAt = %v, want %v", response.CreatedAt, createdAt)
	}
	if !message.IsFrom(senderID) || message.IsFrom(2) {
		t.Error("IsFrom mismatch")
	}

	system := &Message{SenderType: SenderSystem}
	if system.IsFrom(0) {
		t.Error("system messages have no sender")
	}
}

func TestMessageIdempotencyKey(t *testing.T) {
	sender, client := uint(4), uint(9)
	ref := "r-1"

	tests := []struct {
		name      string
		msg       Message
		wantScope RefScope
		wantOwner uint
		wantOK    bool
	}{
		{"no ref", Message{SenderID: &sender}, "", 0, false},
		{"platform", Message{SenderID: &sender, PlatformClientID: &client, ExternalRef: &ref}, RefScopePlatform, client, true},
		{"user", Message{SenderID: &sender, ExternalRef: &ref}, RefScopeUser, sender, true},
		{"system", Message{ExternalRef: &ref}, "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope, owner, ok := tt.msg.IdempotencyKey()
			if scope != tt.wantScope || owner != tt.wantOwner || ok != tt.wantOK {
				t.Errorf("IdempotencyKey() = (%q, %d, %v), want (%q, %d, %v)",
					scope, owner, ok, tt.wantScope, tt.wantOwner, tt.wantOK)
			}
		})
	}
}

func TestDeliveryStateJSON(t *testing.T) {
	tests := []struct {
		state DeliveryState
		want  string
	}{
		{StatePending, `"pending"`},
		{StateDelivered, `"delivered"`},
		{StateRead, `"read"`},
	}
	for _, tt := range tests {
		raw, err := json.Marshal(tt.state)
		if err != nil {
			t.Fatalf("marshal %d: %v", tt.state, err)
		}
		if string(raw) != tt.want {
			t.Errorf("json(%d) = %s, want %s", tt.state, raw, tt.want)
		}
	}
	if !(StatePending < StateDelivered && StateDelivered < StateRead) {
		t.Error("states must be ordered")
	}
}
