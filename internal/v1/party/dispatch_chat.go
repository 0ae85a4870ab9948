package party

import (
	"context"
	"strings"
	"time"
)

const chatLogCap = 200

type chatMessagePayload struct {
	Text string `json:"text"`
}

func (r *Room) handleChatMessageLocked(ctx context.Context, c *Connection, msg Message) {
	p, ok := decodePayload[chatMessagePayload](msg.Payload)
	if !ok {
		return
	}
	text := strings.TrimSpace(p.Text)
	if text == "" {
		c.sendError(ctx, "chat message cannot be empty")
		return
	}
	if len(text) > 1000 {
		text = text[:1000]
	}

	author, ok := r.participants[c.Id]
	if !ok {
		return
	}

	m := ChatMessage{
		Id:        newId(),
		AuthorId:  string(c.Id),
		Author:    author.DisplayName,
		Avatar:    author.Avatar,
		Text:      text,
		Kind:      ChatKindMessage,
		Timestamp: time.Now(),
	}
	r.appendChatLocked(m)
	r.broadcastAll(EventChatMessage, m)
}

// appendChatLocked appends to the chat log, dropping the oldest entry when
// the cap is exceeded.
func (r *Room) appendChatLocked(m ChatMessage) {
	r.chatLog = append(r.chatLog, m)
	if len(r.chatLog) > chatLogCap {
		r.chatLog = r.chatLog[len(r.chatLog)-chatLogCap:]
	}
}

type chatDeletePayload struct {
	MessageId string `json:"messageId"`
}

// handleChatDeleteLocked allows the author or the host to hard-delete a
// message.
func (r *Room) handleChatDeleteLocked(ctx context.Context, c *Connection, msg Message) {
	p, ok := decodePayload[chatDeletePayload](msg.Payload)
	if !ok {
		return
	}
	for i, m := range r.chatLog {
		if m.Id != p.MessageId {
			continue
		}
		if m.AuthorId != string(c.Id) && c.Id != r.hostId {
			c.sendError(ctx, "only the author or host may delete this message")
			return
		}
		r.chatLog = append(r.chatLog[:i], r.chatLog[i+1:]...)
		r.broadcastAll(EventChatDelete, chatDeletePayload{MessageId: p.MessageId})
		return
	}
}
