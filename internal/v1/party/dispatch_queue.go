package party

import (
	"context"
	"strings"
	"time"
)

const queueCap = 50

type queueAddPayload struct {
	Url string `json:"url"`
}

type queueAddAck struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (r *Room) handleQueueAddLocked(ctx context.Context, c *Connection, msg Message) {
	if len(r.queue) >= queueCap {
		c.sendEvent(EventQueueAdd, queueAddAck{Success: false, Error: "queue is full"}, msg.AckId)
		return
	}

	p, ok := decodePayload[queueAddPayload](msg.Payload)
	if !ok {
		c.sendEvent(EventQueueAdd, queueAddAck{Success: false, Error: "invalid payload"}, msg.AckId)
		return
	}

	videoType, videoId, videoUrl, err := classifyVideoURL(p.Url)
	if err != nil {
		c.sendEvent(EventQueueAdd, queueAddAck{Success: false, Error: err.Error()}, msg.AckId)
		return
	}

	author := ""
	if part, ok := r.participants[c.Id]; ok {
		author = part.DisplayName
	}

	title := videoId
	if title == "" {
		title = videoUrl
		if i := strings.LastIndex(videoUrl, "/"); i >= 0 && i < len(videoUrl)-1 {
			title = videoUrl[i+1:]
		}
	}

	item := QueueItem{
		Id:       newId(),
		VideoId:  videoId,
		VideoUrl: videoUrl,
		Title:    title,
		AddedBy:  author,
		AddedAt:  time.Now(),
	}
	r.queue = append(r.queue, item)
	r.broadcastAll(EventQueueUpdate, r.queue)
	c.sendEvent(EventQueueAdd, queueAddAck{Success: true}, msg.AckId)

	if videoType == VideoTypeYoutube {
		r.resolveQueueTitleAsync(item.Id, videoId)
	}
}

type queueItemRefPayload struct {
	ItemId string `json:"itemId"`
	ToIdx  int    `json:"toIndex"`
}

func (r *Room) handleQueueRemoveLocked(ctx context.Context, msg Message) {
	p, ok := decodePayload[queueItemRefPayload](msg.Payload)
	if !ok {
		return
	}
	for i, it := range r.queue {
		if it.Id == p.ItemId {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			r.broadcastAll(EventQueueUpdate, r.queue)
			return
		}
	}
}

func (r *Room) handleQueueReorderLocked(ctx context.Context, msg Message) {
	p, ok := decodePayload[queueItemRefPayload](msg.Payload)
	if !ok || p.ToIdx < 0 || p.ToIdx >= len(r.queue) {
		return
	}
	from := -1
	for i, it := range r.queue {
		if it.Id == p.ItemId {
			from = i
			break
		}
	}
	if from == -1 {
		return
	}
	item := r.queue[from]
	r.queue = append(r.queue[:from], r.queue[from+1:]...)
	r.queue = append(r.queue[:p.ToIdx], append([]QueueItem{item}, r.queue[p.ToIdx:]...)...)
	r.broadcastAll(EventQueueUpdate, r.queue)
}

// handleQueuePlayLocked jumps straight to a specific queued item, removing
// only that item; the items ahead of and behind it stay queued in order.
func (r *Room) handleQueuePlayLocked(ctx context.Context, msg Message) {
	p, ok := decodePayload[queueItemRefPayload](msg.Payload)
	if !ok {
		return
	}
	idx := -1
	for i, it := range r.queue {
		if it.Id == p.ItemId {
			idx = i
			break
		}
	}
	if idx == -1 {
		return
	}
	r.playQueueIndexLocked(idx)
}

func (r *Room) handleQueuePlayNextLocked(ctx context.Context) {
	if len(r.queue) == 0 {
		return
	}
	r.playQueueIndexLocked(0)
}

func (r *Room) playQueueIndexLocked(idx int) {
	next := r.queue[idx]
	r.queue = append(r.queue[:idx], r.queue[idx+1:]...)

	url := next.VideoUrl
	if url == "" {
		url = next.VideoId
	}
	snap, err := r.loadVideo(url, time.Now())
	if err != nil {
		return
	}
	r.broadcastAll(EventVideoLoad, snap)
	r.broadcastAll(EventQueueUpdate, r.queue)
	r.appendSystemMessageLocked("now playing: " + next.Title)
}

// resolveQueueTitleAsync kicks off a best-effort oEmbed lookup outside the
// room lock and applies the result back through the registry's event loop
// so the update still goes through the single-writer path.
func (r *Room) resolveQueueTitleAsync(itemId, videoId string) {
	resolver := r.registry.titleResolver
	if resolver == nil {
		return
	}
	code := r.code
	reg := r.registry
	go func() {
		ctx, cancel := newBoundedContext()
		defer cancel()
		title, err := resolver.ResolveTitle(ctx, videoId)
		if err != nil || title == "" {
			return
		}
		reg.withRoom(code, func(room *Room) {
			for i := range room.queue {
				if room.queue[i].Id == itemId {
					room.queue[i].Title = title
					room.broadcastAll(EventQueueUpdate, room.queue)
					return
				}
			}
		})
	}()
}
