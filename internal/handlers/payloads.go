package handlers

import (
	"github.com/parloir/parloir/internal/models"
)

// Wire shapes shared by the socket and REST surfaces.

func roomPayload(room *models.Room) map[string]interface{} {
	threads := make([]map[string]interface{}, 0, len(room.Threads))
	for i := range room.Threads {
		threads = append(threads, map[string]interface{}{
			"thread_id": room.Threads[i].ID,
			"title":     room.Threads[i].Title,
		})
	}

	whitelisted := make([]string, 0, len(room.Whitelisted))
	for _, entry := range room.Whitelisted {
		whitelisted = append(whitelisted, entry.Username)
	}

	return map[string]interface{}{
		"room_id":     room.ID,
		"room_name":   room.Name,
		"owner":       room.Owner,
		"room_date":   room.CreatedAt,
		"mainthread":  room.MainThreadID,
		"threads":     threads,
		"guests":      guestListPayload(room.Guests),
		"whitelisted": whitelisted,
	}
}

func guestListPayload(guests []models.Guest) []map[string]interface{} {
	payload := make([]map[string]interface{}, 0, len(guests))
	for _, guest := range guests {
		payload = append(payload, map[string]interface{}{
			"user":      guest.Username,
			"privilege": guest.Privilege,
		})
	}
	return payload
}

func threadPayload(thread *models.Thread) map[string]interface{} {
	feed := make([]map[string]interface{}, 0, len(thread.Feed))
	for i := range thread.Feed {
		feed = append(feed, messagePayload(&thread.Feed[i]))
	}

	return map[string]interface{}{
		"thread_id":   thread.ID,
		"room_id":     thread.RoomID,
		"title":       thread.Title,
		"thread_date": thread.CreatedAt,
		"feed":        feed,
	}
}

func messagePayload(message *models.Message) map[string]interface{} {
	return map[string]interface{}{
		"message_id":   message.ID,
		"thread_id":    message.ThreadID,
		"room_id":      message.RoomID,
		"author":       message.Author,
		"media":        message.Media,
		"content":      message.Content,
		"message_date": message.CreatedAt,
	}
}
