package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// NotifyChannel 返回用户通知频道名，API 的 WebSocket 端订阅同一频道。
func NotifyChannel(userID uint) string {
	return fmt.Sprintf("user_notify:%d", userID)
}

// ExportNotifyMessage 是通过 Redis Pub/Sub 转发给前端的导出结果消息。
type ExportNotifyMessage struct {
	Type          string   `json:"type"`
	Status        string   `json:"status"`
	BookID        uint     `json:"book_id"`
	Format        string   `json:"format"`
	CorrelationID string   `json:"correlation_id"`
	DownloadURL   string   `json:"download_url,omitempty"`
	ErrorCode     int      `json:"error_code"`
	ErrorMessage  string   `json:"error_message"`
	MissingKeys   []string `json:"missing_keys,omitempty"`
}

const notifyTypeExport = "book_export"

// Publisher is the subset of the redis client used for notifications.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

func publishExportNotify(ctx context.Context, pub Publisher, userID uint, msg ExportNotifyMessage) error {
	msg.Type = notifyTypeExport
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := NotifyChannel(userID)
	if err := pub.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}
