package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeBookExport = "book:export"
)

// BookExportPayload 描述导出一本书所需的最小信息。
type BookExportPayload struct {
	BookID        uint   `json:"book_id"`
	UserID        uint   `json:"user_id"`
	Format        string `json:"format"`
	CorrelationID string `json:"correlation_id"`
}

// NewBookExportTask 构造一个新的书籍导出任务。
func NewBookExportTask(bookID, userID uint, format, correlationID string, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(BookExportPayload{
		BookID:        bookID,
		UserID:        userID,
		Format:        format,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeBookExport, payload, opts...), nil
}

// ParseBookExportPayload decodes a task payload.
func ParseBookExportPayload(data []byte) (BookExportPayload, error) {
	var p BookExportPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return BookExportPayload{}, fmt.Errorf("unmarshal export payload: %w", err)
	}
	if p.BookID == 0 {
		return BookExportPayload{}, fmt.Errorf("export payload missing book id")
	}
	return p, nil
}
