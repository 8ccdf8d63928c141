package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/hitoshi/taskwise/internal/middleware"
	"github.com/hitoshi/taskwise/internal/model"
)

// heartbeatInterval はSSE接続を維持するためのコメント送信間隔。
const heartbeatInterval = 30 * time.Second

// ChangeSubscriber は所有者単位の変更通知の購読インターフェース。
// watch.Hubの部分集合として定義する。
type ChangeSubscriber interface {
	Subscribe(ownerID string) (<-chan struct{}, func())
}

// StreamHandler はライブクエリ用のSSEストリームを提供するHTTPハンドラー。
// 変更イベント自体はペイロードを持たず、クライアントは受信を合図に
// 必要なクエリを再実行する（プッシュ型の無効化）。
type StreamHandler struct {
	subscriber ChangeSubscriber
}

// NewStreamHandler はStreamHandlerを生成する。
func NewStreamHandler(subscriber ChangeSubscriber) *StreamHandler {
	return &StreamHandler{
		subscriber: subscriber,
	}
}

// Stream は呼び出し元の変更通知をSSEで配信する。
// GET /api/stream
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	callerID, err := middleware.CallerIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
			Code:     "STREAMING_UNSUPPORTED",
			Message:  "ストリーミングに対応していない接続です。",
			Category: "system",
			Action:   "通常のポーリングに切り替えてください。",
		})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// 接続確立をクライアントに知らせる
	fmt.Fprint(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	ch, cancel := h.subscriber.Subscribe(callerID)
	defer cancel()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ch:
			fmt.Fprint(w, "event: change\ndata: {}\n\n")
			flusher.Flush()
		case <-ticker.C:
			// プロキシによる切断を防ぐためのコメント行
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}
