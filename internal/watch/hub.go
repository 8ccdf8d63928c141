// Package watch はライブクエリを支える所有者単位の変更通知ハブを提供する。
// サービス層が書き込み成功時にNotifyを呼び、購読側（SSEストリームや
// ビューステートコントローラ）は通知を受けてクエリを再実行する。
// 単一プロセス内のプッシュ型無効化であり、複数プロセス構成にする場合は
// このハブを外部ブローカーに置き換える。
package watch

import "sync"

// Hub は所有者IDごとの購読チャネルを管理する。
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan struct{}
}

// NewHub はHubを生成する。
func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[int]chan struct{}),
	}
}

// Subscribe は指定所有者の変更通知チャネルと購読解除関数を返す。
// チャネルはバッファ1で、未消費の通知がある間は追加の通知を合流させる
// （購読側は通知1回につきクエリを再実行すれば最新状態に追いつく）。
func (h *Hub) Subscribe(ownerID string) (<-chan struct{}, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++

	ch := make(chan struct{}, 1)
	if h.subs[ownerID] == nil {
		h.subs[ownerID] = make(map[int]chan struct{})
	}
	h.subs[ownerID][id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if chans, ok := h.subs[ownerID]; ok {
			delete(chans, id)
			if len(chans) == 0 {
				delete(h.subs, ownerID)
			}
		}
	}

	return ch, cancel
}

// Notify は指定所有者の全購読者に変更を通知する。
// 送信はノンブロッキングで、未消費の通知があるチャネルには追加送信しない。
func (h *Hub) Notify(ownerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs[ownerID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// SubscriberCount は指定所有者の現在の購読者数を返す。テスト用。
func (h *Hub) SubscriberCount(ownerID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[ownerID])
}
