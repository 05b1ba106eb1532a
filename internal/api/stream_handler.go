package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/shaiso/Artflow/internal/domain"
	"github.com/shaiso/Artflow/internal/storage"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPingPeriod = 30 * time.Second
)

// StreamRun отдаёт статусы Output-узлов run через websocket.
// GET /api/v1/runs/{id}/stream
//
// Сначала отправляется снимок уже записанных статусов, затем живые
// события. После run.finished сервер закрывает соединение.
func (h *Handler) StreamRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	if h.feed == nil {
		Unavailable(w, "live stream is not configured")
		return
	}

	if _, err := h.runs.GetByID(r.Context(), id); HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrader уже ответил клиенту.
		h.logger.Debug("websocket upgrade failed", "run_id", id, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Читаем, чтобы заметить закрытие со стороны клиента.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.stream(ctx, conn, id); err != nil {
		h.logger.Debug("run stream closed", "run_id", id, "error", err)
	}
}

func (h *Handler) stream(ctx context.Context, conn *websocket.Conn, runID uuid.UUID) error {
	// Подписка до снимка: событие между ними придёт дважды, но не потеряется.
	sub, err := h.feed.Subscribe(ctx, runID)
	if err != nil {
		return err
	}
	defer sub.Close()

	snapshot, err := h.feed.Snapshot(ctx, runID)
	if err != nil {
		return err
	}
	nodeIDs := make([]string, 0, len(snapshot))
	for nodeID := range snapshot {
		nodeIDs = append(nodeIDs, nodeID)
	}
	sort.Strings(nodeIDs)
	for _, nodeID := range nodeIDs {
		if err := writeEvent(conn, outputEvent(runID, nodeID, snapshot[nodeID])); err != nil {
			return err
		}
	}

	// Run мог завершиться до подписки.
	run, err := h.runs.GetByID(ctx, runID)
	if err != nil {
		return err
	}
	if run.IsFinished() {
		return finish(conn, storage.Event{Type: storage.EventRunFinished, RunID: runID, RunStatus: run.Status})
	}

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return err
			}
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if ev.Type == storage.EventRunFinished {
				return finish(conn, ev)
			}
			if err := writeEvent(conn, ev); err != nil {
				return err
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, ev storage.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(ev)
}

func finish(conn *websocket.Conn, ev storage.Event) error {
	if err := writeEvent(conn, ev); err != nil {
		return err
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(ev.RunStatus))
	return conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteWait))
}

func outputEvent(runID uuid.UUID, nodeID string, status domain.OutputStatus) storage.Event {
	return storage.Event{Type: storage.EventOutputStatus, RunID: runID, NodeID: nodeID, Status: &status}
}
