package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/AlexZinkM/avian-backup/internal/errs"
	"github.com/AlexZinkM/avian-backup/internal/model"
)

const wsWriteTimeout = 10 * time.Second

// RestoreWS handles GET /backup/restore/ws
// @Summary      Restore backup with progress
// @Description  WebSocket. The client sends one model.RestoreRequest; the server streams model.RestoreProgressMessage values, the last one with done=true, then closes.
// @Tags         backup
// @Success      101  {object}  model.RestoreProgressMessage
// @Router       /backup/restore/ws [get]
func (h *BackupHandler) RestoreWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxBodyBytes)

	ctx := r.Context()

	var req model.RestoreRequest
	if err := wsjson.Read(ctx, conn, &req); err != nil {
		h.logger.Warn("failed to read restore request", zap.Error(err))
		conn.Close(websocket.StatusUnsupportedData, "expected a restore request")
		return
	}

	send := func(msg model.RestoreProgressMessage) error {
		wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
		defer cancel()
		return wsjson.Write(wctx, conn, msg)
	}
	finish := func(msg model.RestoreProgressMessage) {
		msg.Done = true
		if err := send(msg); err != nil {
			h.logger.Warn("failed to send restore result", zap.Error(err))
			return
		}
		conn.Close(websocket.StatusNormalClosure, "")
	}
	failure := func(err error) model.RestoreProgressMessage {
		_, code := classify(err)
		return model.RestoreProgressMessage{Error: err.Error(), Code: code}
	}

	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil || len(data) == 0 {
		finish(model.RestoreProgressMessage{Error: "data must be a non-empty base64 string", Code: "BAD_REQUEST"})
		return
	}

	password := []byte(req.Password)
	defer clear(password)

	res, err := h.svc.ParseBackupFile(ctx, data, password)
	if err != nil {
		finish(failure(err))
		return
	}

	// The restore runs to completion even if the client goes away.
	onProgress := func(step string, percent int) {
		if err := send(model.RestoreProgressMessage{Step: step, Percent: percent}); err != nil {
			h.logger.Debug("progress not delivered", zap.String("step", step), zap.Error(err))
		}
	}
	summary, err := h.svc.RestoreFromBackup(ctx, res.Document, restoreOptions(req.Options), onProgress)

	msg := model.RestoreProgressMessage{Percent: 100, Summary: &summary}
	if err != nil {
		msg = failure(err)
		if errors.Is(err, errs.ErrStorageWriteFailed) {
			msg.Summary = &summary
		}
	}
	finish(msg)
}
