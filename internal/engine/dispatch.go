package engine

import (
	"fmt"

	"github.com/tinytelemetry/pageinspect/internal/admission"
	"github.com/tinytelemetry/pageinspect/internal/logparse"
	"github.com/tinytelemetry/pageinspect/internal/model"
	"github.com/tinytelemetry/pageinspect/internal/sanitize"
)

// RecordingPayload is the payload of RECORDING_TOGGLED.
type RecordingPayload struct {
	IsRecording bool `json:"isRecording"`
}

func (e *Engine) handleLocked(env model.Envelope, origin string, out *outbox) model.Response {
	resp := e.dispatchLocked(env, origin, out)
	if env.Type != model.MessageBatch {
		e.metrics.Envelope(string(env.Type), resp.OK)
	}
	return resp
}

func (e *Engine) dispatchLocked(env model.Envelope, origin string, out *outbox) model.Response {
	switch env.Type {
	case model.MessageBatch:
		return e.batchLocked(env, origin, out)

	case model.MessageConsoleLog:
		e.logLocked(env, origin, out)
		return model.Response{OK: true}

	case model.MessageNetworkRequest:
		e.networkLocked(env, origin, out)
		return model.Response{OK: true}

	case model.MessageGetState:
		st := e.snapshotLocked().ForSession(env.Target)
		return model.Response{OK: true, State: &st}

	case model.MessageClearLogs:
		removed := e.store.ClearLogs(env.Target)
		out.save = true
		out.notify(model.UpdateLogsCleared, model.ClearedPayload{
			SessionID: env.Target,
			Removed:   removed.Logs + removed.ArchivedLogs,
		})
		return model.Response{OK: true}

	case model.MessageClearNetwork:
		removed := e.store.ClearNetwork(env.Target)
		out.save = true
		out.notify(model.UpdateNetworkCleared, model.ClearedPayload{
			SessionID: env.Target,
			Removed:   removed.NetworkRequests + removed.ArchivedNetwork,
		})
		return model.Response{OK: true}

	case model.MessageToggleRecording:
		if env.Recording != nil {
			e.recording = *env.Recording
		} else {
			e.recording = !e.recording
		}
		recording := e.recording
		out.save = true
		out.notify(model.UpdateRecordingToggled, RecordingPayload{IsRecording: recording})
		return model.Response{OK: true, Recording: &recording}

	case model.MessageUpdateSettings:
		e.updateSettingsLocked(env.Settings, out)
		return model.Response{OK: true}

	case model.MessageNavigationStarted, model.MessageSessionEnded:
		id := firstNonEmpty(env.Target, env.SessionID)
		if id != "" {
			e.clearSessionLocked(id, out)
		}
		return model.Response{OK: true}

	case model.MessageClearAll:
		removed := e.sessions.ClearAll()
		e.counter.Reset()
		out.save = true
		out.notify(model.UpdateLogsCleared, model.ClearedPayload{Removed: removed.Logs + removed.ArchivedLogs})
		out.notify(model.UpdateNetworkCleared, model.ClearedPayload{Removed: removed.NetworkRequests + removed.ArchivedNetwork})
		return model.Response{OK: true}
	}

	e.logger.WithField("type", env.Type).Debug("engine: unknown message type")
	return model.Response{OK: false, Error: fmt.Sprintf("unknown message type: %s", env.Type)}
}

// batchLocked handles inner messages in order. Every element is processed;
// the first failure is reported.
func (e *Engine) batchLocked(env model.Envelope, origin string, out *outbox) model.Response {
	resp := model.Response{OK: true}
	for _, inner := range env.Batch {
		r := e.handleLocked(inner, origin, out)
		if !r.OK {
			if resp.OK {
				resp.OK = false
				resp.Error = r.Error
			}
			continue
		}
		resp.Processed++
	}
	e.metrics.Envelope(string(model.MessageBatch), resp.OK)
	return resp
}

func (e *Engine) logLocked(env model.Envelope, origin string, out *outbox) {
	if !e.settings.CaptureConsole || !e.recording {
		return
	}
	e.counter.Received(model.CategoryLogs)
	out.save = true

	p := env.Log
	if p == nil {
		p = &model.LogPayload{}
	}
	entry := e.buildLog(p, firstNonEmpty(p.SessionID, env.SessionID, origin))
	e.sessions.Touch(entry.SessionID, e.now())

	if d := admission.Admit(entry, e.settings); !d.Admitted {
		e.counter.DroppedByFilter(model.CategoryLogs, d.Reason)
		return
	}

	evicted := e.store.AddLog(entry)
	e.counter.Stored(model.CategoryLogs)
	e.counter.DroppedByLimit(model.CategoryLogs, evicted)
	out.notify(model.UpdateLogAdded, entry.Clone())
}

func (e *Engine) buildLog(p *model.LogPayload, sessionID string) model.LogEntry {
	message := ""
	if p.Message != nil {
		message = sanitize.Limit(*p.Message, e.settings.MaxMessageChars)
	}
	ctx := model.ContextPage
	if model.Context(p.Context) == model.ContextExtension {
		ctx = model.ContextExtension
	}
	var src *model.SourceLocation
	if p.Source != nil {
		s := *p.Source
		src = &s
	}
	return model.LogEntry{
		ID:        e.idOr(p.ID),
		Timestamp: e.timestampOr(p.Timestamp),
		Level:     logparse.NormalizeLevel(p.Level),
		Message:   message,
		Args: sanitize.Sanitize(p.Args, sanitize.Options{
			MaxArgs:     e.settings.MaxArgs,
			MaxArgChars: e.settings.MaxArgChars,
		}),
		Source:    src,
		Context:   ctx,
		SessionID: sessionID,
	}
}

func (e *Engine) networkLocked(env model.Envelope, origin string, out *outbox) {
	if !e.settings.CaptureNetwork || !e.settings.NetworkMonitoring || !e.recording {
		return
	}
	e.counter.Received(model.CategoryNetwork)
	out.save = true

	p := env.Network
	if p == nil {
		p = &model.NetworkPayload{}
	}
	req := model.NetworkRequest{
		ID:              e.idOr(p.ID),
		Timestamp:       e.timestampOr(p.Timestamp),
		URL:             p.URL,
		Method:          p.Method,
		Status:          p.Status,
		RequestHeaders:  p.RequestHeaders,
		ResponseHeaders: p.ResponseHeaders,
		RequestBody:     p.RequestBody,
		ResponseBody:    p.ResponseBody,
		Duration:        p.Duration,
		SessionID:       firstNonEmpty(p.SessionID, env.SessionID, origin),
	}.Clone()
	e.sessions.Touch(req.SessionID, e.now())

	evicted := e.store.AddNetwork(req)
	e.counter.Stored(model.CategoryNetwork)
	e.counter.DroppedByLimit(model.CategoryNetwork, evicted)
	out.notify(model.UpdateNetworkAdded, req.Clone())
}

// updateSettingsLocked applies a partial patch and re-applies retention
// limits right away. Items evicted by a smaller limit count as dropped.
func (e *Engine) updateSettingsLocked(patch *model.SettingsPatch, out *outbox) {
	if patch != nil {
		e.settings = patch.Apply(e.settings)
	}
	logsEvicted, networkEvicted := e.store.ApplyLimits(e.settings)
	e.counter.DroppedByLimit(model.CategoryLogs, logsEvicted)
	e.counter.DroppedByLimit(model.CategoryNetwork, networkEvicted)
	out.save = true
	out.notify(model.UpdateSettingsUpdated, e.settings.Clone())
}

func (e *Engine) clearSessionLocked(id string, out *outbox) {
	removed := e.sessions.ClearSession(id)
	out.save = true
	out.notify(model.UpdateLogsCleared, model.ClearedPayload{
		SessionID: id,
		Removed:   removed.Logs + removed.ArchivedLogs,
	})
	out.notify(model.UpdateNetworkCleared, model.ClearedPayload{
		SessionID: id,
		Removed:   removed.NetworkRequests + removed.ArchivedNetwork,
	})
}

func (e *Engine) idOr(id string) string {
	if id != "" {
		return id
	}
	return e.newID()
}

func (e *Engine) timestampOr(ts int64) int64 {
	if ts > 0 {
		return ts
	}
	return e.now().UnixMilli()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
