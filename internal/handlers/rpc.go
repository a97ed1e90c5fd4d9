package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"bambu_bridge/internal/bambu"
	"bambu_bridge/internal/notify"
	"bambu_bridge/internal/repository"
	"bambu_bridge/internal/service"
)

type rpcRequest struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcHandler func(ctx context.Context, params map[string]any, sess *notify.Session) (any, *rpcError)

// dispatch resolves a request against the method table. Unknown methods
// return an empty result instead of an error: dashboards probe many
// endpoints the bridge does not implement, and an error would surface as
// a popup on every probe.
func (h *Handler) dispatch(ctx context.Context, sess *notify.Session, req *rpcRequest) map[string]any {
	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}

	handler, ok := h.rpc[req.Method]
	if !ok {
		h.log.Debugw("rpc_unknown_method", "method", req.Method)
		resp["result"] = map[string]any{}
		return resp
	}

	params := map[string]any{}
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			resp["error"] = &rpcError{Code: 400, Message: "invalid params: " + err.Error()}
			return resp
		}
	}

	result, rerr := handler(ctx, params, sess)
	if rerr != nil {
		resp["error"] = rerr
	} else {
		resp["result"] = result
	}
	return resp
}

// controlRPCError translates device-command failures.
func controlRPCError(err error) *rpcError {
	var verr *bambu.ValidationError
	if errors.As(err, &verr) {
		return &rpcError{Code: verr.Code, Message: verr.Message}
	}
	if errors.Is(err, bambu.ErrNotConnected) {
		return &rpcError{Code: 503, Message: "printer not connected"}
	}
	return &rpcError{Code: 500, Message: err.Error()}
}

func paramString(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}

func (h *Handler) rpcTable() map[string]rpcHandler {
	return map[string]rpcHandler{
		"server.info": func(ctx context.Context, _ map[string]any, _ *notify.Session) (any, *rpcError) {
			return h.serverInfoResult(), nil
		},
		"server.connection.identify": h.rpcIdentify,
		"server.config": func(ctx context.Context, _ map[string]any, _ *notify.Session) (any, *rpcError) {
			return map[string]any{"config": map[string]any{}}, nil
		},
		"server.gcode_store": func(ctx context.Context, _ map[string]any, _ *notify.Session) (any, *rpcError) {
			return map[string]any{"gcode_store": []any{}}, nil
		},
		"server.temperature_store": func(ctx context.Context, params map[string]any, _ *notify.Session) (any, *rpcError) {
			include, _ := params["include_monitors"].(bool)
			return h.store.GetTemperatureHistory(include), nil
		},
		"server.job_queue.status": func(ctx context.Context, _ map[string]any, _ *notify.Session) (any, *rpcError) {
			return map[string]any{"queued_jobs": []any{}, "queue_state": "ready"}, nil
		},

		"printer.info": func(ctx context.Context, _ map[string]any, _ *notify.Session) (any, *rpcError) {
			return h.printerInfoResult(), nil
		},
		"printer.objects.list": func(ctx context.Context, _ map[string]any, _ *notify.Session) (any, *rpcError) {
			return map[string]any{"objects": h.store.ObjectNames()}, nil
		},
		"printer.objects.query":     h.rpcObjectsQuery,
		"printer.objects.subscribe": h.rpcObjectsQuery,
		"printer.gcode.script":      h.rpcGcodeScript,
		"printer.fan.set_speed":     h.rpcFanSetSpeed,

		"printer.print.start": func(ctx context.Context, params map[string]any, _ *notify.Session) (any, *rpcError) {
			if err := h.services.StartPrint(ctx, paramString(params, "filename")); err != nil {
				return nil, controlRPCError(err)
			}
			return "ok", nil
		},
		"printer.print.pause": func(ctx context.Context, _ map[string]any, _ *notify.Session) (any, *rpcError) {
			if err := h.services.Pause(ctx); err != nil {
				return nil, controlRPCError(err)
			}
			return "ok", nil
		},
		"printer.print.resume": func(ctx context.Context, _ map[string]any, _ *notify.Session) (any, *rpcError) {
			if err := h.services.Resume(ctx); err != nil {
				return nil, controlRPCError(err)
			}
			return "ok", nil
		},
		"printer.print.cancel": func(ctx context.Context, _ map[string]any, _ *notify.Session) (any, *rpcError) {
			if err := h.services.Cancel(ctx); err != nil {
				return nil, controlRPCError(err)
			}
			return "ok", nil
		},

		"server.database.get_item":    h.rpcDatabaseGet,
		"server.database.post_item":   h.rpcDatabasePost,
		"server.database.delete_item": h.rpcDatabaseDelete,
		"server.database.list":        h.rpcDatabaseList,

		"server.files.roots": func(ctx context.Context, _ map[string]any, _ *notify.Session) (any, *rpcError) {
			return map[string]any{"roots": h.services.Roots()}, nil
		},
		"server.files.list":          h.rpcFilesList,
		"server.files.get_directory": h.rpcFilesGetDirectory,
		"server.files.metadata": func(ctx context.Context, params map[string]any, _ *notify.Session) (any, *rpcError) {
			return h.services.Metadata(paramString(params, "filename")), nil
		},

		"server.history.list": h.rpcHistoryList,
		"server.history.totals": func(ctx context.Context, _ map[string]any, _ *notify.Session) (any, *rpcError) {
			totals, err := h.services.Totals(ctx)
			if err != nil {
				return nil, &rpcError{Code: 500, Message: err.Error()}
			}
			return map[string]any{"job_totals": totals}, nil
		},

		"server.webcams.list":        h.rpcWebcamsList,
		"server.webcams.post_item":   h.rpcWebcamsPost,
		"server.webcams.delete_item": h.rpcWebcamsDelete,
		"server.webcams.test": func(ctx context.Context, _ map[string]any, _ *notify.Session) (any, *rpcError) {
			return map[string]any{"can_stream": true}, nil
		},

		"machine.system_info": func(ctx context.Context, _ map[string]any, _ *notify.Session) (any, *rpcError) {
			return map[string]any{
				"system_info": map[string]any{
					"cpu_info":     map[string]any{"cpu_desc": "unknown"},
					"distribution": map[string]any{"name": "bambu-bridge"},
				},
			}, nil
		},
		"machine.proc_stats": func(ctx context.Context, _ map[string]any, _ *notify.Session) (any, *rpcError) {
			return map[string]any{
				"system_cpu_usage":      map[string]any{"cpu": 0.0},
				"system_memory":         map[string]any{"available": 1000, "total": 2000, "used": 1000},
				"websocket_connections": h.hub.SessionCount(),
			}, nil
		},

		"access.login":         h.rpcLogin,
		"access.oneshot_token": h.rpcOneshotToken,
	}
}

// rpcIdentify reports a numeric connection id derived from the session.
func (h *Handler) rpcIdentify(ctx context.Context, _ map[string]any, sess *notify.Session) (any, *rpcError) {
	var id uint64 = 1
	if sess != nil {
		if parsed, err := strconv.ParseUint(sess.ID, 16, 64); err == nil {
			id = parsed
		}
	}
	return map[string]any{"connection_id": id}, nil
}

// rpcObjectsQuery serves query and subscribe identically: there is no
// per-session filtering, every session receives the global stream.
func (h *Handler) rpcObjectsQuery(ctx context.Context, params map[string]any, _ *notify.Session) (any, *rpcError) {
	requested, _ := params["objects"].(map[string]any)
	return h.objectsQueryResult(requested), nil
}

func (h *Handler) rpcGcodeScript(ctx context.Context, params map[string]any, _ *notify.Session) (any, *rpcError) {
	if err := h.services.RunScript(ctx, paramString(params, "script")); err != nil {
		return nil, controlRPCError(err)
	}
	return "ok", nil
}

func (h *Handler) rpcFanSetSpeed(ctx context.Context, params map[string]any, _ *notify.Session) (any, *rpcError) {
	if err := h.services.SetFanSpeed(ctx, paramString(params, "fan"), params["speed"]); err != nil {
		return nil, controlRPCError(err)
	}
	return "ok", nil
}

func (h *Handler) rpcDatabaseGet(ctx context.Context, params map[string]any, _ *notify.Session) (any, *rpcError) {
	namespace := paramString(params, "namespace")
	key := paramString(params, "key")
	value, err := h.services.GetItem(ctx, namespace, key)
	if err != nil {
		return nil, &rpcError{Code: 500, Message: err.Error()}
	}
	return databaseItem(namespace, key, value), nil
}

func (h *Handler) rpcDatabasePost(ctx context.Context, params map[string]any, _ *notify.Session) (any, *rpcError) {
	namespace := paramString(params, "namespace")
	key := paramString(params, "key")
	value, err := h.services.PostItem(ctx, namespace, key, params["value"])
	if err != nil {
		if errors.Is(err, repository.ErrNamespaceValue) {
			return nil, &rpcError{Code: 400, Message: err.Error()}
		}
		return nil, &rpcError{Code: 500, Message: err.Error()}
	}
	return databaseItem(namespace, key, value), nil
}

func (h *Handler) rpcDatabaseDelete(ctx context.Context, params map[string]any, _ *notify.Session) (any, *rpcError) {
	namespace := paramString(params, "namespace")
	key := paramString(params, "key")
	value, err := h.services.DeleteItem(ctx, namespace, key)
	if err != nil {
		return nil, &rpcError{Code: 500, Message: err.Error()}
	}
	return databaseItem(namespace, key, value), nil
}

func (h *Handler) rpcDatabaseList(ctx context.Context, _ map[string]any, _ *notify.Session) (any, *rpcError) {
	namespaces, err := h.services.ListNamespaces(ctx)
	if err != nil {
		return nil, &rpcError{Code: 500, Message: err.Error()}
	}
	return map[string]any{"namespaces": namespaces, "backups": []string{}}, nil
}

func (h *Handler) rpcFilesList(ctx context.Context, params map[string]any, _ *notify.Session) (any, *rpcError) {
	root := paramString(params, "root")
	if root == "" {
		root = "gcodes"
	}
	files, err := h.services.FlatList(ctx, root)
	if err != nil {
		h.log.Errorw("file_list_failed", "root", root, "err", err)
		files = []map[string]any{}
	}
	return map[string]any{"root": root, "files": files}, nil
}

func (h *Handler) rpcFilesGetDirectory(ctx context.Context, params map[string]any, _ *notify.Session) (any, *rpcError) {
	path := paramString(params, "path")
	if path == "" {
		path = "gcodes"
	}
	dir, err := h.services.Directory(ctx, path)
	if err != nil {
		return nil, &rpcError{Code: 400, Message: err.Error()}
	}
	return dir, nil
}

func (h *Handler) rpcHistoryList(ctx context.Context, params map[string]any, _ *notify.Session) (any, *rpcError) {
	f := repository.JobFilter{Limit: 50, Descending: true}
	if v, ok := params["limit"].(float64); ok && v > 0 {
		f.Limit = int(v)
	}
	if v, ok := params["before"].(float64); ok {
		f.Before = v
	}
	if v, ok := params["since"].(float64); ok {
		f.Since = v
	}
	if order, ok := params["order"].(string); ok && order == "asc" {
		f.Descending = false
	}
	result, err := h.services.History.List(ctx, f)
	if err != nil {
		return nil, &rpcError{Code: 500, Message: err.Error()}
	}
	return result, nil
}

func (h *Handler) rpcWebcamsList(ctx context.Context, _ map[string]any, _ *notify.Session) (any, *rpcError) {
	webcams, err := h.services.Webcams.List(ctx)
	if err != nil {
		return nil, &rpcError{Code: 500, Message: err.Error()}
	}
	return map[string]any{"webcams": webcams}, nil
}

func (h *Handler) rpcWebcamsPost(ctx context.Context, params map[string]any, _ *notify.Session) (any, *rpcError) {
	cam, err := h.services.Upsert(ctx, params)
	if err != nil {
		return nil, &rpcError{Code: 500, Message: err.Error()}
	}
	h.hub.NotifyWebcamsChanged()
	return map[string]any{"item": cam}, nil
}

func (h *Handler) rpcWebcamsDelete(ctx context.Context, params map[string]any, _ *notify.Session) (any, *rpcError) {
	item, err := h.services.Remove(ctx, paramString(params, "uid"))
	if err != nil {
		return nil, &rpcError{Code: 500, Message: err.Error()}
	}
	h.hub.NotifyWebcamsChanged()
	return map[string]any{"item": item}, nil
}

func (h *Handler) rpcLogin(ctx context.Context, params map[string]any, _ *notify.Session) (any, *rpcError) {
	username := paramString(params, "username")
	password := paramString(params, "password")
	token, err := h.services.Login(ctx, username, password)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) || errors.Is(err, service.ErrInvalidPassword) {
			return nil, &rpcError{Code: 401, Message: "invalid credentials"}
		}
		return nil, &rpcError{Code: 500, Message: err.Error()}
	}
	return map[string]any{
		"username": username,
		"token":    token,
		"source":   "moonraker",
		"action":   "user_logged_in",
	}, nil
}

func (h *Handler) rpcOneshotToken(ctx context.Context, _ map[string]any, _ *notify.Session) (any, *rpcError) {
	token, expires := h.services.OneshotToken()
	return map[string]any{"token": token, "expires": expires}, nil
}
