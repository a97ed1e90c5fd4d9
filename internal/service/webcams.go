package service

import (
	"context"

	"bambu_bridge/internal/repository"

	"github.com/google/uuid"
)

const (
	webcamNamespace = "moonraker"
	webcamKey       = "webcams"
)

// WebcamService persists dashboard camera entries as a list under the
// moonraker namespace, the layout stock Moonraker uses.
type WebcamService struct {
	ns repository.NamespaceRepo
}

func NewWebcamService(ns repository.NamespaceRepo) *WebcamService {
	return &WebcamService{ns: ns}
}

func (s *WebcamService) List(ctx context.Context) ([]map[string]any, error) {
	return s.load(ctx)
}

func (s *WebcamService) load(ctx context.Context) ([]map[string]any, error) {
	raw, err := s.ns.Get(ctx, webcamNamespace, webcamKey)
	if err != nil {
		return nil, err
	}
	list, ok := raw.([]any)
	if !ok {
		return []map[string]any{}, nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if cam, ok := item.(map[string]any); ok {
			out = append(out, cam)
		}
	}
	return out, nil
}

func (s *WebcamService) save(ctx context.Context, webcams []map[string]any) error {
	_, err := s.ns.Put(ctx, webcamNamespace, webcamKey, webcams)
	return err
}

// Upsert updates the entry matching params["uid"], or appends a new one
// with generated uid and defaults.
func (s *WebcamService) Upsert(ctx context.Context, params map[string]any) (map[string]any, error) {
	webcams, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	if uid, _ := params["uid"].(string); uid != "" {
		for _, cam := range webcams {
			if cam["uid"] == uid {
				overlay(cam, params,
					"name", "location", "service", "target_fps",
					"stream_url", "snapshot_url",
					"flip_horizontal", "flip_vertical", "rotation", "enabled")
				return cam, s.save(ctx, webcams)
			}
		}
	}

	cam := map[string]any{
		"uid":             uuid.NewString(),
		"name":            pick(params, "name", "New Webcam"),
		"location":        pick(params, "location", "printer"),
		"service":         pick(params, "service", "mjpegstreamer"),
		"target_fps":      pick(params, "target_fps", 15),
		"stream_url":      pick(params, "stream_url", ""),
		"snapshot_url":    pick(params, "snapshot_url", ""),
		"flip_horizontal": pick(params, "flip_horizontal", false),
		"flip_vertical":   pick(params, "flip_vertical", false),
		"rotation":        pick(params, "rotation", 0),
		"source":          "database",
		"enabled":         true,
	}
	webcams = append(webcams, cam)
	return cam, s.save(ctx, webcams)
}

// Remove deletes by uid. Deleting an unknown uid succeeds (idempotent).
func (s *WebcamService) Remove(ctx context.Context, uid string) (map[string]any, error) {
	webcams, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	kept := webcams[:0]
	removed := false
	for _, cam := range webcams {
		if cam["uid"] == uid {
			removed = true
			continue
		}
		kept = append(kept, cam)
	}
	if removed {
		if err := s.save(ctx, kept); err != nil {
			return nil, err
		}
	}
	return map[string]any{"uid": uid}, nil
}

func pick(params map[string]any, key string, fallback any) any {
	if v, ok := params[key]; ok && v != nil {
		return v
	}
	return fallback
}

func overlay(dst, src map[string]any, keys ...string) {
	for _, key := range keys {
		if v, ok := src[key]; ok && v != nil {
			dst[key] = v
		}
	}
}
