package authsaga

import (
	"context"

	"github.com/gongxingwei/authsaga/bus"
)

type contextKey int

const (
	clientIPKey contextKey = iota
	userAgentKey
	deviceIDKey
)

// WithClientIP attaches the caller's IP for event payloads and audit.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// WithUserAgent attaches the caller's user agent.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, userAgentKey, ua)
}

// WithDeviceID attaches an opaque device identifier.
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceIDKey, deviceID)
}

func clientInfoFromContext(ctx context.Context) bus.ClientInfo {
	var info bus.ClientInfo
	if v, ok := ctx.Value(clientIPKey).(string); ok {
		info.IP = v
	}
	if v, ok := ctx.Value(userAgentKey).(string); ok {
		info.UserAgent = v
	}
	if v, ok := ctx.Value(deviceIDKey).(string); ok {
		info.DeviceID = v
	}
	return info
}
