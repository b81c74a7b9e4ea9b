package interceptor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"batchrpc/internal/cache"
	"batchrpc/internal/message"
)

type itemKey int

const (
	fromCacheKey itemKey = iota
	startedAtKey
)

// CachingInterceptor answers requests from the cache gateway and stores
// successful responses of cacheable types
type CachingInterceptor struct {
	gateway cache.Gateway
}

// NewCachingInterceptor creates a caching interceptor
func NewCachingInterceptor(gateway cache.Gateway) *CachingInterceptor {
	return &CachingInterceptor{gateway: gateway}
}

func (ci *CachingInterceptor) BeforeHandlingRequest(_ context.Context, rc *RequestContext) error {
	tag := message.TypeOf(rc.Request)
	if !ci.gateway.IsCachingEnabledFor(tag) {
		return nil
	}
	cached, ok := ci.gateway.GetCachedResponseFor(rc.Request)
	if !ok {
		return nil
	}
	rc.SetItem(fromCacheKey, true)
	return rc.MarkAsProcessed(cached)
}

func (ci *CachingInterceptor) AfterHandlingRequest(_ context.Context, rc *RequestContext) error {
	if _, hit := rc.Item(fromCacheKey); hit {
		return nil
	}
	resp := rc.Response()
	if !message.IsSuccess(resp) || rc.Failed() {
		return nil
	}
	if ci.gateway.IsCachingEnabledFor(message.TypeOf(rc.Request)) {
		ci.gateway.StoreInCache(rc.Request, resp)
	}
	return nil
}

// LoggingInterceptor logs every request passing through the chain
type LoggingInterceptor struct {
	logger zerolog.Logger
}

// NewLoggingInterceptor creates a logging interceptor
func NewLoggingInterceptor(logger zerolog.Logger) *LoggingInterceptor {
	return &LoggingInterceptor{
		logger: logger.With().Str("component", "requests").Logger(),
	}
}

func (li *LoggingInterceptor) BeforeHandlingRequest(_ context.Context, rc *RequestContext) error {
	rc.SetItem(startedAtKey, time.Now())
	li.logger.Debug().Str("type", message.TypeOf(rc.Request)).Msg("handling request")
	return nil
}

func (li *LoggingInterceptor) AfterHandlingRequest(_ context.Context, rc *RequestContext) error {
	event := li.logger.Debug().Str("type", message.TypeOf(rc.Request))
	if started, ok := rc.Item(startedAtKey); ok {
		event = event.Dur("duration", time.Since(started.(time.Time)))
	}
	if resp := rc.Response(); resp != nil {
		event = event.Str("exceptionKind", resp.ExceptionKind().String())
	}
	event.Msg("request handled")
	return nil
}
