package pipeline

import (
	"context"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/schema"

	"github.com/caldway/tradehelm/pkg/logger"
)

// stageObserver logs graph node lifecycle through the process logger.
// Streamed frames are not consumed here: stage routers read the final
// message out of the run state, so the observer only tracks timing
// and failures.
type stageObserver struct {
	callbacks.HandlerBuilder

	log *logger.Logger
}

func newStageObserver(log *logger.Logger, symbol string) *stageObserver {
	return &stageObserver{log: log.With(logger.String("symbol", symbol))}
}

func (o *stageObserver) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	if name := nodeName(info); name != "" {
		o.log.Debug("node start", logger.String("node", name))
	}
	return ctx
}

func (o *stageObserver) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	if name := nodeName(info); name != "" {
		o.log.Debug("node done", logger.String("node", name))
	}
	return ctx
}

func (o *stageObserver) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	o.log.Error("node failed", logger.String("node", nodeName(info)), logger.Err(err))
	return ctx
}

func (o *stageObserver) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo,
	output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	output.Close()
	if name := nodeName(info); name != "" {
		o.log.Debug("node done", logger.String("node", name))
	}
	return ctx
}

func (o *stageObserver) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo,
	input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	defer input.Close()
	if name := nodeName(info); name != "" {
		o.log.Debug("node start", logger.String("node", name))
	}
	return ctx
}

func nodeName(info *callbacks.RunInfo) string {
	if info == nil {
		return ""
	}
	if info.Name != "" {
		return info.Name
	}
	return info.Type
}
