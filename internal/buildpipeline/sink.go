package buildpipeline

import "time"

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

// FuncSink adapts a function to ProgressSink.
type FuncSink func(Event)

func (f FuncSink) OnEvent(evt Event) {
	if f != nil {
		f(evt)
	}
}

func emit(sink ProgressSink, evt Event) {
	if sink != nil {
		sink.OnEvent(evt)
	}
}

func emitQueued(sink ProgressSink, modules []string) {
	if sink == nil {
		return
	}
	for _, m := range modules {
		sink.OnEvent(Event{Module: m, Stage: StageLoad, Status: StatusQueued})
	}
}

func emitStage(sink ProgressSink, modules []string, stage Stage, status Status, err error, elapsed time.Duration) {
	if sink == nil {
		return
	}
	sink.OnEvent(Event{Stage: stage, Status: status, Err: err, Elapsed: elapsed})
	for _, m := range modules {
		sink.OnEvent(Event{Module: m, Stage: stage, Status: status, Err: err, Elapsed: elapsed})
	}
}
