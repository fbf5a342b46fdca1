package services

import (
	"github.com/rs/zerolog/log"

	"idevice/frames"
	"idevice/tunnel"
)

type OperationStatus int

const (
	OperationSent OperationStatus = iota
	OperationProgress
	OperationComplete
	OperationFailed
)

const defaultStatusLabel = "Installing"

// ProgressSink receives progress synchronously, in message order.
type ProgressSink interface {
	Progress(percent uint64, label string)
}

type ProgressFunc func(percent uint64, label string)

func (this ProgressFunc) Progress(percent uint64, label string) {
	this(percent, label)
}

// OperationState tracks one long running installation_proxy command.
type OperationState struct {
	Status     OperationStatus
	Label      string
	Percent    uint64
	HasPercent bool
	Error      string
}

func (this *OperationState) Terminal() bool {
	return this.Status == OperationComplete || this.Status == OperationFailed
}

// Apply folds one message into the state and reports whether it carried a percentage.
func (this *OperationState) Apply(msg frames.Dict) bool {
	if this.Terminal() {
		return false
	}

	if e, ok := msg.GetString("ErrorDescription"); ok {
		this.Status = OperationFailed
		this.Error = e
		return false
	}

	this.Label = statusLabel(msg)
	if this.Status == OperationSent {
		this.Status = OperationProgress
	}

	percent, progressed := msg.GetUint("PercentComplete")
	if progressed {
		this.Percent = percent
		this.HasPercent = true
	}

	if status, ok := msg.GetString("Status"); ok && status == "Complete" {
		this.Status = OperationComplete
	}
	return progressed
}

func statusLabel(msg frames.Dict) string {
	for _, key := range []string{"CurrentOperation", "StatusDescription", "Phase"} {
		if s, ok := msg.GetString(key); ok {
			return s
		}
	}
	return defaultStatusLabel
}

// watchCompletion consumes the replies of an issued command until it completes or fails.
func watchCompletion(service *tunnel.Service, sink ProgressSink) error {
	state := &OperationState{}
	for {
		msg, err := service.SyncDict()
		if err != nil {
			return err
		}

		progressed := state.Apply(msg)
		if state.Status == OperationFailed {
			return &frames.ServiceError{Service: "installation_proxy", Message: state.Error}
		}
		if progressed {
			log.Debug().Uint64("percent", state.Percent).Str("status", state.Label).Msg("operation progress")
			if sink != nil {
				sink.Progress(state.Percent, state.Label)
			}
		}
		if state.Status == OperationComplete {
			return nil
		}
	}
}

// browse collects every CurrentList until Complete. A message without a list ends
// the loop early and the items gathered so far are returned.
func browse(service *tunnel.Service) (frames.Array, error) {
	var items frames.Array
	for {
		msg, err := service.SyncDict()
		if err != nil {
			return nil, err
		}

		list, ok := msg.GetArray("CurrentList")
		if !ok {
			log.Warn().Int("items", len(items)).Msg("browse reply without CurrentList")
			break
		}
		items = append(items, list...)

		if status, ok := msg.GetString("Status"); ok && status == "Complete" {
			break
		}
	}
	return items, nil
}
