package discovery

import "github.com/gangulaabhinav/ARWalking/internal/radio"

// Callback is the set of notifications every caller of the Client receives.
//
// Methods are called either synchronously from the Client method that
// caused them or from the Client's event goroutine. They must not block.
type Callback interface {
	OnInvalidService()
	OnAttachedFailed()
	OnNanAvailable()
	OnNanUnavailable()
	OnSessionTerminated(mode radio.Mode, service string)
	OnMessageReceived(mode radio.Mode, service string, peer radio.PeerHandle, payload []byte)
	OnMessageSendSucceeded(mode radio.Mode, service string, messageID int)
	OnMessageSendFailed(mode radio.Mode, service string, messageID int)
}

// PublishCallback receives the notifications of a publish session.
type PublishCallback interface {
	Callback
	OnPublishStarted(service string)
	OnRangingEnabled(service string)
	OnRangingDisabled(service string)
}

// SubscribeCallback receives the notifications of a subscribe session.
type SubscribeCallback interface {
	Callback
	OnSubscribeStarted(service string)
	OnServiceDiscovered(service string, peer radio.PeerHandle, serviceSpecificInfo []byte, matchFilter [][]byte)
}

// ServiceLostHandler is implemented by subscribe callbacks that want to know
// when a discovered publisher disappears.
type ServiceLostHandler interface {
	OnServiceLost(service string, peer radio.PeerHandle)
}

// ConfigUpdatedHandler is implemented by callbacks that want the radio's
// acknowledgement of a configuration update.
type ConfigUpdatedHandler interface {
	OnConfigUpdated(mode radio.Mode, service string)
}

// BaseCallback implements Callback with no-ops. Embed it to override only
// the notifications of interest.
type BaseCallback struct{}

func (BaseCallback) OnInvalidService()                                              {}
func (BaseCallback) OnAttachedFailed()                                              {}
func (BaseCallback) OnNanAvailable()                                                {}
func (BaseCallback) OnNanUnavailable()                                              {}
func (BaseCallback) OnSessionTerminated(radio.Mode, string)                         {}
func (BaseCallback) OnMessageReceived(radio.Mode, string, radio.PeerHandle, []byte) {}
func (BaseCallback) OnMessageSendSucceeded(radio.Mode, string, int)                 {}
func (BaseCallback) OnMessageSendFailed(radio.Mode, string, int)                    {}

// BasePublishCallback implements PublishCallback with no-ops.
type BasePublishCallback struct{ BaseCallback }

func (BasePublishCallback) OnPublishStarted(string)  {}
func (BasePublishCallback) OnRangingEnabled(string)  {}
func (BasePublishCallback) OnRangingDisabled(string) {}

// BaseSubscribeCallback implements SubscribeCallback with no-ops.
type BaseSubscribeCallback struct{ BaseCallback }

func (BaseSubscribeCallback) OnSubscribeStarted(string)                                      {}
func (BaseSubscribeCallback) OnServiceDiscovered(string, radio.PeerHandle, []byte, [][]byte) {}
