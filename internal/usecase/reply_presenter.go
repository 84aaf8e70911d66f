package usecase

import (
	"presstalk/internal/domain"
	"presstalk/internal/ports"
)

// replyPresenter projects a submission outcome onto the event sink.
type replyPresenter struct {
	events ports.EventSink
}

func newReplyPresenter(events ports.EventSink) replyPresenter {
	return replyPresenter{events: events}
}

// Present shows the reply texts, requests playback when audio is present and
// returns the reason for the closing transition.
func (p replyPresenter) Present(reply domain.Reply) domain.SessionStateReason {
	p.events.ConversationUpdated(reply.UserText, reply.AssistantText)
	if !reply.HasAudio() {
		return domain.SessionReasonReplyTextOnly
	}
	p.events.PlaybackRequested(reply.AudioURL)
	return domain.SessionReasonReplyPlaying
}

// Fail clears the displayed texts and surfaces the classified error.
func (p replyPresenter) Fail(err error) (domain.ErrorCode, string) {
	code, detail := domain.ClassifySubmitError(err)
	p.events.ConversationUpdated("", "")
	p.events.SessionError(code, detail)
	return code, detail
}
