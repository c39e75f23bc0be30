package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/RichardoC/insurance-assistant/internal/conversation"
)

const (
	noticeTimeout    = "That took too long to answer. Please try again."
	noticeCancelled  = "The request was cancelled. Please try again."
	noticeGeneration = "Sorry, I couldn't come up with an answer just now. Please try again."
	noticeStorage    = "Sorry, I couldn't load our conversation. Please try again in a moment."
	noticeUnknown    = "Something went wrong on my side. Please try again."
	noticeAudio      = "Sorry, I couldn't make out that recording. Please try again."
	noticeNoVoice    = "Voice input is not enabled on this server."
)

// Notice turns a failed step into a short message that can be shown or
// spoken to the user in place of a reply.
func Notice(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return noticeTimeout
	case errors.Is(err, context.Canceled):
		return noticeCancelled
	case errors.Is(err, conversation.ErrGeneration):
		return noticeGeneration
	case errors.Is(err, conversation.ErrStorage):
		return noticeStorage
	default:
		return noticeUnknown
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, conversation.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
