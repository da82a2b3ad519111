package dispatch

import (
	"go.mau.fi/whatsmeow/proto/waE2E"
)

// Kind tags the message shapes the gateway understands. Each variant carries
// its canonical text in Content; everything else is KindUnknown with no text.
type Kind int

const (
	KindUnknown Kind = iota
	KindText
	KindExtendedText
	KindImage
	KindVideo
	KindDocument
	KindButtonsResponse
	KindListResponse
	KindTemplateButtonReply
)

// Content is the normalized view of one inbound message.
type Content struct {
	Kind Kind
	Text string
}

// Unwrap peels exactly one level of ephemeral or view-once envelope so every
// later step sees the inner payload.
func Unwrap(msg *waE2E.Message) *waE2E.Message {
	if msg == nil {
		return nil
	}
	if inner := msg.GetEphemeralMessage().GetMessage(); inner != nil {
		return inner
	}
	if inner := msg.GetViewOnceMessage().GetMessage(); inner != nil {
		return inner
	}
	if inner := msg.GetViewOnceMessageV2().GetMessage(); inner != nil {
		return inner
	}
	return msg
}

// Extract is the single exhaustive match from message shape to canonical
// text: captions, plain text and interactive replies all land in one string.
func Extract(msg *waE2E.Message) Content {
	switch {
	case msg == nil:
		return Content{Kind: KindUnknown}
	case msg.Conversation != nil:
		return Content{Kind: KindText, Text: msg.GetConversation()}
	case msg.ExtendedTextMessage != nil:
		return Content{Kind: KindExtendedText, Text: msg.GetExtendedTextMessage().GetText()}
	case msg.ImageMessage != nil:
		return Content{Kind: KindImage, Text: msg.GetImageMessage().GetCaption()}
	case msg.VideoMessage != nil:
		return Content{Kind: KindVideo, Text: msg.GetVideoMessage().GetCaption()}
	case msg.DocumentMessage != nil:
		return Content{Kind: KindDocument, Text: msg.GetDocumentMessage().GetCaption()}
	case msg.ButtonsResponseMessage != nil:
		return Content{Kind: KindButtonsResponse, Text: msg.GetButtonsResponseMessage().GetSelectedButtonID()}
	case msg.ListResponseMessage != nil:
		return Content{Kind: KindListResponse, Text: msg.GetListResponseMessage().GetSingleSelectReply().GetSelectedRowID()}
	case msg.TemplateButtonReplyMessage != nil:
		return Content{Kind: KindTemplateButtonReply, Text: msg.GetTemplateButtonReplyMessage().GetSelectedID()}
	default:
		return Content{Kind: KindUnknown}
	}
}
