package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/protobuf/proto"

	"go.mau.fi/whatsmeow/proto/waE2E"
)

func textMessage(text string) *waE2E.Message {
	return &waE2E.Message{Conversation: proto.String(text)}
}

func TestUnwrapPeelsOneEnvelope(t *testing.T) {
	inner := textMessage("hello")

	ephemeral := &waE2E.Message{
		EphemeralMessage: &waE2E.FutureProofMessage{Message: inner},
	}
	assert.Same(t, inner, Unwrap(ephemeral))

	viewOnce := &waE2E.Message{
		ViewOnceMessage: &waE2E.FutureProofMessage{Message: inner},
	}
	assert.Same(t, inner, Unwrap(viewOnce))

	viewOnceV2 := &waE2E.Message{
		ViewOnceMessageV2: &waE2E.FutureProofMessage{Message: inner},
	}
	assert.Same(t, inner, Unwrap(viewOnceV2))

	// Plain messages pass through unchanged, as does nil.
	assert.Same(t, inner, Unwrap(inner))
	assert.Nil(t, Unwrap(nil))
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		msg      *waE2E.Message
		wantKind Kind
		wantText string
	}{
		{
			"nil message", nil, KindUnknown, "",
		},
		{
			"conversation",
			textMessage(".ping"),
			KindText, ".ping",
		},
		{
			"extended text",
			&waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("linked text")}},
			KindExtendedText, "linked text",
		},
		{
			"image caption",
			&waE2E.Message{ImageMessage: &waE2E.ImageMessage{Caption: proto.String("look")}},
			KindImage, "look",
		},
		{
			"video caption",
			&waE2E.Message{VideoMessage: &waE2E.VideoMessage{Caption: proto.String("clip")}},
			KindVideo, "clip",
		},
		{
			"document caption",
			&waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{Caption: proto.String("report")}},
			KindDocument, "report",
		},
		{
			"buttons response",
			&waE2E.Message{ButtonsResponseMessage: &waE2E.ButtonsResponseMessage{SelectedButtonID: proto.String("btn-1")}},
			KindButtonsResponse, "btn-1",
		},
		{
			"list response",
			&waE2E.Message{ListResponseMessage: &waE2E.ListResponseMessage{
				SingleSelectReply: &waE2E.ListResponseMessage_SingleSelectReply{SelectedRowID: proto.String("row-2")},
			}},
			KindListResponse, "row-2",
		},
		{
			"template button reply",
			&waE2E.Message{TemplateButtonReplyMessage: &waE2E.TemplateButtonReplyMessage{SelectedID: proto.String("tpl-3")}},
			KindTemplateButtonReply, "tpl-3",
		},
		{
			"unsupported shape",
			&waE2E.Message{AudioMessage: &waE2E.AudioMessage{}},
			KindUnknown, "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := Extract(tt.msg)
			assert.Equal(t, tt.wantKind, content.Kind)
			assert.Equal(t, tt.wantText, content.Text)
		})
	}
}
