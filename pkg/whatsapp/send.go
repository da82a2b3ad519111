package whatsapp

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/forPelevin/gomoji"
	"github.com/rivo/uniseg"
	"github.com/sunshineplan/imgconv"
	"google.golang.org/protobuf/proto"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waCommon"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"

	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/env"
)

// SendText sends a plain conversation message and returns the message id.
func SendText(ctx context.Context, client *whatsmeow.Client, to types.JID, message string) (string, error) {
	msgExtra := whatsmeow.SendRequestExtra{
		ID: client.GenerateMessageID(),
	}
	msgContent := &waE2E.Message{
		Conversation: proto.String(message),
	}
	_, err := client.SendMessage(ctx, to, msgContent, msgExtra)
	if err != nil {
		return "", err
	}
	return msgExtra.ID, nil
}

// SendImage uploads and sends an image with a 72px JPEG link thumbnail,
// converting WebP input and resizing oversized images when configured.
func SendImage(ctx context.Context, client *whatsmeow.Client, to types.JID, imageBytes []byte, imageType string, caption string) (string, error) {
	if imageType == "image/webp" && env.GetEnvBoolOrDefault("WHATSAPP_MEDIA_IMAGE_CONVERT_WEBP", false) {
		imgConvDecode, err := imgconv.Decode(bytes.NewReader(imageBytes))
		if err != nil {
			return "", errors.New("Error While Decoding Convert Image Stream")
		}
		imgConvEncode := new(bytes.Buffer)
		err = imgconv.Write(imgConvEncode, imgConvDecode, &imgconv.FormatOption{Format: imgconv.PNG})
		if err != nil {
			return "", errors.New("Error While Encoding Convert Image Stream")
		}
		imageBytes = imgConvEncode.Bytes()
		imageType = "image/png"
	}

	if env.GetEnvBoolOrDefault("WHATSAPP_MEDIA_IMAGE_COMPRESSION", false) {
		imgResizeDecode, err := imgconv.Decode(bytes.NewReader(imageBytes))
		if err != nil {
			return "", errors.New("Error While Decoding Resize Image Stream")
		}
		imgResizeEncode := new(bytes.Buffer)
		err = imgconv.Write(imgResizeEncode,
			imgconv.Resize(imgResizeDecode, &imgconv.ResizeOption{Width: 1024}),
			&imgconv.FormatOption{})
		if err != nil {
			return "", errors.New("Error While Encoding Resize Image Stream")
		}
		imageBytes = imgResizeEncode.Bytes()
	}

	imgThumbDecode, err := imgconv.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return "", errors.New("Error While Decoding Thumbnail Image Stream")
	}
	imgThumbEncode := new(bytes.Buffer)
	err = imgconv.Write(imgThumbEncode,
		imgconv.Resize(imgThumbDecode, &imgconv.ResizeOption{Width: 72}),
		&imgconv.FormatOption{Format: imgconv.JPEG})
	if err != nil {
		return "", errors.New("Error While Encoding Thumbnail Image Stream")
	}

	imageUploaded, err := client.Upload(ctx, imageBytes, whatsmeow.MediaImage)
	if err != nil {
		return "", errors.New("Error While Uploading Media to WhatsApp Server")
	}
	imageThumbUploaded, err := client.Upload(ctx, imgThumbEncode.Bytes(), whatsmeow.MediaLinkThumbnail)
	if err != nil {
		return "", errors.New("Error while Uploading Image Thumbnail to WhatsApp Server")
	}

	msgExtra := whatsmeow.SendRequestExtra{
		ID: client.GenerateMessageID(),
	}
	msgContent := &waE2E.Message{
		ImageMessage: &waE2E.ImageMessage{
			URL:                 proto.String(imageUploaded.URL),
			DirectPath:          proto.String(imageUploaded.DirectPath),
			Mimetype:            proto.String(imageType),
			Caption:             proto.String(caption),
			FileLength:          proto.Uint64(imageUploaded.FileLength),
			FileSHA256:          imageUploaded.FileSHA256,
			FileEncSHA256:       imageUploaded.FileEncSHA256,
			MediaKey:            imageUploaded.MediaKey,
			JPEGThumbnail:       imgThumbEncode.Bytes(),
			ThumbnailDirectPath: &imageThumbUploaded.DirectPath,
			ThumbnailSHA256:     imageThumbUploaded.FileSHA256,
			ThumbnailEncSHA256:  imageThumbUploaded.FileEncSHA256,
		},
	}
	_, err = client.SendMessage(ctx, to, msgContent, msgExtra)
	if err != nil {
		return "", err
	}
	return msgExtra.ID, nil
}

// ValidateEmoji accepts exactly one emoji grapheme.
func ValidateEmoji(emoji string) error {
	if !gomoji.ContainsEmoji(emoji) && uniseg.GraphemeClusterCount(emoji) != 1 {
		return errors.New("reaction must contain exactly one emoji character")
	}
	return nil
}

// SendReaction reacts to an existing message in a chat.
func SendReaction(ctx context.Context, client *whatsmeow.Client, chat types.JID, participant types.JID, messageID string, emoji string) error {
	if err := ValidateEmoji(emoji); err != nil {
		return err
	}
	msgReact := &waE2E.Message{
		ReactionMessage: &waE2E.ReactionMessage{
			Key: &waCommon.MessageKey{
				FromMe:      proto.Bool(false),
				ID:          proto.String(messageID),
				RemoteJID:   proto.String(chat.String()),
				Participant: proto.String(participant.String()),
			},
			Text:              proto.String(emoji),
			SenderTimestampMS: proto.Int64(time.Now().UnixMilli()),
		},
	}
	_, err := client.SendMessage(ctx, chat, msgReact)
	return err
}

// MarkRead acknowledges messages so the sender sees read receipts.
func MarkRead(ctx context.Context, client *whatsmeow.Client, chat types.JID, sender types.JID, messageIDs []types.MessageID) error {
	return client.MarkRead(ctx, messageIDs, time.Now(), chat, sender)
}

// ChatPresence flips the typing or recording indicator in one chat.
func ChatPresence(ctx context.Context, client *whatsmeow.Client, chat types.JID, active bool, recording bool) error {
	presence := types.ChatPresenceComposing
	media := types.ChatPresenceMediaText
	if !active {
		presence = types.ChatPresencePaused
	}
	if recording {
		media = types.ChatPresenceMediaAudio
	}
	return client.SendChatPresence(ctx, chat, presence, media)
}

// RejectCall declines an incoming call offer.
func RejectCall(ctx context.Context, client *whatsmeow.Client, callFrom types.JID, callID string) error {
	return client.RejectCall(ctx, callFrom, callID)
}

// FollowNewsletter subscribes the account to a channel.
func FollowNewsletter(ctx context.Context, client *whatsmeow.Client, newsletter types.JID) error {
	return client.FollowNewsletter(ctx, newsletter)
}

// JoinGroupWithLink joins a group from an invite code.
func JoinGroupWithLink(ctx context.Context, client *whatsmeow.Client, code string) (types.JID, error) {
	return client.JoinGroupWithLink(ctx, code)
}

// GroupName resolves a group's subject for message templating.
func GroupName(ctx context.Context, client *whatsmeow.Client, group types.JID) (string, error) {
	info, err := client.GetGroupInfo(ctx, group)
	if err != nil {
		return "", err
	}
	return info.Name, nil
}
