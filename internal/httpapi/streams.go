package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/countdownforge/internal/builder"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/model"
)

const (
	codecNameJSON    = "json"
	codecNameMsgPack = "msgpack"

	liveReplyKindAck   = "ack"
	liveReplyKindError = "error"
	liveReplyBuffer    = 4
	liveWriteTimeout   = 5 * time.Second

	errorValueInvalidMessage = "invalid_message"
	liveCloseReasonSession   = "session closed"

	logEventMarshalFrameFailed = "marshal_frame_failed"
	logEventLiveAcceptFailed   = "live_accept_failed"
	logEventLiveWriteFailed    = "live_write_failed"
)

var (
	errUnknownCodec        = errors.New("unknown codec")
	errInvalidPatchPayload = errors.New("invalid patch payload")
)

// liveReply acknowledges or rejects one inbound patch.
type liveReply struct {
	Kind  string `json:"kind" msgpack:"kind"`
	Error string `json:"error,omitempty" msgpack:"error,omitempty"`
}

// frameCodec encodes outbound frames and decodes inbound patches for the live channel.
type frameCodec interface {
	Name() string
	MessageType() websocket.MessageType
	Encode(value any) ([]byte, error)
	DecodePatch(payload []byte) (model.TimerConfigPatch, error)
}

type jsonFrameCodec struct{}

func (jsonFrameCodec) Name() string {
	return codecNameJSON
}

func (jsonFrameCodec) MessageType() websocket.MessageType {
	return websocket.MessageText
}

func (jsonFrameCodec) Encode(value any) ([]byte, error) {
	return json.Marshal(value)
}

func (jsonFrameCodec) DecodePatch(payload []byte) (model.TimerConfigPatch, error) {
	return model.DecodeTimerConfigPatch(payload)
}

// msgpackFrameCodec decodes patches through their JSON form so that field names
// and null handling match the HTTP API.
type msgpackFrameCodec struct{}

func (msgpackFrameCodec) Name() string {
	return codecNameMsgPack
}

func (msgpackFrameCodec) MessageType() websocket.MessageType {
	return websocket.MessageBinary
}

func (msgpackFrameCodec) Encode(value any) ([]byte, error) {
	return msgpack.Marshal(value)
}

func (msgpackFrameCodec) DecodePatch(payload []byte) (model.TimerConfigPatch, error) {
	var document map[string]any
	if err := msgpack.Unmarshal(payload, &document); err != nil {
		return model.TimerConfigPatch{}, fmt.Errorf("decode msgpack patch: %w", err)
	}
	encoded, encodeErr := json.Marshal(document)
	if encodeErr != nil {
		return model.TimerConfigPatch{}, fmt.Errorf("decode msgpack patch: %w", encodeErr)
	}
	return model.DecodeTimerConfigPatch(encoded)
}

func frameCodecByName(name string) (frameCodec, error) {
	switch name {
	case "", codecNameJSON:
		return jsonFrameCodec{}, nil
	case codecNameMsgPack:
		return msgpackFrameCodec{}, nil
	}
	return nil, fmt.Errorf("%w: %q", errUnknownCodec, name)
}

// streamFrames writes session frames as server-sent events until the client
// disconnects or the session closes.
func streamFrames(ginContext *gin.Context, subscription *builder.FrameSubscription, initial builder.Frame, logger *zap.Logger) {
	if subscription == nil {
		ginContext.JSON(http.StatusServiceUnavailable, gin.H{jsonKeyError: errorValueStreamUnavailable})
		return
	}
	defer subscription.Close()

	ginContext.Header("Content-Type", "text/event-stream")
	ginContext.Header("Cache-Control", "no-cache")
	ginContext.Header("Connection", "keep-alive")

	flusher, flushable := ginContext.Writer.(http.Flusher)
	if !flushable {
		ginContext.JSON(http.StatusServiceUnavailable, gin.H{jsonKeyError: errorValueStreamUnavailable})
		return
	}

	ginContext.Writer.WriteHeaderNow()
	flusher.Flush()

	if initial.Sequence > 0 && !writeFrameEvent(ginContext.Writer, flusher, initial, logger) {
		return
	}

	requestContext := ginContext.Request.Context()
	for {
		select {
		case <-requestContext.Done():
			return
		case frame, ok := <-subscription.Frames():
			if !ok {
				return
			}
			if !writeFrameEvent(ginContext.Writer, flusher, frame, logger) {
				return
			}
		}
	}
}

func writeFrameEvent(writer gin.ResponseWriter, flusher http.Flusher, frame builder.Frame, logger *zap.Logger) bool {
	serializedFrame, marshalErr := json.Marshal(frame)
	if marshalErr != nil {
		logger.Debug(logEventMarshalFrameFailed, zap.Error(marshalErr))
		return true
	}
	var buffer bytes.Buffer
	buffer.WriteString("event: ")
	buffer.WriteString(string(frame.Kind))
	buffer.WriteString("\n")
	buffer.WriteString("data: ")
	buffer.Write(serializedFrame)
	buffer.WriteString("\n\n")
	if _, writeErr := writer.Write(buffer.Bytes()); writeErr != nil {
		return false
	}
	flusher.Flush()
	return true
}

// serveLive pushes frames over an accepted websocket and hands inbound
// messages to applyPatch, answering each with an ack or an error reply.
func serveLive(requestContext context.Context, connection *websocket.Conn, codec frameCodec, subscription *builder.FrameSubscription, initial builder.Frame, applyPatch func([]byte) error, logger *zap.Logger) {
	liveContext, cancel := context.WithCancel(requestContext)
	defer cancel()

	replies := make(chan liveReply, liveReplyBuffer)
	go func() {
		defer cancel()
		for {
			messageType, payload, readErr := connection.Read(liveContext)
			if readErr != nil {
				return
			}
			reply := liveReply{Kind: liveReplyKindAck}
			switch {
			case messageType != codec.MessageType():
				reply = liveReply{Kind: liveReplyKindError, Error: errorValueInvalidMessage}
			default:
				if applyErr := applyPatch(payload); applyErr != nil {
					reply = liveReply{Kind: liveReplyKindError, Error: liveErrorCode(applyErr)}
				}
			}
			select {
			case replies <- reply:
			case <-liveContext.Done():
				return
			}
		}
	}()

	write := func(value any) bool {
		payload, encodeErr := codec.Encode(value)
		if encodeErr != nil {
			logger.Debug(logEventMarshalFrameFailed, zap.String(logFieldCodec, codec.Name()), zap.Error(encodeErr))
			return true
		}
		writeContext, cancelWrite := context.WithTimeout(liveContext, liveWriteTimeout)
		defer cancelWrite()
		if writeErr := connection.Write(writeContext, codec.MessageType(), payload); writeErr != nil {
			logger.Debug(logEventLiveWriteFailed, zap.Error(writeErr))
			return false
		}
		return true
	}

	if initial.Sequence > 0 && !write(initial) {
		return
	}
	for {
		select {
		case <-liveContext.Done():
			connection.Close(websocket.StatusNormalClosure, "")
			return
		case frame, ok := <-subscription.Frames():
			if !ok {
				connection.Close(websocket.StatusGoingAway, liveCloseReasonSession)
				return
			}
			if !write(frame) {
				return
			}
		case reply := <-replies:
			if !write(reply) {
				return
			}
		}
	}
}

func liveErrorCode(err error) string {
	switch {
	case errors.Is(err, errInvalidPatchPayload):
		return errorValueInvalidJSON
	case errors.Is(err, builder.ErrSessionClosed):
		return errorValueSessionClosed
	}
	return validationCode(err)
}
