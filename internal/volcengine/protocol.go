// Package volcengine implements the binary frame protocol shared by the
// Volcengine streaming speech services.
package volcengine

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
)

// ProtocolVersion WebSocket二进制协议版本
const ProtocolVersion = 0b0001

// MessageType 消息类型
type MessageType uint8

const (
	FullClientRequest       MessageType = 0b0001
	AudioOnlyRequest        MessageType = 0b0010
	FullServerResponse      MessageType = 0b1001
	AudioOnlyServerResponse MessageType = 0b1011
	ErrorMessage            MessageType = 0b1111
)

// Flags 消息特定标志
type Flags uint8

const (
	NoSequence       Flags = 0b0000
	PositiveSequence Flags = 0b0001
	LastNoSequence   Flags = 0b0010
	NegativeSequence Flags = 0b0011
	// WithEvent 表示消息携带事件元数据
	WithEvent Flags = 0b0100
)

// Serialization 序列化方法
type Serialization uint8

const (
	NoSerialization   Serialization = 0b0000
	JSONSerialization Serialization = 0b0001
)

// Compression 压缩方法
type Compression uint8

const (
	NoCompression   Compression = 0b0000
	GzipCompression Compression = 0b0001
)

// Event 服务端事件类型
type Event int32

const (
	EventNone               Event = 0
	EventStartConnection    Event = 1
	EventFinishConnection   Event = 2
	EventConnectionStarted  Event = 50
	EventConnectionFailed   Event = 51
	EventConnectionFinished Event = 52
	EventSessionStarted     Event = 150
	EventSessionFinished    Event = 152
	EventSessionFailed      Event = 153
)

// Frame 一条协议消息。Payload 在解码后已解压。
type Frame struct {
	Type          MessageType
	Flags         Flags
	Serialization Serialization
	Compression   Compression
	Sequence      int32
	Event         Event
	SessionID     string
	ConnectID     string
	ErrorCode     uint32
	Payload       []byte
}

func (f *Frame) hasSequence() bool {
	switch f.Flags & 0b0011 {
	case PositiveSequence, NegativeSequence:
		return true
	default:
		return false
	}
}

func (f *Frame) hasEvent() bool {
	return f.Flags&WithEvent == WithEvent
}

// IsLast 判断是否为最后一包
func (f *Frame) IsLast() bool {
	switch f.Flags & 0b0011 {
	case LastNoSequence, NegativeSequence:
		return true
	default:
		return false
	}
}

func eventSkipsSessionID(e Event) bool {
	switch e {
	case EventStartConnection, EventFinishConnection,
		EventConnectionStarted, EventConnectionFailed, EventConnectionFinished:
		return true
	default:
		return false
	}
}

func eventHasConnectID(e Event) bool {
	switch e {
	case EventConnectionStarted, EventConnectionFailed, EventConnectionFinished:
		return true
	default:
		return false
	}
}

// Encode 编码完整消息，Payload 按 Compression 原样写入。
func (f *Frame) Encode() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 16+len(f.Payload)))

	// version(4) | header size(4), type(4) | flags(4), serialization(4) | compression(4), reserved
	buf.WriteByte(ProtocolVersion<<4 | 0b0001)
	buf.WriteByte(uint8(f.Type)<<4 | uint8(f.Flags))
	buf.WriteByte(uint8(f.Serialization)<<4 | uint8(f.Compression))
	buf.WriteByte(0x00)

	if f.hasSequence() {
		_ = binary.Write(buf, binary.BigEndian, f.Sequence)
	}
	if f.hasEvent() {
		_ = binary.Write(buf, binary.BigEndian, int32(f.Event))
		if !eventSkipsSessionID(f.Event) {
			writeSized(buf, f.SessionID)
		}
		if eventHasConnectID(f.Event) {
			writeSized(buf, f.ConnectID)
		}
	}
	if f.Type == ErrorMessage {
		_ = binary.Write(buf, binary.BigEndian, f.ErrorCode)
	}
	_ = binary.Write(buf, binary.BigEndian, uint32(len(f.Payload)))
	buf.Write(f.Payload)

	return buf.Bytes()
}

func writeSized(buf *bytes.Buffer, s string) {
	_ = binary.Write(buf, binary.BigEndian, uint32(len(s)))
	buf.WriteString(s)
}

// Decode 解码一条消息并解压负载
func Decode(data []byte) (*Frame, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("header data too short: got %d, need 4", len(data))
	}
	if version := data[0] >> 4; version != ProtocolVersion {
		return nil, fmt.Errorf("unsupported protocol version: %d", version)
	}

	f := &Frame{
		Type:          MessageType(data[1] >> 4),
		Flags:         Flags(data[1] & 0x0F),
		Serialization: Serialization(data[2] >> 4),
		Compression:   Compression(data[2] & 0x0F),
	}

	r := bytes.NewReader(data[4:])
	// 头部大小以 4 字节为单位，跳过扩展部分
	if extra := int(data[0]&0x0F)*4 - 4; extra > 0 {
		if _, err := r.Seek(int64(extra), io.SeekCurrent); err != nil {
			return nil, fmt.Errorf("failed to read extended header: %w", err)
		}
	}

	if f.hasSequence() {
		if err := binary.Read(r, binary.BigEndian, &f.Sequence); err != nil {
			return nil, fmt.Errorf("failed to read sequence: %w", err)
		}
	}
	if f.hasEvent() {
		if err := binary.Read(r, binary.BigEndian, &f.Event); err != nil {
			return nil, fmt.Errorf("failed to read event type: %w", err)
		}
		if !eventSkipsSessionID(f.Event) {
			s, err := readSized(r)
			if err != nil {
				return nil, fmt.Errorf("failed to read session id: %w", err)
			}
			f.SessionID = s
		}
		if eventHasConnectID(f.Event) {
			s, err := readSized(r)
			if err != nil {
				return nil, fmt.Errorf("failed to read connect id: %w", err)
			}
			f.ConnectID = s
		}
	}
	if f.Type == ErrorMessage {
		if err := binary.Read(r, binary.BigEndian, &f.ErrorCode); err != nil {
			return nil, fmt.Errorf("failed to read error code: %w", err)
		}
	}

	var size uint32
	if err := binary.Read(r, binary.BigEndian, &size); err != nil {
		return nil, fmt.Errorf("failed to read payload size: %w", err)
	}
	if int64(size) > int64(r.Len()) {
		return nil, fmt.Errorf("failed to read payload (expected %d bytes, have %d)", size, r.Len())
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}

	if f.Compression == GzipCompression && len(payload) > 0 {
		plain, err := Gunzip(payload)
		if err != nil {
			return nil, err
		}
		payload = plain
		f.Compression = NoCompression
	}
	f.Payload = payload
	return f, nil
}

func readSized(r *bytes.Reader) (string, error) {
	var size uint32
	if err := binary.Read(r, binary.BigEndian, &size); err != nil {
		return "", err
	}
	if int64(size) > int64(r.Len()) {
		return "", io.ErrUnexpectedEOF
	}
	b := make([]byte, size)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// NewFullClientRequest 携带请求参数的首包；gzip 为 true 时压缩负载。
func NewFullClientRequest(params []byte, gzip bool) (*Frame, error) {
	f := &Frame{
		Type:          FullClientRequest,
		Flags:         NoSequence,
		Serialization: JSONSerialization,
		Compression:   NoCompression,
		Payload:       params,
	}
	if gzip {
		compressed, err := Gzip(params)
		if err != nil {
			return nil, err
		}
		f.Compression = GzipCompression
		f.Payload = compressed
	}
	return f, nil
}

// NewAudioRequest 音频包，gzip 压缩；最后一包使用负序号。
func NewAudioRequest(pcm []byte, sequence int32, last bool) (*Frame, error) {
	payload, err := Gzip(pcm)
	if err != nil {
		return nil, err
	}
	flags := PositiveSequence
	if last {
		flags = NegativeSequence
		sequence = -sequence
	}
	return &Frame{
		Type:          AudioOnlyRequest,
		Flags:         flags,
		Serialization: NoSerialization,
		Compression:   GzipCompression,
		Sequence:      sequence,
		Payload:       payload,
	}, nil
}

// Headers 构造鉴权请求头
func Headers(appID, accessToken, resourceID, connectID string) http.Header {
	h := http.Header{}
	h.Set("X-Api-App-Key", appID)
	h.Set("X-Api-Access-Key", accessToken)
	h.Set("X-Api-Resource-Id", resourceID)
	h.Set("X-Api-Connect-Id", connectID)
	return h
}
