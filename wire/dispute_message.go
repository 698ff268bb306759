package wire

import (
	"encoding/binary"
	"fmt"

	"archimedes/group"
	"archimedes/merkle"
	"archimedes/model"
)

// MessageTag identifies the payload shape of a DisputeMessage.
type MessageTag byte

const (
	TagQuery      MessageTag = 0x01 // query(mid): mid[8]
	TagReply      MessageTag = 0x02 // reply(P,R,path): point[48] blinder[32] path_len[2] path[path_len*32]
	TagNarrow     MessageTag = 0x03 // narrow(dir): dir[1] (0=LEFT, 1=RIGHT)
	TagRevealStep MessageTag = 0x04 // reveal_step: StepRecord witness_len[4] witness[witness_len]
)

// Direction is the challenger's narrowing choice.
type Direction byte

const (
	DirLeft  Direction = 0
	DirRight Direction = 1
)

// QueryPayload is the tag 0x01 body.
type QueryPayload struct {
	Mid uint64
}

// ReplyPayload is the tag 0x02 body: the proposer's opening of prefix index Mid.
type ReplyPayload struct {
	Point   group.Point
	Blinder group.Scalar
	Path    []merkle.Digest
}

// NarrowPayload is the tag 0x03 body.
type NarrowPayload struct {
	Dir Direction
}

// RevealStepPayload is the tag 0x04 body.
type RevealStepPayload struct {
	Step    model.StepRecord
	Witness []byte
}

// DisputeMessage is the framed envelope: session_id[16] round[4] tag[1] payload.
type DisputeMessage struct {
	SessionID [16]byte
	Round     uint32
	Tag       MessageTag
	Query     *QueryPayload
	Reply     *ReplyPayload
	Narrow    *NarrowPayload
	Reveal    *RevealStepPayload
}

const headerSize = 16 + 4 + 1

// EncodeDisputeMessage frames m per §6. Any deviation a decoder later
// encounters is a MalformedMessage against the sender's clock; encoding
// itself never fails for a well-formed DisputeMessage value.
func EncodeDisputeMessage(m DisputeMessage) ([]byte, error) {
	header := make([]byte, headerSize)
	copy(header[0:16], m.SessionID[:])
	binary.LittleEndian.PutUint32(header[16:20], m.Round)
	header[20] = byte(m.Tag)

	var payload []byte
	switch m.Tag {
	case TagQuery:
		if m.Query == nil {
			return nil, fmt.Errorf("wire: DisputeMessage: tag query missing payload")
		}
		payload = make([]byte, 8)
		binary.LittleEndian.PutUint64(payload, m.Query.Mid)
	case TagReply:
		if m.Reply == nil {
			return nil, fmt.Errorf("wire: DisputeMessage: tag reply missing payload")
		}
		if len(m.Reply.Path) > 0xFFFF {
			return nil, fmt.Errorf("wire: DisputeMessage: path too long (%d entries)", len(m.Reply.Path))
		}
		payload = make([]byte, pointSize+scalarSize+2+len(m.Reply.Path)*digestSize)
		off := 0
		putPoint(payload[off:off+pointSize], m.Reply.Point)
		off += pointSize
		putScalar(payload[off:off+scalarSize], m.Reply.Blinder)
		off += scalarSize
		binary.LittleEndian.PutUint16(payload[off:off+2], uint16(len(m.Reply.Path)))
		off += 2
		for _, d := range m.Reply.Path {
			copy(payload[off:off+digestSize], d[:])
			off += digestSize
		}
	case TagNarrow:
		if m.Narrow == nil {
			return nil, fmt.Errorf("wire: DisputeMessage: tag narrow missing payload")
		}
		payload = []byte{byte(m.Narrow.Dir)}
	case TagRevealStep:
		if m.Reveal == nil {
			return nil, fmt.Errorf("wire: DisputeMessage: tag reveal_step missing payload")
		}
		stepBytes := EncodeStepRecord(m.Reveal.Step)
		payload = make([]byte, 0, len(stepBytes)+4+len(m.Reveal.Witness))
		var witLen [4]byte
		binary.LittleEndian.PutUint32(witLen[:], uint32(len(m.Reveal.Witness)))
		payload = append(payload, stepBytes...)
		payload = append(payload, witLen[:]...)
		payload = append(payload, m.Reveal.Witness...)
	default:
		return nil, fmt.Errorf("wire: DisputeMessage: unknown tag 0x%02x", byte(m.Tag))
	}
	return append(header, payload...), nil
}

// DecodeDisputeMessage parses the framing EncodeDisputeMessage writes. Any
// framing deviation returns an error; callers attribute it to the sender
// per §6 ("Any deviation in framing is a MalformedMessage").
func DecodeDisputeMessage(buf []byte) (DisputeMessage, error) {
	if len(buf) < headerSize {
		return DisputeMessage{}, fmt.Errorf("wire: DisputeMessage: header too short")
	}
	var m DisputeMessage
	copy(m.SessionID[:], buf[0:16])
	m.Round = binary.LittleEndian.Uint32(buf[16:20])
	m.Tag = MessageTag(buf[20])
	payload := buf[headerSize:]

	switch m.Tag {
	case TagQuery:
		if len(payload) < 8 {
			return DisputeMessage{}, fmt.Errorf("wire: DisputeMessage: query payload too short")
		}
		m.Query = &QueryPayload{Mid: binary.LittleEndian.Uint64(payload[0:8])}
	case TagReply:
		if len(payload) < pointSize+scalarSize+2 {
			return DisputeMessage{}, fmt.Errorf("wire: DisputeMessage: reply payload too short")
		}
		off := 0
		p, err := getPoint(payload[off : off+pointSize])
		if err != nil {
			return DisputeMessage{}, err
		}
		off += pointSize
		blinder := getScalar(payload[off : off+scalarSize])
		off += scalarSize
		pathLen := int(binary.LittleEndian.Uint16(payload[off : off+2]))
		off += 2
		if len(payload) < off+pathLen*digestSize {
			return DisputeMessage{}, fmt.Errorf("wire: DisputeMessage: reply path truncated")
		}
		path := make([]merkle.Digest, pathLen)
		for i := 0; i < pathLen; i++ {
			copy(path[i][:], payload[off:off+digestSize])
			off += digestSize
		}
		m.Reply = &ReplyPayload{Point: p, Blinder: blinder, Path: path}
	case TagNarrow:
		if len(payload) < 1 {
			return DisputeMessage{}, fmt.Errorf("wire: DisputeMessage: narrow payload too short")
		}
		dir := Direction(payload[0])
		if dir != DirLeft && dir != DirRight {
			return DisputeMessage{}, fmt.Errorf("wire: DisputeMessage: invalid direction byte 0x%02x", payload[0])
		}
		m.Narrow = &NarrowPayload{Dir: dir}
	case TagRevealStep:
		step, n, err := DecodeStepRecord(payload)
		if err != nil {
			return DisputeMessage{}, err
		}
		off := n
		if len(payload) < off+4 {
			return DisputeMessage{}, fmt.Errorf("wire: DisputeMessage: reveal_step witness length truncated")
		}
		witLen := int(binary.LittleEndian.Uint32(payload[off : off+4]))
		off += 4
		if len(payload) < off+witLen {
			return DisputeMessage{}, fmt.Errorf("wire: DisputeMessage: reveal_step witness truncated")
		}
		witness := append([]byte(nil), payload[off:off+witLen]...)
		m.Reveal = &RevealStepPayload{Step: step, Witness: witness}
	default:
		return DisputeMessage{}, fmt.Errorf("wire: DisputeMessage: unknown tag 0x%02x", byte(m.Tag))
	}
	return m, nil
}
