package protocol

import (
	"encoding/json"
	"errors"
)

// ErrInvalidValue is returned when a value field does not hold valid JSON.
var ErrInvalidValue = errors.New("protocol: value is not valid JSON")

// Input carries a value for a named input of the graph.
type Input struct {
	Seq    uint64          // Client sequence number, echoed in Ack and Error
	Target string          // Input name
	Value  json.RawMessage // JSON-encoded payload
}

// Output carries a value emitted by a named output of the graph.
type Output struct {
	Target string          // Output name
	Value  json.RawMessage // JSON-encoded payload
}

// NewInput creates an Input, JSON-encoding v.
func NewInput(seq uint64, target string, v any) (*Input, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &Input{Seq: seq, Target: target, Value: raw}, nil
}

// EncodeInput encodes an Input to bytes.
func EncodeInput(in *Input) []byte {
	e := NewEncoder()
	EncodeInputTo(e, in)
	return e.Bytes()
}

// EncodeInputTo encodes an Input using the provided encoder.
func EncodeInputTo(e *Encoder, in *Input) {
	e.WriteUvarint(in.Seq)
	e.WriteString(in.Target)
	e.WriteLenBytes(in.Value)
}

// DecodeInput decodes an Input from bytes.
func DecodeInput(data []byte) (*Input, error) {
	d := NewDecoder(data)
	return DecodeInputFrom(d)
}

// DecodeInputFrom decodes an Input from a decoder.
func DecodeInputFrom(d *Decoder) (*Input, error) {
	seq, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}

	target, err := d.ReadString()
	if err != nil {
		return nil, err
	}

	value, err := readValue(d)
	if err != nil {
		return nil, err
	}

	return &Input{
		Seq:    seq,
		Target: target,
		Value:  value,
	}, nil
}

// NewOutput creates an Output, JSON-encoding v.
func NewOutput(target string, v any) (*Output, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &Output{Target: target, Value: raw}, nil
}

// EncodeOutput encodes an Output to bytes.
func EncodeOutput(out *Output) []byte {
	e := NewEncoder()
	EncodeOutputTo(e, out)
	return e.Bytes()
}

// EncodeOutputTo encodes an Output using the provided encoder.
func EncodeOutputTo(e *Encoder, out *Output) {
	e.WriteString(out.Target)
	e.WriteLenBytes(out.Value)
}

// DecodeOutput decodes an Output from bytes.
func DecodeOutput(data []byte) (*Output, error) {
	d := NewDecoder(data)
	return DecodeOutputFrom(d)
}

// DecodeOutputFrom decodes an Output from a decoder.
func DecodeOutputFrom(d *Decoder) (*Output, error) {
	target, err := d.ReadString()
	if err != nil {
		return nil, err
	}

	value, err := readValue(d)
	if err != nil {
		return nil, err
	}

	return &Output{
		Target: target,
		Value:  value,
	}, nil
}

func readValue(d *Decoder) (json.RawMessage, error) {
	value, err := d.ReadLenBytes()
	if err != nil {
		return nil, err
	}
	if !json.Valid(value) {
		return nil, ErrInvalidValue
	}
	return value, nil
}
