package protocol

// ProtocolVersion represents a protocol version as major.minor.
type ProtocolVersion struct {
	Major uint8
	Minor uint8
}

// CurrentVersion is the current protocol version.
var CurrentVersion = ProtocolVersion{Major: 1, Minor: 0}

// Hello is the first frame the server sends on a new connection.
type Hello struct {
	Version ProtocolVersion // Protocol version spoken by the server
	ConnID  string          // Connection identifier, for logs and support
	Window  uint64          // Initial input window
	Inputs  []string        // Names accepted in Input.Target
	Outputs []string        // Names that may appear in Output.Target
}

// EncodeHello encodes a Hello to bytes.
func EncodeHello(h *Hello) []byte {
	e := NewEncoder()
	EncodeHelloTo(e, h)
	return e.Bytes()
}

// EncodeHelloTo encodes a Hello using the provided encoder.
func EncodeHelloTo(e *Encoder, h *Hello) {
	e.WriteByte(h.Version.Major)
	e.WriteByte(h.Version.Minor)
	e.WriteString(h.ConnID)
	e.WriteUvarint(h.Window)
	writeNames(e, h.Inputs)
	writeNames(e, h.Outputs)
}

// DecodeHello decodes a Hello from bytes.
func DecodeHello(data []byte) (*Hello, error) {
	d := NewDecoder(data)
	return DecodeHelloFrom(d)
}

// DecodeHelloFrom decodes a Hello from a decoder.
func DecodeHelloFrom(d *Decoder) (*Hello, error) {
	major, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	minor, err := d.ReadByte()
	if err != nil {
		return nil, err
	}

	connID, err := d.ReadString()
	if err != nil {
		return nil, err
	}

	window, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}

	inputs, err := readNames(d)
	if err != nil {
		return nil, err
	}
	outputs, err := readNames(d)
	if err != nil {
		return nil, err
	}

	return &Hello{
		Version: ProtocolVersion{Major: major, Minor: minor},
		ConnID:  connID,
		Window:  window,
		Inputs:  inputs,
		Outputs: outputs,
	}, nil
}

func writeNames(e *Encoder, names []string) {
	e.WriteUvarint(uint64(len(names)))
	for _, n := range names {
		e.WriteString(n)
	}
}

func readNames(d *Decoder) ([]string, error) {
	count, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}
	names := make([]string, count)
	for i := range names {
		if names[i], err = d.ReadString(); err != nil {
			return nil, err
		}
	}
	return names, nil
}
